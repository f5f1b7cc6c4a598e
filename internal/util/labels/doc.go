// Package labels builds the label sets put on cloud servers and stack
// services, so every resource of a stack can be found again by selector.
package labels
