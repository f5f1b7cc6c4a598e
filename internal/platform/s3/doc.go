// Package s3 publishes network settings files to S3 compatible object
// storage, so that test drivers on other machines can read where the nodes
// of a stack are reachable.
package s3
