// Package hcloud runs nodes as Hetzner Cloud servers.
//
// RealClient wraps the hcloud-go client with retry, timeout and error
// classification. Provider builds on it to implement
// provisioning.Infrastructure: applying a node ensures the stack's SSH key
// and optional private network, then creates the server; destroying a node
// deletes the server; the node's network is read back from the server.
//
// Deletes and get-or-create calls go through the generic DeleteOperation
// and EnsureOperation helpers so every resource type shares the same
// idempotency and retry behaviour. Locked resources and rate limits are
// retried, invalid parameters are not.
package hcloud
