// Package ssh runs commands on provisioned nodes and configures them with
// chef-solo.
//
// Connections use key-based authentication with the key file recorded in
// the node's network settings. Files are uploaded over the session's
// standard input, so nodes need nothing beyond a POSIX shell, tar and
// chef-solo.
package ssh
