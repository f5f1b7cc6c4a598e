// Package keygen creates and reads the SSH key pair used to log in to cloud
// nodes.
//
// Private keys are PEM encoded PKCS#1 RSA keys; public keys use the OpenSSH
// authorized_keys format that the cloud API expects.
package keygen
