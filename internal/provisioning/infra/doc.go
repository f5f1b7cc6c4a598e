// Package infra converges virtual machine nodes.
//
// Every node runs through a bounded sequence of attempts. An attempt brings
// the machine up (reusing a running one on the first attempt unless
// recreation was requested), waits until it answers over SSH on its private
// or public address, uploads the generated role and node configuration and
// runs remote provisioning, then checks the provisioned marker. A failed
// attempt destroys and recreates the machine on the next one. A hard
// failure to apply infrastructure ends the node immediately.
//
// Nodes are processed one after another. The network settings file is
// written once at the end of Up, also when some nodes failed.
package infra
