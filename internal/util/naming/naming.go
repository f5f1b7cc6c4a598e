package naming

import (
	"fmt"
	"strings"
)

// Server is the cloud server name of a node.
func Server(stack, node string) string {
	return Hostname(fmt.Sprintf("%s-%s", stack, node))
}

// SSHKey is the name of the key uploaded for a stack.
func SSHKey(stack string) string {
	return Hostname(stack) + "-key"
}

// Network is the private cloud network name when none is configured.
func Network(stack string) string {
	return Hostname(stack)
}

// BridgeNetwork is the docker network containers are attached to after
// deploy.
func BridgeNetwork(stack string) string {
	return stack + "_bridge"
}

// StackService is the swarm service name of a stack service.
func StackService(stack, service string) string {
	return stack + "_" + service
}

// LocalService strips the stack prefix from a swarm service name.
func LocalService(stack, service string) string {
	return strings.TrimPrefix(service, stack+"_")
}

// Hostname lowercases s and replaces everything that may not appear in a
// host name with '-'.
func Hostname(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('-')
	}
	return strings.Trim(b.String(), "-")
}
