package stack

import (
	"fmt"
	"regexp"
	"strings"
)

var ipv4Pattern = regexp.MustCompile(`\d+\.\d+\.\d+\.\d+`)

const loopbackAddress = "127.0.0.1"

// FibTrieCommand dumps the kernel routing table inside a container.
var FibTrieCommand = []string{"cat", "/proc/net/fib_trie"}

// ExtractLocalAddresses returns the addresses of the locally owned host
// routes in a /proc/net/fib_trie dump, in order of appearance. Every
// "host LOCAL" line refers to the address on the last line holding one.
func ExtractLocalAddresses(dump string) []string {
	var last string
	var addresses []string
	for _, line := range strings.Split(dump, "\n") {
		if strings.Contains(line, "host LOCAL") {
			if addr := ipv4Pattern.FindString(last); addr != "" {
				addresses = append(addresses, addr)
			}
			continue
		}
		if ipv4Pattern.MatchString(line) {
			last = line
		}
	}
	return addresses
}

// ExternalAddress returns the first local address that is neither the
// loopback address nor known.
func ExternalAddress(dump, known string) (string, error) {
	for _, addr := range ExtractLocalAddresses(dump) {
		if addr == loopbackAddress || addr == known {
			continue
		}
		return addr, nil
	}
	return "", fmt.Errorf("no external address besides %s in routing table", known)
}
