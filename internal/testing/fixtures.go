package testing

import (
	"fmt"
	"strings"
)

// FibTrieDump renders a /proc/net/fib_trie excerpt in which every address
// in local is marked as a locally owned host route.
func FibTrieDump(local ...string) string {
	var b strings.Builder
	b.WriteString("Main:\n")
	b.WriteString("  +-- 0.0.0.0/0 3 0 5\n")
	b.WriteString("     |-- 0.0.0.0\n")
	b.WriteString("        /0 universe UNICAST\n")
	for _, addr := range local {
		fmt.Fprintf(&b, "     |-- %s\n", addr)
		b.WriteString("        /32 host LOCAL\n")
	}
	b.WriteString("Local:\n")
	b.WriteString("  +-- 127.0.0.0/8 2 0 2\n")
	b.WriteString("     |-- 127.0.0.1\n")
	b.WriteString("        /32 host LOCAL\n")
	return b.String()
}

// StackDefinition is a compose-style stack file with three services.
const StackDefinition = `version: "3.7"
services:
  mariadb_000:
    image: mariadb:10.11
    environment:
      MARIADB_ROOT_PASSWORD: skysql
    deploy:
      restart_policy:
        condition: on-failure
  mariadb_001:
    image: mariadb:10.11
    environment:
      MARIADB_ROOT_PASSWORD: skysql
  maxscale_000:
    image: mariadb/maxscale:23.08
    ports:
      - "8989:8989"
networks:
  default:
    driver: overlay
`
