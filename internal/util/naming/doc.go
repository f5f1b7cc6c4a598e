// Package naming derives resource names from stack and node names.
//
// Cloud resource names must be valid host names, so node names such as
// node_000 become node-000 there. Docker names keep the stack prefix that
// docker stack deploy uses.
package naming
