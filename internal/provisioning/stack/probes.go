package stack

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
)

// Runner executes a command inside the probed container.
type Runner func(ctx context.Context, command []string) (string, error)

// Probe reports whether a product inside a container is serving.
type Probe func(ctx context.Context, run Runner) bool

// ProbeTable maps product names to their health probes. Products without an
// entry are ready as soon as their container runs.
type ProbeTable struct {
	probes map[string]Probe
}

// NewProbeTable returns an empty table.
func NewProbeTable() ProbeTable {
	return ProbeTable{probes: map[string]Probe{}}
}

// DefaultProbeTable knows the database and proxy products.
func DefaultProbeTable(user, password string) ProbeTable {
	db := DatabaseProbe(user, password)
	return NewProbeTable().
		With("mariadb", db).
		With("mysql", db).
		With("mdbe", db).
		With("galera", db).
		With("maxscale", MaxScaleProbe)
}

// With returns a copy of the table with p registered for product.
func (t ProbeTable) With(product string, p Probe) ProbeTable {
	probes := make(map[string]Probe, len(t.probes)+1)
	for k, v := range t.probes {
		probes[k] = v
	}
	probes[product] = p
	return ProbeTable{probes: probes}
}

// For returns the probe of product.
func (t ProbeTable) For(product string) Probe {
	if p, ok := t.probes[product]; ok {
		return p
	}
	return alwaysReady
}

func alwaysReady(context.Context, Runner) bool { return true }

// DatabaseProbe runs a trivial query with the mysql client.
func DatabaseProbe(user, password string) Probe {
	command := []string{"mysql",
		fmt.Sprintf("--user=%s", user),
		fmt.Sprintf("--password=%s", password),
		`--execute=SELECT 1`,
	}
	return func(ctx context.Context, run Runner) bool {
		_, err := run(ctx, command)
		return err == nil
	}
}

var uptimePattern = regexp.MustCompile(`Uptime\s*[│|]\s*(\d+)`)

// MaxScaleProbe requires maxctrl to report a positive uptime.
func MaxScaleProbe(ctx context.Context, run Runner) bool {
	out, err := run(ctx, []string{"maxctrl", "show", "maxscale"})
	if err != nil {
		return false
	}
	return ParseUptime(out) > 0
}

// ParseUptime extracts the uptime in seconds from `maxctrl show maxscale`
// output, or returns 0 when none is reported.
func ParseUptime(output string) int {
	m := uptimePattern.FindStringSubmatch(output)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}
