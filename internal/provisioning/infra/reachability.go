package infra

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/imamik/stagehand/internal/netsettings"
	"github.com/imamik/stagehand/internal/provisioning"
	"github.com/imamik/stagehand/internal/result"
	"github.com/imamik/stagehand/internal/util/retry"
)

// waitForNodeAvailability probes the private and the public variant of rec
// until one of them answers. The private variant wins when both answer.
func (o *Orchestrator) waitForNodeAvailability(ctx context.Context, obs provisioning.Observer, node string, rec netsettings.Record) result.Result[netsettings.Record] {
	obs.Printf("[Up] Waiting for node '%s' to become available", node)

	variants := connectionVariants(rec)
	var reached netsettings.Record
	err := retry.Poll(ctx, o.probeAttempts, o.probeInterval, o.sleep, func(int) (bool, error) {
		probes := make([]result.Result[netsettings.Record], 0, len(variants))
		for _, v := range variants {
			probes = append(probes, o.probe(ctx, v))
		}
		r := result.Any(probes...)
		if r.IsErr() {
			return false, nil
		}
		reached = r.Value()
		return true, nil
	})
	if err != nil {
		if errors.Is(err, retry.ErrPollExhausted) {
			return result.Err[netsettings.Record](fmt.Errorf("%w: unable to establish connection with remote node '%s': %w",
				provisioning.ErrAvailabilityTimeout, node, err))
		}
		return result.Err[netsettings.Record](err)
	}

	obs.Printf("[Up] Node '%s' is reachable at %s", node, reached.Network)
	return result.Ok(reached)
}

// connectionVariants lists the records to probe, private address first.
func connectionVariants(rec netsettings.Record) []netsettings.Record {
	variants := make([]netsettings.Record, 0, 2)
	if rec.PrivateIP != "" && rec.PrivateIP != rec.Network {
		variants = append(variants, rec.WithNetwork(rec.PrivateIP))
	}
	if rec.Network != "" {
		variants = append(variants, rec)
	}
	return variants
}

func (o *Orchestrator) probe(ctx context.Context, conn netsettings.Record) result.Result[netsettings.Record] {
	out, err := o.exec.RunCommand(ctx, conn, provisioning.ReachabilityProbeCommand)
	ok := err == nil && strings.Contains(out, "connected")
	o.metrics.RecordProbe("ssh", ok)
	if !ok {
		if err == nil {
			err = fmt.Errorf("unexpected probe output %q", out)
		}
		return result.Err[netsettings.Record](fmt.Errorf("%s: %w", conn.Network, err))
	}
	return result.Ok(conn)
}
