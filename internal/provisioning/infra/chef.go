package infra

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/imamik/stagehand/internal/config"
	"github.com/imamik/stagehand/internal/netsettings"
	"github.com/imamik/stagehand/internal/provisioning"
	"github.com/imamik/stagehand/internal/result"
)

// configureWithChef uploads the node's role, node configuration and cnf
// templates, runs remote provisioning and checks the provisioned marker. A
// node without a generated role needs no provisioning.
func (o *Orchestrator) configureWithChef(ctx context.Context, obs provisioning.Observer, node string, conn netsettings.Record, outcome *provisioning.Outcome) result.Result[netsettings.Record] {
	roleFile := o.cfg.RoleFile(node)
	if _, err := os.Stat(roleFile); errors.Is(err, fs.ErrNotExist) {
		obs.Printf("[Up] Machine '%s' should not be configured. Skipping.", node)
		return result.Ok(conn)
	}

	configName := node + "-config.json"
	files := []provisioning.FileTransfer{
		{Source: roleFile, Target: path.Join("roles", node+".json")},
		{Source: o.cfg.NodeConfigFile(node), Target: path.Join("configs", configName)},
	}
	files = append(files, cnfExtraFiles(o.cfg, node)...)

	obs.Event(provisioning.Event{
		Type:     provisioning.EventPhaseStarted,
		Phase:    "configure",
		Resource: node,
		Message:  fmt.Sprintf("provisioning with %s (%d files)", configName, len(files)),
	})
	if err := o.exec.Configure(ctx, conn, configName, files); err != nil {
		return result.Err[netsettings.Record](fmt.Errorf("%w: provisioning of node %s failed: %w", provisioning.ErrConfiguration, node, err))
	}
	outcome.State = provisioning.NodeConfigured
	return o.nodeProvisioned(ctx, node, conn)
}

// cnfExtraFiles pairs every product cnf template of node with its location
// on the remote node. Products without a known location are skipped.
func cnfExtraFiles(cfg *config.Configuration, node string) []provisioning.FileTransfer {
	templatePath := cfg.CnfTemplatePath(node)
	if templatePath == "" {
		return nil
	}

	var files []provisioning.FileTransfer
	for _, product := range cfg.Products(node) {
		if product.CnfTemplate == "" {
			continue
		}
		location, ok := config.FilesLocation(product.Name)
		if !ok {
			continue
		}
		files = append(files, provisioning.FileTransfer{
			Source: filepath.Join(templatePath, product.CnfTemplate),
			Target: path.Join(location, product.CnfTemplate),
		})
	}
	return files
}

// nodeProvisioned checks the marker left by a completed provisioning run.
func (o *Orchestrator) nodeProvisioned(ctx context.Context, node string, conn netsettings.Record) result.Result[netsettings.Record] {
	out, err := o.exec.RunCommand(ctx, conn, provisioning.ProvisionedCheckCommand)
	if err != nil {
		return result.Err[netsettings.Record](fmt.Errorf("%w: unable to verify node %s: %w", provisioning.ErrConfiguration, node, err))
	}
	if strings.TrimSpace(out) != "PROVISIONED" {
		return result.Err[netsettings.Record](fmt.Errorf("%w: node '%s' was not provisioned, marker %s is missing",
			provisioning.ErrConfiguration, node, provisioning.ProvisionedMarker))
	}
	return result.Ok(conn)
}
