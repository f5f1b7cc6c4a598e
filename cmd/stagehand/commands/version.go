package commands

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var readBuildInfo = debug.ReadBuildInfo

// backendModules names the SDKs reported by the version command.
var backendModules = map[string]string{
	"github.com/aws/aws-sdk-go-v2/service/s3": "s3",
	"github.com/docker/docker":                "docker",
	"github.com/hetznercloud/hcloud-go/v2":    "hcloud",
}

// SetVersionInfo sets the version information from main.
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}

type versionInfo struct {
	Version   string
	Commit    string
	Date      string
	Module    string
	GoVersion string
	Platform  string
	Backends  []string
}

// currentVersion combines the linker provided values with the build
// information embedded by go install, which fills what the linker left unset.
func currentVersion() versionInfo {
	info := versionInfo{
		Version:   version,
		Commit:    commit,
		Date:      date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	bi, ok := readBuildInfo()
	if !ok {
		return info
	}
	info.Module = bi.Main.Path
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch {
		case s.Key == "vcs.revision" && info.Commit == "none":
			info.Commit = s.Value
		case s.Key == "vcs.time" && info.Date == "unknown":
			info.Date = s.Value
		}
	}
	for _, dep := range bi.Deps {
		if name, ok := backendModules[dep.Path]; ok {
			info.Backends = append(info.Backends, name+" "+dep.Version)
		}
	}
	return info
}

// Version returns the version command.
func Version() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			info := currentVersion()
			if short {
				_, _ = fmt.Fprintln(out, info.Version)
				return
			}

			if info.Module != "" {
				_, _ = fmt.Fprintf(out, "stagehand %s (%s)\n", info.Version, info.Module)
			} else {
				_, _ = fmt.Fprintf(out, "stagehand %s\n", info.Version)
			}
			_, _ = fmt.Fprintf(out, "  commit:   %s\n", info.Commit)
			_, _ = fmt.Fprintf(out, "  built:    %s\n", info.Date)
			_, _ = fmt.Fprintf(out, "  go:       %s %s\n", info.GoVersion, info.Platform)
			if len(info.Backends) > 0 {
				_, _ = fmt.Fprintf(out, "  backends: %s\n", strings.Join(info.Backends, ", "))
			}
		},
	}

	cmd.Flags().BoolVar(&short, "short", false, "Print the version number only")
	return cmd
}
