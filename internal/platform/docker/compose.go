package docker

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/docker/docker/api/types/swarm"
	"sigs.k8s.io/yaml"
)

// composeFile is the part of a compose stack file that translates into
// swarm objects. Unknown keys are ignored.
type composeFile struct {
	Services map[string]composeService  `json:"services"`
	Networks map[string]*composeNetwork `json:"networks,omitempty"`
}

type composeService struct {
	Image       string       `json:"image"`
	Hostname    string       `json:"hostname,omitempty"`
	Command     stringOrList `json:"command,omitempty"`
	Entrypoint  stringOrList `json:"entrypoint,omitempty"`
	Environment mappingList  `json:"environment,omitempty"`
	Labels      mappingList  `json:"labels,omitempty"`
	Ports       []portSpec   `json:"ports,omitempty"`
	Networks    networkRefs  `json:"networks,omitempty"`
	Deploy      deploySpec   `json:"deploy,omitempty"`
}

type deploySpec struct {
	Mode          string         `json:"mode,omitempty"`
	Replicas      *uint64        `json:"replicas,omitempty"`
	Labels        mappingList    `json:"labels,omitempty"`
	RestartPolicy *restartPolicy `json:"restart_policy,omitempty"`
}

type restartPolicy struct {
	Condition string `json:"condition,omitempty"`
}

type composeNetwork struct {
	Driver     string      `json:"driver,omitempty"`
	Attachable bool        `json:"attachable,omitempty"`
	External   bool        `json:"external,omitempty"`
	Name       string      `json:"name,omitempty"`
	Labels     mappingList `json:"labels,omitempty"`
}

// stringOrList accepts `cmd arg` as well as `[cmd, arg]`.
type stringOrList []string

func (s *stringOrList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*s = list
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("expected a string or a list of strings: %w", err)
	}
	*s = strings.Fields(str)
	return nil
}

// mappingList accepts `{KEY: value}` as well as `[KEY=value]`.
type mappingList map[string]string

func (m *mappingList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		out := make(mappingList, len(list))
		for _, item := range list {
			key, value, _ := strings.Cut(item, "=")
			out[key] = value
		}
		*m = out
		return nil
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("expected a mapping or a list of KEY=value: %w", err)
	}
	out := make(mappingList, len(raw))
	for key, value := range raw {
		if value == nil {
			out[key] = ""
			continue
		}
		out[key] = fmt.Sprint(value)
	}
	*m = out
	return nil
}

// env renders the mapping as sorted KEY=value pairs.
func (m mappingList) env() []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for key, value := range m {
		out = append(out, key+"="+value)
	}
	sort.Strings(out)
	return out
}

// networkRefs accepts a list of names or a mapping keyed by name.
type networkRefs []string

func (n *networkRefs) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*n = list
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("expected a list or a mapping of networks: %w", err)
	}
	out := make(networkRefs, 0, len(raw))
	for name := range raw {
		out = append(out, name)
	}
	sort.Strings(out)
	*n = out
	return nil
}

// portSpec is a short-syntax port: "published:target[/protocol]" or a
// bare target port.
type portSpec swarm.PortConfig

func (p *portSpec) UnmarshalJSON(data []byte) error {
	var number uint32
	if err := json.Unmarshal(data, &number); err == nil {
		*p = portSpec{Protocol: swarm.PortConfigProtocolTCP, TargetPort: number, PublishMode: swarm.PortConfigPublishModeIngress}
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("expected a port string: %w", err)
	}
	port, err := parsePort(str)
	if err != nil {
		return err
	}
	*p = port
	return nil
}

func parsePort(s string) (portSpec, error) {
	spec, protocol, _ := strings.Cut(s, "/")
	port := portSpec{Protocol: swarm.PortConfigProtocolTCP, PublishMode: swarm.PortConfigPublishModeIngress}
	if protocol != "" {
		port.Protocol = swarm.PortConfigProtocol(protocol)
	}

	published, target, found := strings.Cut(spec, ":")
	if !found {
		target, published = published, ""
	}
	t, err := strconv.ParseUint(target, 10, 16)
	if err != nil {
		return portSpec{}, fmt.Errorf("invalid port %q: %w", s, err)
	}
	port.TargetPort = uint32(t)
	if published != "" {
		p, err := strconv.ParseUint(published, 10, 16)
		if err != nil {
			return portSpec{}, fmt.Errorf("invalid port %q: %w", s, err)
		}
		port.PublishedPort = uint32(p)
	}
	return port, nil
}

func loadComposeFile(path string) (*composeFile, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the run configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read stack file: %w", err)
	}
	return parseComposeFile(data)
}

func parseComposeFile(data []byte) (*composeFile, error) {
	var file composeFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse stack file: %w", err)
	}
	if len(file.Services) == 0 {
		return nil, fmt.Errorf("stack file defines no services")
	}
	for name, svc := range file.Services {
		if svc.Image == "" {
			return nil, fmt.Errorf("service %s has no image", name)
		}
		for _, ref := range svc.Networks {
			if _, ok := file.Networks[ref]; !ok && ref != defaultNetwork {
				return nil, fmt.Errorf("service %s refers to undefined network %s", name, ref)
			}
		}
	}
	return &file, nil
}
