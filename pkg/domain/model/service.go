package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Scarmonit/aistack/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// Service represents one stack service catalog entry
type Service struct {
	Name        types.ServiceName `yaml:"name" json:"name"`
	Kind        types.ServiceKind `yaml:"kind" json:"kind"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`

	// docker kind
	Image string   `yaml:"image,omitempty" json:"image,omitempty"`
	Args  []string `yaml:"args,omitempty" json:"args,omitempty"`

	// compose kind
	ComposeService string `yaml:"compose_service,omitempty" json:"composeService,omitempty"`

	// binary kind
	Binary *BinarySpec `yaml:"binary,omitempty" json:"binary,omitempty"`

	// "host:container" pairs, or a bare port published as-is
	Ports     []string          `yaml:"ports,omitempty" json:"ports,omitempty"`
	HealthURL string            `yaml:"health_url,omitempty" json:"healthUrl,omitempty"`
	Env       map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	Volumes   []string          `yaml:"volumes,omitempty" json:"volumes,omitempty"`

	// models to ensure after start (Ollama only)
	Models []string `yaml:"models,omitempty" json:"models,omitempty"`
}

// BinarySpec describes how to install and start a binary-kind service
type BinarySpec struct {
	URL     string   `yaml:"url" json:"url"`
	SHA256  string   `yaml:"sha256,omitempty" json:"sha256,omitempty"`
	Command string   `yaml:"command,omitempty" json:"command,omitempty"`
	Args    []string `yaml:"args,omitempty" json:"args,omitempty"`
}

// Validate validates the catalog entry for its kind
func (s *Service) Validate() error {
	if s.Name == "" {
		return goerr.New("service name is required")
	}
	if !s.Kind.IsValid() {
		return goerr.New("invalid service kind",
			goerr.V("service", s.Name),
			goerr.V("kind", s.Kind))
	}

	switch s.Kind {
	case types.ServiceKindDocker:
		if s.Image == "" {
			return goerr.New("docker service requires an image", goerr.V("service", s.Name))
		}
	case types.ServiceKindCompose:
		if s.ComposeService == "" {
			return goerr.New("compose service requires a compose service name", goerr.V("service", s.Name))
		}
	case types.ServiceKindBinary:
		if s.Binary == nil || s.Binary.URL == "" {
			return goerr.New("binary service requires a download URL", goerr.V("service", s.Name))
		}
	}

	if _, err := s.PortMappings(); err != nil {
		return err
	}
	return nil
}

// PortMapping is one published host port and its container-side target
type PortMapping struct {
	Host      int
	Container int
}

// PortMappings parses the Ports entries. A bare port publishes the same
// number on both sides.
func (s *Service) PortMappings() ([]PortMapping, error) {
	mappings := make([]PortMapping, 0, len(s.Ports))
	for _, spec := range s.Ports {
		mapping, err := parsePortMapping(spec)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid port mapping",
				goerr.V("service", s.Name), goerr.V("port", spec))
		}
		mappings = append(mappings, mapping)
	}
	return mappings, nil
}

func parsePortMapping(spec string) (PortMapping, error) {
	parse := func(v string) (int, error) {
		port, err := strconv.Atoi(v)
		if err != nil {
			return 0, goerr.Wrap(err, "port is not a number")
		}
		if port <= 0 || port > 65535 {
			return 0, goerr.New("port out of range", goerr.V("port", port))
		}
		return port, nil
	}

	host, container, found := strings.Cut(spec, ":")
	if !found {
		port, err := parse(spec)
		if err != nil {
			return PortMapping{}, err
		}
		return PortMapping{Host: port, Container: port}, nil
	}

	hostPort, err := parse(host)
	if err != nil {
		return PortMapping{}, err
	}
	containerPort, err := parse(container)
	if err != nil {
		return PortMapping{}, err
	}
	return PortMapping{Host: hostPort, Container: containerPort}, nil
}

// ContainerName returns the managed container name for docker services
func (s *Service) ContainerName() string {
	return fmt.Sprintf("aistack-%s", s.Name)
}
