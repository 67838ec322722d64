package stack

import (
	_ "embed"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"

	"github.com/Scarmonit/aistack/pkg/domain/model"
	"github.com/Scarmonit/aistack/pkg/domain/types"
)

//go:embed catalog.yml
var defaultCatalogYAML []byte

// Catalog is the set of services the stack commands operate on
type Catalog struct {
	Services []*model.Service `yaml:"services"`
}

// DefaultCatalog returns the embedded service catalog
func DefaultCatalog() (*Catalog, error) {
	catalog, err := parseCatalog(defaultCatalogYAML)
	if err != nil {
		return nil, goerr.Wrap(err, "embedded catalog is broken")
	}
	return catalog, nil
}

// LoadCatalog loads a catalog from a YAML file
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return nil, goerr.New("catalog file path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, goerr.Wrap(err, "catalog file not found", goerr.V("path", path))
		}
		return nil, goerr.Wrap(err, "failed to read catalog file", goerr.V("path", path))
	}

	catalog, err := parseCatalog(data)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid catalog file", goerr.V("path", path))
	}
	return catalog, nil
}

func parseCatalog(data []byte) (*Catalog, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, goerr.Wrap(err, "failed to parse catalog YAML")
	}
	if err := catalog.Validate(); err != nil {
		return nil, err
	}
	return &catalog, nil
}

// Validate checks every entry and rejects duplicate names and host port
// collisions across services
func (c *Catalog) Validate() error {
	if len(c.Services) == 0 {
		return goerr.New("catalog has no services")
	}

	names := make(map[types.ServiceName]struct{}, len(c.Services))
	hostPorts := make(map[int]types.ServiceName)

	for _, svc := range c.Services {
		if err := svc.Validate(); err != nil {
			return err
		}

		if _, ok := names[svc.Name]; ok {
			return goerr.New("duplicate service name", goerr.V("service", svc.Name))
		}
		names[svc.Name] = struct{}{}

		mappings, err := svc.PortMappings()
		if err != nil {
			return err
		}
		for _, mapping := range mappings {
			if other, ok := hostPorts[mapping.Host]; ok {
				return goerr.New("host port used by two services",
					goerr.V("port", mapping.Host),
					goerr.V("service", svc.Name),
					goerr.V("other", other))
			}
			hostPorts[mapping.Host] = svc.Name
		}
	}
	return nil
}

// Get returns the named service
func (c *Catalog) Get(name types.ServiceName) (*model.Service, error) {
	for _, svc := range c.Services {
		if svc.Name == name {
			return svc, nil
		}
	}
	return nil, goerr.Wrap(model.ErrServiceNotFound, "unknown service", goerr.V("service", name))
}

// Names returns the service names in catalog order
func (c *Catalog) Names() []types.ServiceName {
	names := make([]types.ServiceName, 0, len(c.Services))
	for _, svc := range c.Services {
		names = append(names, svc.Name)
	}
	return names
}

// Select resolves the requested service names, preserving catalog order.
// An empty request selects every service.
func (c *Catalog) Select(requested []string) ([]*model.Service, error) {
	if len(requested) == 0 {
		return c.Services, nil
	}

	want := make(map[types.ServiceName]bool, len(requested))
	for _, name := range requested {
		want[types.ServiceName(name)] = false
	}

	var selected []*model.Service
	for _, svc := range c.Services {
		if _, ok := want[svc.Name]; ok {
			selected = append(selected, svc)
			want[svc.Name] = true
		}
	}

	for name, found := range want {
		if !found {
			return nil, goerr.Wrap(model.ErrServiceNotFound, "unknown service",
				goerr.V("service", name))
		}
	}
	return selected, nil
}
