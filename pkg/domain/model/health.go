package model

import (
	"time"

	"github.com/Scarmonit/aistack/pkg/domain/types"
)

// ServiceHealth represents one probe result for a stack service
type ServiceHealth struct {
	Name      types.ServiceName `json:"name"`
	State     types.HealthState `json:"state"`
	Latency   time.Duration     `json:"latency"`
	Detail    string            `json:"detail,omitempty"`
	CheckedAt time.Time         `json:"checkedAt"`
}

// HostFacts captures the host-side figures shown in status output
type HostFacts struct {
	TotalMemMB    uint64 `json:"totalMemMb"`
	AvailMemMB    uint64 `json:"availMemMb"`
	FreeDiskGB    uint64 `json:"freeDiskGb"`
	DockerVersion string `json:"dockerVersion,omitempty"`
}

// StackStatus is the combined health picture of the deployed stack
type StackStatus struct {
	Services  []ServiceHealth `json:"services"`
	Host      HostFacts       `json:"host"`
	CheckedAt time.Time       `json:"checkedAt"`
}

// Unhealthy returns the names of services observed unhealthy. Services
// in the unknown state (no health URL configured) are not included.
func (s *StackStatus) Unhealthy() []types.ServiceName {
	var names []types.ServiceName
	for _, svc := range s.Services {
		if svc.State == types.HealthStateUnhealthy {
			names = append(names, svc.Name)
		}
	}
	return names
}

// Healthy returns true when no probed service is observed unhealthy.
// Unknown states do not count as failures.
func (s *StackStatus) Healthy() bool {
	return len(s.Services) > 0 && len(s.Unhealthy()) == 0
}
