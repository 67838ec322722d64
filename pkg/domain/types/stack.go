package types

import (
	"github.com/m-mizutani/goerr/v2"
)

// AuditKind distinguishes the audit report flavors
type AuditKind string

const (
	AuditKindSecurity AuditKind = "security"
	AuditKindQuality  AuditKind = "quality"
)

// String returns the string representation of the kind
func (k AuditKind) String() string {
	return string(k)
}

// IsValid checks if the audit kind is valid
func (k AuditKind) IsValid() bool {
	return k == AuditKindSecurity || k == AuditKindQuality
}

// ParseAuditKind parses a string into an AuditKind
func ParseAuditKind(s string) (AuditKind, error) {
	kind := AuditKind(s)
	if !kind.IsValid() {
		return "", goerr.New("invalid audit kind", goerr.V("kind", s))
	}
	return kind, nil
}

// ServiceKind describes how a stack service is launched
type ServiceKind string

const (
	ServiceKindDocker  ServiceKind = "docker"
	ServiceKindCompose ServiceKind = "compose"
	ServiceKindBinary  ServiceKind = "binary"
)

// String returns the string representation of the kind
func (k ServiceKind) String() string {
	return string(k)
}

// IsValid checks if the service kind is valid
func (k ServiceKind) IsValid() bool {
	switch k {
	case ServiceKindDocker, ServiceKindCompose, ServiceKindBinary:
		return true
	default:
		return false
	}
}

// HealthState represents the observed health of a stack service
type HealthState string

const (
	HealthStateUnknown   HealthState = "unknown"
	HealthStateStarting  HealthState = "starting"
	HealthStateHealthy   HealthState = "healthy"
	HealthStateUnhealthy HealthState = "unhealthy"
)

// String returns the string representation of the state
func (s HealthState) String() string {
	return string(s)
}

// IsHealthy returns true if the service answered its readiness probe
func (s HealthState) IsHealthy() bool {
	return s == HealthStateHealthy
}
