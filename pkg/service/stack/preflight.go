package stack

import (
	"context"
	"fmt"
	"net"
	"os/exec"

	"github.com/m-mizutani/ctxlog"

	"github.com/Scarmonit/aistack/pkg/domain/model"
	"github.com/Scarmonit/aistack/pkg/domain/types"
)

const (
	// the full stack with a few local models wants real hardware
	recommendedMemGB  = 16
	recommendedDiskGB = 20
)

// CheckResult is one preflight check outcome. Fatal failures abort a
// deploy; the rest are warnings.
type CheckResult struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Fatal  bool   `json:"fatal"`
	Detail string `json:"detail,omitempty"`
}

// Preflight verifies the host before a deploy
type Preflight struct {
	engine *Engine
}

// NewPreflight creates a Preflight using the engine for docker checks
func NewPreflight(engine *Engine) *Preflight {
	return &Preflight{engine: engine}
}

func requiresDocker(services []*model.Service) bool {
	for _, svc := range services {
		if svc.Kind == types.ServiceKindDocker || svc.Kind == types.ServiceKindCompose {
			return true
		}
	}
	return false
}

// Run executes every check for the selected services
func (p *Preflight) Run(ctx context.Context, services []*model.Service) []CheckResult {
	var results []CheckResult

	if requiresDocker(services) {
		results = append(results, p.checkDockerBinary(), p.checkDockerDaemon(ctx))
	}
	results = append(results, checkMemory(), checkDisk())
	results = append(results, checkPorts(services)...)

	for _, result := range results {
		if !result.OK {
			level := ctxlog.From(ctx).Warn
			if result.Fatal {
				level = ctxlog.From(ctx).Error
			}
			level("preflight check failed", "check", result.Name, "detail", result.Detail)
		}
	}
	return results
}

// FatalFailures filters the results down to deploy-blocking ones
func FatalFailures(results []CheckResult) []CheckResult {
	var fatal []CheckResult
	for _, result := range results {
		if !result.OK && result.Fatal {
			fatal = append(fatal, result)
		}
	}
	return fatal
}

func (p *Preflight) checkDockerBinary() CheckResult {
	result := CheckResult{Name: "docker-binary", Fatal: true}
	path, err := exec.LookPath("docker")
	if err != nil {
		result.Detail = "docker not found on PATH"
		return result
	}
	result.OK = true
	result.Detail = path
	return result
}

func (p *Preflight) checkDockerDaemon(ctx context.Context) CheckResult {
	result := CheckResult{Name: "docker-daemon", Fatal: true}
	version, err := p.engine.Version(ctx)
	if err != nil {
		result.Detail = "docker daemon is not reachable"
		return result
	}
	result.OK = true
	result.Detail = "server version " + version
	return result
}

func checkMemory() CheckResult {
	result := CheckResult{Name: "memory"}
	totalMB, availMB, err := readMemStats()
	if err != nil {
		result.OK = true
		result.Detail = "could not determine memory size"
		return result
	}

	result.Detail = fmt.Sprintf("%d MB total, %d MB available", totalMB, availMB)
	if totalMB < recommendedMemGB*1024 {
		result.Detail += fmt.Sprintf(" (recommended: %d GB)", recommendedMemGB)
		return result
	}
	result.OK = true
	return result
}

func checkDisk() CheckResult {
	result := CheckResult{Name: "disk"}
	freeGB, err := freeDiskGB("/")
	if err != nil {
		result.OK = true
		result.Detail = "could not determine free disk space"
		return result
	}

	result.Detail = fmt.Sprintf("%d GB free", freeGB)
	if freeGB < recommendedDiskGB {
		result.Detail += fmt.Sprintf(" (recommended: %d GB)", recommendedDiskGB)
		return result
	}
	result.OK = true
	return result
}

// checkPorts probes each published host port. A busy port is a warning
// because it may belong to an earlier deployment of the same service.
func checkPorts(services []*model.Service) []CheckResult {
	var results []CheckResult
	for _, svc := range services {
		mappings, err := svc.PortMappings()
		if err != nil {
			results = append(results, CheckResult{
				Name:   fmt.Sprintf("port-%s", svc.Name),
				Fatal:  true,
				Detail: err.Error(),
			})
			continue
		}

		for _, mapping := range mappings {
			result := CheckResult{Name: fmt.Sprintf("port-%d", mapping.Host)}
			listener, err := net.Listen("tcp", fmt.Sprintf(":%d", mapping.Host))
			if err != nil {
				result.Detail = fmt.Sprintf("port %d already in use (service %s; possibly an earlier deployment)",
					mapping.Host, svc.Name)
				results = append(results, result)
				continue
			}
			_ = listener.Close()
			result.OK = true
			results = append(results, result)
		}
	}
	return results
}

// CollectHostFacts gathers the host figures shown by status
func CollectHostFacts(ctx context.Context, engine *Engine) model.HostFacts {
	var facts model.HostFacts

	if totalMB, availMB, err := readMemStats(); err == nil {
		facts.TotalMemMB = totalMB
		facts.AvailMemMB = availMB
	}
	if freeGB, err := freeDiskGB("/"); err == nil {
		facts.FreeDiskGB = freeGB
	}
	if engine != nil {
		if version, err := engine.Version(ctx); err == nil {
			facts.DockerVersion = version
		}
	}
	return facts
}
