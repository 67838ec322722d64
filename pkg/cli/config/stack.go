package config

import (
	"log/slog"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/Scarmonit/aistack/pkg/service/stack"
)

// Stack holds the stack orchestration configuration: where state lives
// on disk and which service catalog to use
type Stack struct {
	DataDir     string
	CatalogPath string
	ComposeFile string
	EnvFile     string
}

// Flags returns CLI flags for Stack configuration
func (s *Stack) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "data-dir",
			Usage:       "Directory for reports, downloaded binaries, and run state",
			Category:    "Stack",
			Value:       ".aistack",
			Sources:     cli.EnvVars("AISTACK_DATA_DIR"),
			Destination: &s.DataDir,
		},
		&cli.StringFlag{
			Name:        "catalog",
			Usage:       "Service catalog YAML (embedded default when unset)",
			Category:    "Stack",
			Sources:     cli.EnvVars("AISTACK_CATALOG"),
			Destination: &s.CatalogPath,
		},
		&cli.StringFlag{
			Name:        "compose-file",
			Usage:       "Compose file for compose kind services",
			Category:    "Stack",
			Sources:     cli.EnvVars("AISTACK_COMPOSE_FILE"),
			Destination: &s.ComposeFile,
		},
		&cli.StringFlag{
			Name:        "env-file",
			Usage:       "Compose .env file (defaults to <data-dir>/.env)",
			Category:    "Stack",
			Sources:     cli.EnvVars("AISTACK_ENV_FILE"),
			Destination: &s.EnvFile,
		},
	}
}

// Configure loads the service catalog: the user-supplied file when set,
// the embedded default otherwise
func (s *Stack) Configure() (*stack.Catalog, error) {
	if s.CatalogPath != "" {
		return stack.LoadCatalog(s.CatalogPath)
	}
	return stack.DefaultCatalog()
}

// ReportsDir returns where audit reports are written
func (s *Stack) ReportsDir() string {
	return filepath.Join(s.DataDir, "reports")
}

// EnvPath returns the compose .env file path
func (s *Stack) EnvPath() string {
	if s.EnvFile != "" {
		return s.EnvFile
	}
	return filepath.Join(s.DataDir, ".env")
}

// LogValue returns structured log value
func (s Stack) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("data_dir", s.DataDir),
		slog.String("catalog", s.CatalogPath),
		slog.String("compose_file", s.ComposeFile),
		slog.String("env_file", s.EnvPath()),
	)
}
