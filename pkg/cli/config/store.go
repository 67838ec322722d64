package config

import (
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/Scarmonit/aistack/pkg/domain/interfaces"
	"github.com/Scarmonit/aistack/pkg/repository"
)

// Store holds the issue store configuration
type Store struct {
	Path   string
	Format string
}

// Flags returns CLI flags for Store configuration
func (s *Store) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "store",
			Usage:       "Issue store file",
			Category:    "Issues",
			Value:       "issues.yml",
			Sources:     cli.EnvVars("AISTACK_STORE"),
			Destination: &s.Path,
		},
		&cli.StringFlag{
			Name:        "store-format",
			Usage:       "Issue store format (yaml, json; inferred from extension when unset)",
			Category:    "Issues",
			Sources:     cli.EnvVars("AISTACK_STORE_FORMAT"),
			Destination: &s.Format,
		},
	}
}

// Configure opens the file-backed issue repository. The caller owns Close.
func (s *Store) Configure() (interfaces.Repository, error) {
	format := repository.FormatForPath(s.Path)
	if s.Format != "" {
		parsed, err := repository.ParseStoreFormat(s.Format)
		if err != nil {
			return nil, err
		}
		format = parsed
	}
	return repository.NewFile(s.Path, format)
}

// LogValue returns structured log value
func (s Store) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("path", s.Path),
		slog.String("format", s.Format),
	)
}
