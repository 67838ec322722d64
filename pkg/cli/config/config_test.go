package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/Scarmonit/aistack/pkg/cli/config"
)

func TestLoggerConfigure(t *testing.T) {
	cases := map[string]struct {
		level   string
		format  string
		wantErr bool
	}{
		"defaults":       {level: "info", format: "auto"},
		"json":           {level: "debug", format: "json"},
		"console":        {level: "warn", format: "console"},
		"bad level":      {level: "loud", format: "json", wantErr: true},
		"bad format":     {level: "info", format: "xml", wantErr: true},
		"empty is valid": {},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := config.Logger{Level: tc.level, Format: tc.format}
			logger, err := cfg.Configure()
			if tc.wantErr {
				gt.Error(t, err)
				return
			}
			gt.NoError(t, err)
			gt.V(t, logger).NotNil()
		})
	}
}

func TestStackPaths(t *testing.T) {
	cfg := config.Stack{DataDir: "/var/lib/aistack"}
	gt.Equal(t, cfg.ReportsDir(), filepath.Join("/var/lib/aistack", "reports"))
	gt.Equal(t, cfg.EnvPath(), filepath.Join("/var/lib/aistack", ".env"))

	cfg.EnvFile = "/etc/aistack/.env"
	gt.Equal(t, cfg.EnvPath(), "/etc/aistack/.env")
}

func TestStackConfigureDefaultCatalog(t *testing.T) {
	var cfg config.Stack
	catalog, err := cfg.Configure()
	gt.NoError(t, err)
	gt.B(t, len(catalog.Services) > 0).True()
}

func TestGitHubConfigure(t *testing.T) {
	t.Run("token auth", func(t *testing.T) {
		cfg := config.GitHub{Owner: "acme", Repo: "tools", Token: "ghp_x"}
		client, err := cfg.Configure()
		gt.NoError(t, err)
		gt.V(t, client).NotNil()
	})

	t.Run("missing auth", func(t *testing.T) {
		cfg := config.GitHub{Owner: "acme", Repo: "tools"}
		_, err := cfg.Configure()
		gt.Error(t, err)
	})

	t.Run("missing repo", func(t *testing.T) {
		cfg := config.GitHub{Token: "ghp_x"}
		_, err := cfg.Configure()
		gt.Error(t, err)
	})

	t.Run("app key file missing", func(t *testing.T) {
		cfg := config.GitHub{
			Owner: "acme", Repo: "tools",
			AppID: "1234", InstallationID: 99,
			PrivateKeyPath: filepath.Join(t.TempDir(), "absent.pem"),
		}
		_, err := cfg.Configure()
		gt.Error(t, err)
	})
}

func TestStoreConfigure(t *testing.T) {
	dir := t.TempDir()

	t.Run("format from extension", func(t *testing.T) {
		cfg := config.Store{Path: filepath.Join(dir, "issues.json")}
		repo, err := cfg.Configure()
		gt.NoError(t, err)
		gt.NoError(t, repo.Close())
	})

	t.Run("explicit format", func(t *testing.T) {
		cfg := config.Store{Path: filepath.Join(dir, "issues.db"), Format: "yaml"}
		repo, err := cfg.Configure()
		gt.NoError(t, err)
		gt.NoError(t, repo.Close())
	})

	t.Run("invalid format", func(t *testing.T) {
		cfg := config.Store{Path: filepath.Join(dir, "issues.yml"), Format: "toml"}
		_, err := cfg.Configure()
		gt.Error(t, err)
	})
}

func TestStoreConfigureRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "issues.yml")
	gt.NoError(t, os.WriteFile(path, []byte("[unclosed"), 0o600))

	cfg := config.Store{Path: path}
	_, err := cfg.Configure()
	gt.Error(t, err)
}
