package config

import (
	"log/slog"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/Scarmonit/aistack/pkg/domain/interfaces"
	"github.com/Scarmonit/aistack/pkg/service/github"
)

// GitHub holds the GitHub automation configuration. Authentication is a
// personal access token, or a GitHub App (app ID + installation ID +
// private key) when no token is given.
type GitHub struct {
	BaseURL        string
	Owner          string
	Repo           string
	Token          string
	AppID          string
	InstallationID int64
	PrivateKeyPath string
}

// Flags returns CLI flags for GitHub configuration
func (g *GitHub) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "github-api-url",
			Usage:       "GitHub API base URL (for GitHub Enterprise)",
			Category:    "GitHub",
			Sources:     cli.EnvVars("AISTACK_GITHUB_API_URL"),
			Destination: &g.BaseURL,
		},
		&cli.StringFlag{
			Name:        "github-owner",
			Usage:       "Repository owner",
			Category:    "GitHub",
			Sources:     cli.EnvVars("AISTACK_GITHUB_OWNER"),
			Destination: &g.Owner,
		},
		&cli.StringFlag{
			Name:        "github-repo",
			Usage:       "Repository name",
			Category:    "GitHub",
			Sources:     cli.EnvVars("AISTACK_GITHUB_REPO"),
			Destination: &g.Repo,
		},
		&cli.StringFlag{
			Name:        "github-token",
			Usage:       "Personal access token",
			Category:    "GitHub",
			Sources:     cli.EnvVars("AISTACK_GITHUB_TOKEN", "GITHUB_TOKEN"),
			Destination: &g.Token,
		},
		&cli.StringFlag{
			Name:        "github-app-id",
			Usage:       "GitHub App ID (App auth instead of a token)",
			Category:    "GitHub",
			Sources:     cli.EnvVars("AISTACK_GITHUB_APP_ID"),
			Destination: &g.AppID,
		},
		&cli.Int64Flag{
			Name:        "github-installation-id",
			Usage:       "GitHub App installation ID",
			Category:    "GitHub",
			Sources:     cli.EnvVars("AISTACK_GITHUB_INSTALLATION_ID"),
			Destination: &g.InstallationID,
		},
		&cli.StringFlag{
			Name:        "github-private-key",
			Usage:       "GitHub App private key PEM file",
			Category:    "GitHub",
			Sources:     cli.EnvVars("AISTACK_GITHUB_PRIVATE_KEY"),
			Destination: &g.PrivateKeyPath,
		},
	}
}

// Configure builds the REST client with the configured auth mode
func (g *GitHub) Configure() (interfaces.GitHubClient, error) {
	tokens, err := g.tokenSource()
	if err != nil {
		return nil, err
	}

	var opts []github.Option
	if g.BaseURL != "" {
		opts = append(opts, github.WithBaseURL(g.BaseURL))
	}
	return github.New(g.Owner, g.Repo, tokens, opts...)
}

func (g *GitHub) tokenSource() (github.TokenSource, error) {
	if g.Token != "" {
		return github.StaticTokenSource(g.Token), nil
	}

	if g.AppID == "" {
		return nil, goerr.New("GitHub authentication is not configured, " +
			"set AISTACK_GITHUB_TOKEN or the App credentials")
	}
	if g.PrivateKeyPath == "" {
		return nil, goerr.New("GitHub App private key file is required")
	}
	pem, err := os.ReadFile(g.PrivateKeyPath)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read GitHub App private key",
			goerr.V("path", g.PrivateKeyPath))
	}

	var opts []github.AppOption
	if g.BaseURL != "" {
		opts = append(opts, github.WithAppBaseURL(g.BaseURL))
	}
	return github.NewAppTokenSource(g.AppID, g.InstallationID, pem, opts...)
}

// LogValue returns structured log value
func (g GitHub) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("owner", g.Owner),
		slog.String("repo", g.Repo),
		slog.Bool("has_token", g.Token != ""),
		slog.Bool("has_app", g.AppID != ""),
	)
}
