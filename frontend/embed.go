package frontend

import (
	"embed"
	"io/fs"
	"net/http"
)

// FS embeds the static status page. There is no build step: the page is
// one HTML file polling the dashboard JSON endpoints.
//
//go:embed all:dist
var FS embed.FS

// GetHTTPFS returns the embedded page as a filesystem for HTTP serving
func GetHTTPFS() (http.FileSystem, error) {
	sub, err := fs.Sub(FS, "dist")
	if err != nil {
		return nil, err
	}
	if _, err := fs.Stat(sub, "index.html"); err != nil {
		return nil, err
	}
	return http.FS(sub), nil
}
