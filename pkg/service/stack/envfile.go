package stack

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/m-mizutani/goerr/v2"
)

// MergeEnvFile ensures every default key exists in the env file at path.
// Values already present win, and keys the defaults don't know about are
// preserved. Returns the merged environment.
func MergeEnvFile(path string, defaults map[string]string) (map[string]string, error) {
	if path == "" {
		return nil, goerr.New("env file path is required")
	}

	merged := map[string]string{}
	if _, err := os.Stat(path); err == nil {
		merged, err = godotenv.Read(path)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to parse env file", goerr.V("path", path))
		}
	} else if !os.IsNotExist(err) {
		return nil, goerr.Wrap(err, "failed to stat env file", goerr.V("path", path))
	}

	changed := false
	for key, value := range defaults {
		if _, ok := merged[key]; !ok {
			merged[key] = value
			changed = true
		}
	}
	if !changed {
		return merged, nil
	}

	content, err := godotenv.Marshal(merged)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to render env file")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, goerr.Wrap(err, "failed to create env file directory")
	}

	// env files hold credentials
	if err := os.WriteFile(path, []byte(content+"\n"), 0600); err != nil {
		return nil, goerr.Wrap(err, "failed to write env file", goerr.V("path", path))
	}
	return merged, nil
}
