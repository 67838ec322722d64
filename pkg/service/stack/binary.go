package stack

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/Scarmonit/aistack/pkg/domain/model"
)

const (
	downloadTimeout = 10 * time.Minute
	stopGrace       = 10 * time.Second
)

// BinaryManager installs and supervises binary kind services. Installed
// binaries, pid files and logs live under the data directory:
//
//	<dataDir>/bin/<command>
//	<dataDir>/run/<service>.pid
//	<dataDir>/log/<service>.log
type BinaryManager struct {
	httpClient *http.Client
	dataDir    string
}

// BinaryOption configures a BinaryManager
type BinaryOption func(*BinaryManager)

// WithDownloadClient overrides the HTTP client used for downloads
func WithDownloadClient(httpClient *http.Client) BinaryOption {
	return func(m *BinaryManager) {
		m.httpClient = httpClient
	}
}

// NewBinaryManager creates a BinaryManager rooted at dataDir
func NewBinaryManager(dataDir string, opts ...BinaryOption) (*BinaryManager, error) {
	if dataDir == "" {
		return nil, goerr.New("data directory is required")
	}

	m := &BinaryManager{
		httpClient: &http.Client{Timeout: downloadTimeout},
		dataDir:    dataDir,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *BinaryManager) binaryPath(svc *model.Service) string {
	command := svc.Binary.Command
	if command == "" {
		command = svc.Name.String()
	}
	return filepath.Join(m.dataDir, "bin", command)
}

func (m *BinaryManager) pidPath(svc *model.Service) string {
	return filepath.Join(m.dataDir, "run", svc.Name.String()+".pid")
}

func (m *BinaryManager) logPath(svc *model.Service) string {
	return filepath.Join(m.dataDir, "log", svc.Name.String()+".log")
}

// EnsureInstalled downloads and verifies the service binary unless a valid
// copy is already in place. Returns the installed path.
func (m *BinaryManager) EnsureInstalled(ctx context.Context, svc *model.Service) (string, error) {
	logger := ctxlog.From(ctx)
	path := m.binaryPath(svc)

	if _, err := os.Stat(path); err == nil {
		if svc.Binary.SHA256 == "" {
			logger.Debug("binary already installed", "service", svc.Name, "path", path)
			return path, nil
		}
		if err := verifyChecksum(path, svc.Binary.SHA256); err == nil {
			logger.Debug("binary already installed", "service", svc.Name, "path", path)
			return path, nil
		}
		logger.Warn("installed binary fails checksum, re-downloading",
			"service", svc.Name, "path", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", goerr.Wrap(err, "failed to create bin directory")
	}

	tmpPath := path + ".download"
	if err := m.download(ctx, svc.Binary.URL, tmpPath); err != nil {
		return "", goerr.Wrap(err, "failed to download binary",
			goerr.V("service", svc.Name), goerr.V("url", svc.Binary.URL))
	}

	if svc.Binary.SHA256 != "" {
		if err := verifyChecksum(tmpPath, svc.Binary.SHA256); err != nil {
			_ = os.Remove(tmpPath)
			return "", goerr.Wrap(err, "downloaded binary fails checksum",
				goerr.V("service", svc.Name), goerr.V("url", svc.Binary.URL))
		}
	} else {
		logger.Warn("no checksum pinned for binary, skipping verification",
			"service", svc.Name, "url", svc.Binary.URL)
	}

	if err := os.Chmod(tmpPath, 0755); err != nil {
		_ = os.Remove(tmpPath)
		return "", goerr.Wrap(err, "failed to mark binary executable")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return "", goerr.Wrap(err, "failed to install binary", goerr.V("path", path))
	}

	logger.Info("installed binary", "service", svc.Name, "path", path)
	return path, nil
}

func (m *BinaryManager) download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to create download request")
	}
	req.Header.Set("User-Agent", "aistack")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return goerr.Wrap(err, "download request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return goerr.New("download rejected", goerr.V("status", resp.StatusCode))
	}

	out, err := os.Create(dest)
	if err != nil {
		return goerr.Wrap(err, "failed to create download file")
	}

	written, err := io.Copy(out, resp.Body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dest)
		return goerr.Wrap(err, "failed to write download file")
	}

	ctxlog.From(ctx).Debug("downloaded binary", "url", url, "bytes", written)
	return nil
}

func verifyChecksum(path, expected string) error {
	f, err := os.Open(path)
	if err != nil {
		return goerr.Wrap(err, "failed to open file for checksum")
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return goerr.Wrap(err, "failed to hash file")
	}

	actual := hex.EncodeToString(h.Sum(nil))
	if !strings.EqualFold(actual, expected) {
		return goerr.New("checksum mismatch",
			goerr.V("expected", expected), goerr.V("actual", actual))
	}
	return nil
}

// RunningPID returns the recorded pid when the service process is alive
func (m *BinaryManager) RunningPID(svc *model.Service) (int, bool) {
	data, err := os.ReadFile(m.pidPath(svc))
	if err != nil {
		return 0, false
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	if !pidAlive(pid) {
		return 0, false
	}
	return pid, true
}

// Start launches the installed binary detached from the CLI, sending its
// output to the service log file and recording a pid file for Stop
func (m *BinaryManager) Start(ctx context.Context, svc *model.Service) error {
	logger := ctxlog.From(ctx)

	if pid, running := m.RunningPID(svc); running {
		logger.Info("service already running", "service", svc.Name, "pid", pid)
		return nil
	}

	path, err := m.EnsureInstalled(ctx, svc)
	if err != nil {
		return err
	}

	for _, dir := range []string{filepath.Dir(m.pidPath(svc)), filepath.Dir(m.logPath(svc))} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return goerr.Wrap(err, "failed to create service directory", goerr.V("dir", dir))
		}
	}

	logFile, err := os.OpenFile(m.logPath(svc), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return goerr.Wrap(err, "failed to open service log", goerr.V("service", svc.Name))
	}
	defer logFile.Close()

	cmd := exec.Command(path, svc.Binary.Args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Env = os.Environ()
	for key, value := range svc.Env {
		cmd.Env = append(cmd.Env, key+"="+value)
	}
	detachProcess(cmd)

	if err := cmd.Start(); err != nil {
		return goerr.Wrap(err, "failed to start service", goerr.V("service", svc.Name))
	}

	pid := cmd.Process.Pid
	if err := os.WriteFile(m.pidPath(svc), []byte(strconv.Itoa(pid)), 0644); err != nil {
		return goerr.Wrap(err, "failed to write pid file", goerr.V("service", svc.Name))
	}
	_ = cmd.Process.Release()

	logger.Info("started service", "service", svc.Name, "pid", pid, "log", m.logPath(svc))
	return nil
}

// Stop terminates the recorded process, escalating to SIGKILL after a
// grace period. A dead or missing process only clears the pid file.
func (m *BinaryManager) Stop(ctx context.Context, svc *model.Service) error {
	logger := ctxlog.From(ctx)

	pid, running := m.RunningPID(svc)
	if !running {
		logger.Debug("service not running", "service", svc.Name)
		_ = os.Remove(m.pidPath(svc))
		return nil
	}

	if err := terminateProcess(pid); err != nil {
		return goerr.Wrap(err, "failed to signal service",
			goerr.V("service", svc.Name), goerr.V("pid", pid))
	}

	deadline := time.Now().Add(stopGrace)
	for time.Now().Before(deadline) {
		reapProcess(pid)
		if !pidAlive(pid) {
			break
		}
		select {
		case <-ctx.Done():
			return goerr.Wrap(ctx.Err(), "canceled while stopping service",
				goerr.V("service", svc.Name))
		case <-time.After(200 * time.Millisecond):
		}
	}

	if pidAlive(pid) {
		logger.Warn("service ignored SIGTERM, killing", "service", svc.Name, "pid", pid)
		if err := killProcess(pid); err != nil {
			return goerr.Wrap(err, "failed to kill service",
				goerr.V("service", svc.Name), goerr.V("pid", pid))
		}
	}

	if err := os.Remove(m.pidPath(svc)); err != nil && !os.IsNotExist(err) {
		return goerr.Wrap(err, "failed to remove pid file", goerr.V("service", svc.Name))
	}

	logger.Info("stopped service", "service", svc.Name, "pid", pid)
	return nil
}
