package stack_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/Scarmonit/aistack/pkg/domain/model"
	"github.com/Scarmonit/aistack/pkg/domain/types"
	"github.com/Scarmonit/aistack/pkg/service/stack"
)

func binaryService(url, sha string) *model.Service {
	return &model.Service{
		Name: "ollama",
		Kind: types.ServiceKindBinary,
		Binary: &model.BinarySpec{
			URL:     url,
			SHA256:  sha,
			Command: "fake-ollama",
		},
	}
}

func binaryServer(t *testing.T, payload []byte) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		gt.Equal(t, r.Header.Get("User-Agent"), "aistack")
		_, _ = w.Write(payload)
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func TestEnsureInstalledDownloadsOnce(t *testing.T) {
	payload := []byte("#!/bin/sh\nexit 0\n")
	sum := sha256.Sum256(payload)
	server, hits := binaryServer(t, payload)

	dataDir := t.TempDir()
	manager, err := stack.NewBinaryManager(dataDir)
	gt.NoError(t, err)

	svc := binaryService(server.URL, hex.EncodeToString(sum[:]))
	path, err := manager.EnsureInstalled(context.Background(), svc)
	gt.NoError(t, err)
	gt.Equal(t, path, filepath.Join(dataDir, "bin", "fake-ollama"))

	info, err := os.Stat(path)
	gt.NoError(t, err)
	gt.B(t, info.Mode()&0111 != 0).True()

	// second call finds the verified copy and skips the download
	_, err = manager.EnsureInstalled(context.Background(), svc)
	gt.NoError(t, err)
	gt.Equal(t, hits.Load(), int32(1))
}

func TestEnsureInstalledChecksumMismatch(t *testing.T) {
	server, _ := binaryServer(t, []byte("#!/bin/sh\nexit 0\n"))

	dataDir := t.TempDir()
	manager, err := stack.NewBinaryManager(dataDir)
	gt.NoError(t, err)

	svc := binaryService(server.URL, strings.Repeat("0", 64))
	_, err = manager.EnsureInstalled(context.Background(), svc)
	gt.Error(t, err)
	gt.S(t, err.Error()).Contains("checksum")

	for _, stale := range []string{"fake-ollama", "fake-ollama.download"} {
		_, statErr := os.Stat(filepath.Join(dataDir, "bin", stale))
		gt.B(t, os.IsNotExist(statErr)).True()
	}
}

func TestEnsureInstalledReplacesCorruptedBinary(t *testing.T) {
	payload := []byte("#!/bin/sh\nexit 0\n")
	sum := sha256.Sum256(payload)
	server, hits := binaryServer(t, payload)

	dataDir := t.TempDir()
	manager, err := stack.NewBinaryManager(dataDir)
	gt.NoError(t, err)

	binDir := filepath.Join(dataDir, "bin")
	gt.NoError(t, os.MkdirAll(binDir, 0755))
	gt.NoError(t, os.WriteFile(filepath.Join(binDir, "fake-ollama"), []byte("truncated"), 0755))

	svc := binaryService(server.URL, hex.EncodeToString(sum[:]))
	path, err := manager.EnsureInstalled(context.Background(), svc)
	gt.NoError(t, err)
	gt.Equal(t, hits.Load(), int32(1))

	installed, err := os.ReadFile(path)
	gt.NoError(t, err)
	gt.Equal(t, installed, payload)
}

func TestRunningPID(t *testing.T) {
	dataDir := t.TempDir()
	manager, err := stack.NewBinaryManager(dataDir)
	gt.NoError(t, err)

	svc := binaryService("https://example.com/fake-ollama", "")
	_, running := manager.RunningPID(svc)
	gt.B(t, running).False()

	runDir := filepath.Join(dataDir, "run")
	gt.NoError(t, os.MkdirAll(runDir, 0755))
	pidFile := filepath.Join(runDir, "ollama.pid")

	// above any real pid range, so the process cannot exist
	gt.NoError(t, os.WriteFile(pidFile, []byte("2147483647"), 0644))
	_, running = manager.RunningPID(svc)
	gt.B(t, running).False()

	gt.NoError(t, os.WriteFile(pidFile, []byte("not-a-pid"), 0644))
	_, running = manager.RunningPID(svc)
	gt.B(t, running).False()

	gt.NoError(t, os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0644))
	pid, running := manager.RunningPID(svc)
	gt.B(t, running).True()
	gt.Equal(t, pid, os.Getpid())
}

func TestStartAndStop(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("process supervision is unix only")
	}

	server, _ := binaryServer(t, []byte("#!/bin/sh\nsleep 30\n"))

	dataDir := t.TempDir()
	manager, err := stack.NewBinaryManager(dataDir)
	gt.NoError(t, err)

	svc := binaryService(server.URL, "")
	ctx := context.Background()
	gt.NoError(t, manager.Start(ctx, svc))

	pid, running := manager.RunningPID(svc)
	gt.B(t, running).True()
	t.Cleanup(func() {
		if proc, findErr := os.FindProcess(pid); findErr == nil {
			_ = proc.Kill()
		}
	})

	// starting again must not spawn a second process
	gt.NoError(t, manager.Start(ctx, svc))
	secondPID, running := manager.RunningPID(svc)
	gt.B(t, running).True()
	gt.Equal(t, secondPID, pid)

	gt.NoError(t, manager.Stop(ctx, svc))
	_, running = manager.RunningPID(svc)
	gt.B(t, running).False()

	_, statErr := os.Stat(filepath.Join(dataDir, "run", "ollama.pid"))
	gt.B(t, os.IsNotExist(statErr)).True()
	_, statErr = os.Stat(filepath.Join(dataDir, "log", "ollama.log"))
	gt.NoError(t, statErr)
}

func TestStopWithoutProcessClearsPidFile(t *testing.T) {
	dataDir := t.TempDir()
	manager, err := stack.NewBinaryManager(dataDir)
	gt.NoError(t, err)

	runDir := filepath.Join(dataDir, "run")
	gt.NoError(t, os.MkdirAll(runDir, 0755))
	pidFile := filepath.Join(runDir, "ollama.pid")
	gt.NoError(t, os.WriteFile(pidFile, []byte("2147483647"), 0644))

	svc := binaryService("https://example.com/fake-ollama", "")
	gt.NoError(t, manager.Stop(context.Background(), svc))

	_, statErr := os.Stat(pidFile)
	gt.B(t, os.IsNotExist(statErr)).True()
}

func TestNewBinaryManagerRequiresDataDir(t *testing.T) {
	_, err := stack.NewBinaryManager("")
	gt.Error(t, err)
}
