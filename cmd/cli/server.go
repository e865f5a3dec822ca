package main

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const (
	serverBinary       = "media-queue-server"
	serverPollInterval = 200 * time.Millisecond
)

// launcher starts a local server when nothing answers at the CLI's --server URL.
// The spawned server is pointed at the same port through MEDIAQ_SERVER_PORT.
type launcher struct {
	serverURL  string
	binary     string
	configPath string
	timeout    time.Duration
	probe      *http.Client

	lookPath func(string) (string, error)
	spawn    func(path string, args, env []string) error
}

func newLauncher(serverURL string, cfg cliEnv) *launcher {
	timeout := cfg.StartTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &launcher{
		serverURL:  strings.TrimRight(serverURL, "/"),
		binary:     cfg.ServerBin,
		configPath: cfg.ServerConfig,
		timeout:    timeout,
		probe:      &http.Client{Timeout: time.Second},
		lookPath:   exec.LookPath,
		spawn:      spawnDetached,
	}
}

// healthy reports whether the server answers its health check
func (l *launcher) healthy() bool {
	resp, err := l.probe.Get(l.serverURL + "/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// ensure returns once the server is healthy, starting one if the URL is local
func (l *launcher) ensure() error {
	if l.healthy() {
		return nil
	}

	port, err := localPort(l.serverURL)
	if err != nil {
		return err
	}
	path, err := l.resolveBinary()
	if err != nil {
		return err
	}

	args := []string{"-foreground"}
	if l.configPath != "" {
		args = append(args, "-config", l.configPath)
	}
	env := append(os.Environ(), "MEDIAQ_SERVER_PORT="+port)

	fmt.Printf("Server not running, starting %s on port %s...\n", filepath.Base(path), port)
	if err := l.spawn(path, args, env); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	deadline := time.Now().Add(l.timeout)
	for time.Now().Before(deadline) {
		if l.healthy() {
			fmt.Println("Server started successfully")
			return nil
		}
		time.Sleep(serverPollInterval)
	}
	return fmt.Errorf("server did not start within %v", l.timeout)
}

// resolveBinary prefers MEDIAQ_SERVER_BIN, then the CLI's own directory, then PATH
func (l *launcher) resolveBinary() (string, error) {
	if l.binary != "" {
		if _, err := os.Stat(l.binary); err != nil {
			return "", fmt.Errorf("server binary %s: %w", l.binary, err)
		}
		return l.binary, nil
	}

	if execPath, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(execPath), serverBinary)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	if path, err := l.lookPath(serverBinary); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("%s binary not found; set MEDIAQ_SERVER_BIN", serverBinary)
}

// localPort returns the port of a loopback server URL. Remote servers are never spawned.
func localPort(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid server URL %q: %w", raw, err)
	}

	host := u.Hostname()
	if host != "localhost" {
		ip := net.ParseIP(host)
		if ip == nil || !ip.IsLoopback() {
			return "", errors.New("server at " + raw + " is not reachable and is not local")
		}
	}

	if port := u.Port(); port != "" {
		return port, nil
	}
	if u.Scheme == "https" {
		return "443", nil
	}
	return "80", nil
}

func spawnDetached(path string, args, env []string) error {
	cmd := exec.Command(path, args...)
	cmd.Env = env
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	setSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return err
	}
	go func() {
		_ = cmd.Wait()
	}()
	return nil
}
