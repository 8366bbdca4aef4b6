package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"jobq/internal/api"
	"jobq/internal/config"
	"jobq/internal/server"
)

const (
	serverStartTimeout = 3 * time.Second
	serverPollInterval = 100 * time.Millisecond
	pingTimeout        = 500 * time.Millisecond

	noAutostartEnvKey = "JOBQ_NO_AUTOSTART"
)

func withClient(cfg *config.Config, fn func(*api.Client) error) error {
	cleanup, err := ensureServer(cfg)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	return fn(newAPIClient(cfg))
}

// newAPIClient sizes the reap deadline from the configured drain window.
func newAPIClient(cfg *config.Config) *api.Client {
	return api.NewClient(cfg.APIURL, api.WithDrainTimeout(cfg.Reaper.DrainTimeout))
}

// ensureServer starts a short-lived local server when nothing answers at the
// configured API URL. Remote URLs are never autostarted.
func ensureServer(cfg *config.Config) (func(), error) {
	client := api.NewClient(cfg.APIURL)
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := client.Ping(ctx); err == nil {
		return nil, nil
	} else if !autostartEnabled(cfg) {
		return nil, err
	}

	cmd, err := startServerProcess(cfg)
	if err != nil {
		return nil, err
	}

	if err := waitForServer(client, serverStartTimeout); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, err
	}

	cleanup := func() {
		_ = cmd.Process.Signal(os.Interrupt)
		_ = cmd.Wait()
	}

	return cleanup, nil
}

func autostartEnabled(cfg *config.Config) bool {
	if disabled, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(noAutostartEnvKey))); err == nil && disabled {
		return false
	}
	if _, err := server.ListenAddr(cfg.APIURL); err != nil {
		return false
	}
	return cfg.DBPath != ""
}

func startServerProcess(cfg *config.Config) (*exec.Cmd, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(exe, "srv")
	cmd.Env = append(os.Environ(),
		"JOBQ_DB="+cfg.DBPath,
		"JOBQ_API_URL="+cfg.APIURL,
	)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start local server: %w", err)
	}
	return cmd, nil
}

func waitForServer(client *api.Client, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		err := client.Ping(ctx)
		cancel()
		if err == nil {
			return nil
		}
		if !isConnRefused(err) {
			// Something else owns the port.
			return err
		}
		time.Sleep(serverPollInterval)
	}
	return errors.New("server did not start in time")
}

func isConnRefused(err error) bool {
	var netErr *net.OpError
	return errors.As(err, &netErr)
}
