package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"jobq/internal/queue"
)

const (
	allowRemoteEnvKey = "JOBQ_ALLOW_REMOTE"
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 60 * time.Second
	reapWriteMargin   = 15 * time.Second
	idleTimeout       = 60 * time.Second
	shutdownTimeout   = 10 * time.Second

	defaultMaxMessageBytes int64 = 1 << 20
)

// Options configures a Server.
type Options struct {
	Addr   string
	DBPath string
	Queue  *queue.Manager
	Logger *slog.Logger
	// Registry receives HTTP collectors and is served on /metrics. A nil
	// registry gets a private one.
	Registry *prometheus.Registry
	// SubmitRate is the sustained per-client submit rate in requests per
	// second. Zero disables the limit.
	SubmitRate      float64
	SubmitBurst     int
	MaxMessageBytes int64
}

// Server wraps HTTP handlers for the jobq API.
type Server struct {
	addr            string
	dbPath          string
	queue           *queue.Manager
	logger          *slog.Logger
	registry        *prometheus.Registry
	httpMetrics     *httpMetrics
	submitLimiter   *ipRateLimiter
	maxMessageBytes int64
}

// New creates a new server instance.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	maxMessageBytes := opts.MaxMessageBytes
	if maxMessageBytes <= 0 {
		maxMessageBytes = defaultMaxMessageBytes
	}

	var limiter *ipRateLimiter
	if opts.SubmitRate > 0 {
		burst := opts.SubmitBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = newIPRateLimiter(rate.Limit(opts.SubmitRate), burst, 10*time.Minute)
	}

	return &Server{
		addr:            opts.Addr,
		dbPath:          opts.DBPath,
		queue:           opts.Queue,
		logger:          logger,
		registry:        registry,
		httpMetrics:     newHTTPMetrics(registry),
		submitLimiter:   limiter,
		maxMessageBytes: maxMessageBytes,
	}
}

// Handler returns the full HTTP handler chain.
func (s *Server) Handler() http.Handler {
	return s.withRequestLogging(s.routes())
}

// ListenAndServe serves HTTP until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.log().Info("starting server", "addr", s.addr)
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      s.writeTimeout(),
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log().Info("shutting down server", "addr", s.addr)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// writeTimeout keeps a draining reap from being cut off mid-response.
func (s *Server) writeTimeout() time.Duration {
	if s.queue == nil {
		return writeTimeout
	}
	if drain := s.queue.Config().DrainTimeout + reapWriteMargin; drain > writeTimeout {
		return drain
	}
	return writeTimeout
}

// ListenAddr converts a base API URL into a listen address.
func ListenAddr(apiURL string) (string, error) {
	if apiURL == "" {
		return "", fmt.Errorf("api url is required")
	}
	if u, err := url.Parse(apiURL); err == nil && u.Host != "" {
		host := u.Hostname()
		if !isAllowedListenHost(host) {
			return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
		}
		return u.Host, nil
	}

	host, _, err := net.SplitHostPort(apiURL)
	if err == nil && !isAllowedListenHost(host) {
		return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
	}

	return apiURL, nil
}

func isAllowedListenHost(host string) bool {
	if host == "" {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv(allowRemoteEnvKey)), "true") {
		return true
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (s *Server) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
