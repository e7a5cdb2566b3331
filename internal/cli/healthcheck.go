package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/spf13/cobra"

	"github.com/embershare/ember/internal/health"
	"github.com/embershare/ember/internal/models"
)

// retryLogger implements the retryablehttp.LeveledLogger interface.
// Info and debug chatter is dropped; retries only surface when
// something is wrong.
type retryLogger struct{}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	GetLogger().Error().Interface("details", keysAndValues).Msg(msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	GetLogger().Warn().Interface("details", keysAndValues).Msg(msg)
}

// newHealthcheckCmd creates the 'healthcheck' command.
func newHealthcheckCmd() *cobra.Command {
	var (
		serviceURL string
		timeout    time.Duration
		retries    int
	)

	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Probe a running instance and report its health",
		Long: `Fetch /health/ from a running instance and print the per-subsystem
state. Exits non-zero when the service reports anything but healthy,
so it slots directly into container health checks and monitoring.

Examples:
  # Probe the default local instance
  ember healthcheck

  # Probe a remote instance with a tighter budget
  ember healthcheck --url https://share.example.com --timeout 5s --retries 1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealthcheck(serviceURL, timeout, retries)
		},
	}

	cmd.Flags().StringVar(&serviceURL, "url", "http://localhost:8000", "Base URL of the instance to probe")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Per-attempt request timeout")
	cmd.Flags().IntVar(&retries, "retries", 2, "Retries after a failed attempt")

	return cmd
}

func runHealthcheck(serviceURL string, timeout time.Duration, retries int) error {
	log := GetLogger()

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = retries
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.HTTPClient.Timeout = timeout
	retryClient.Logger = &retryLogger{}
	client := retryClient.StandardClient()

	url := strings.TrimRight(serviceURL, "/") + "/health/"
	req, err := http.NewRequestWithContext(GetContext(), http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("health probe failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read health response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var h models.HealthResponse
	if err := json.Unmarshal(body, &h); err != nil {
		return fmt.Errorf("failed to parse health response: %w", err)
	}

	log.Info().
		Str("status", h.Status).
		Str("version", h.Version).
		Int64("uptime_seconds", h.UptimeSeconds).
		Msg("Service health")
	for name, state := range h.Services {
		log.Info().Str("subsystem", name).Str("state", state).Msg("Subsystem state")
	}

	if h.Status != health.StatusHealthy {
		return fmt.Errorf("service is %s", h.Status)
	}
	return nil
}
