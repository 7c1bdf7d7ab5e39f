// Package main implements the govctl CLI for manual operations
// against the agentgovd HTTP server.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	// serverURL is the base URL for the agentgovd HTTP server
	serverURL string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "govctl",
	Short: "CLI for agentgovd operations",
	Long: `govctl is a command-line interface for the agentgovd governance daemon.
It provides commands for inspecting breaker state, resetting a tripped
breaker, stopping runaway tasks, and validating policies and code offline.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:9440", "agentgovd server URL")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(policyCmd)
}

// statusCmd reports breaker and escalator state
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show breaker and escalator status",
	Long: `Show the circuit breaker state, per-task and per-session spend,
and escalation statistics.

Examples:
  # Show status
  govctl status

  # Use a different server
  govctl status --server http://localhost:9500`,
	RunE: runStatus,
}

// resetCmd resets a tripped breaker
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset a tripped circuit breaker to HALF_OPEN",
	Long: `Reset an OPEN circuit breaker to HALF_OPEN. The next recorded call
decides whether the breaker closes or trips again. Resetting a breaker
that is not OPEN is a no-op.`,
	RunE: runReset,
}

// stopCmd force-stops a task
var stopCmd = &cobra.Command{
	Use:   "stop <task-id>",
	Short: "Force-stop a tracked task",
	Long: `Purge a task's breaker bookkeeping. Advisory only: an in-flight
agent call is not interrupted. Session and daily spend are kept.

Examples:
  # Stop a runaway task
  govctl stop task-42 --reason "looping on the same error"`,
	Args: cobra.ExactArgs(1),
	RunE: runStop,
}

var stopReason string

func init() {
	stopCmd.Flags().StringVar(&stopReason, "reason", "operator request", "reason recorded for the stop")
}

// StopRequest matches internal/http/handlers.go StopRequest
type StopRequest struct {
	Reason string `json:"reason"`
}

// StopResponse matches internal/http/handlers.go StopResponse
type StopResponse struct {
	TaskID  string `json:"task_id"`
	Stopped bool   `json:"stopped"`
}

// ResetResponse matches internal/http/handlers.go ResetResponse
type ResetResponse struct {
	State string `json:"state"`
}

func newClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

// postJSON sends a POST with a JSON body and decodes the JSON reply
// into out. A non-200 status becomes an error carrying the body.
func postJSON(path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := serverURL + path
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := newClient().Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(b))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// runStatus handles the status command
func runStatus(cmd *cobra.Command, args []string) error {
	url := serverURL + "/api/v1/status"

	resp, err := newClient().Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(b))
	}

	// Re-indent rather than decode: status is for human eyes and the
	// daemon's field set should not need a client upgrade to show.
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		return fmt.Errorf("failed to format response: %w", err)
	}
	fmt.Println(pretty.String())
	return nil
}

// runReset handles the reset command
func runReset(cmd *cobra.Command, args []string) error {
	var resp ResetResponse
	if err := postJSON("/api/v1/breaker/reset", struct{}{}, &resp); err != nil {
		return err
	}
	fmt.Printf("Breaker state: %s\n", resp.State)
	return nil
}

// runStop handles the stop command
func runStop(cmd *cobra.Command, args []string) error {
	taskID := args[0]

	var resp StopResponse
	if err := postJSON("/api/v1/tasks/"+taskID+"/stop", StopRequest{Reason: stopReason}, &resp); err != nil {
		return err
	}
	fmt.Printf("Stopped task %s\n", resp.TaskID)
	return nil
}
