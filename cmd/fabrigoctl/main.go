// Command fabrigoctl is a thin HTTP client for fabrigod: it reads a
// task-group JSON file, POSTs it to a running server's /execute
// endpoint, and prints the resulting task-group result (or server
// error) to stdout.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fabrigo/fabrigo/pkg/task"
)

type runOpts struct {
	server     string
	file       string
	timeoutSec int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var o runOpts

	root := &cobra.Command{
		Use:   "fabrigoctl",
		Short: "Submit a task group to a fabrigod server",
		Long: `fabrigoctl reads a task-group JSON document, submits it to a running
fabrigod instance's /api/v1/execute endpoint, and prints the result.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(o)
		},
	}

	root.Flags().StringVar(&o.server, "server", "http://127.0.0.1:3000", "fabrigod base URL")
	root.Flags().StringVar(&o.file, "file", "", "path to a task-group JSON file (required)")
	root.Flags().IntVar(&o.timeoutSec, "timeout", 30, "HTTP request timeout in seconds")
	_ = root.MarkFlagRequired("file")

	return root
}

func run(o runOpts) error {
	data, err := os.ReadFile(o.file)
	if err != nil {
		return fmt.Errorf("fabrigoctl: read %s: %w", o.file, err)
	}

	var group task.TaskGroup
	if err := json.Unmarshal(data, &group); err != nil {
		return fmt.Errorf("fabrigoctl: decode task group: %w", err)
	}
	if err := group.Validate(); err != nil {
		return fmt.Errorf("fabrigoctl: invalid task group: %w", err)
	}

	client := &http.Client{Timeout: time.Duration(o.timeoutSec) * time.Second}
	resp, err := client.Post(o.server+"/api/v1/execute", "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("fabrigoctl: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("fabrigoctl: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fabrigoctl: server returned %s: %s", resp.Status, string(body))
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		fmt.Println(string(body))
		return nil
	}
	fmt.Println(pretty.String())
	return nil
}
