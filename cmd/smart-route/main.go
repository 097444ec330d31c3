// Package main provides the smart-route CLI client.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "smart-route",
		Short: "Smart Route - CLI client for the query routing server",
		Long: `Smart Route routes queries through a running smart-route server
and prints the selected model's answer.

Run 'smart-route query "your question"' to route a query.
Run 'smart-route --help' for available commands.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringP("server", "s", "http://localhost:8080", "server URL")
	rootCmd.PersistentFlags().String("format", "text", "output format (text, json)")
	rootCmd.PersistentFlags().Duration("timeout", 2*time.Minute, "request timeout")

	rootCmd.AddCommand(
		queryCmd(),
		statsCmd(),
		healthCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func queryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query [text...]",
		Short: "Route a query and print the model's answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")

			body, err := json.Marshal(map[string]string{"query": text})
			if err != nil {
				return err
			}

			raw, err := post(cmd, "/v1/route", body)
			if err != nil {
				return err
			}

			format, _ := cmd.Flags().GetString("format")
			if format == "json" {
				fmt.Println(string(raw))
				return nil
			}

			var resp struct {
				ResponseText  string  `json:"response_text"`
				SelectedModel string  `json:"selected_model_name"`
				Profile       string  `json:"profile"`
				AnomalyScore  float64 `json:"anomaly_score"`
				CacheHit      bool    `json:"cache_hit"`
			}
			if err := json.Unmarshal(raw, &resp); err != nil {
				return fmt.Errorf("invalid server response: %w", err)
			}

			fmt.Println(resp.ResponseText)
			fmt.Fprintf(os.Stderr, "\n[model=%s profile=%s anomaly=%.3f cached=%t]\n",
				resp.SelectedModel, resp.Profile, resp.AnomalyScore, resp.CacheHit)
			return nil
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print server cache and load statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := get(cmd, "/v1/stats")
			if err != nil {
				return err
			}

			var pretty bytes.Buffer
			if err := json.Indent(&pretty, raw, "", "  "); err != nil {
				return fmt.Errorf("invalid server response: %w", err)
			}
			fmt.Println(pretty.String())
			return nil
		},
	}
}

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := get(cmd, "/healthz"); err != nil {
				return err
			}
			fmt.Println("ok")
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("smart-route %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}
}

func get(cmd *cobra.Command, path string) ([]byte, error) {
	return do(cmd, http.MethodGet, path, nil)
}

func post(cmd *cobra.Command, path string, body []byte) ([]byte, error) {
	return do(cmd, http.MethodPost, path, body)
}

func do(cmd *cobra.Command, method, path string, body []byte) ([]byte, error) {
	serverURL, _ := cmd.Flags().GetString("server")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(cmd.Context(), method,
		strings.TrimRight(serverURL, "/")+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cannot reach server at %s: %w", serverURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &errResp) == nil && errResp.Message != "" {
			return nil, fmt.Errorf("server error (%s): %s", errResp.Code, errResp.Message)
		}
		return nil, fmt.Errorf("server returned %s", resp.Status)
	}

	return raw, nil
}
