package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/trykimu/videoeditor-sub001/internal/api"
	"github.com/trykimu/videoeditor-sub001/internal/config"
)

func newImportCommand() *cobra.Command {
	var server, token, projectID string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the timeline of a project on a running editor daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" {
				return fmt.Errorf("--project is required")
			}
			if token == "" {
				token = os.Getenv(config.EnvAuthToken)
			}

			// Parse locally first so obvious mistakes never reach the server.
			data, _, err := loadDocument(args[0])
			if err != nil {
				return err
			}

			endpoint, err := url.JoinPath(strings.TrimRight(server, "/"), "projects", projectID, "timeline")
			if err != nil {
				return fmt.Errorf("invalid server URL: %w", err)
			}
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPut, endpoint, bytes.NewReader(data))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")
			if token != "" {
				req.Header.Set("Authorization", "Bearer "+token)
			}

			client := &http.Client{Timeout: timeout}
			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("import failed: %w", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
			if err != nil {
				return fmt.Errorf("read response: %w", err)
			}
			if resp.StatusCode != http.StatusOK {
				return describeFailure(cmd, resp.StatusCode, body)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "imported %s into project %s\n", args[0], projectID)
			return nil
		},
	}

	defaultServer := fmt.Sprintf("http://%s:%d", config.DefaultBind, config.DefaultPort)
	cmd.Flags().StringVar(&server, "server", defaultServer, "Editor daemon base URL")
	cmd.Flags().StringVar(&token, "token", "", "API token (default: $"+config.EnvAuthToken+")")
	cmd.Flags().StringVarP(&projectID, "project", "p", "", "Project to replace")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")
	return cmd
}

func describeFailure(cmd *cobra.Command, status int, body []byte) error {
	var er api.ErrorResponse
	if err := json.Unmarshal(body, &er); err != nil || er.Error == "" {
		return fmt.Errorf("server returned %d: %s", status, strings.TrimSpace(string(body)))
	}

	if len(er.Issues) > 0 || len(er.Violations) > 0 {
		rows := make([][]string, 0, len(er.Issues)+len(er.Violations))
		for _, i := range er.Issues {
			rows = append(rows, []string{i.Path, i.Code, i.Message})
		}
		for _, v := range er.Violations {
			rows = append(rows, []string{v.Path, v.Code, v.Message})
		}
		fmt.Fprintln(cmd.ErrOrStderr(), renderTable([]string{"Path", "Code", "Message"}, rows, nil))
	}
	return fmt.Errorf("server returned %d %s: %s", status, er.Code, er.Error)
}
