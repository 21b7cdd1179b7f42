package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	serverrun "github.com/rzbill/tide/internal/cmd/server"
	cfgpkg "github.com/rzbill/tide/internal/config"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tide",
		Short: "Tide event store CLI",
		Long:  "Tide is an embedded event store with a shared tailing cache. This CLI manages the server and basic operations.",
	}

	rootCmd.AddCommand(serverCmd())
	rootCmd.AddCommand(appendCmd())
	rootCmd.AddCommand(tailCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serverCmd() *cobra.Command {
	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	startCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start the tide server",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := cfgpkg.Load(configPath)
			if err != nil {
				return err
			}
			cfgpkg.FromEnv(&cfg)

			if v, _ := cmd.Flags().GetString("http"); v != "" {
				cfg.HTTPAddr = v
			}
			if v, _ := cmd.Flags().GetString("fsync"); v != "" {
				cfg.Fsync = v
			}
			if v, _ := cmd.Flags().GetInt("fsync-interval-ms"); v > 0 {
				cfg.FsyncIntervalMs = v
			}
			if v, _ := cmd.Flags().GetInt("cache-events"); v > 0 {
				cfg.Store.CachedEvents = v
			}
			if v, _ := cmd.Flags().GetInt("fetch-delay-ms"); v > 0 {
				cfg.Store.FetchDelayMs = v
			}
			if v, _ := cmd.Flags().GetInt("cleanup-delay-ms"); v > 0 {
				cfg.Store.CleanupDelayMs = v
			}
			if v, _ := cmd.Flags().GetString("log-level"); v != "" {
				cfg.Log.Level = v
			}
			if v, _ := cmd.Flags().GetString("log-format"); v != "" {
				cfg.Log.Format = v
			}

			dataDir, _ := cmd.Flags().GetString("data-dir")
			if dataDir == "" {
				dataDir = cfg.DataDir
			}
			return serverrun.Run(cmd.Context(), serverrun.Options{DataDir: dataDir, Config: cfg})
		},
	}
	startCmd.Flags().String("config", "", "path to a JSON or YAML config file")
	startCmd.Flags().String("data-dir", "", "data directory (defaults to the OS data dir)")
	startCmd.Flags().String("http", "", "HTTP listen address (default :8080)")
	startCmd.Flags().String("fsync", "", "fsync mode: always|interval|never")
	startCmd.Flags().Int("fsync-interval-ms", 0, "group-commit window for fsync=interval")
	startCmd.Flags().Int("cache-events", 0, "events retained in the tailing cache")
	startCmd.Flags().Int("fetch-delay-ms", 0, "producer idle interval between storage probes")
	startCmd.Flags().Int("cleanup-delay-ms", 0, "laggard cleaner period")
	startCmd.Flags().String("log-level", "", "log level: debug|info|warn|error")
	startCmd.Flags().String("log-format", "", "log format: text|json")
	serverCmd.AddCommand(startCmd)
	return serverCmd
}

func appendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "append <payload>",
		Short: "Append an event via a running server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			eventType, _ := cmd.Flags().GetString("type")
			meta, _ := cmd.Flags().GetStringToString("meta")

			body, err := json.Marshal(map[string]any{
				"type":     eventType,
				"payload":  []byte(args[0]),
				"metadata": meta,
			})
			if err != nil {
				return err
			}
			resp, err := http.Post(addr+"/v1/events/append", "application/json", bytes.NewReader(body))
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusAccepted {
				b, _ := io.ReadAll(resp.Body)
				return fmt.Errorf("append failed: %s: %s", resp.Status, strings.TrimSpace(string(b)))
			}
			_, err = io.Copy(cmd.OutOrStdout(), resp.Body)
			fmt.Fprintln(cmd.OutOrStdout())
			return err
		},
	}
	cmd.Flags().String("addr", "http://127.0.0.1:8080", "server base URL")
	cmd.Flags().String("type", "", "event type")
	cmd.Flags().StringToString("meta", nil, "event metadata key=value pairs")
	return cmd
}

func tailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail the event stream via SSE",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			from, _ := cmd.Flags().GetString("from")
			filter, _ := cmd.Flags().GetString("filter")
			limit, _ := cmd.Flags().GetInt("limit")

			q := url.Values{}
			if from != "" {
				q.Set("from", from)
			}
			if filter != "" {
				q.Set("filter", filter)
			}
			if limit > 0 {
				q.Set("limit", fmt.Sprint(limit))
			}
			streamURL := addr + "/v1/events/stream"
			if len(q) > 0 {
				streamURL += "?" + q.Encode()
			}

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, streamURL, nil)
			if err != nil {
				return err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("stream failed: %s", resp.Status)
			}

			scanner := bufio.NewScanner(resp.Body)
			scanner.Buffer(make([]byte, 64*1024), 1024*1024)
			for scanner.Scan() {
				line := scanner.Text()
				if strings.HasPrefix(line, "data: ") {
					fmt.Fprintln(cmd.OutOrStdout(), strings.TrimPrefix(line, "data: "))
				}
			}
			return scanner.Err()
		},
	}
	cmd.Flags().String("addr", "http://127.0.0.1:8080", "server base URL")
	cmd.Flags().String("from", "", "token to resume strictly after")
	cmd.Flags().String("filter", "", "CEL filter expression")
	cmd.Flags().Int("limit", 0, "stop after this many events (0 = endless)")
	return cmd
}
