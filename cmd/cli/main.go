package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/yourusername/media-queue-go/internal/app"
	"github.com/yourusername/media-queue-go/internal/domain"
)

// cliEnv holds the environment defaults for the persistent flags
type cliEnv struct {
	Server       string        `env:"MEDIAQ_SERVER" envDefault:"http://localhost:5000"`
	NoAutoStart  bool          `env:"MEDIAQ_NO_AUTO_START"`
	ServerBin    string        `env:"MEDIAQ_SERVER_BIN"`
	ServerConfig string        `env:"MEDIAQ_SERVER_CONFIG"`
	StartTimeout time.Duration `env:"MEDIAQ_START_TIMEOUT" envDefault:"10s"`
}

func loadEnv() (cliEnv, error) {
	_ = godotenv.Load()

	var cfg cliEnv
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse environment variables: %w", err)
	}
	return cfg, nil
}

var (
	serverURL   string
	noAutoStart bool
	cliDefaults cliEnv
	client      *apiClient
	rootCmd     = &cobra.Command{
		Use:   "mediaq",
		Short: "mediaq - queue and download videos through the media queue server",
		Long:  `A command-line interface for the media queue server: queue URLs, drain the queue, and browse download history.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			client = newAPIClient(serverURL)
		},
		SilenceUsage: true,
	}
)

func init() {
	defaults, err := loadEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		defaults = cliEnv{Server: "http://localhost:5000"}
	}
	cliDefaults = defaults

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaults.Server, "Server URL (env MEDIAQ_SERVER)")
	rootCmd.PersistentFlags().BoolVar(&noAutoStart, "no-auto-start", defaults.NoAutoStart, "Don't auto-start server if not running")

	addCmd.Flags().StringP("format", "f", "", "Output format (mp4, mp3, auto)")
	addCmd.Flags().StringP("quality", "q", "", "Video quality (best, 2160, 1440, 1080, 720, 480, 360)")
	addCmd.Flags().Bool("start", false, "Start draining the queue after adding")
	historyCmd.Flags().String("filter", "", "Filter (all, success, failed, mp4, mp3, auto)")
	historyExportCmd.Flags().StringP("output", "o", "", "Write to file instead of stdout")

	historyCmd.AddCommand(historySearchCmd, historyDeleteCmd, historyClearCmd, historyExportCmd)
	rootCmd.AddCommand(addCmd, queueCmd, removeCmd, clearCmd, startCmd, stopCmd, cancelCmd,
		previewCmd, historyCmd, statsCmd, watchCmd)
}

// ensureServer checks if server is running and starts it if needed (unless --no-auto-start)
func ensureServer() {
	if noAutoStart {
		return
	}
	if err := newLauncher(serverURL, cliDefaults).ensure(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}

var addCmd = &cobra.Command{
	Use:   "add <url>...",
	Short: "Add one or more URLs to the queue",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()
		format, _ := cmd.Flags().GetString("format")
		quality, _ := cmd.Flags().GetString("quality")
		start, _ := cmd.Flags().GetBool("start")

		var result app.EnqueueResult
		err := client.do(http.MethodPost, "/api/v1/queue", map[string]any{
			"urls":    args,
			"format":  format,
			"quality": quality,
		}, &result)
		if err != nil {
			return err
		}

		fmt.Printf("Queued %d URL(s)\n", len(result.IDs))
		for _, id := range result.IDs {
			fmt.Printf("  %s\n", id)
		}
		for _, r := range result.Rejected {
			fmt.Printf("Skipped %s: %s\n", r.URL, r.Reason)
		}

		if start {
			return client.do(http.MethodPost, "/api/v1/queue/start", nil, nil)
		}
		return nil
	},
}

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Show the current queue",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()
		var snap domain.QueueSnapshot
		if err := client.get("/api/v1/queue", nil, &snap); err != nil {
			return err
		}
		printQueue(os.Stdout, snap)
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a pending job from the queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()
		if err := client.do(http.MethodDelete, "/api/v1/queue/"+url.PathEscape(args[0]), nil, nil); err != nil {
			return err
		}
		fmt.Println("Removed")
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every pending job",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()
		var result struct {
			Removed int `json:"removed"`
		}
		if err := client.do(http.MethodPost, "/api/v1/queue/clear", nil, &result); err != nil {
			return err
		}
		fmt.Printf("Removed %d pending job(s)\n", result.Removed)
		return nil
	},
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start draining the queue",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()
		var result struct {
			Started  bool `json:"started"`
			Draining bool `json:"draining"`
		}
		if err := client.do(http.MethodPost, "/api/v1/queue/start", nil, &result); err != nil {
			return err
		}
		if result.Started {
			fmt.Println("Queue started")
		} else {
			fmt.Println("Queue already running")
		}
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop after the active download finishes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()
		var result struct {
			Stopping bool `json:"stopping"`
		}
		if err := client.do(http.MethodPost, "/api/v1/queue/stop", nil, &result); err != nil {
			return err
		}
		if result.Stopping {
			fmt.Println("Queue will stop after the active download")
		} else {
			fmt.Println("Queue is not running")
		}
		return nil
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <id>",
	Short: "Cancel the active download",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()
		if err := client.do(http.MethodPost, "/api/v1/queue/"+url.PathEscape(args[0])+"/cancel", nil, nil); err != nil {
			return err
		}
		fmt.Println("Cancellation requested")
		return nil
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview <url>",
	Short: "Show video metadata without downloading",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()
		var info domain.VideoInfo
		if err := client.get("/api/v1/preview", url.Values{"url": {args[0]}}, &info); err != nil {
			return err
		}

		fmt.Printf("Title:    %s\n", info.Title)
		fmt.Printf("Platform: %s\n", info.Platform)
		fmt.Printf("Duration: %s\n", info.Duration)
		fmt.Printf("Views:    %d\n", info.ViewCount)
		if len(info.Formats) > 0 {
			fmt.Println("Formats:")
			for _, f := range info.Formats {
				fmt.Printf("  %-6s %s\n", f.Quality, f.Filesize)
			}
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List download history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()
		filter, _ := cmd.Flags().GetString("filter")
		var records []domain.HistoryRecord
		query := url.Values{}
		if filter != "" {
			query.Set("filter", filter)
		}
		if err := client.get("/api/history", query, &records); err != nil {
			return err
		}
		printHistory(os.Stdout, records)
		return nil
	},
}

var historySearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search history by title, URL or platform",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()
		var records []domain.HistoryRecord
		if err := client.get("/api/search-history", url.Values{"q": {strings.Join(args, " ")}}, &records); err != nil {
			return err
		}
		printHistory(os.Stdout, records)
		return nil
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete one history record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()
		if err := client.do(http.MethodDelete, "/api/delete/"+url.PathEscape(args[0]), nil, nil); err != nil {
			return err
		}
		fmt.Println("Deleted")
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()
		var result struct {
			Deleted int64 `json:"deleted"`
		}
		if err := client.do(http.MethodPost, "/api/clear-history", nil, &result); err != nil {
			return err
		}
		fmt.Printf("Deleted %d record(s)\n", result.Deleted)
		return nil
	},
}

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export history as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()
		output, _ := cmd.Flags().GetString("output")
		data, err := client.doRaw(http.MethodGet, "/api/export-history", nil)
		if err != nil {
			return err
		}
		if output == "" {
			_, err = os.Stdout.Write(append(data, '\n'))
			return err
		}
		if err := os.WriteFile(output, data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", output, err)
		}
		fmt.Printf("Exported history to %s\n", output)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show download history statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()
		var stats domain.HistoryStats
		if err := client.get("/api/v1/history/stats", nil, &stats); err != nil {
			return err
		}

		fmt.Println("Download Statistics:")
		fmt.Printf("  Total:   %d\n", stats.Total)
		fmt.Printf("  Success: %d\n", stats.Success)
		fmt.Printf("  Failed:  %d\n", stats.Failed)
		fmt.Printf("  MP4:     %d\n", stats.MP4)
		fmt.Printf("  MP3:     %d\n", stats.MP3)
		fmt.Printf("  Auto:    %d\n", stats.Auto)
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the queue live",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()
		return runWatch(client.socketURL())
	},
}

func printQueue(w io.Writer, snap domain.QueueSnapshot) {
	state := "idle"
	if snap.Draining {
		state = "draining"
	}
	fmt.Fprintf(w, "Queue (%s): %d job(s)\n", state, len(snap.Jobs))
	if len(snap.Jobs) == 0 {
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPROGRESS\tFORMAT\tTITLE")
	for _, job := range snap.Jobs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			job.ID,
			job.Status,
			job.Progress,
			formatLabel(job.Format, job.Quality),
			truncate(job.DisplayTitle(), 50))
	}
	tw.Flush()
}

func printHistory(w io.Writer, records []domain.HistoryRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No history")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPLATFORM\tFORMAT\tSIZE\tDATE\tTITLE")
	for _, r := range records {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			r.Status,
			r.Platform,
			formatLabel(r.Format, r.Quality),
			r.FileSize,
			r.DownloadDate.Local().Format("2006-01-02 15:04"),
			truncate(r.Title, 50))
	}
	tw.Flush()
}

func formatLabel(format domain.Format, quality domain.Quality) string {
	if format == domain.FormatMP3 || quality == "" {
		return string(format)
	}
	if quality == domain.QualityBest {
		return string(format) + "/best"
	}
	return string(format) + "/" + string(quality) + "p"
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
