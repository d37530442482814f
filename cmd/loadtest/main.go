package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/studiowebux/loadtest/internal/cli"
	"github.com/studiowebux/loadtest/internal/config"
	"github.com/studiowebux/loadtest/internal/loadtest"
	"github.com/studiowebux/loadtest/internal/mock"
)

var (
	version = "0.1.0"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "loadtest",
	Short: "Concurrent HTTP load tester",
	Long: `loadtest drives concurrent virtual users against an HTTP application for a
fixed duration and reports per-endpoint latency statistics.

Before any virtual user starts, the base URL is probed once. If the probe fails
or returns a 5xx status, the run is aborted.

Workloads:
  mixed    weighted mix: read 40%, write 25%, tasks 10%, browse 25%
  browse   GET /, /hello/, /sync/, /async/, /celery/
  read     3-8 GETs of /api/users/ or /api/posts/
  write    create a user, then a post authored by that user
  tasks    1-3 POSTs to /api/tasks/trigger/

Settings are layered: defaults, config file (~/.loadtest/config.yaml or
--config), LOADTEST_* environment variables, explicit flags, then --quick or
--stress.

Examples:
  loadtest                                   # 20 users, 30s, mixed workload
  loadtest --users 50 --duration 60          # Custom load
  loadtest --workload read --quick           # 10 users for 15s
  loadtest run --stress --url http://app:8000
  loadtest -o json --query 'endpoints[].p95_seconds'
  loadtest --record && loadtest runs         # Keep run history
  loadtest mock --error-rate 0.05            # Local demo target`,
	Version:           version,
	Args:              cobra.NoArgs,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initialize,
	RunE:              runLoadTest,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a load test",
	Args:  cobra.NoArgs,
	RunE:  runLoadTest,
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.ListRuns(historyOptions())
	},
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show the report of a recorded run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseRunID(args[0])
		if err != nil {
			return err
		}
		return cli.ShowRun(historyOptions(), id)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a recorded run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseRunID(args[0])
		if err != nil {
			return err
		}
		return cli.DeleteRun(historyOptions(), id)
	},
}

var mockCmd = &cobra.Command{
	Use:   "mock",
	Short: "Serve a local demo target with the workload routes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := cli.MockOptions{
			ConfigFile: mockConfigFile,
			Delay:      mockDelay,
			Jitter:     mockJitter,
			ErrorRate:  mockErrorRate,
			LogLevel:   flagLogLevel,
		}
		// A route file keeps its own address unless overridden
		if mockConfigFile == "" || cmd.Flags().Changed("host") {
			opts.Host = mockHost
		}
		if mockConfigFile == "" || cmd.Flags().Changed("port") {
			opts.Port = mockPort
		}
		return cli.RunMock(cmd.Context(), opts)
	},
}

// Flags for root/run command
var (
	flagURL         string
	flagUsers       int
	flagDuration    int
	flagWorkload    string
	flagQuick       bool
	flagStress      bool
	flagOutput      string
	flagFilter      string
	flagQuery       string
	flagSave        string
	flagRecord      bool
	flagTimeout     float64
	flagMaxRPS      float64
	flagSeed        uint64
	flagProgress    float64
	flagMetricsAddr string
	flagLogFormat   string
)

// Flags shared by every command
var (
	flagConfig   string
	flagDB       string
	flagLogLevel string
)

// Flags for runs/show
var (
	historyLimit int
)

// Flags for mock
var (
	mockConfigFile string
	mockHost       string
	mockPort       int
	mockDelay      int
	mockJitter     int
	mockErrorRate  float64
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Settings file (.yaml, .yml, .json, .jsonc)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "Run history database (default ~/.loadtest/loadtest.db)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug/info/warn/error)")

	addRunFlags(rootCmd.Flags())
	addRunFlags(runCmd.Flags())

	runsCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of runs to list (0 = all)")
	runsCmd.Flags().StringVarP(&flagOutput, "output", "o", cli.OutputText, "Output format (text/json/yaml)")
	showCmd.Flags().StringVarP(&flagOutput, "output", "o", cli.OutputText, "Output format (text/json/yaml)")
	showCmd.Flags().StringVar(&flagFilter, "filter", "", "JMESPath filter applied to the JSON report")
	showCmd.Flags().StringVar(&flagQuery, "query", "", "JMESPath query or $(shell command) applied to the JSON report")

	mockCmd.Flags().StringVar(&mockConfigFile, "routes", "", "Route table file (.yaml, .yml, .json, .jsonc)")
	mockCmd.Flags().StringVar(&mockHost, "host", mock.DefaultHost, "Listen host")
	mockCmd.Flags().IntVarP(&mockPort, "port", "p", mock.DefaultPort, "Listen port")
	mockCmd.Flags().IntVar(&mockDelay, "delay", 0, "Base response delay in milliseconds")
	mockCmd.Flags().IntVar(&mockJitter, "jitter", 0, "Random extra delay in milliseconds")
	mockCmd.Flags().Float64Var(&mockErrorRate, "error-rate", 0, "Fraction of requests answered with 500 (0-1)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(mockCmd)
}

// addRunFlags registers the load test flags on fs
func addRunFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&flagURL, "url", "u", loadtest.DefaultBaseURL, "Base URL of the application")
	fs.IntVar(&flagUsers, "users", loadtest.DefaultUsers, "Number of concurrent users")
	fs.IntVarP(&flagDuration, "duration", "d", int(loadtest.DefaultDuration.Seconds()), "Test duration in seconds")
	fs.StringVarP(&flagWorkload, "workload", "w", string(loadtest.WorkloadMixed), "Workload type (mixed/browse/read/write/tasks)")
	fs.BoolVar(&flagQuick, "quick", false, "Quick test: 10 users for 15 seconds")
	fs.BoolVar(&flagStress, "stress", false, "Stress test: 100 users for 60 seconds")
	fs.StringVarP(&flagOutput, "output", "o", cli.OutputText, "Report format (text/json/yaml)")
	fs.StringVar(&flagFilter, "filter", "", "JMESPath filter applied to the JSON report")
	fs.StringVar(&flagQuery, "query", "", "JMESPath query or $(shell command) applied to the JSON report")
	fs.StringVarP(&flagSave, "save", "s", "", "Also write the report to file")
	fs.BoolVar(&flagRecord, "record", false, "Save the run to the history database")
	fs.Float64Var(&flagTimeout, "timeout", loadtest.DefaultRequestTimeout.Seconds(), "Per-request timeout in seconds")
	fs.Float64Var(&flagMaxRPS, "max-rps", 0, "Cap on total requests per second (0 = unlimited)")
	fs.Uint64Var(&flagSeed, "seed", 0, "Random seed for workload choices (0 = time based)")
	fs.Float64Var(&flagProgress, "progress", loadtest.DefaultProgressInterval.Seconds(), "Progress log interval in seconds (0 disables)")
	fs.StringVar(&flagMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the run (e.g. :9090)")
	fs.StringVar(&flagLogFormat, "log-format", "console", "Log format (console/json)")
}

// initialize creates ~/.loadtest before any command runs
func initialize(cmd *cobra.Command, args []string) error {
	if err := config.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}
	return nil
}

// runLoadTest runs a load test with the root/run flags
func runLoadTest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	opts := cli.RunOptions{
		ConfigFile: flagConfig,
		Flags:      changedSettings(cmd),
		Quick:      flagQuick,
		Stress:     flagStress,
		Filter:     flagFilter,
		Query:      flagQuery,
		SavePath:   flagSave,
		Record:     flagRecord,
	}
	return cli.Run(ctx, opts)
}

// changedSettings returns a settings layer holding only the flags the user set
func changedSettings(cmd *cobra.Command) *config.Settings {
	fs := cmd.Flags()
	s := &config.Settings{}
	if fs.Changed("url") {
		s.URL = &flagURL
	}
	if fs.Changed("users") {
		s.Users = &flagUsers
	}
	if fs.Changed("duration") {
		s.Duration = &flagDuration
	}
	if fs.Changed("workload") {
		s.Workload = &flagWorkload
	}
	if fs.Changed("timeout") {
		s.Timeout = &flagTimeout
	}
	if fs.Changed("max-rps") {
		s.MaxRPS = &flagMaxRPS
	}
	if fs.Changed("seed") {
		s.Seed = &flagSeed
	}
	if fs.Changed("progress") {
		s.Progress = &flagProgress
	}
	if fs.Changed("output") {
		s.Output = &flagOutput
	}
	if fs.Changed("db") {
		s.DB = &flagDB
	}
	if fs.Changed("metrics-addr") {
		s.MetricsAddr = &flagMetricsAddr
	}
	if fs.Changed("log-level") {
		s.LogLevel = &flagLogLevel
	}
	if fs.Changed("log-format") {
		s.LogFormat = &flagLogFormat
	}
	return s
}

func historyOptions() cli.HistoryOptions {
	dbPath := flagDB
	if dbPath == "" {
		dbPath = config.DatabasePath
	}
	return cli.HistoryOptions{
		DBPath: dbPath,
		Output: flagOutput,
		Filter: flagFilter,
		Query:  flagQuery,
		Limit:  historyLimit,
	}
}

func parseRunID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid run id %q", arg)
	}
	return id, nil
}
