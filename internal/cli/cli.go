package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/studiowebux/loadtest/internal/config"
	"github.com/studiowebux/loadtest/internal/filter"
	"github.com/studiowebux/loadtest/internal/loadtest"
	"github.com/studiowebux/loadtest/internal/logging"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Output formats
const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

const metricsShutdownTimeout = 5 * time.Second

// RunOptions contains options for running a load test in CLI mode
type RunOptions struct {
	ConfigFile string           // explicit settings file, overrides the global one
	Flags      *config.Settings // only flags the user set explicitly
	Environ    map[string]string
	Quick      bool
	Stress     bool
	Filter     string // JMESPath filter expression
	Query      string // JMESPath query or $(shell command)
	SavePath   string
	Record     bool // persist to the default run history database

	Stdout io.Writer
	Stderr io.Writer
}

func (o *RunOptions) streams() (stdout, stderr io.Writer) {
	stdout, stderr = o.Stdout, o.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return stdout, stderr
}

// ResolveConfig layers defaults, settings file, environment and explicit
// flags, then applies the preset flags.
func ResolveConfig(opts RunOptions) (config.Settings, loadtest.Config, error) {
	var fileSettings *config.Settings
	path := opts.ConfigFile
	if path == "" {
		path = config.DefaultConfigFile()
	}
	if path != "" {
		s, err := config.LoadFile(path)
		if err != nil {
			return config.Settings{}, loadtest.Config{}, err
		}
		fileSettings = s
	}

	envSettings, err := config.LoadEnv(opts.Environ)
	if err != nil {
		return config.Settings{}, loadtest.Config{}, err
	}

	settings := config.Resolve(fileSettings, envSettings, opts.Flags)
	cfg, err := settings.LoadTestConfig(loadtest.SelectPreset(opts.Quick, opts.Stress))
	return settings, cfg, err
}

// Run executes a load test and writes the report
func Run(ctx context.Context, opts RunOptions) error {
	stdout, stderr := opts.streams()

	settings, cfg, err := ResolveConfig(opts)
	if err != nil {
		return err
	}

	output := config.String(settings.Output, OutputText)
	if err := validateOutput(output); err != nil {
		return err
	}
	if err := filter.Validate(opts.Filter, opts.Query); err != nil {
		return err
	}

	logger, err := logging.New(config.String(settings.LogLevel, "info"), config.String(settings.LogFormat, logging.FormatConsole), stderr)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := loadtest.NewMetrics()
	if addr := config.String(settings.MetricsAddr, ""); addr != "" {
		stopMetrics, err := serveMetrics(addr, metrics, logger)
		if err != nil {
			return err
		}
		defer stopMetrics()
	}

	// Keep stdout clean for machine-readable reports
	bannerOut := stdout
	if output != OutputText {
		bannerOut = stderr
	}

	orch, err := loadtest.NewOrchestrator(cfg,
		loadtest.WithLogger(logger),
		loadtest.WithMetrics(metrics),
		loadtest.WithOutput(bannerOut),
	)
	if err != nil {
		return err
	}

	report, err := orch.Run(ctx)
	if err != nil {
		var preflightErr *loadtest.PreflightError
		if errors.As(err, &preflightErr) {
			fmt.Fprintln(stderr, preflightErr.Diagnostic())
		}
		return err
	}

	if dbPath := historyPath(settings, opts.Record); dbPath != "" {
		if err := saveRun(dbPath, report); err != nil {
			logger.Error("failed to save run", zap.String("db", dbPath), zap.Error(err))
		} else {
			fmt.Fprintf(stderr, "Run saved with id %d\n", report.ID)
		}
	}

	rendered, err := FormatReport(report, output, opts.Filter, opts.Query)
	if err != nil {
		return fmt.Errorf("failed to format report: %w", err)
	}
	fmt.Fprintln(stdout, rendered)

	if opts.SavePath != "" {
		if err := os.WriteFile(opts.SavePath, []byte(rendered+"\n"), config.FilePermissions); err != nil {
			return fmt.Errorf("failed to save report: %w", err)
		}
		fmt.Fprintf(stderr, "Report saved to %s\n", opts.SavePath)
	}

	return nil
}

// FormatReport renders a report as text, json or yaml. A filter or query
// selects from the JSON form of the report; text output then falls back
// to JSON.
func FormatReport(report *loadtest.Report, format, filterExpr, queryExpr string) (string, error) {
	if filterExpr == "" && queryExpr == "" {
		switch format {
		case OutputJSON:
			return report.JSON()
		case OutputYAML:
			return report.YAML()
		default:
			return report.Text(), nil
		}
	}

	doc, err := report.JSON()
	if err != nil {
		return "", err
	}

	if format != OutputYAML || filter.IsShellCommand(queryExpr) {
		return filter.Apply(doc, filterExpr, queryExpr)
	}

	var data any
	if err := json.Unmarshal([]byte(doc), &data); err != nil {
		return "", err
	}
	selected, err := filter.Select(data, filterExpr, queryExpr)
	if err != nil {
		return "", err
	}
	out, err := yaml.Marshal(selected)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func validateOutput(format string) error {
	switch format {
	case OutputText, OutputJSON, OutputYAML:
		return nil
	default:
		return fmt.Errorf("invalid output format %q (use text, json or yaml)", format)
	}
}

// historyPath returns the database to persist to, or "" when the run is not recorded
func historyPath(settings config.Settings, record bool) string {
	if settings.DB != nil && *settings.DB != "" {
		return *settings.DB
	}
	if record {
		return config.DatabasePath
	}
	return ""
}

func saveRun(dbPath string, report *loadtest.Report) error {
	mgr, err := loadtest.NewManager(dbPath)
	if err != nil {
		return err
	}
	defer mgr.Close()
	return mgr.SaveReport(report)
}

// serveMetrics exposes /metrics on addr until the returned func is called
func serveMetrics(addr string, metrics *loadtest.Metrics, logger *zap.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on metrics address %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("address", "http://"+ln.Addr().String()+"/metrics"))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
