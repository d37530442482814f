package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/studiowebux/loadtest/internal/loadtest"
	"gopkg.in/yaml.v3"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Faint(true)
)

// HistoryOptions selects the run history database and output
type HistoryOptions struct {
	DBPath string
	Output string
	Filter string
	Query  string
	Limit  int
	Stdout io.Writer
}

func (o *HistoryOptions) stdout() io.Writer {
	if o.Stdout == nil {
		return os.Stdout
	}
	return o.Stdout
}

// ListRuns prints the persisted runs, newest first
func ListRuns(opts HistoryOptions) error {
	mgr, err := loadtest.NewManager(opts.DBPath)
	if err != nil {
		return err
	}
	defer mgr.Close()

	runs, err := mgr.ListRuns(opts.Limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	if runs == nil {
		runs = []*loadtest.Report{}
	}

	out := opts.stdout()
	switch opts.Output {
	case OutputJSON:
		data, err := marshalJSON(runs)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, data)
		return nil
	case OutputYAML:
		data, err := yaml.Marshal(runs)
		if err != nil {
			return err
		}
		fmt.Fprint(out, string(data))
		return nil
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, mutedStyle.Render("No runs recorded"))
		return nil
	}

	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("%-5s %-19s %-8s %6s %7s %9s %8s %10s  %s",
		"ID", "Started", "Workload", "Users", "Dur(s)", "Requests", "Failed", "Req/s", "URL")))
	fmt.Fprintln(out, strings.Repeat("─", 100))
	for _, r := range runs {
		marker := ""
		if r.Interrupted {
			marker = " (interrupted)"
		}
		fmt.Fprintf(out, "%-5d %-19s %-8s %6d %7.1f %9d %8d %10.2f  %s%s\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Workload, r.Users,
			r.ElapsedSeconds, r.TotalRequests, r.FailedRequests, r.Throughput, r.BaseURL, marker)
	}
	return nil
}

// ShowRun re-renders a persisted run
func ShowRun(opts HistoryOptions, id int64) error {
	mgr, err := loadtest.NewManager(opts.DBPath)
	if err != nil {
		return err
	}
	defer mgr.Close()

	report, err := mgr.GetRun(id)
	if err != nil {
		return fmt.Errorf("failed to load run %d: %w", id, err)
	}

	output := opts.Output
	if output == "" {
		output = OutputText
	}
	if err := validateOutput(output); err != nil {
		return err
	}

	rendered, err := FormatReport(report, output, opts.Filter, opts.Query)
	if err != nil {
		return fmt.Errorf("failed to format report: %w", err)
	}
	fmt.Fprintln(opts.stdout(), rendered)
	return nil
}

// DeleteRun removes a persisted run
func DeleteRun(opts HistoryOptions, id int64) error {
	mgr, err := loadtest.NewManager(opts.DBPath)
	if err != nil {
		return err
	}
	defer mgr.Close()

	if err := mgr.DeleteRun(id); err != nil {
		return err
	}
	fmt.Fprintf(opts.stdout(), "Deleted run %d\n", id)
	return nil
}

func marshalJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
