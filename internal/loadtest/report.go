package loadtest

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"
)

// MaxDisplayedErrors is how many error messages the text report lists
const MaxDisplayedErrors = 10

// Report is the summary of a finished run
type Report struct {
	ID                 int64           `json:"id,omitempty" yaml:"id,omitempty"`
	RunID              string          `json:"run_id" yaml:"run_id"`
	BaseURL            string          `json:"base_url" yaml:"base_url"`
	Users              int             `json:"users" yaml:"users"`
	Workload           Workload        `json:"workload" yaml:"workload"`
	DurationSeconds    float64         `json:"duration_seconds" yaml:"duration_seconds"`
	StartedAt          time.Time       `json:"started_at" yaml:"started_at"`
	ElapsedSeconds     float64         `json:"elapsed_seconds" yaml:"elapsed_seconds"`
	Interrupted        bool            `json:"interrupted,omitempty" yaml:"interrupted,omitempty"`
	TotalRequests      int             `json:"total_requests" yaml:"total_requests"`
	SuccessfulRequests int             `json:"successful_requests" yaml:"successful_requests"`
	FailedRequests     int             `json:"failed_requests" yaml:"failed_requests"`
	SuccessRate        float64         `json:"success_rate" yaml:"success_rate"`
	FailureRate        float64         `json:"failure_rate" yaml:"failure_rate"`
	Throughput         float64         `json:"throughput_rps" yaml:"throughput_rps"`
	Endpoints          []EndpointStats `json:"endpoints" yaml:"endpoints"`
	Errors             []string        `json:"errors" yaml:"errors"`
}

// BuildReport computes the report from an aggregate snapshot. elapsed is the
// wall-clock length of the run; a zero elapsed yields zero throughput.
func BuildReport(cfg Config, snap Snapshot, startedAt time.Time, elapsed time.Duration) *Report {
	r := &Report{
		BaseURL:            cfg.BaseURL,
		Users:              cfg.Users,
		Workload:           cfg.Workload,
		DurationSeconds:    cfg.Duration.Seconds(),
		StartedAt:          startedAt,
		ElapsedSeconds:     elapsed.Seconds(),
		TotalRequests:      snap.Total,
		SuccessfulRequests: snap.Succeeded,
		FailedRequests:     snap.Failed,
		SuccessRate:        percentOf(snap.Succeeded, snap.Total),
		FailureRate:        percentOf(snap.Failed, snap.Total),
		Endpoints:          make([]EndpointStats, 0, len(snap.Samples)),
		Errors:             snap.Errors,
	}
	if r.Errors == nil {
		r.Errors = []string{}
	}
	if elapsed > 0 {
		r.Throughput = float64(snap.Total) / elapsed.Seconds()
	}

	for endpoint, samples := range snap.Samples {
		if stats, ok := ComputeEndpointStats(endpoint, samples); ok {
			r.Endpoints = append(r.Endpoints, stats)
		}
	}
	sortByAvg(r.Endpoints)
	return r
}

// JSON renders the report as indented JSON
func (r *Report) JSON() (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// YAML renders the report as YAML
func (r *Report) YAML() (string, error) {
	data, err := yaml.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	mutedStyle = lipgloss.NewStyle().Faint(true)
)

const ruleWidth = 70

// Text renders the human-readable report
func (r *Report) Text() string {
	var sb strings.Builder
	heavy := strings.Repeat("=", ruleWidth)
	light := strings.Repeat("─", ruleWidth)

	sb.WriteString("\n" + heavy + "\n")
	sb.WriteString(titleStyle.Render("Load Test Results") + "\n")
	sb.WriteString(heavy + "\n\n")

	if r.Interrupted {
		sb.WriteString(warnStyle.Render("Run interrupted before every user reached its deadline") + "\n\n")
	}

	sb.WriteString(fmt.Sprintf("Total Duration: %.2f seconds\n", r.ElapsedSeconds))
	sb.WriteString(fmt.Sprintf("Total Requests: %d\n", r.TotalRequests))
	sb.WriteString(okStyle.Render(fmt.Sprintf("Successful: %d (%.1f%%)", r.SuccessfulRequests, r.SuccessRate)) + "\n")
	sb.WriteString(failStyle.Render(fmt.Sprintf("Failed: %d (%.1f%%)", r.FailedRequests, r.FailureRate)) + "\n")
	sb.WriteString(fmt.Sprintf("Throughput: %.2f requests/second\n", r.Throughput))

	sb.WriteString("\n" + light + "\n")
	sb.WriteString(titleStyle.Render("Response Times by Endpoint") + "\n")
	sb.WriteString(light + "\n\n")

	sb.WriteString(fmt.Sprintf("%-35s %8s %8s %8s %8s %8s %8s\n", "Endpoint", "Count", "Avg", "Min", "Max", "P50", "P95"))
	sb.WriteString(fmt.Sprintf("%s %s %s %s %s %s %s\n",
		strings.Repeat("─", 35), strings.Repeat("─", 8), strings.Repeat("─", 8), strings.Repeat("─", 8),
		strings.Repeat("─", 8), strings.Repeat("─", 8), strings.Repeat("─", 8)))
	if len(r.Endpoints) == 0 {
		sb.WriteString(mutedStyle.Render("(no requests recorded)") + "\n")
	}
	for _, e := range r.Endpoints {
		sb.WriteString(fmt.Sprintf("%-35s %8d %7.3fs %7.3fs %7.3fs %7.3fs %7.3fs\n",
			e.Endpoint, e.Count, e.Avg, e.Min, e.Max, e.P50, e.P95))
	}

	if len(r.Errors) > 0 {
		sb.WriteString("\n" + light + "\n")
		sb.WriteString(warnStyle.Render(fmt.Sprintf("Errors (showing first %d)", MaxDisplayedErrors)) + "\n")
		sb.WriteString(light + "\n\n")
		shown := r.Errors
		if len(shown) > MaxDisplayedErrors {
			shown = shown[:MaxDisplayedErrors]
		}
		for _, e := range shown {
			sb.WriteString("  • " + e + "\n")
		}
		if rest := len(r.Errors) - len(shown); rest > 0 {
			sb.WriteString(fmt.Sprintf("\n  ... and %d more errors\n", rest))
		}
	}

	sb.WriteString("\n" + heavy + "\n")
	sb.WriteString(titleStyle.Render("Load Test Complete!") + "\n")
	sb.WriteString(heavy + "\n")
	return sb.String()
}

// Banner renders the run parameters printed before virtual users start
func Banner(cfg Config, runID string, startedAt time.Time) string {
	heavy := strings.Repeat("=", ruleWidth)
	var sb strings.Builder
	sb.WriteString("\n" + heavy + "\n")
	sb.WriteString(titleStyle.Render("Starting Load Test") + "\n")
	sb.WriteString(heavy + "\n")
	sb.WriteString(fmt.Sprintf("  Run ID: %s\n", runID))
	sb.WriteString(fmt.Sprintf("  Base URL: %s\n", cfg.BaseURL))
	sb.WriteString(fmt.Sprintf("  Concurrent Users: %d\n", cfg.Users))
	sb.WriteString(fmt.Sprintf("  Duration: %d seconds\n", int(cfg.Duration.Seconds())))
	sb.WriteString(fmt.Sprintf("  Workload Type: %s\n", cfg.Workload))
	sb.WriteString(fmt.Sprintf("  Started at: %s\n", startedAt.Format(time.DateTime)))
	sb.WriteString(heavy + "\n")
	return sb.String()
}
