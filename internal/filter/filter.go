package filter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/jmespath/go-jmespath"
)

const (
	// QueryShellTimeout is the maximum time allowed for query shell command execution
	QueryShellTimeout = 30 * time.Second
)

var (
	// Shell command pattern: $(command)
	shellPattern = regexp.MustCompile(`^\$\((.+)\)$`)
)

// Apply applies filter and query expressions to a JSON document and returns
// indented JSON, or the raw output of a shell query.
// Filter narrows results (e.g., endpoints[?p95_seconds > `0.5`])
// Query transforms/selects fields (e.g., endpoints[].endpoint)
// If query starts with $(...), it's executed as a shell command with the document piped to stdin
func Apply(body string, filter string, query string) (string, error) {
	if filter == "" && query == "" {
		return body, nil
	}

	var data any
	if err := json.Unmarshal([]byte(body), &data); err != nil {
		return "", fmt.Errorf("invalid JSON: %w", err)
	}

	if IsShellCommand(query) {
		if filter != "" {
			filtered, err := Search(data, filter)
			if err != nil {
				return "", fmt.Errorf("failed to apply filter: %w", err)
			}
			out, err := marshal(filtered)
			if err != nil {
				return "", err
			}
			body = out
		}
		command := shellPattern.FindStringSubmatch(query)[1]
		queried, err := executeShellCommand(body, command)
		if err != nil {
			return "", fmt.Errorf("failed to execute query shell command: %w", err)
		}
		return queried, nil
	}

	result, err := Select(data, filter, query)
	if err != nil {
		return "", err
	}
	return marshal(result)
}

// Select applies filter then query as JMESPath expressions to decoded data.
// Empty expressions are skipped.
func Select(data any, filter, query string) (any, error) {
	result := data
	if filter != "" {
		filtered, err := Search(result, filter)
		if err != nil {
			return nil, fmt.Errorf("failed to apply filter: %w", err)
		}
		result = filtered
	}
	if query != "" {
		queried, err := Search(result, query)
		if err != nil {
			return nil, fmt.Errorf("failed to apply query: %w", err)
		}
		result = queried
	}
	return result, nil
}

// Search evaluates one JMESPath expression against decoded JSON data
func Search(data any, expression string) (any, error) {
	jp, err := jmespath.Compile(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid JMESPath expression '%s': %w", expression, err)
	}

	result, err := jp.Search(data)
	if err != nil {
		return nil, fmt.Errorf("JMESPath search failed: %w", err)
	}
	return result, nil
}

// Validate checks filter and query syntax without evaluating them
func Validate(filter, query string) error {
	if filter != "" && !IsValidJMESPath(filter) {
		return fmt.Errorf("invalid filter expression '%s'", filter)
	}
	if query != "" && !IsShellCommand(query) && !IsValidJMESPath(query) {
		return fmt.Errorf("invalid query expression '%s'", query)
	}
	return nil
}

func marshal(result any) (string, error) {
	if result == nil {
		return "null", nil
	}
	output, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}
	return string(output), nil
}

// executeShellCommand executes a shell command with the body piped to stdin
func executeShellCommand(body string, command string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), QueryShellTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Stdin = strings.NewReader(body)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errMsg := err.Error()
		if stderr.Len() > 0 {
			errMsg = strings.TrimSpace(stderr.String())
		}
		return "", fmt.Errorf("command '%s' failed: %s", command, errMsg)
	}

	return strings.TrimSpace(stdout.String()), nil
}

// IsValidJMESPath checks if an expression is valid JMESPath syntax
func IsValidJMESPath(expression string) bool {
	_, err := jmespath.Compile(expression)
	return err == nil
}

// IsShellCommand checks if a query is a shell command (starts with $(...))
func IsShellCommand(query string) bool {
	return shellPattern.MatchString(query)
}
