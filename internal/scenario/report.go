package scenario

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/collector"
)

// Report output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Counts returns how many results passed and failed.
func Counts(results []*Result) (passed, failed int) {
	for _, r := range results {
		if r.Passed() {
			passed++
		} else {
			failed++
		}
	}
	return passed, failed
}

// WriteReport renders results in the given format.
func WriteReport(w io.Writer, format string, results []*Result) error {
	switch format {
	case FormatText, "":
		return WriteText(w, results)
	case FormatJSON:
		return WriteJSON(w, results)
	default:
		return fmt.Errorf("unknown report format %q (want text or json)", format)
	}
}

// WriteText renders a human-readable report. Failed scenarios include the
// process summary.
func WriteText(w io.Writer, results []*Result) error {
	var b strings.Builder
	for _, r := range results {
		status := "PASS"
		if !r.Passed() {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "%s  %s (%s, %s/%s)", status, r.Name, r.RuntimeIdentifier, r.Platform, r.Runtime)
		if r.Kind != "" {
			fmt.Fprintf(&b, " [%s]", r.Kind)
		}
		fmt.Fprintf(&b, " %s\n", r.Duration.Round(time.Millisecond))

		if r.Err != nil {
			fmt.Fprintf(&b, "      error: %s\n", firstLine(r.Err.Error()))
		}
		if len(r.Expected) > 0 {
			fmt.Fprintf(&b, "      expected: %s\n", strings.Join(r.Expected, ", "))
		}
		if len(r.Missing) > 0 {
			fmt.Fprintf(&b, "      missing: %s\n", strings.Join(r.Missing, ", "))
		}
		if len(r.Received) > 0 {
			fmt.Fprintf(&b, "      received: %s\n", strings.Join(r.Received, ", "))
		}
		if !r.Passed() && r.Summary != "" {
			for _, line := range strings.Split(strings.TrimRight(r.Summary, "\n"), "\n") {
				fmt.Fprintf(&b, "      | %s\n", line)
			}
		}
	}

	passed, failed := Counts(results)
	fmt.Fprintf(&b, "\n%d scenarios, %d passed, %d failed\n", len(results), passed, failed)

	_, err := io.WriteString(w, b.String())
	return err
}

type jsonReport struct {
	Passed    int          `json:"passed"`
	Failed    int          `json:"failed"`
	Scenarios []jsonResult `json:"scenarios"`
}

type jsonResult struct {
	RunID             string          `json:"run_id"`
	Name              string          `json:"name"`
	Mode              string          `json:"mode"`
	Platform          string          `json:"platform,omitempty"`
	Runtime           string          `json:"runtime,omitempty"`
	RuntimeIdentifier string          `json:"runtime_identifier,omitempty"`
	Command           string          `json:"command,omitempty"`
	Passed            bool            `json:"passed"`
	Kind              string          `json:"kind,omitempty"`
	Error             string          `json:"error,omitempty"`
	PID               int             `json:"pid,omitempty"`
	ExitCode          *int            `json:"exit_code,omitempty"`
	TimedOut          bool            `json:"timed_out,omitempty"`
	Expected          []string        `json:"expected,omitempty"`
	Received          []string        `json:"received,omitempty"`
	Missing           []string        `json:"missing,omitempty"`
	Stats             collector.Stats `json:"stats"`
	DurationMS        int64           `json:"duration_ms"`
	Summary           string          `json:"summary,omitempty"`
}

// WriteJSON renders results as an indented JSON document.
func WriteJSON(w io.Writer, results []*Result) error {
	passed, failed := Counts(results)
	report := jsonReport{
		Passed:    passed,
		Failed:    failed,
		Scenarios: make([]jsonResult, 0, len(results)),
	}
	for _, r := range results {
		entry := jsonResult{
			RunID:             r.RunID,
			Name:              r.Name,
			Mode:              string(r.Mode),
			Platform:          string(r.Platform),
			Runtime:           string(r.Runtime),
			RuntimeIdentifier: r.RuntimeIdentifier,
			Command:           r.Command,
			Passed:            r.Passed(),
			Kind:              string(r.Kind),
			PID:               r.PID,
			ExitCode:          r.ExitCode,
			TimedOut:          r.TimedOut,
			Expected:          r.Expected,
			Received:          r.Received,
			Missing:           r.Missing,
			Stats:             r.Stats,
			DurationMS:        r.Duration.Milliseconds(),
			Summary:           r.Summary,
		}
		if r.Err != nil {
			entry.Error = r.Err.Error()
		}
		report.Scenarios = append(report.Scenarios, entry)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
