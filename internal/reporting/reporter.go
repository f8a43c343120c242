// -- internal/reporting/reporter.go --
package reporting

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/clickpilot/internal/workflow"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Reporter writes a run summary to an output.
type Reporter interface {
	// Write renders one run report.
	Write(report workflow.Report) error
	// Close releases the underlying output. Stdout is never closed.
	Close() error
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a reporter for format ("json" or "text") writing to
// outputPath, or stdout when the path is empty or "stdout".
func New(format, outputPath string) (Reporter, error) {
	switch format {
	case "json", "text":
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	var writer io.WriteCloser
	if outputPath == "" || outputPath == "stdout" {
		writer = &nopWriteCloser{os.Stdout}
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}

	return NewWriter(format, writer)
}

// NewWriter creates a reporter over an already open writer, which the
// reporter then owns.
func NewWriter(format string, w io.WriteCloser) (Reporter, error) {
	switch format {
	case "json":
		return &jsonReporter{w: w}, nil
	case "text":
		return &textReporter{w: w}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

type jsonReporter struct {
	w io.WriteCloser
}

type jsonReport struct {
	workflow.Report
	DurationMs int64  `json:"duration_ms"`
	Outcome    string `json:"outcome"`
}

func (r *jsonReporter) Write(report workflow.Report) error {
	data, err := json.MarshalIndent(jsonReport{
		Report:     report,
		DurationMs: report.Duration().Milliseconds(),
		Outcome:    Outcome(report),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	data = append(data, '\n')
	_, err = r.w.Write(data)
	return err
}

func (r *jsonReporter) Close() error { return r.w.Close() }

type textReporter struct {
	w io.WriteCloser
}

func (r *textReporter) Write(report workflow.Report) error {
	tw := tabwriter.NewWriter(r.w, 0, 4, 2, ' ', 0)
	rows := [][2]string{
		{"Outcome", Outcome(report)},
		{"Duration", report.Duration().Round(time.Millisecond).String()},
		{"Steps", fmt.Sprint(report.Steps)},
		{"Clients started", fmt.Sprint(report.ClientsStarted)},
		{"Clients skipped", fmt.Sprint(report.ClientsSkipped)},
		{"Validations", fmt.Sprint(report.Validations)},
	}
	if report.AbortReason != "" {
		rows = append(rows, [2]string{"Abort reason", report.AbortReason})
	}
	if report.Error != "" {
		rows = append(rows, [2]string{"Error", report.Error})
	}
	for _, row := range rows {
		fmt.Fprintf(tw, "%s:\t%s\n", row[0], row[1])
	}
	for _, s := range report.Skipped {
		fmt.Fprintf(tw, "Skipped row %d:\t%s\n", s.Row, strings.TrimSpace(s.Reason))
	}
	return tw.Flush()
}

func (r *textReporter) Close() error { return r.w.Close() }

// Outcome classifies a report as "completed", "aborted" or "failed".
func Outcome(report workflow.Report) string {
	switch {
	case report.Aborted:
		return "aborted"
	case report.Error != "":
		return "failed"
	default:
		return "completed"
	}
}
