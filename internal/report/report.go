// Package report renders validation results as text, JSON or YAML.
package report

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/tfvalidate/internal/orchestrator"
	"github.com/ShayCichocki/tfvalidate/internal/tuningfork"
	"github.com/ShayCichocki/tfvalidate/internal/validation"
)

// Format is a report encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a format name. The empty string means text.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("invalid report format %q (valid: text, json, yaml)", name)
	}
}

// Report is the serializable form of an orchestrator.Result.
type Report struct {
	RunID      string               `json:"run_id" yaml:"run_id"`
	Archive    string               `json:"archive" yaml:"archive"`
	Valid      bool                 `json:"valid" yaml:"valid"`
	ErrorCount int                  `json:"error_count" yaml:"error_count"`
	Errors     []validation.Status  `json:"errors" yaml:"errors"`
	Skipped    []string             `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Duplicates []string             `json:"duplicates,omitempty" yaml:"duplicates,omitempty"`
	EnumSizes  []int                `json:"annotation_enum_sizes,omitempty" yaml:"annotation_enum_sizes,omitempty"`
	Settings   *tuningfork.Settings `json:"settings,omitempty" yaml:"settings,omitempty"`
	StartedAt  time.Time            `json:"started_at" yaml:"started_at"`
	Duration   string               `json:"duration" yaml:"duration"`
}

// FromResult builds a Report. The settings API key is masked.
func FromResult(r *orchestrator.Result) *Report {
	rep := &Report{
		RunID:      r.RunID,
		Archive:    r.Archive,
		Valid:      r.Valid(),
		ErrorCount: r.Errors.ErrorCount(),
		Errors:     r.Errors.Summary(),
		Duplicates: r.Duplicates,
		EnumSizes:  r.EnumSizes,
		StartedAt:  r.StartedAt,
		Duration:   r.Duration.String(),
	}
	for _, s := range r.Skipped {
		rep.Skipped = append(rep.Skipped, string(s))
	}
	if r.Settings != nil {
		rep.Settings = r.Settings.Redacted()
	}
	return rep
}

// Writer renders results in one format.
type Writer struct {
	out    io.Writer
	format Format
	ok     *color.Color
	bad    *color.Color
	warn   *color.Color
}

// NewWriter creates a Writer. Colors only apply to the text format.
func NewWriter(out io.Writer, format Format, useColor bool) *Writer {
	w := &Writer{
		out:    out,
		format: format,
		ok:     color.New(color.FgGreen),
		bad:    color.New(color.FgRed, color.Bold),
		warn:   color.New(color.FgYellow),
	}
	for _, c := range []*color.Color{w.ok, w.bad, w.warn} {
		if useColor {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return w
}

// Write renders one result.
func (w *Writer) Write(r *orchestrator.Result) error {
	switch w.format {
	case FormatJSON:
		data, err := json.MarshalIndent(FromResult(r), "", "  ")
		if err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}
		_, err = fmt.Fprintf(w.out, "%s\n", data)
		return err
	case FormatYAML:
		enc := yaml.NewEncoder(w.out)
		enc.SetIndent(2)
		if err := enc.Encode(FromResult(r)); err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}
		return enc.Close()
	default:
		return w.writeText(r)
	}
}

// writeText prints "Apk <name> is valid" or the per-type checklist.
func (w *Writer) writeText(r *orchestrator.Result) error {
	var b strings.Builder
	for _, d := range r.Duplicates {
		fmt.Fprintf(&b, "%s duplicate entry %s, the last one was used\n", w.warn.Sprint("!"), d)
	}

	if r.Valid() {
		fmt.Fprintf(&b, "%s\n", w.ok.Sprintf("Apk %s is valid", filepath.Base(r.Archive)))
		_, err := io.WriteString(w.out, b.String())
		return err
	}

	err := r.Errors.WriteStatusColored(&b, validation.StatusColors{
		OK:     func(s string) string { return w.ok.Sprint(s) },
		Failed: func(s string) string { return w.bad.Sprint(s) },
	})
	if err != nil {
		return err
	}
	for _, s := range r.Skipped {
		fmt.Fprintf(&b, "%s %s checks skipped\n", w.warn.Sprint("!"), s)
	}
	_, err = io.WriteString(w.out, b.String())
	return err
}
