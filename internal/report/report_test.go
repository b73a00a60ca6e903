package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/tfvalidate/internal/orchestrator"
	"github.com/ShayCichocki/tfvalidate/internal/tuningfork"
	"github.com/ShayCichocki/tfvalidate/internal/validation"
)

func validResult() *orchestrator.Result {
	return &orchestrator.Result{
		RunID:     "6f1c2d9e-0000-4000-8000-000000000001",
		Archive:   "/tmp/build/game.apk",
		Errors:    validation.NewCollector(),
		EnumSizes: []int{4, 8},
		Settings: &tuningfork.Settings{
			APIKey:     "AIzaSyExampleExampleKey",
			Histograms: []tuningfork.Histogram{{InstrumentKey: 0, BucketMin: 10, BucketMax: 40, NBuckets: 30}},
			Aggregation: &tuningfork.AggregationStrategy{
				Method:                 tuningfork.SubmissionTimeBased,
				MaxInstrumentationKeys: 1,
				AnnotationEnumSize:     []int32{4, 8},
			},
		},
		StartedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Duration:  1500 * time.Millisecond,
	}
}

func invalidResult() *orchestrator.Result {
	r := validResult()
	r.Settings = nil
	r.Errors.AddError(validation.AnnotationType, "Annotation.level has type int32, expected enum")
	r.Skipped = []orchestrator.Stage{orchestrator.StageSettings}
	return r
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatText, false},
		{"TEXT", FormatText, false},
		{"json", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestWriter_TextValid(t *testing.T) {
	var buf bytes.Buffer
	if err := NewWriter(&buf, FormatText, false).Write(validResult()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if buf.String() != "Apk game.apk is valid\n" {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestWriter_TextInvalid(t *testing.T) {
	var buf bytes.Buffer
	r := invalidResult()
	if err := NewWriter(&buf, FormatText, false).Write(r); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	out := buf.String()

	var status bytes.Buffer
	if err := r.Errors.WriteStatus(&status); err != nil {
		t.Fatalf("WriteStatus failed: %v", err)
	}
	if !strings.HasPrefix(out, status.String()) {
		t.Errorf("expected the collector checklist, got:\n%s", out)
	}

	if !strings.HasPrefix(out, "ANNOTATION_EMPTY : OK\nANNOTATION_COMPLEX : OK\nANNOTATION_TYPE : 1 ERRORS\n\t[Annotation.level has type int32, expected enum]\n") {
		t.Errorf("unexpected status dump:\n%s", out)
	}
	if !strings.Contains(out, "AGGREGATION_ANNOTATIONS : OK\n") {
		t.Errorf("expected every type listed:\n%s", out)
	}
	if !strings.Contains(out, "settings checks skipped") {
		t.Errorf("expected skipped stage note:\n%s", out)
	}
	if strings.Contains(out, "is valid") {
		t.Errorf("did not expect valid line:\n%s", out)
	}
}

func TestWriter_TextColor(t *testing.T) {
	var plain, colored bytes.Buffer
	if err := NewWriter(&plain, FormatText, false).Write(invalidResult()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := NewWriter(&colored, FormatText, true).Write(invalidResult()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if strings.Contains(plain.String(), "\x1b[") {
		t.Error("expected no escape codes without color")
	}
	if !strings.Contains(colored.String(), "\x1b[") {
		t.Error("expected escape codes with color")
	}
}

func TestWriter_TextDuplicates(t *testing.T) {
	r := validResult()
	r.Duplicates = []string{"assets/tuningfork/dev_tuningfork.proto"}

	var buf bytes.Buffer
	if err := NewWriter(&buf, FormatText, false).Write(r); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !strings.Contains(buf.String(), "duplicate entry assets/tuningfork/dev_tuningfork.proto") {
		t.Errorf("expected duplicate warning, got %q", buf.String())
	}
}

func TestWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := NewWriter(&buf, FormatJSON, true).Write(invalidResult()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	var got struct {
		RunID      string   `json:"run_id"`
		Valid      bool     `json:"valid"`
		ErrorCount int      `json:"error_count"`
		Skipped    []string `json:"skipped"`
		Duration   string   `json:"duration"`
		Errors     []struct {
			Type     string   `json:"type"`
			Group    string   `json:"group"`
			Count    int      `json:"count"`
			Messages []string `json:"messages"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("expected valid JSON: %v\n%s", err, buf.String())
	}

	if got.Valid || got.ErrorCount != 1 {
		t.Errorf("expected 1 error and invalid, got valid=%v count=%d", got.Valid, got.ErrorCount)
	}
	if len(got.Errors) != len(validation.AllErrorTypes()) {
		t.Fatalf("expected every type, got %d", len(got.Errors))
	}
	if got.Errors[2].Type != "ANNOTATION_TYPE" || got.Errors[2].Count != 1 {
		t.Errorf("unexpected ANNOTATION_TYPE status %+v", got.Errors[2])
	}
	if got.Errors[2].Group != "annotation" || got.Errors[12].Group != "aggregation" {
		t.Errorf("expected annotation and aggregation groups, got %q and %q", got.Errors[2].Group, got.Errors[12].Group)
	}
	if got.Duration != "1.5s" {
		t.Errorf("expected duration 1.5s, got %q", got.Duration)
	}
	if len(got.Skipped) != 1 || got.Skipped[0] != "settings" {
		t.Errorf("expected settings skipped, got %v", got.Skipped)
	}
	if strings.Contains(buf.String(), "\x1b[") {
		t.Error("expected no color codes in JSON")
	}
}

func TestWriter_YAMLMasksAPIKey(t *testing.T) {
	var buf bytes.Buffer
	if err := NewWriter(&buf, FormatYAML, false).Write(validResult()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	var got map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("expected valid YAML: %v\n%s", err, buf.String())
	}
	if got["valid"] != true {
		t.Errorf("expected valid: true, got %v", got["valid"])
	}
	if strings.Contains(buf.String(), "AIzaSyExampleExampleKey") {
		t.Error("expected API key to be left out")
	}
	if !strings.Contains(buf.String(), "method: TIME_BASED") {
		t.Errorf("expected submission method by name:\n%s", buf.String())
	}
}
