package validation

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestErrorType_String(t *testing.T) {
	tests := []struct {
		typ  ErrorType
		want string
	}{
		{AnnotationEmpty, "ANNOTATION_EMPTY"},
		{FidelityParamsType, "FIDELITY_PARAMS_TYPE"},
		{DevFidelityParametersParsing, "DEV_FIDELITY_PARAMETERS_PARSING"},
		{AggregationAnnotations, "AGGREGATION_ANNOTATIONS"},
		{ErrorType(99), "ErrorType(99)"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.typ.String(); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestErrorType_Group(t *testing.T) {
	want := map[ErrorType]Group{
		AnnotationEmpty:               GroupAnnotation,
		AnnotationComplex:             GroupAnnotation,
		AnnotationType:                GroupAnnotation,
		FidelityParamsEmpty:           GroupFidelityParams,
		FidelityParamsComplex:         GroupFidelityParams,
		FidelityParamsType:            GroupFidelityParams,
		DevFidelityParametersEmpty:    GroupDevFidelityParameters,
		DevFidelityParametersParsing:  GroupDevFidelityParameters,
		SettingsParsing:               GroupSettings,
		HistogramEmpty:                GroupSettings,
		AggregationEmpty:              GroupAggregation,
		AggregationInstrumentationKey: GroupAggregation,
		AggregationAnnotations:        GroupAggregation,
	}

	for _, typ := range AllErrorTypes() {
		if got := typ.Group(); got != want[typ] {
			t.Errorf("%s: expected group %s, got %s", typ, want[typ], got)
		}
		if typ.IsAnnotation() != (want[typ] == GroupAnnotation) {
			t.Errorf("%s: IsAnnotation disagrees with Group", typ)
		}
		if typ.IsFidelityParams() != (want[typ] == GroupFidelityParams) {
			t.Errorf("%s: IsFidelityParams disagrees with Group", typ)
		}
	}
	if GroupAggregation.String() != "aggregation" {
		t.Errorf("expected aggregation, got %s", GroupAggregation)
	}
}

func TestCollector_HasGroupErrors(t *testing.T) {
	c := NewCollector()
	c.AddError(HistogramEmpty, "settings declare no histograms")

	if !c.HasGroupErrors(GroupSettings) {
		t.Error("expected settings group errors")
	}
	for _, g := range []Group{GroupAnnotation, GroupFidelityParams, GroupDevFidelityParameters, GroupAggregation} {
		if c.HasGroupErrors(g) {
			t.Errorf("did not expect %s group errors", g)
		}
	}
	if c.HasAnnotationErrors() || c.HasFidelityParamsErrors() {
		t.Error("did not expect annotation or fidelity params errors")
	}
}

func TestAllErrorTypes(t *testing.T) {
	types := AllErrorTypes()
	if len(types) != 13 {
		t.Fatalf("expected 13 error types, got %d", len(types))
	}
	if types[0] != AnnotationEmpty || types[len(types)-1] != AggregationAnnotations {
		t.Errorf("unexpected order: %v", types)
	}
}

func TestCollector_Counts(t *testing.T) {
	c := NewCollector()
	if c.ErrorCount() != 0 {
		t.Fatalf("expected empty collector, got %d", c.ErrorCount())
	}

	c.AddError(AnnotationType, "first")
	c.AddErrorf(AnnotationType, "second %d", 2)
	c.AddError(HistogramEmpty, "third")

	if c.ErrorCount() != 3 {
		t.Errorf("expected 3 errors, got %d", c.ErrorCount())
	}
	if c.ErrorCountOf(AnnotationType) != 2 {
		t.Errorf("expected 2 annotation type errors, got %d", c.ErrorCountOf(AnnotationType))
	}
	if diff := cmp.Diff([]string{"first", "second 2"}, c.Errors(AnnotationType)); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
	if c.Errors(SettingsParsing) != nil {
		t.Error("expected nil messages for an unused type")
	}
}

func TestCollector_ErrorsReturnsCopy(t *testing.T) {
	c := NewCollector()
	c.AddError(SettingsParsing, "original")

	msgs := c.Errors(SettingsParsing)
	msgs[0] = "changed"

	if got := c.Errors(SettingsParsing)[0]; got != "original" {
		t.Errorf("expected stored message to be unchanged, got %q", got)
	}
}

func TestCollector_GroupQueries(t *testing.T) {
	c := NewCollector()
	if c.HasAnnotationErrors() || c.HasFidelityParamsErrors() {
		t.Fatal("expected no group errors on empty collector")
	}

	c.AddError(SettingsParsing, "x")
	if c.HasAnnotationErrors() || c.HasFidelityParamsErrors() {
		t.Error("settings errors must not count as annotation or fidelity errors")
	}

	c.AddError(AnnotationComplex, "x")
	if !c.HasAnnotationErrors() {
		t.Error("expected annotation errors")
	}
	if c.HasFidelityParamsErrors() {
		t.Error("expected no fidelity params errors")
	}

	c.AddError(FidelityParamsEmpty, "x")
	if !c.HasFidelityParamsErrors() {
		t.Error("expected fidelity params errors")
	}
}

func TestCollector_Summary(t *testing.T) {
	c := NewCollector()
	c.AddError(AggregationEmpty, "no strategy")

	summary := c.Summary()
	if len(summary) != len(AllErrorTypes()) {
		t.Fatalf("expected a status per type, got %d", len(summary))
	}
	for _, s := range summary {
		if s.Type == AggregationEmpty {
			if s.OK() || s.Count != 1 {
				t.Errorf("expected 1 AGGREGATION_EMPTY error, got %+v", s)
			}
			continue
		}
		if !s.OK() {
			t.Errorf("expected %s to be OK, got %+v", s.Type, s)
		}
	}
}

func TestCollector_WriteStatus(t *testing.T) {
	c := NewCollector()
	c.AddError(AnnotationType, "Annotation.level has type int32, expected enum")
	c.AddError(AnnotationType, "Annotation.scale has type float, expected enum")

	var buf bytes.Buffer
	if err := c.WriteStatus(&buf); err != nil {
		t.Fatalf("WriteStatus failed: %v", err)
	}

	want := "ANNOTATION_EMPTY : OK\n" +
		"ANNOTATION_COMPLEX : OK\n" +
		"ANNOTATION_TYPE : 2 ERRORS\n" +
		"\t[Annotation.level has type int32, expected enum, Annotation.scale has type float, expected enum]\n" +
		"FIDELITY_PARAMS_EMPTY : OK\n" +
		"FIDELITY_PARAMS_COMPLEX : OK\n" +
		"FIDELITY_PARAMS_TYPE : OK\n" +
		"DEV_FIDELITY_PARAMETERS_EMPTY : OK\n" +
		"DEV_FIDELITY_PARAMETERS_PARSING : OK\n" +
		"SETTINGS_PARSING : OK\n" +
		"HISTOGRAM_EMPTY : OK\n" +
		"AGGREGATION_EMPTY : OK\n" +
		"AGGREGATION_INSTRUMENTATION_KEY : OK\n" +
		"AGGREGATION_ANNOTATIONS : OK\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("status mismatch (-want +got):\n%s", diff)
	}
}

func TestCollector_WriteStatusColored(t *testing.T) {
	c := NewCollector()
	c.AddError(AnnotationEmpty, "Annotation message has no fields")

	var buf bytes.Buffer
	err := c.WriteStatusColored(&buf, StatusColors{
		OK:     func(s string) string { return "<" + s + ">" },
		Failed: func(s string) string { return "!" + s + "!" },
	})
	if err != nil {
		t.Fatalf("WriteStatusColored failed: %v", err)
	}

	want := "ANNOTATION_EMPTY : !1 ERRORS!\n\t[Annotation message has no fields]\nANNOTATION_COMPLEX : <OK>\n"
	if got := buf.String(); !strings.HasPrefix(got, want) {
		t.Errorf("expected prefix %q, got %q", want, got)
	}
}

func TestCollector_Concurrent(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				c.AddError(DevFidelityParametersParsing, "bad buffer")
				_ = c.HasAnnotationErrors()
			}
		}()
	}
	wg.Wait()

	if c.ErrorCount() != 400 {
		t.Errorf("expected 400 errors, got %d", c.ErrorCount())
	}
}
