package validation

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// ErrorType identifies a category of structural violation.
// The set is closed; reports always enumerate every member.
type ErrorType int

const (
	// AnnotationEmpty means the Annotation message declares no fields.
	AnnotationEmpty ErrorType = iota
	// AnnotationComplex means the Annotation message contains repeated fields,
	// message fields, oneofs, nested types or extensions.
	AnnotationComplex
	// AnnotationType means an Annotation field is not an enum.
	AnnotationType

	// FidelityParamsEmpty means the FidelityParams message declares no fields.
	FidelityParamsEmpty
	// FidelityParamsComplex mirrors AnnotationComplex for FidelityParams.
	FidelityParamsComplex
	// FidelityParamsType means a FidelityParams field is not float, int32 or enum.
	FidelityParamsType

	// DevFidelityParametersEmpty means the package ships no dev fidelity parameters.
	DevFidelityParametersEmpty
	// DevFidelityParametersParsing means a dev fidelity parameters file failed to parse.
	DevFidelityParametersParsing

	// SettingsParsing means the settings blob failed to parse.
	SettingsParsing

	// HistogramEmpty means the settings declare no histograms.
	HistogramEmpty

	// AggregationEmpty means the settings carry no aggregation strategy.
	AggregationEmpty
	// AggregationInstrumentationKey means max_instrumentation_keys is out of range.
	AggregationInstrumentationKey
	// AggregationAnnotations means annotation_enum_size does not match the Annotation message.
	AggregationAnnotations
)

var errorTypeNames = [...]string{
	AnnotationEmpty:               "ANNOTATION_EMPTY",
	AnnotationComplex:             "ANNOTATION_COMPLEX",
	AnnotationType:                "ANNOTATION_TYPE",
	FidelityParamsEmpty:           "FIDELITY_PARAMS_EMPTY",
	FidelityParamsComplex:         "FIDELITY_PARAMS_COMPLEX",
	FidelityParamsType:            "FIDELITY_PARAMS_TYPE",
	DevFidelityParametersEmpty:    "DEV_FIDELITY_PARAMETERS_EMPTY",
	DevFidelityParametersParsing:  "DEV_FIDELITY_PARAMETERS_PARSING",
	SettingsParsing:               "SETTINGS_PARSING",
	HistogramEmpty:                "HISTOGRAM_EMPTY",
	AggregationEmpty:              "AGGREGATION_EMPTY",
	AggregationInstrumentationKey: "AGGREGATION_INSTRUMENTATION_KEY",
	AggregationAnnotations:        "AGGREGATION_ANNOTATIONS",
}

// String returns the report name of the error type, e.g. "ANNOTATION_EMPTY".
func (t ErrorType) String() string {
	if t < 0 || int(t) >= len(errorTypeNames) {
		return fmt.Sprintf("ErrorType(%d)", int(t))
	}
	return errorTypeNames[t]
}

// MarshalText implements encoding.TextMarshaler so reports serialize names.
func (t ErrorType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// AllErrorTypes returns every error type in declaration order.
func AllErrorTypes() []ErrorType {
	types := make([]ErrorType, len(errorTypeNames))
	for i := range errorTypeNames {
		types[i] = ErrorType(i)
	}
	return types
}

// Group is a family of error types produced by one check.
type Group int

const (
	GroupAnnotation Group = iota
	GroupFidelityParams
	GroupDevFidelityParameters
	GroupSettings
	GroupAggregation
)

var groupNames = [...]string{
	GroupAnnotation:            "annotation",
	GroupFidelityParams:        "fidelity_params",
	GroupDevFidelityParameters: "dev_fidelity_parameters",
	GroupSettings:              "settings",
	GroupAggregation:           "aggregation",
}

func (g Group) String() string {
	if g < 0 || int(g) >= len(groupNames) {
		return fmt.Sprintf("Group(%d)", int(g))
	}
	return groupNames[g]
}

// MarshalText implements encoding.TextMarshaler.
func (g Group) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// Group returns the family t belongs to.
func (t ErrorType) Group() Group {
	switch t {
	case AnnotationEmpty, AnnotationComplex, AnnotationType:
		return GroupAnnotation
	case FidelityParamsEmpty, FidelityParamsComplex, FidelityParamsType:
		return GroupFidelityParams
	case DevFidelityParametersEmpty, DevFidelityParametersParsing:
		return GroupDevFidelityParameters
	case SettingsParsing, HistogramEmpty:
		return GroupSettings
	default:
		return GroupAggregation
	}
}

// IsAnnotation reports whether t belongs to the annotation error group.
func (t ErrorType) IsAnnotation() bool {
	return t.Group() == GroupAnnotation
}

// IsFidelityParams reports whether t belongs to the fidelity params error group.
func (t ErrorType) IsFidelityParams() bool {
	return t.Group() == GroupFidelityParams
}

// Collector accumulates validation errors keyed by ErrorType.
// Messages keep insertion order per type. Records are never removed.
// It is safe for concurrent use.
type Collector struct {
	mu     sync.RWMutex
	errors map[ErrorType][]string
	total  int
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{
		errors: make(map[ErrorType][]string),
	}
}

// AddError records a violation of the given type.
func (c *Collector) AddError(t ErrorType, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors[t] = append(c.errors[t], message)
	c.total++
}

// AddErrorf records a violation with a formatted message.
func (c *Collector) AddErrorf(t ErrorType, format string, args ...interface{}) {
	c.AddError(t, fmt.Sprintf(format, args...))
}

// ErrorCount returns the number of records across all types.
func (c *Collector) ErrorCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.total
}

// ErrorCountOf returns the number of records of one type.
func (c *Collector) ErrorCountOf(t ErrorType) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.errors[t])
}

// Errors returns a copy of the messages recorded for t.
func (c *Collector) Errors(t ErrorType) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	msgs := c.errors[t]
	if len(msgs) == 0 {
		return nil
	}
	out := make([]string, len(msgs))
	copy(out, msgs)
	return out
}

// HasAnnotationErrors reports whether any annotation-group error was recorded.
// Settings validation is gated on this being false.
func (c *Collector) HasAnnotationErrors() bool {
	return c.HasGroupErrors(GroupAnnotation)
}

// HasFidelityParamsErrors reports whether any fidelity-params-group error was
// recorded. Dev fidelity parameter validation is gated on this being false.
func (c *Collector) HasFidelityParamsErrors() bool {
	return c.HasGroupErrors(GroupFidelityParams)
}

// HasGroupErrors reports whether any error of group g was recorded.
func (c *Collector) HasGroupErrors(g Group) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for t, msgs := range c.errors {
		if t.Group() == g && len(msgs) > 0 {
			return true
		}
	}
	return false
}

// Status is the report line for a single error type.
type Status struct {
	Type     ErrorType `json:"type" yaml:"type"`
	Group    Group     `json:"group" yaml:"group"`
	Count    int       `json:"count" yaml:"count"`
	Messages []string  `json:"messages,omitempty" yaml:"messages,omitempty"`
}

// OK reports whether no errors were recorded for the type.
func (s Status) OK() bool {
	return s.Count == 0
}

// Summary returns one Status per error type, including the ones without
// errors, in declaration order.
func (c *Collector) Summary() []Status {
	types := AllErrorTypes()
	summary := make([]Status, 0, len(types))
	for _, t := range types {
		msgs := c.Errors(t)
		summary = append(summary, Status{Type: t, Group: t.Group(), Count: len(msgs), Messages: msgs})
	}
	return summary
}

// StatusColors decorates the verdicts of a checklist. Nil functions leave the
// text unchanged.
type StatusColors struct {
	OK     func(string) string
	Failed func(string) string
}

func (sc StatusColors) ok(s string) string {
	if sc.OK == nil {
		return s
	}
	return sc.OK(s)
}

func (sc StatusColors) failed(s string) string {
	if sc.Failed == nil {
		return s
	}
	return sc.Failed(s)
}

// WriteStatus writes the per-type checklist:
//
//	ANNOTATION_EMPTY : OK
//	ANNOTATION_TYPE : 1 ERRORS
//		[field level is not an enum]
func (c *Collector) WriteStatus(w io.Writer) error {
	return c.WriteStatusColored(w, StatusColors{})
}

// WriteStatusColored writes the checklist of WriteStatus with colored
// verdicts.
func (c *Collector) WriteStatusColored(w io.Writer, colors StatusColors) error {
	var b strings.Builder
	for _, s := range c.Summary() {
		b.WriteString(s.Type.String())
		b.WriteString(" : ")
		if s.OK() {
			b.WriteString(colors.ok("OK"))
		} else {
			b.WriteString(colors.failed(fmt.Sprintf("%d ERRORS", s.Count)))
			fmt.Fprintf(&b, "\n\t[%s]", strings.Join(s.Messages, ", "))
		}
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}
