package tuningfork

import (
	"fmt"

	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Submission is the aggregation submission method.
type Submission int32

const (
	// SubmissionUnset means the method field is absent.
	SubmissionUnset Submission = 0
	// SubmissionTimeBased submits histograms after a time interval.
	SubmissionTimeBased Submission = 1
	// SubmissionTickBased submits histograms after a number of ticks.
	SubmissionTickBased Submission = 2
)

// String returns the protobuf enum value name.
func (s Submission) String() string {
	if v := submissionEnumDesc.Values().ByNumber(protoreflect.EnumNumber(s)); v != nil {
		return string(v.Name())
	}
	if s == SubmissionUnset {
		return "UNSET"
	}
	return fmt.Sprintf("Submission(%d)", int32(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s Submission) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Settings is the decoded form of tuningfork_settings.bin.
type Settings struct {
	// Aggregation is nil when aggregation_strategy is absent.
	Aggregation *AggregationStrategy `json:"aggregation_strategy,omitempty" yaml:"aggregation_strategy,omitempty"`
	// Histograms lists the histogram definitions in wire order.
	Histograms []Histogram `json:"histograms,omitempty" yaml:"histograms,omitempty"`

	BaseURI                           string `json:"base_uri,omitempty" yaml:"base_uri,omitempty"`
	APIKey                            string `json:"-" yaml:"-"`
	DefaultFidelityParametersFilename string `json:"default_fidelity_parameters_filename,omitempty" yaml:"default_fidelity_parameters_filename,omitempty"`
	InitialRequestTimeoutMs           int32  `json:"initial_request_timeout_ms,omitempty" yaml:"initial_request_timeout_ms,omitempty"`
	UltimateRequestTimeoutMs          int32  `json:"ultimate_request_timeout_ms,omitempty" yaml:"ultimate_request_timeout_ms,omitempty"`
}

// AggregationStrategy describes how histograms are keyed and submitted.
type AggregationStrategy struct {
	Method                 Submission `json:"method,omitempty" yaml:"method,omitempty"`
	IntervalMsOrCount      int32      `json:"intervalms_or_count,omitempty" yaml:"intervalms_or_count,omitempty"`
	MaxInstrumentationKeys int32      `json:"max_instrumentation_keys,omitempty" yaml:"max_instrumentation_keys,omitempty"`
	// AnnotationEnumSize holds, per Annotation field, the size of its enum.
	AnnotationEnumSize []int32 `json:"annotation_enum_size,omitempty" yaml:"annotation_enum_size,omitempty"`
}

// Empty reports whether the strategy is absent or carries no values.
func (a *AggregationStrategy) Empty() bool {
	return a == nil ||
		(a.Method == SubmissionUnset &&
			a.IntervalMsOrCount == 0 &&
			a.MaxInstrumentationKeys == 0 &&
			len(a.AnnotationEnumSize) == 0)
}

// Histogram is the bucketing definition for one instrument key.
type Histogram struct {
	InstrumentKey int32   `json:"instrument_key" yaml:"instrument_key"`
	BucketMin     float32 `json:"bucket_min" yaml:"bucket_min"`
	BucketMax     float32 `json:"bucket_max" yaml:"bucket_max"`
	NBuckets      int32   `json:"n_buckets" yaml:"n_buckets"`
}

// InstrumentKeys returns the distinct instrument keys referenced by the
// histograms, in first-seen order.
func (s *Settings) InstrumentKeys() []int32 {
	seen := make(map[int32]bool, len(s.Histograms))
	keys := make([]int32, 0, len(s.Histograms))
	for _, h := range s.Histograms {
		if seen[h.InstrumentKey] {
			continue
		}
		seen[h.InstrumentKey] = true
		keys = append(keys, h.InstrumentKey)
	}
	return keys
}

// Redacted returns a copy with the API key masked, for logs and reports.
func (s *Settings) Redacted() *Settings {
	c := *s
	c.APIKey = MaskSecret(s.APIKey)
	return &c
}

// MaskSecret keeps the first and last four characters of a secret.
// Short secrets are fully masked.
func MaskSecret(secret string) string {
	switch {
	case secret == "":
		return ""
	case len(secret) <= 12:
		return "***"
	default:
		return secret[:4] + "..." + secret[len(secret)-4:]
	}
}

// ParseSettings decodes a serialized Settings message.
func ParseSettings(data []byte) (*Settings, error) {
	msg := dynamicpb.NewMessage(settingsDesc)
	if err := proto.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	return settingsFromMessage(msg), nil
}

// Marshal serializes the settings deterministically.
func (s *Settings) Marshal() ([]byte, error) {
	return proto.MarshalOptions{Deterministic: true}.Marshal(s.message())
}

// String returns the settings in protobuf text format.
func (s *Settings) String() string {
	return prototext.MarshalOptions{Multiline: true}.Format(s.message())
}

func settingsFromMessage(msg protoreflect.Message) *Settings {
	s := &Settings{
		BaseURI:                           msg.Get(settingsFields.ByName("base_uri")).String(),
		APIKey:                            msg.Get(settingsFields.ByName("api_key")).String(),
		DefaultFidelityParametersFilename: msg.Get(settingsFields.ByName("default_fidelity_parameters_filename")).String(),
		InitialRequestTimeoutMs:           int32(msg.Get(settingsFields.ByName("initial_request_timeout_ms")).Int()),
		UltimateRequestTimeoutMs:          int32(msg.Get(settingsFields.ByName("ultimate_request_timeout_ms")).Int()),
	}

	if fd := settingsFields.ByName("aggregation_strategy"); msg.Has(fd) {
		agg := msg.Get(fd).Message()
		s.Aggregation = &AggregationStrategy{
			Method:                 Submission(agg.Get(aggregationFields.ByName("method")).Enum()),
			IntervalMsOrCount:      int32(agg.Get(aggregationFields.ByName("intervalms_or_count")).Int()),
			MaxInstrumentationKeys: int32(agg.Get(aggregationFields.ByName("max_instrumentation_keys")).Int()),
		}
		sizes := agg.Get(aggregationFields.ByName("annotation_enum_size")).List()
		for i := 0; i < sizes.Len(); i++ {
			s.Aggregation.AnnotationEnumSize = append(s.Aggregation.AnnotationEnumSize, int32(sizes.Get(i).Int()))
		}
	}

	hists := msg.Get(settingsFields.ByName("histograms")).List()
	for i := 0; i < hists.Len(); i++ {
		h := hists.Get(i).Message()
		s.Histograms = append(s.Histograms, Histogram{
			InstrumentKey: int32(h.Get(histogramFields.ByName("instrument_key")).Int()),
			BucketMin:     float32(h.Get(histogramFields.ByName("bucket_min")).Float()),
			BucketMax:     float32(h.Get(histogramFields.ByName("bucket_max")).Float()),
			NBuckets:      int32(h.Get(histogramFields.ByName("n_buckets")).Int()),
		})
	}

	return s
}

func (s *Settings) message() *dynamicpb.Message {
	msg := dynamicpb.NewMessage(settingsDesc)

	setString(msg, settingsFields.ByName("base_uri"), s.BaseURI)
	setString(msg, settingsFields.ByName("api_key"), s.APIKey)
	setString(msg, settingsFields.ByName("default_fidelity_parameters_filename"), s.DefaultFidelityParametersFilename)
	setInt32(msg, settingsFields.ByName("initial_request_timeout_ms"), s.InitialRequestTimeoutMs)
	setInt32(msg, settingsFields.ByName("ultimate_request_timeout_ms"), s.UltimateRequestTimeoutMs)

	// A non-nil but empty strategy is still written so that presence survives.
	if s.Aggregation != nil {
		agg := dynamicpb.NewMessage(aggregationDesc)
		if s.Aggregation.Method != SubmissionUnset {
			agg.Set(aggregationFields.ByName("method"), protoreflect.ValueOfEnum(protoreflect.EnumNumber(s.Aggregation.Method)))
		}
		setInt32(agg, aggregationFields.ByName("intervalms_or_count"), s.Aggregation.IntervalMsOrCount)
		setInt32(agg, aggregationFields.ByName("max_instrumentation_keys"), s.Aggregation.MaxInstrumentationKeys)
		if len(s.Aggregation.AnnotationEnumSize) > 0 {
			list := agg.Mutable(aggregationFields.ByName("annotation_enum_size")).List()
			for _, n := range s.Aggregation.AnnotationEnumSize {
				list.Append(protoreflect.ValueOfInt32(n))
			}
		}
		msg.Set(settingsFields.ByName("aggregation_strategy"), protoreflect.ValueOfMessage(agg))
	}

	if len(s.Histograms) > 0 {
		list := msg.Mutable(settingsFields.ByName("histograms")).List()
		for _, h := range s.Histograms {
			hm := dynamicpb.NewMessage(histogramDesc)
			hm.Set(histogramFields.ByName("instrument_key"), protoreflect.ValueOfInt32(h.InstrumentKey))
			hm.Set(histogramFields.ByName("bucket_min"), protoreflect.ValueOfFloat32(h.BucketMin))
			hm.Set(histogramFields.ByName("bucket_max"), protoreflect.ValueOfFloat32(h.BucketMax))
			hm.Set(histogramFields.ByName("n_buckets"), protoreflect.ValueOfInt32(h.NBuckets))
			list.Append(protoreflect.ValueOfMessage(hm))
		}
	}

	return msg
}

func setString(msg protoreflect.Message, fd protoreflect.FieldDescriptor, v string) {
	if v != "" {
		msg.Set(fd, protoreflect.ValueOfString(v))
	}
}

func setInt32(msg protoreflect.Message, fd protoreflect.FieldDescriptor, v int32) {
	if v != 0 {
		msg.Set(fd, protoreflect.ValueOfInt32(v))
	}
}
