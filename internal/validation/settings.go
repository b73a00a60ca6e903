package validation

import (
	"github.com/ShayCichocki/tfvalidate/internal/tuningfork"
)

// MaxInstrumentationKeys is the largest max_instrumentation_keys the runtime
// accepts.
const MaxInstrumentationKeys = 256

// ValidateSettings parses the settings blob and checks its histogram and
// aggregation sections against the Annotation enum cardinality vector.
// It returns the decoded settings, or nil if the blob did not parse.
func ValidateSettings(enumSizes []int, data []byte, errs *Collector) *tuningfork.Settings {
	settings, err := tuningfork.ParseSettings(data)
	if err != nil {
		errs.AddErrorf(SettingsParsing, "%v", err)
		return nil
	}

	if len(settings.Histograms) == 0 {
		errs.AddError(HistogramEmpty, "settings declare no histograms")
	}

	validateAggregation(settings, enumSizes, errs)
	return settings
}

func validateAggregation(settings *tuningfork.Settings, enumSizes []int, errs *Collector) {
	agg := settings.Aggregation
	if agg.Empty() {
		errs.AddError(AggregationEmpty, "settings declare no aggregation strategy")
		return
	}

	keys := agg.MaxInstrumentationKeys
	if keys < 1 || keys > MaxInstrumentationKeys {
		errs.AddErrorf(AggregationInstrumentationKey,
			"max_instrumentation_keys is %d, expected a value between 1 and %d", keys, MaxInstrumentationKeys)
	} else if distinct := len(settings.InstrumentKeys()); distinct > int(keys) {
		errs.AddErrorf(AggregationInstrumentationKey,
			"max_instrumentation_keys is %d but histograms reference %d distinct instrument keys", keys, distinct)
	}

	if !sameSizes(agg.AnnotationEnumSize, enumSizes) {
		errs.AddErrorf(AggregationAnnotations,
			"annotation_enum_size is %v, expected %v from the Annotation message", agg.AnnotationEnumSize, enumSizes)
	}
}

func sameSizes(declared []int32, expected []int) bool {
	if len(declared) != len(expected) {
		return false
	}
	for i := range declared {
		if int(declared[i]) != expected[i] {
			return false
		}
	}
	return true
}
