// Package validation checks tuning-fork schemas and binaries for structural
// problems the runtime cannot handle.
//
// # Overview
//
// Four validators share one Collector:
//
//  1. ValidateAnnotation - the Annotation message must be a flat set of enum
//     fields. It also yields the enum cardinality vector.
//  2. ValidateFidelityParams - the FidelityParams message must be a flat set
//     of float, int32 and enum fields.
//  3. ValidateSettings - tuningfork_settings.bin must decode, declare
//     histograms and carry an aggregation strategy consistent with the
//     Annotation message.
//  4. ValidateDevFidelityParams - every dev fidelity parameter binary must
//     decode as FidelityParams.
//
// Validators never return errors. Every problem becomes a record under one of
// the ErrorType categories, and checking continues. Conditions that make the
// whole run meaningless (missing archive entries, a schema that does not
// compile) are handled by the caller before any validator runs.
//
// # Usage
//
//	errs := validation.NewCollector()
//	sizes := validation.ValidateAnnotation(annotation, errs)
//	validation.ValidateFidelityParams(fidelity, errs)
//
//	if !errs.HasAnnotationErrors() {
//	    validation.ValidateSettings(sizes, settingsBlob, errs)
//	}
//	if !errs.HasFidelityParamsErrors() {
//	    validation.ValidateDevFidelityParams(fidelity, devParams, validation.DevFidelityOptions{}, errs)
//	}
//
//	errs.WriteStatus(os.Stdout)
//
// The settings check depends on the enum cardinality vector, which is only
// trustworthy when the Annotation message passed. The dev fidelity check
// depends on a usable FidelityParams descriptor in the same way.
//
// # Reporting
//
// Summary and WriteStatus always enumerate every ErrorType in declaration
// order, including the ones without records:
//
//	ANNOTATION_EMPTY : OK
//	ANNOTATION_COMPLEX : OK
//	ANNOTATION_TYPE : 1 ERRORS
//		[Annotation.level has type int32, expected enum]
//	...
package validation
