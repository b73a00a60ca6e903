package validation

import (
	"fmt"

	"google.golang.org/protobuf/reflect/protoreflect"
)

// messageRules describes the constraints shared by the Annotation and
// FidelityParams messages: flat, non-empty, with a restricted set of kinds.
type messageRules struct {
	empty   ErrorType
	complex ErrorType
	kind    ErrorType
	// allowed reports whether a field kind is permitted.
	allowed func(protoreflect.Kind) bool
	// expected names the permitted kinds in messages.
	expected string
}

var annotationRules = messageRules{
	empty:   AnnotationEmpty,
	complex: AnnotationComplex,
	kind:    AnnotationType,
	allowed: func(k protoreflect.Kind) bool {
		return k == protoreflect.EnumKind
	},
	expected: "enum",
}

var fidelityParamsRules = messageRules{
	empty:   FidelityParamsEmpty,
	complex: FidelityParamsComplex,
	kind:    FidelityParamsType,
	allowed: func(k protoreflect.Kind) bool {
		return k == protoreflect.FloatKind || k == protoreflect.Int32Kind || k == protoreflect.EnumKind
	},
	expected: "float, int32 or enum",
}

// ValidateAnnotation checks that the Annotation message is a non-empty, flat
// set of enum fields. It returns the enum cardinality vector: for every field
// in declaration order, the number of values its enum declares (0 for
// non-enum fields). The vector is only meaningful when no annotation errors
// were recorded.
func ValidateAnnotation(md protoreflect.MessageDescriptor, errs *Collector) []int {
	if !checkMessage(md, annotationRules, errs) {
		return nil
	}

	fields := md.Fields()
	sizes := make([]int, fields.Len())
	for i := 0; i < fields.Len(); i++ {
		if ed := fields.Get(i).Enum(); ed != nil {
			sizes[i] = ed.Values().Len()
		}
	}
	return sizes
}

// ValidateFidelityParams checks that the FidelityParams message is a
// non-empty, flat set of float, int32 and enum fields.
func ValidateFidelityParams(md protoreflect.MessageDescriptor, errs *Collector) {
	checkMessage(md, fidelityParamsRules, errs)
}

// checkMessage applies rules to md and returns false when the message has no
// fields at all, in which case no further checks run.
func checkMessage(md protoreflect.MessageDescriptor, rules messageRules, errs *Collector) bool {
	name := md.Name()
	fields := md.Fields()
	if fields.Len() == 0 {
		errs.AddErrorf(rules.empty, "%s message has no fields", name)
		return false
	}

	nested := md.Messages()
	for i := 0; i < nested.Len(); i++ {
		// Map entries are reported once, on their map field.
		if nested.Get(i).IsMapEntry() {
			continue
		}
		errs.AddErrorf(rules.complex, "%s declares nested message %s", name, nested.Get(i).Name())
	}
	if md.ExtensionRanges().Len() > 0 {
		errs.AddErrorf(rules.complex, "%s declares extension ranges", name)
	}
	exts := md.Extensions()
	for i := 0; i < exts.Len(); i++ {
		errs.AddErrorf(rules.complex, "%s declares extension %s", name, exts.Get(i).Name())
	}

	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		if reason := complexity(fd); reason != "" {
			errs.AddErrorf(rules.complex, "%s.%s %s", name, fd.Name(), reason)
		}
		if !rules.allowed(fd.Kind()) {
			errs.AddErrorf(rules.kind, "%s.%s has type %s, expected %s", name, fd.Name(), fd.Kind(), rules.expected)
		}
	}
	return true
}

// complexity returns why a field is too complex, or "" if it is flat.
func complexity(fd protoreflect.FieldDescriptor) string {
	switch {
	case fd.IsExtension():
		return "is an extension"
	case fd.IsMap():
		return "is a map"
	case fd.IsList():
		return "is repeated"
	case fd.Kind() == protoreflect.GroupKind:
		return "is a group"
	case fd.Kind() == protoreflect.MessageKind:
		return fmt.Sprintf("is a message of type %s", fd.Message().FullName())
	}
	// proto3 optional fields live in synthetic oneofs; only real ones count.
	if od := fd.ContainingOneof(); od != nil && !od.IsSynthetic() {
		return fmt.Sprintf("is a member of oneof %s", od.Name())
	}
	return ""
}
