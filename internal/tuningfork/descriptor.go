// Package tuningfork models the tuning fork Settings message shipped inside an
// APK as tuningfork_settings.bin.
//
// No generated code is involved: the message is described with descriptorpb,
// linked with protodesc and decoded with dynamicpb. Field numbers match the
// tuningfork.proto distributed with the runtime library.
package tuningfork

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

const (
	// ProtoFile is the logical file name of the runtime schema.
	ProtoFile = "tuningfork.proto"
	// ProtoPackage is the protobuf package of the runtime schema.
	ProtoPackage = "com.google.tuningfork"
)

var (
	settingsFile       = mustBuildFile()
	settingsDesc       = settingsFile.Messages().ByName("Settings")
	histogramDesc      = settingsDesc.Messages().ByName("Histogram")
	aggregationDesc    = settingsDesc.Messages().ByName("AggregationStrategy")
	settingsFields     = settingsDesc.Fields()
	histogramFields    = histogramDesc.Fields()
	aggregationFields  = aggregationDesc.Fields()
	submissionEnumDesc = aggregationDesc.Enums().ByName("Submission")
)

func mustBuildFile() protoreflect.FileDescriptor {
	fd, err := protodesc.NewFile(settingsFileProto(), new(protoregistry.Files))
	if err != nil {
		panic(fmt.Sprintf("tuningfork: invalid settings descriptor: %v", err))
	}
	return fd
}

func settingsFileProto() *descriptorpb.FileDescriptorProto {
	const prefix = "." + ProtoPackage + ".Settings."

	histogram := &descriptorpb.DescriptorProto{
		Name: proto.String("Histogram"),
		Field: []*descriptorpb.FieldDescriptorProto{
			scalarField("instrument_key", 1, descriptorpb.FieldDescriptorProto_TYPE_INT32),
			scalarField("bucket_min", 2, descriptorpb.FieldDescriptorProto_TYPE_FLOAT),
			scalarField("bucket_max", 3, descriptorpb.FieldDescriptorProto_TYPE_FLOAT),
			scalarField("n_buckets", 4, descriptorpb.FieldDescriptorProto_TYPE_INT32),
		},
	}

	annotationEnumSize := scalarField("annotation_enum_size", 4, descriptorpb.FieldDescriptorProto_TYPE_INT32)
	annotationEnumSize.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()

	aggregation := &descriptorpb.DescriptorProto{
		Name: proto.String("AggregationStrategy"),
		Field: []*descriptorpb.FieldDescriptorProto{
			typedField("method", 1, descriptorpb.FieldDescriptorProto_TYPE_ENUM, prefix+"AggregationStrategy.Submission"),
			scalarField("intervalms_or_count", 2, descriptorpb.FieldDescriptorProto_TYPE_INT32),
			scalarField("max_instrumentation_keys", 3, descriptorpb.FieldDescriptorProto_TYPE_INT32),
			annotationEnumSize,
		},
		EnumType: []*descriptorpb.EnumDescriptorProto{{
			Name: proto.String("Submission"),
			Value: []*descriptorpb.EnumValueDescriptorProto{
				{Name: proto.String("TIME_BASED"), Number: proto.Int32(int32(SubmissionTimeBased))},
				{Name: proto.String("TICK_BASED"), Number: proto.Int32(int32(SubmissionTickBased))},
			},
		}},
	}

	histograms := typedField("histograms", 2, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, prefix+"Histogram")
	histograms.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()

	settings := &descriptorpb.DescriptorProto{
		Name: proto.String("Settings"),
		Field: []*descriptorpb.FieldDescriptorProto{
			typedField("aggregation_strategy", 1, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, prefix+"AggregationStrategy"),
			histograms,
			scalarField("base_uri", 3, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			scalarField("api_key", 4, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			scalarField("default_fidelity_parameters_filename", 5, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			scalarField("initial_request_timeout_ms", 6, descriptorpb.FieldDescriptorProto_TYPE_INT32),
			scalarField("ultimate_request_timeout_ms", 7, descriptorpb.FieldDescriptorProto_TYPE_INT32),
		},
		NestedType: []*descriptorpb.DescriptorProto{histogram, aggregation},
	}

	return &descriptorpb.FileDescriptorProto{
		Name:        proto.String(ProtoFile),
		Package:     proto.String(ProtoPackage),
		Syntax:      proto.String("proto2"),
		MessageType: []*descriptorpb.DescriptorProto{settings},
	}
}

func scalarField(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(number),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:   typ.Enum(),
	}
}

func typedField(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type, typeName string) *descriptorpb.FieldDescriptorProto {
	f := scalarField(name, number, typ)
	f.TypeName = proto.String(typeName)
	return f
}
