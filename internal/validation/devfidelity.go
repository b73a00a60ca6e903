package validation

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/ShayCichocki/tfvalidate/internal/apk"
)

// DevFidelityOptions tunes dev fidelity parameter parsing.
type DevFidelityOptions struct {
	// RejectUnknownFields reports buffers carrying fields the FidelityParams
	// message does not declare. Protobuf parsing accepts them by default.
	RejectUnknownFields bool
}

// ValidateDevFidelityParams parses every dev fidelity parameter buffer against
// the FidelityParams descriptor. Each failure is recorded with the entry name
// and checking continues with the next buffer.
func ValidateDevFidelityParams(md protoreflect.MessageDescriptor, params []apk.Asset, opts DevFidelityOptions, errs *Collector) {
	if len(params) == 0 {
		errs.AddError(DevFidelityParametersEmpty, "no dev fidelity parameters found")
		return
	}

	for _, p := range params {
		msg := dynamicpb.NewMessage(md)
		if err := proto.Unmarshal(p.Data, msg); err != nil {
			errs.AddErrorf(DevFidelityParametersParsing, "%s: %v", p.Name, err)
			continue
		}
		if opts.RejectUnknownFields && len(msg.GetUnknown()) > 0 {
			errs.AddErrorf(DevFidelityParametersParsing, "%s: contains fields not declared by %s", p.Name, md.FullName())
		}
	}
}
