package flamechart

import (
	"io"

	"google.golang.org/protobuf/encoding/protodelim"
	"google.golang.org/protobuf/types/known/structpb"
)

// ProtoWriter is the one concrete PacketWriter this package ships: it
// encodes each Packet as a length-delimited google.golang.org/protobuf
// message, using structpb.Struct as the generic envelope since no
// Perfetto-generated Go schema is available to this module (see
// DESIGN.md). A deployment with the real generated TracePacket schema
// implements PacketWriter against it directly; nothing else in this
// package needs to change.
type ProtoWriter struct {
	w io.Writer
}

func NewProtoWriter(w io.Writer) *ProtoWriter {
	return &ProtoWriter{w: w}
}

func (pw *ProtoWriter) WritePacket(p Packet) error {
	msg, err := structpb.NewStruct(packetFields(p))
	if err != nil {
		return err
	}
	_, err = protodelim.MarshalTo(pw.w, msg)
	return err
}

func packetFields(p Packet) map[string]interface{} {
	fields := map[string]interface{}{
		"kind":                       packetKindName(p.Kind),
		"timestamp_nanos":            float64(p.TimestampNanos),
		"trusted_packet_sequence_id": float64(p.TrustedPacketSequenceID),
		"track_uuid":                 float64(p.TrackUUID),
	}
	if p.ParentTrackUUID != 0 {
		fields["parent_track_uuid"] = float64(p.ParentTrackUUID)
	}
	if p.TrackName != "" {
		fields["track_name"] = p.TrackName
	}
	if p.DisplayName != "" {
		fields["display_name"] = p.DisplayName
	}
	if len(p.DebugAnnotations) > 0 {
		annotations := make([]interface{}, 0, len(p.DebugAnnotations))
		for _, a := range p.DebugAnnotations {
			entry := map[string]interface{}{"name": a.Name}
			switch {
			case a.StringValue != "":
				entry["string_value"] = a.StringValue
			case a.ArrayValue != nil:
				arr := make([]interface{}, len(a.ArrayValue))
				for i, v := range a.ArrayValue {
					arr[i] = v
				}
				entry["array_value"] = arr
			case a.DictValue != nil:
				dict := make(map[string]interface{}, len(a.DictValue))
				for k, v := range a.DictValue {
					dict[k] = v
				}
				entry["dict_value"] = dict
			}
			annotations = append(annotations, entry)
		}
		fields["debug_annotations"] = annotations
	}
	if p.Kind == PacketInstant {
		fields["interned_log_body_id"] = float64(p.InternedLogBodyID)
		fields["interned_log_body"] = p.InternedLogBody
	}
	return fields
}

func packetKindName(k PacketKind) string {
	switch k {
	case PacketTrackDescriptor:
		return "track_descriptor"
	case PacketSliceBegin:
		return "slice_begin"
	case PacketSliceEnd:
		return "slice_end"
	case PacketInstant:
		return "instant"
	default:
		return "unknown"
	}
}
