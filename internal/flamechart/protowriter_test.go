package flamechart

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protodelim"
	"google.golang.org/protobuf/types/known/structpb"
)

func Test_ProtoWriter_RoundTripsFields(t *testing.T) {
	var buf bytes.Buffer
	pw := NewProtoWriter(&buf)

	err := pw.WritePacket(Packet{
		Kind:                    PacketSliceBegin,
		TimestampNanos:          12345,
		TrustedPacketSequenceID: 7,
		TrackUUID:               42,
		DisplayName:             "ls",
		DebugAnnotations: []DebugAnnotation{
			{Name: "command", StringValue: "/bin/ls"},
		},
	})
	require.NoError(t, err)

	r := bytes.NewReader(buf.Bytes())
	var decoded structpb.Struct
	require.NoError(t, protodelim.UnmarshalFrom(r, &decoded))

	fields := decoded.AsMap()
	assert.Equal(t, "slice_begin", fields["kind"])
	assert.Equal(t, float64(12345), fields["timestamp_nanos"])
	assert.Equal(t, "ls", fields["display_name"])
}

func Test_ProtoWriter_OmitsEmptyOptionalFields(t *testing.T) {
	var buf bytes.Buffer
	pw := NewProtoWriter(&buf)

	require.NoError(t, pw.WritePacket(Packet{Kind: PacketTrackDescriptor, TrackUUID: 1}))

	r := bytes.NewReader(buf.Bytes())
	var decoded structpb.Struct
	require.NoError(t, protodelim.UnmarshalFrom(r, &decoded))
	fields := decoded.AsMap()

	_, hasParent := fields["parent_track_uuid"]
	assert.False(t, hasParent)
	_, hasName := fields["track_name"]
	assert.False(t, hasName)
}

func Test_PacketKindName(t *testing.T) {
	assert.Equal(t, "track_descriptor", packetKindName(PacketTrackDescriptor))
	assert.Equal(t, "slice_begin", packetKindName(PacketSliceBegin))
	assert.Equal(t, "slice_end", packetKindName(PacketSliceEnd))
	assert.Equal(t, "instant", packetKindName(PacketInstant))
}
