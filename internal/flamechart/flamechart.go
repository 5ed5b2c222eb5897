// Package flamechart translates Analyzer Events into a stream of
// track-descriptor / slice-begin / slice-end / instant packets for a
// Perfetto-style flame-chart UI.
//
// The exact wire encoding is treated as an external collaborator: no
// generated Perfetto protobuf schema is available in this module's
// dependency reach (see DESIGN.md), so the packet semantics are fully owned
// here behind the PacketWriter interface, and the one concrete writer this
// package ships encodes packets as length-delimited
// google.golang.org/protobuf structpb.Struct messages.
package flamechart

import (
	"crypto/rand"
	"encoding/binary"
	"path"

	"github.com/kylewlacy/systrument/internal/strace"
)

const processTrackName = "Processes"

// PacketKind discriminates the packet shapes this sink emits.
type PacketKind int

const (
	PacketTrackDescriptor PacketKind = iota
	PacketSliceBegin
	PacketSliceEnd
	PacketInstant
)

// DebugAnnotation is a single name/value pair attached to a slice-begin
// packet (command, argv, envp).
type DebugAnnotation struct {
	Name        string
	StringValue string
	ArrayValue  []string
	DictValue   map[string]string
}

// Packet is the sink's internal, wire-format-agnostic representation of one
// emitted record. A PacketWriter turns a Packet into bytes.
type Packet struct {
	Kind                     PacketKind
	TimestampNanos           int64
	TrustedPacketSequenceID  uint32
	TrackUUID                uint64
	ParentTrackUUID          uint64
	TrackName                string
	DisplayName              string
	DebugAnnotations         []DebugAnnotation
	InternedLogBodyID        uint64
	InternedLogBody          string
}

// PacketWriter accepts a stream of Packets and is responsible for the
// wire-format details.
type PacketWriter interface {
	WritePacket(Packet) error
}

// Options configures the sink.
type Options struct {
	// Logs enables the root log track and per-event instant log packets.
	Logs bool
}

// Sink turns a stream of Analyzer Events into flame-chart packets.
type Sink struct {
	writer      PacketWriter
	opts        Options
	trustedSeq  uint32
	trackByPid  map[strace.Pid]uint64
	rootTrack   uint64
	haveRoot    bool
	nextBodyID  uint64
}

// New constructs a Sink writing through w.
func New(w PacketWriter, opts Options) *Sink {
	s := &Sink{
		writer:     w,
		opts:       opts,
		trustedSeq: randomUint32(),
		trackByPid: make(map[strace.Pid]uint64),
	}
	if opts.Logs {
		s.rootTrack = randomUint64()
		s.haveRoot = true
	}
	return s
}

// OutputEvent translates one Event into zero or more Packets and flushes
// them to the writer.
func (s *Sink) OutputEvent(event strace.Event) error {
	ts := int64(event.Timestamp)

	switch event.Kind {
	case strace.EventExec:
		if err := s.handleExec(event, ts); err != nil {
			return err
		}
	case strace.EventStop:
		if err := s.handleStop(event, ts); err != nil {
			return err
		}
	}

	if s.opts.Logs {
		body := event.Line.Raw + "\n"
		bodyID := s.nextBodyID
		s.nextBodyID++
		if err := s.writer.WritePacket(Packet{
			Kind:                    PacketInstant,
			TimestampNanos:          ts,
			TrustedPacketSequenceID: s.trustedSeq,
			TrackUUID:               s.rootTrack,
			InternedLogBodyID:       bodyID,
			InternedLogBody:         body,
		}); err != nil {
			return err
		}
	}

	return nil
}

func (s *Sink) handleExec(event strace.Event, ts int64) error {
	pid := event.Pid
	reExec := event.Exec.ReExec

	if reExec {
		if prev, ok := s.trackByPid[pid]; ok {
			if err := s.writer.WritePacket(Packet{
				Kind:                    PacketSliceEnd,
				TimestampNanos:          ts,
				TrustedPacketSequenceID: s.trustedSeq,
				TrackUUID:               prev,
			}); err != nil {
				return err
			}
		}
	}

	trackUUID := randomUint64()
	s.trackByPid[pid] = trackUUID

	var parent uint64
	if s.haveRoot {
		parent = s.rootTrack
	}
	if err := s.writer.WritePacket(Packet{
		Kind:                    PacketTrackDescriptor,
		TimestampNanos:          ts,
		TrustedPacketSequenceID: s.trustedSeq,
		TrackUUID:               trackUUID,
		ParentTrackUUID:         parent,
		TrackName:               processTrackName,
	}); err != nil {
		return err
	}

	displayName := "?"
	if name := event.Exec.Exec.CommandName(); name != nil {
		displayName = path.Base(*name)
	}

	var annotations []DebugAnnotation
	if event.Exec.Exec.Command != nil {
		annotations = append(annotations, DebugAnnotation{Name: "command", StringValue: *event.Exec.Exec.Command})
	}
	if event.Exec.Exec.Args != nil {
		annotations = append(annotations, DebugAnnotation{Name: "argv", ArrayValue: event.Exec.Exec.Args})
	}
	if event.Exec.Exec.Env != nil {
		dict := make(map[string]string, len(event.Exec.Exec.Env))
		for _, e := range event.Exec.Exec.Env {
			dict[e.Name] = e.Value
		}
		annotations = append(annotations, DebugAnnotation{Name: "envp", DictValue: dict})
	}

	return s.writer.WritePacket(Packet{
		Kind:                    PacketSliceBegin,
		TimestampNanos:          ts,
		TrustedPacketSequenceID: s.trustedSeq,
		TrackUUID:               trackUUID,
		DisplayName:             displayName,
		DebugAnnotations:        annotations,
	})
}

func (s *Sink) handleStop(event strace.Event, ts int64) error {
	pid := event.Pid
	trackUUID, ok := s.trackByPid[pid]
	if !ok {
		return nil
	}
	delete(s.trackByPid, pid)
	return s.writer.WritePacket(Packet{
		Kind:                    PacketSliceEnd,
		TimestampNanos:          ts,
		TrustedPacketSequenceID: s.trustedSeq,
		TrackUUID:               trackUUID,
	})
}

func randomUint64() uint64 {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return binary.LittleEndian.Uint64(b[:])
}

func randomUint32() uint32 {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return binary.LittleEndian.Uint32(b[:])
}
