package flamechart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kylewlacy/systrument/internal/strace"
)

type recordingWriter struct {
	packets []Packet
}

func (r *recordingWriter) WritePacket(p Packet) error {
	r.packets = append(r.packets, p)
	return nil
}

func execEvent(pid strace.Pid, ts int64, command string, reExec bool) strace.Event {
	cmd := command
	return strace.Event{
		Kind:      strace.EventExec,
		Pid:       pid,
		Timestamp: strace.Timestamp(ts),
		Exec: strace.ExecEvent{
			Exec:   strace.ProcessExec{Command: &cmd, Args: []string{command}},
			ReExec: reExec,
		},
		Line: strace.Line{Raw: "execve(...)"},
	}
}

func stopEvent(pid strace.Pid, ts int64) strace.Event {
	return strace.Event{
		Kind:      strace.EventStop,
		Pid:       pid,
		Timestamp: strace.Timestamp(ts),
		Line:      strace.Line{Raw: "+++ exited with 0 +++"},
	}
}

func Test_Sink_Exec_EmitsTrackDescriptorThenSliceBegin(t *testing.T) {
	w := &recordingWriter{}
	s := New(w, Options{})

	err := s.OutputEvent(execEvent(10, 100, "/bin/ls", false))
	require.NoError(t, err)

	require.Len(t, w.packets, 2)
	assert.Equal(t, PacketTrackDescriptor, w.packets[0].Kind)
	assert.Equal(t, PacketSliceBegin, w.packets[1].Kind)
	assert.Equal(t, "ls", w.packets[1].DisplayName)
}

func Test_Sink_ReExec_EndsPreviousSliceFirst(t *testing.T) {
	w := &recordingWriter{}
	s := New(w, Options{})

	require.NoError(t, s.OutputEvent(execEvent(10, 100, "/bin/a", false)))
	w.packets = nil

	require.NoError(t, s.OutputEvent(execEvent(10, 200, "/bin/b", true)))
	require.Len(t, w.packets, 3)
	assert.Equal(t, PacketSliceEnd, w.packets[0].Kind)
	assert.Equal(t, PacketTrackDescriptor, w.packets[1].Kind)
	assert.Equal(t, PacketSliceBegin, w.packets[2].Kind)
}

func Test_Sink_Stop_EmitsSliceEndForKnownTrack(t *testing.T) {
	w := &recordingWriter{}
	s := New(w, Options{})

	require.NoError(t, s.OutputEvent(execEvent(10, 100, "/bin/a", false)))
	w.packets = nil

	require.NoError(t, s.OutputEvent(stopEvent(10, 300)))
	require.Len(t, w.packets, 1)
	assert.Equal(t, PacketSliceEnd, w.packets[0].Kind)
}

func Test_Sink_Stop_UnknownTrackIsNoop(t *testing.T) {
	w := &recordingWriter{}
	s := New(w, Options{})

	require.NoError(t, s.OutputEvent(stopEvent(99, 300)))
	assert.Empty(t, w.packets)
}

func Test_Sink_Logs_EmitsInstantPacketPerEvent(t *testing.T) {
	w := &recordingWriter{}
	s := New(w, Options{Logs: true})

	require.NoError(t, s.OutputEvent(execEvent(10, 100, "/bin/a", false)))

	var instants int
	for _, p := range w.packets {
		if p.Kind == PacketInstant {
			instants++
		}
	}
	assert.Equal(t, 1, instants)
}

func Test_Sink_Logs_Disabled_NoInstantPackets(t *testing.T) {
	w := &recordingWriter{}
	s := New(w, Options{})

	require.NoError(t, s.OutputEvent(execEvent(10, 100, "/bin/a", false)))
	for _, p := range w.packets {
		assert.NotEqual(t, PacketInstant, p.Kind)
	}
}

func Test_Sink_DebugAnnotations_IncludeCommandArgvEnvp(t *testing.T) {
	w := &recordingWriter{}
	s := New(w, Options{})

	event := execEvent(10, 100, "/bin/a", false)
	event.Exec.Exec.Env = []strace.EnvPair{{Name: "PATH", Value: "/usr/bin"}}
	require.NoError(t, s.OutputEvent(event))

	var names []string
	for _, a := range w.packets[1].DebugAnnotations {
		names = append(names, a.Name)
	}
	assert.Contains(t, names, "command")
	assert.Contains(t, names, "argv")
	assert.Contains(t, names, "envp")
}
