package strace

import (
	"strings"

	"github.com/kylewlacy/systrument/internal/diag"
)

// ProcessStatus is the lifecycle state a ProcessState moves through:
// Forked -> Execed -> Stopped. Stopped is terminal; reuse of a pid after
// Stopped re-enters Forked.
type ProcessStatus int

const (
	StatusForked ProcessStatus = iota
	StatusExeced
	StatusStopped
)

// ProcessState is the analyzer's per-pid state, keyed by pid. OwnerPid is
// resolved once at fork time and never recomputed: each node stores only
// its immediate parent and a precomputed owner, avoiding an unbounded walk
// per event.
type ProcessState struct {
	ParentPid *Pid
	OwnerPid  *Pid
	Status    ProcessStatus
}

// EventKind discriminates the four semantic events the analyzer emits.
type EventKind int

const (
	EventFork EventKind = iota
	EventExec
	EventStop
	EventLog
)

type ProcessExec struct {
	Command *string
	Args    []string
	Env     []EnvPair
}

type EnvPair struct {
	Name  string
	Value string
}

// CommandName returns the file-name component of Command (the part after
// the last "/"), or nil if Command is unset.
func (p ProcessExec) CommandName() *string {
	if p.Command == nil {
		return nil
	}
	idx := strings.LastIndexByte(*p.Command, '/')
	name := *p.Command
	if idx >= 0 {
		name = name[idx+1:]
	}
	return &name
}

type ForkEvent struct {
	ChildPid      Pid
	ChildOwnerPid *Pid
}

type ExecEvent struct {
	Exec   ProcessExec
	ReExec bool
}

type StopReasonKind int

const (
	StopExited StopReasonKind = iota
	StopKilled
)

type StopReason struct {
	Kind   StopReasonKind
	Code   *int32
	Signal *string
}

type StopEvent struct {
	Reason StopReason
	DidExec bool
}

// Event is the analyzer's output: one semantic record per released Line.
type Event struct {
	Kind      EventKind
	Fork      ForkEvent
	Exec      ExecEvent
	Stop      StopEvent
	Pid       Pid
	ParentPid *Pid
	OwnerPid  *Pid
	Timestamp Timestamp
	Line      Line
}

// processLineageCalls are the only syscalls the analyzer looks at; every
// other syscall name degrades to Log.
var processLineageCalls = map[string]bool{
	"fork": true, "vfork": true, "clone": true, "clone3": true,
	"execve": true, "execveat": true,
}

// Analyzer maintains the live process-tree model: per-pid lineage, exec
// state, and owner-pid resolution.
type Analyzer struct {
	processes map[Pid]*ProcessState
}

func NewAnalyzer() *Analyzer {
	return &Analyzer{processes: make(map[Pid]*ProcessState)}
}

// Analyze consumes one reordered Line and returns the semantic Event it
// produces. A value-parse failure in exec arguments or an exit code produces
// a diagnostic and drops the line (no state mutation); a fork result that
// does not parse as a non-negative pid degrades to a Log event. The analyzer
// never aborts.
func (a *Analyzer) Analyze(line Line) (Event, *diag.Diagnostic) {
	kind := EventLog
	var fork ForkEvent
	var exec ExecEvent
	var stop StopEvent

	switch line.Body.Kind {
	case BodySyscall:
		switch line.Body.Name {
		case "fork", "vfork", "clone", "clone3":
			// A failed fork's result carries a trailing errno/message
			// ("-1 ENOSYS (Function not implemented)"); parse only the
			// leading value and ignore the rest rather than rejecting
			// the whole line.
			result, _, err := ParseValue(line.Body.ResultText, 0)
			if err != nil {
				break
			}
			childPid, ok := AsI32(result)
			if ok && childPid >= 0 {
				fork = a.handleFork(line.Pid, Pid(childPid))
				kind = EventFork
			}
		case "execve":
			call, err := ParseValueComplete(line.Body.ArgsText, 0)
			if err != nil {
				return Event{}, err
			}
			command, args, env := extractExecArgs(call, 0, 1, 2)
			exec = a.handleExec(line.Pid, ProcessExec{Command: command, Args: args, Env: env})
			kind = EventExec
		case "execveat":
			call, err := ParseValueComplete(line.Body.ArgsText, 0)
			if err != nil {
				return Event{}, err
			}
			dirVal, _ := ValueAtIndex(call, 0)
			pathVal, _ := ValueAtIndex(call, 1)
			dirBytes, dirOk := valueToBytes(dirVal)
			pathBytes, pathOk := valueToBytes(pathVal)
			var command *string
			switch {
			case dirOk && pathOk:
				if len(pathBytes) > 0 {
					joined := string(dirBytes) + "/" + string(pathBytes)
					command = &joined
				} else {
					s := string(dirBytes)
					command = &s
				}
			case dirOk:
				s := string(dirBytes)
				command = &s
			case pathOk:
				s := string(pathBytes)
				command = &s
			}
			_, args, env := extractExecArgs(call, -1, 2, 3)
			exec = a.handleExec(line.Pid, ProcessExec{Command: command, Args: args, Env: env})
			kind = EventExec
		}
	case BodyExited:
		code, err := ParseValueComplete(line.Body.CodeText, 0)
		if err != nil {
			return Event{}, err
		}
		var codePtr *int32
		if c, ok := AsI32(code); ok {
			codePtr = &c
		}
		stop = a.handleStopped(line.Pid, StopReason{Kind: StopExited, Code: codePtr})
		kind = EventStop
	case BodyKilledBy:
		signal := line.Body.SignalText
		if idx := strings.IndexByte(signal, ' '); idx >= 0 {
			signal = signal[:idx]
		}
		sigPtr := &signal
		stop = a.handleStopped(line.Pid, StopReason{Kind: StopKilled, Signal: sigPtr})
		kind = EventStop
	}

	state := a.processes[line.Pid]
	var parentPid, ownerPid *Pid
	if state != nil {
		parentPid, ownerPid = state.ParentPid, state.OwnerPid
	}

	return Event{
		Kind:      kind,
		Fork:      fork,
		Exec:      exec,
		Stop:      stop,
		Pid:       line.Pid,
		ParentPid: parentPid,
		OwnerPid:  ownerPid,
		Timestamp: line.Timestamp,
		Line:      line,
	}, nil
}

func extractExecArgs(call Value, commandIdx, argvIdx, envIdx int) (*string, []string, []EnvPair) {
	var command *string
	if commandIdx >= 0 {
		if v, ok := ValueAtIndex(call, commandIdx); ok {
			if b, ok := valueToBytes(v); ok {
				s := string(b)
				command = &s
			}
		}
	}

	var args []string
	if v, ok := ValueAtIndex(call, argvIdx); ok {
		if elems, ok := AsArray(v); ok {
			args = make([]string, 0, len(elems))
			for _, e := range elems {
				b, ok := valueToBytes(e)
				if !ok {
					args = append(args, "<unknown arg>")
					continue
				}
				args = append(args, string(b))
			}
		}
	}

	var env []EnvPair
	if v, ok := ValueAtIndex(call, envIdx); ok {
		if elems, ok := AsArray(v); ok {
			env = make([]EnvPair, 0, len(elems))
			for _, e := range elems {
				b, ok := valueToBytes(e)
				if !ok {
					continue
				}
				s := string(b)
				idx := strings.IndexByte(s, '=')
				if idx < 0 {
					continue
				}
				env = append(env, EnvPair{Name: s[:idx], Value: s[idx+1:]})
			}
		}
	}

	return command, args, env
}

func valueToBytes(v Value) ([]byte, bool) {
	if v == nil {
		return nil, false
	}
	return ToBytes(v)
}

func (a *Analyzer) handleFork(forkerPid, childPid Pid) ForkEvent {
	childOwnerPid := a.findOwnerPid(forkerPid)
	state, exists := a.processes[childPid]
	if !exists || state.Status == StatusStopped {
		parent := forkerPid
		state = &ProcessState{ParentPid: &parent, OwnerPid: childOwnerPid, Status: StatusForked}
		a.processes[childPid] = state
	}
	return ForkEvent{ChildPid: childPid, ChildOwnerPid: state.OwnerPid}
}

func (a *Analyzer) handleExec(pid Pid, exec ProcessExec) ExecEvent {
	state, exists := a.processes[pid]
	if !exists {
		state = &ProcessState{Status: StatusForked}
		a.processes[pid] = state
	}
	reExec := state.Status == StatusExeced
	state.Status = StatusExeced
	return ExecEvent{Exec: exec, ReExec: reExec}
}

func (a *Analyzer) handleStopped(pid Pid, reason StopReason) StopEvent {
	state, exists := a.processes[pid]
	if !exists {
		state = &ProcessState{Status: StatusStopped}
		a.processes[pid] = state
	}
	didExec := state.Status == StatusExeced
	state.Status = StatusStopped
	return StopEvent{Reason: reason, DidExec: didExec}
}

// findOwnerPid walks parent links from pid until a process with status
// Execed is found, or none. A Stopped ancestor does not halt the walk on
// its own; see DESIGN.md.
func (a *Analyzer) findOwnerPid(pid Pid) *Pid {
	for {
		state, ok := a.processes[pid]
		if !ok {
			return nil
		}
		if state.Status == StatusExeced {
			p := pid
			return &p
		}
		if state.ParentPid == nil {
			return nil
		}
		pid = *state.ParentPid
	}
}
