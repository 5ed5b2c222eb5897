package strace

import (
	"strconv"
	"strings"
	"time"

	"github.com/kylewlacy/systrument/internal/diag"
)

// ScanLine splits a single line of bytes into a header (pid, timestamp) and
// one of the four record bodies. It does not descend into argument or
// result structure; ArgsText/ResultText/CodeText/SignalText remain opaque
// spans until the analyzer forces them through the value parser.
func ScanLine(raw string) (Line, *diag.Diagnostic) {
	pidText, rest, ok := splitOnce(raw, ' ')
	if !ok {
		return Line{}, diag.New(raw, "expected pid", 0, len(raw))
	}
	pid, err := strconv.ParseInt(pidText, 10, 32)
	if err != nil {
		return Line{}, diag.New(raw, "invalid pid", 0, len(pidText))
	}

	tsOffset := len(pidText) + 1
	tsText, rest, ok := splitOnce(rest, ' ')
	if !ok {
		return Line{}, diag.New(raw, "expected timestamp", tsOffset, len(raw))
	}
	ts, terr := parseTimestamp(tsText)
	if terr != nil {
		return Line{}, diag.New(raw, "invalid timestamp", tsOffset, tsOffset+len(tsText))
	}

	bodyOffset := tsOffset + len(tsText) + 1
	body, berr := scanBody(raw, rest, bodyOffset)
	if berr != nil {
		return Line{}, berr
	}

	return Line{Pid: Pid(pid), Timestamp: ts, Raw: raw, Body: body}, nil
}

func scanBody(raw, rest string, offset int) (Body, *diag.Diagnostic) {
	switch {
	case strings.HasPrefix(rest, "+++ "):
		middle, ok := stripSuffix(rest[4:], " +++")
		if !ok {
			return Body{}, diag.New(raw, "expected trailing ' +++'", offset, len(raw))
		}
		switch {
		case strings.HasPrefix(middle, "exited with "):
			return Body{Kind: BodyExited, CodeText: middle[len("exited with "):]}, nil
		case strings.HasPrefix(middle, "killed by "):
			return Body{Kind: BodyKilledBy, SignalText: middle[len("killed by "):]}, nil
		default:
			return Body{}, diag.New(raw, "expected 'exited with' or 'killed by'", offset+4, offset+4+len(middle))
		}

	case strings.HasPrefix(rest, "--- "):
		middle, ok := stripSuffix(rest[4:], " ---")
		if !ok {
			return Body{}, diag.New(raw, "expected trailing ' ---'", offset, len(raw))
		}
		return Body{Kind: BodySignal, SignalText: middle}, nil

	default:
		return scanSyscallBody(raw, rest, offset)
	}
}

func scanSyscallBody(raw, rest string, offset int) (Body, *diag.Diagnostic) {
	nameEnd := strings.IndexByte(rest, '(')
	if nameEnd < 0 {
		return Body{}, diag.New(raw, "failed to parse event", offset, len(raw))
	}
	name := rest[:nameEnd]

	if !strings.HasSuffix(rest, ">") {
		return Body{}, diag.New(raw, "expected duration at end of syscall", offset, offset+len(rest))
	}
	withoutAngle := rest[:len(rest)-1]

	durIdx := strings.LastIndex(withoutAngle, " <")
	if durIdx < 0 {
		return Body{}, diag.New(raw, "expected duration at end of syscall", offset, offset+len(rest))
	}
	durationText := withoutAngle[durIdx+2:]
	preceding := withoutAngle[:durIdx]

	eqIdx := strings.LastIndex(preceding, " = ")
	if eqIdx < 0 {
		return Body{}, diag.New(raw, "failed to parse syscall result", offset, offset+len(preceding))
	}
	argsText := strings.TrimSpace(preceding[:eqIdx])
	resultText := strings.TrimSpace(preceding[eqIdx+3:])

	if !strings.HasSuffix(argsText, ")") {
		return Body{}, diag.New(raw, "failed to parse syscall args", offset, offset+len(argsText))
	}

	return Body{
		Kind:         BodySyscall,
		Name:         name,
		ArgsText:     argsText,
		ResultText:   resultText,
		DurationText: durationText,
	}, nil
}

func splitOnce(s string, sep byte) (string, string, bool) {
	idx := strings.IndexByte(s, sep)
	if idx < 0 {
		return "", "", false
	}
	return s[:idx], s[idx+1:], true
}

func stripSuffix(s, suffix string) (string, bool) {
	if !strings.HasSuffix(s, suffix) {
		return "", false
	}
	return s[:len(s)-len(suffix)], true
}

// parseTimestamp parses a signed seconds.fraction pair into a Timestamp
// (nanoseconds since the Unix epoch). The fraction is scaled so that
// nanoseconds = round(fraction * 1e9), clamped to [0, 999_999_999].
func parseTimestamp(s string) (Timestamp, error) {
	sign := int64(1)
	if strings.HasPrefix(s, "-") {
		sign = -1
		s = s[1:]
	} else if strings.HasPrefix(s, "+") {
		s = s[1:]
	}

	secStr, fracStr, hasFrac := strings.Cut(s, ".")

	seconds, err := strconv.ParseInt(secStr, 10, 64)
	if err != nil {
		return 0, err
	}

	var nanos int64
	if hasFrac {
		nanos, err = fractionToNanos(fracStr)
		if err != nil {
			return 0, err
		}
	}

	total := sign * (seconds*int64(time.Second) + nanos)
	return Timestamp(total), nil
}

func fractionToNanos(frac string) (int64, error) {
	if frac == "" {
		return 0, nil
	}
	if len(frac) > 9 {
		roundUp := frac[9] >= '5'
		frac = frac[:9]
		n, err := strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, err
		}
		if roundUp {
			n++
		}
		if n > 999_999_999 {
			n = 999_999_999
		}
		return n, nil
	}
	padded := frac + strings.Repeat("0", 9-len(frac))
	n, err := strconv.ParseInt(padded, 10, 64)
	if err != nil {
		return 0, err
	}
	if n > 999_999_999 {
		n = 999_999_999
	}
	if n < 0 {
		n = 0
	}
	return n, nil
}
