package schedule

import (
	"fmt"
	"strings"
)

// RecordMode selects which frames of a session are recorded.
type RecordMode uint8

const (
	// Manual records until the session is stopped explicitly.
	Manual RecordMode = iota
	// SingleFrame records only the start frame.
	SingleFrame
	// FrameInterval records frames in [StartFrame, EndFrame).
	FrameInterval
	// TimeInterval records frames with StartTime <= t < EndTime.
	TimeInterval
)

// String returns the string representation of RecordMode.
func (m RecordMode) String() string {
	switch m {
	case Manual:
		return "Manual"
	case SingleFrame:
		return "SingleFrame"
	case FrameInterval:
		return "FrameInterval"
	case TimeInterval:
		return "TimeInterval"
	default:
		return fmt.Sprintf("RecordMode(%d)", int(m))
	}
}

// ParseRecordMode parses a mode name, case-insensitively.
func ParseRecordMode(s string) (RecordMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "manual":
		return Manual, nil
	case "single", "singleframe":
		return SingleFrame, nil
	case "frames", "frameinterval":
		return FrameInterval, nil
	case "time", "timeinterval":
		return TimeInterval, nil
	default:
		return Manual, fmt.Errorf("schedule: unknown record mode %q", s)
	}
}

// Playback selects how the host advances time while recording.
type Playback uint8

const (
	// Constant advances game time by exactly 1/FrameRate per frame.
	Constant Playback = iota
	// Variable lets game time follow wall-clock time.
	Variable
)

// String returns the string representation of Playback.
func (p Playback) String() string {
	switch p {
	case Constant:
		return "Constant"
	case Variable:
		return "Variable"
	default:
		return fmt.Sprintf("Playback(%d)", int(p))
	}
}

// ParsePlayback parses a playback name, case-insensitively.
func ParsePlayback(s string) (Playback, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "constant", "cfr":
		return Constant, nil
	case "variable", "vfr":
		return Variable, nil
	default:
		return Constant, fmt.Errorf("schedule: unknown playback %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m RecordMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *RecordMode) UnmarshalText(b []byte) error {
	v, err := ParseRecordMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (p Playback) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Playback) UnmarshalText(b []byte) error {
	v, err := ParsePlayback(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
