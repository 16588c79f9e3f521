package schedule

// FrameParams is the per-frame input to ShouldSkipFrame.
type FrameParams struct {
	Mode     RecordMode
	Playback Playback

	// FrameIndex is the index of the frame being considered.
	FrameIndex int

	// Timestamp is the session-relative time of the frame, in seconds.
	Timestamp float64

	// CaptureEveryNthFrame thins Variable playback. Values below 1 mean 1.
	CaptureEveryNthFrame int

	StartFrame int
	StartTime  float64

	// FrameRate converts StartTime into a frame index for reporting.
	FrameRate float64

	// Recording is false before BeginRecording and after EndRecording.
	Recording bool
}

// ShouldSkipFrame reports whether the capture pipeline must not run for the
// frame described by p.
func ShouldSkipFrame(p FrameParams) bool {
	if !p.Recording {
		return true
	}

	if p.Playback == Variable {
		nth := p.CaptureEveryNthFrame
		if nth < 1 {
			nth = 1
		}
		if p.FrameIndex%nth != 0 {
			return true
		}
	}

	switch p.Mode {
	case TimeInterval:
		return p.Timestamp < p.StartTime
	case FrameInterval, SingleFrame:
		return p.FrameIndex < p.StartFrame
	default:
		return false
	}
}

// StartFrameFor returns the first frame index the mode can record.
// For TimeInterval this is startTime*frameRate truncated toward zero.
func StartFrameFor(mode RecordMode, startFrame int, startTime, frameRate float64) int {
	switch mode {
	case TimeInterval:
		return int(startTime * frameRate)
	case FrameInterval, SingleFrame:
		return startFrame
	default:
		return 0
	}
}

// ShouldSkipSubFrame reports whether an accumulation sub-frame must not be
// captured. When accumulation is unsupported by the render pipeline every
// sub-frame is a real frame. Otherwise only the first sub-frame of each group
// of samples is captured; with captureAccumulation off the group size is 1.
func ShouldSkipSubFrame(supported, captureAccumulation bool, samples, subFrame int) bool {
	if !supported {
		return false
	}
	effective := 1
	if captureAccumulation && samples > 1 {
		effective = samples
	}
	return subFrame%effective != 0
}

// EndParams is the input to IsAfterEnd.
type EndParams struct {
	Mode       RecordMode
	FrameIndex int
	Timestamp  float64
	EndFrame   int
	EndTime    float64

	// Recorded is the number of frames recorded so far.
	Recorded int
}

// IsAfterEnd reports whether a session has passed its end condition and
// should be stopped. Manual sessions never end on their own.
func IsAfterEnd(p EndParams) bool {
	switch p.Mode {
	case SingleFrame:
		return p.Recorded > 0
	case FrameInterval:
		return p.FrameIndex >= p.EndFrame
	case TimeInterval:
		return p.Timestamp >= p.EndTime
	default:
		return false
	}
}
