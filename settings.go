package recorder

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/recorder/accumulation"
	"github.com/gogpu/recorder/encoder"
	"github.com/gogpu/recorder/internal/pixel"
	"github.com/gogpu/recorder/schedule"
	"github.com/gogpu/recorder/timing"
)

// Settings configures one recorder. A Session keeps a pointer to its
// Settings and increments Take when the session ends.
type Settings struct {
	// Name identifies the recorder in logs and in the <Recorder> wildcard.
	// Defaults to the kind's display name.
	Name string `json:"name,omitempty"`

	Kind       Kind                `json:"kind"`
	RecordMode schedule.RecordMode `json:"recordMode"`
	Playback   schedule.Playback   `json:"playback"`

	// FrameRate is the output frame rate in frames per second.
	FrameRate float64 `json:"frameRate"`

	// StartFrame and EndFrame bound FrameInterval sessions, end exclusive.
	// SingleFrame records StartFrame.
	StartFrame int `json:"startFrame"`
	EndFrame   int `json:"endFrame"`

	// StartTime and EndTime bound TimeInterval sessions in seconds, end
	// exclusive.
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`

	// CaptureEveryNthFrame thins Variable playback.
	CaptureEveryNthFrame int `json:"captureEveryNthFrame"`

	// CapFrameRate keeps the host from running faster than FrameRate.
	CapFrameRate bool `json:"capFrameRate"`

	// Take numbers the output of successive sessions.
	Take int `json:"take"`

	// OutputPath is a file name template; see ExpandTemplate.
	OutputPath string `json:"outputPath"`

	Width  int `json:"width"`
	Height int `json:"height"`

	// Format is the expected source pixel format. Undefined accepts the
	// source's format.
	Format gputypes.TextureFormat `json:"format,omitempty"`

	FlipVertical bool                  `json:"flipVertical"`
	Accumulation accumulation.Settings `json:"accumulation"`
	ImageFormat  encoder.ImageFormat   `json:"imageFormat"`

	// AOV names the render layer of a KindAOV recorder.
	AOV string `json:"aov,omitempty"`

	CaptureAudio bool `json:"captureAudio"`
}

// DefaultSettings returns settings for a manual 30 fps recorder of kind.
func DefaultSettings(kind Kind) Settings {
	return Settings{
		Kind:                 kind,
		RecordMode:           schedule.Manual,
		Playback:             schedule.Constant,
		FrameRate:            30,
		CaptureEveryNthFrame: 1,
		Take:                 1,
		OutputPath:           DefaultOutputPath(kind),
		Width:                1920,
		Height:               1080,
		Accumulation:         accumulation.DefaultSettings(),
		ImageFormat:          encoder.PNG,
		AOV:                  defaultAOV(kind),
		CaptureAudio:         kind == KindMovie,
	}
}

func defaultAOV(kind Kind) string {
	if kind == KindAOV {
		return "beauty"
	}
	return ""
}

// DisplayName returns Name, or the kind's display name when Name is empty.
func (s *Settings) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Kind.DisplayName()
}

// Extension returns the output file extension for the settings.
func (s *Settings) Extension() string {
	switch s.Kind {
	case KindMovie:
		return "y4m"
	case KindAudio:
		return "wav"
	case KindAnimation:
		return "json"
	default:
		enc, err := encoder.NewImageEncoder(s.ImageFormat)
		if err != nil {
			return s.ImageFormat.String()
		}
		return enc.Extension()
	}
}

// Validation lists problems found by Settings.Validate. Errors prevent a
// session from starting; warnings are logged.
type Validation struct {
	Errors   []string
	Warnings []string
}

// OK reports whether there are no errors.
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// Err returns nil or an error wrapping ErrInvalidSettings that lists every
// validation error.
func (v Validation) Err() error {
	if v.OK() {
		return nil
	}
	errs := make([]error, len(v.Errors))
	for i, e := range v.Errors {
		errs[i] = errors.New(e)
	}
	return fmt.Errorf("%w: %w", ErrInvalidSettings, errors.Join(errs...))
}

func (v *Validation) errorf(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

func (v *Validation) warnf(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}

// Validate checks the settings.
func (s *Settings) Validate() Validation {
	var v Validation

	if !s.Kind.Valid() {
		v.errorf("unknown recorder kind %d", s.Kind)
	}
	if _, err := timing.ComputeFrameInterval(s.FrameRate); err != nil {
		v.errorf("frame rate %v: must be positive and finite", s.FrameRate)
	}
	if s.Take < 0 {
		v.errorf("take %d is negative", s.Take)
	}
	if strings.TrimSpace(s.OutputPath) == "" {
		v.errorf("output path is empty")
	}

	s.validateRange(&v)

	if s.Playback == schedule.Variable {
		if s.CaptureEveryNthFrame < 1 {
			v.warnf("capture every nth frame %d treated as 1", s.CaptureEveryNthFrame)
		}
		if s.CapFrameRate {
			v.warnf("frame rate capping has no effect with variable playback")
		}
		if s.Accumulation.Enabled() {
			v.errorf("accumulation requires constant playback")
		}
	}

	if err := s.Accumulation.Validate(); err != nil {
		v.errorf("%v", err)
	}

	if s.Kind.Video() {
		s.validateVideo(&v)
	} else if s.Accumulation.Enabled() {
		v.warnf("accumulation has no effect on %s recorders", s.Kind)
	}

	if s.CaptureAudio && s.Kind != KindMovie && s.Kind != KindAudio {
		v.warnf("audio capture is ignored by %s recorders", s.Kind)
	}
	return v
}

func (s *Settings) validateRange(v *Validation) {
	switch s.RecordMode {
	case schedule.Manual:
	case schedule.SingleFrame:
		if s.StartFrame < 0 {
			v.errorf("start frame %d is negative", s.StartFrame)
		}
	case schedule.FrameInterval:
		if s.StartFrame < 0 {
			v.errorf("start frame %d is negative", s.StartFrame)
		}
		if s.EndFrame <= s.StartFrame {
			v.errorf("frame interval [%d, %d) is empty", s.StartFrame, s.EndFrame)
		}
	case schedule.TimeInterval:
		if s.StartTime < 0 || math.IsNaN(s.StartTime) {
			v.errorf("start time %v is negative", s.StartTime)
		}
		if !(s.EndTime > s.StartTime) {
			v.errorf("time interval [%v, %v) is empty", s.StartTime, s.EndTime)
		}
	default:
		v.errorf("unknown record mode %v", s.RecordMode)
	}
}

func (s *Settings) validateVideo(v *Validation) {
	if s.Width <= 0 || s.Height <= 0 {
		v.errorf("output size %dx%d must be positive", s.Width, s.Height)
	}
	if s.Format != gputypes.TextureFormatUndefined && !pixel.Supported(s.Format) {
		v.errorf("pixel format %v cannot be read back", s.Format)
	}
	if s.Kind != KindMovie {
		if _, err := encoder.NewImageEncoder(s.ImageFormat); err != nil {
			v.errorf("%v", err)
		}
		if !strings.Contains(s.OutputPath, "<Frame>") {
			v.warnf("output path %q has no <Frame> wildcard; frames overwrite each other", s.OutputPath)
		}
		if info, ok := pixel.Lookup(s.Format); ok && info.IsFloat &&
			(s.ImageFormat == encoder.JPEG || s.ImageFormat == encoder.BMP) {
			v.warnf("%s output of a float source loses precision", s.ImageFormat)
		}
	}
	if s.Kind == KindAOV && strings.TrimSpace(s.AOV) == "" {
		v.errorf("AOV recorder has no AOV name")
	}
}
