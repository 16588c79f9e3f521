package recorder

import "errors"

// Session errors.
var (
	// ErrInvalidSettings wraps every settings validation failure.
	ErrInvalidSettings = errors.New("recorder: invalid settings")

	// ErrNotRecording is returned by RecordFrame outside a recording.
	ErrNotRecording = errors.New("recorder: session is not recording")

	// ErrAlreadyRecording is returned by a second BeginRecording.
	ErrAlreadyRecording = errors.New("recorder: session is already recording")

	// ErrSessionEnded is returned when an ended session is restarted.
	ErrSessionEnded = errors.New("recorder: session has ended")

	// ErrNoSource is returned when a video recorder has no texture source.
	ErrNoSource = errors.New("recorder: no texture source")

	// ErrNoBackend is returned when a GPU source has no readback backend.
	ErrNoBackend = errors.New("recorder: no readback backend for source")

	// ErrSourceMismatch is returned when the source does not match the
	// configured size or format.
	ErrSourceMismatch = errors.New("recorder: source does not match settings")

	// ErrNoAudioSource is returned by audio recorders without a source.
	ErrNoAudioSource = errors.New("recorder: no audio source")

	// ErrNoAnimationSource is returned by animation recorders without a source.
	ErrNoAnimationSource = errors.New("recorder: no animation source")
)
