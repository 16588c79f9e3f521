package recorder

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Kind selects what a session records.
type Kind uint8

const (
	// KindImage writes one image file per recorded frame.
	KindImage Kind = iota

	// KindMovie writes a single movie stream, optionally with audio.
	KindMovie

	// KindAOV writes an image sequence of one render layer (depth,
	// normals and so on).
	KindAOV

	// KindAudio writes the audio track only.
	KindAudio

	// KindAnimation samples animated properties once per recorded frame.
	KindAnimation
)

var kindNames = [...]string{
	KindImage:     "image",
	KindMovie:     "movie",
	KindAOV:       "aov",
	KindAudio:     "audio",
	KindAnimation: "animation",
}

// String returns the lower-case kind name.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// DisplayName returns the kind name for people, e.g. "Movie".
func (k Kind) DisplayName() string {
	if k == KindAOV {
		return "AOV"
	}
	return cases.Title(language.English).String(k.String())
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool { return int(k) < len(kindNames) }

// Video reports whether the kind captures frames from a texture source.
func (k Kind) Video() bool {
	return k == KindImage || k == KindMovie || k == KindAOV
}

// ParseKind parses a kind name, case-insensitively.
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if strings.EqualFold(s, name) {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("recorder: unknown kind %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("recorder: invalid kind %d", k)
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}
