package recorder

import (
	"fmt"
	"strings"
	"time"
)

// Wildcards recognised by ExpandTemplate.
const (
	WildcardRecorder   = "<Recorder>"
	WildcardTake       = "<Take>"
	WildcardFrame      = "<Frame>"
	WildcardTime       = "<Time>"
	WildcardDate       = "<Date>"
	WildcardResolution = "<Resolution>"
	WildcardAOV        = "<AOV>"
	WildcardExtension  = "<Extension>"
	WildcardProject    = "<Project>"
)

// TemplateContext supplies wildcard values.
type TemplateContext struct {
	Recorder  string
	Take      int
	Frame     int64
	Now       time.Time
	Width     int
	Height    int
	AOV       string
	Extension string
	Project   string
}

// DefaultOutputPath returns the default file name template for kind.
func DefaultOutputPath(kind Kind) string {
	switch kind {
	case KindImage:
		return "Recordings/<Recorder>_<Take>/<Recorder>_<Take>_<Frame>.<Extension>"
	case KindAOV:
		return "Recordings/<Recorder>_<Take>/<AOV>_<Take>_<Frame>.<Extension>"
	default:
		return "Recordings/<Recorder>_<Take>.<Extension>"
	}
}

// ExpandTemplate replaces the wildcards in tmpl. <Take> is zero-padded to
// three digits and <Frame> to four. <Recorder> and <Project> have path
// separators and spaces replaced so they stay one path element.
func ExpandTemplate(tmpl string, c TemplateContext) string {
	r := strings.NewReplacer(
		WildcardRecorder, sanitize(c.Recorder),
		WildcardTake, fmt.Sprintf("%03d", c.Take),
		WildcardFrame, fmt.Sprintf("%04d", c.Frame),
		WildcardTime, c.Now.Format("15h04m"),
		WildcardDate, c.Now.Format("2006-01-02"),
		WildcardResolution, fmt.Sprintf("%dx%d", c.Width, c.Height),
		WildcardAOV, sanitize(c.AOV),
		WildcardExtension, c.Extension,
		WildcardProject, sanitize(c.Project),
	)
	return r.Replace(tmpl)
}

var sanitizer = strings.NewReplacer("/", "_", "\\", "_", " ", "_", ":", "_")

func sanitize(s string) string { return sanitizer.Replace(s) }
