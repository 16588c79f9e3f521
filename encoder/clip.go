package encoder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Sample is one animation sample.
type Sample struct {
	Frame  int64              `json:"frame"`
	Time   float64            `json:"time"`
	Values map[string]float64 `json:"values"`
}

// Clip is a recorded animation: named properties sampled once per frame.
type Clip struct {
	Name       string   `json:"name"`
	FrameRate  float64  `json:"frameRate"`
	Properties []string `json:"properties"`
	Samples    []Sample `json:"samples"`
}

// ClipWriter collects samples and writes the clip as JSON on Close.
type ClipWriter struct {
	path  string
	clip  Clip
	props map[string]struct{}
	open  bool
}

// NewClipWriter returns a writer for path.
func NewClipWriter(path string) *ClipWriter {
	return &ClipWriter{path: path}
}

// Open starts a new clip.
func (c *ClipWriter) Open(name string, frameRate float64) error {
	if c.open {
		return ErrAlreadyOpen
	}
	c.clip = Clip{Name: name, FrameRate: frameRate}
	c.props = make(map[string]struct{})
	c.open = true
	return nil
}

// Add appends a sample. Values are copied.
func (c *ClipWriter) Add(s Sample) error {
	if !c.open {
		return ErrNotOpen
	}
	vals := make(map[string]float64, len(s.Values))
	for k, v := range s.Values {
		vals[k] = v
		if _, ok := c.props[k]; !ok {
			c.props[k] = struct{}{}
			c.clip.Properties = append(c.clip.Properties, k)
		}
	}
	s.Values = vals
	c.clip.Samples = append(c.clip.Samples, s)
	return nil
}

// Len returns the number of samples collected.
func (c *ClipWriter) Len() int { return len(c.clip.Samples) }

// Close writes the clip. Calling Close on a closed writer is a no-op.
func (c *ClipWriter) Close() error {
	if !c.open {
		return nil
	}
	c.open = false
	sort.Strings(c.clip.Properties)
	data, err := json.MarshalIndent(c.clip, "", "  ")
	if err != nil {
		return fmt.Errorf("encoder: clip: %w", err)
	}
	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("encoder: %w", err)
		}
	}
	if err := os.WriteFile(c.path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("encoder: %w", err)
	}
	slogger().Debug("encoder: clip written", "path", c.path, "samples", len(c.clip.Samples))
	return nil
}

// ReadClip loads a clip written by ClipWriter.
func ReadClip(path string) (*Clip, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("encoder: %w", err)
	}
	var c Clip
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("encoder: clip %s: %w", filepath.Base(path), err)
	}
	return &c, nil
}
