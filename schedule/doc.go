// Package schedule decides, for each rendered host frame and sub-frame,
// whether the capture pipeline runs.
//
// The functions here are pure: they read a snapshot of the recording state
// and return a decision. Sessions call ShouldSkipFrame once per host frame
// and ShouldSkipSubFrame once per accumulation sub-frame.
//
// # Record modes
//
//   - Manual: records from start until the host stops the session.
//   - SingleFrame: records exactly the start frame.
//   - FrameInterval: records frames in [StartFrame, EndFrame).
//   - TimeInterval: records while StartTime <= t < EndTime.
//
// Boundaries are inclusive at the start: a frame whose index equals the start
// frame is captured.
package schedule
