// Package recorder captures frames, audio and animation from a running
// renderer into image sequences, movies and clips.
//
// # Overview
//
// A recorder is described by Settings: what to record (Kind), when to
// record (schedule.RecordMode and its range), how time advances
// (schedule.Playback) and where the output goes (a file name template).
// A Session executes one take of those settings from the host's frame
// loop.
//
// # Quick Start
//
//	import "github.com/gogpu/recorder"
//
//	settings := recorder.DefaultSettings(recorder.KindImage)
//	settings.RecordMode = schedule.FrameInterval
//	settings.StartFrame, settings.EndFrame = 0, 120
//	settings.Width, settings.Height = 1280, 720
//
//	src := recorder.NewImageSource(1280, 720)
//	s, err := recorder.NewSession(&settings, recorder.WithSource(src))
//	if err != nil { ... }
//	if err := s.BeginRecording(ctx); err != nil { ... }
//	for !s.Done() {
//	    s.PrepareNewFrame()
//	    render(src.Image(), s.DeltaTime())
//	    s.RecordFrame(ctx)
//	}
//	s.EndRecording(ctx)
//
// # Frame Pipeline
//
// Every host frame goes through the same steps:
//   - PrepareNewFrame caps the host frame rate (timing), starts the next
//     accumulation sub-frame with its jittered projection (accumulation)
//     and fixes the frame's time.
//   - RecordFrame polls finished readbacks (readback), checks the end of
//     the range and the frame and sub-frame skip rules (schedule) and
//     hands selected frames to the kind's Strategy.
//   - Video strategies request an asynchronous copy of the source. The
//     pixels reach the encoder (encoder) when the copy completes, one or
//     more frames later.
//
// # Sources and Backends
//
// ImageSource and any other readback.PixelSource are read on the CPU.
// GPU textures need a readback.Backend such as the one in backend/wgpu.
//
// # Sharing
//
// Sessions running at the same time share a Shared context: the host's
// fixed capture frame rate is reference counted, only the first movie
// recorder records audio and only one session sleeps per host frame when
// capping.
//
// # Logging
//
// Nothing is logged by default. See SetLogger.
package recorder
