// Command recdemo renders an animated scene with gg and records it.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"image/draw"
	"log"
	"log/slog"
	"math"
	"os"
	"runtime"

	"github.com/dustin/go-humanize"
	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	"github.com/gogpu/gputypes"
	webgpu "github.com/gogpu/wgpu"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/gogpu/recorder"
	"github.com/gogpu/recorder/accumulation"
	wgpubackend "github.com/gogpu/recorder/backend/wgpu"
	"github.com/gogpu/recorder/encoder"
	"github.com/gogpu/recorder/schedule"
)

func main() {
	var (
		kindName  = flag.String("kind", "image", "recorder kind: image, movie, aov, audio, animation")
		mode      = flag.String("mode", "frames", "record mode: manual, single, frames, time")
		playback  = flag.String("playback", "constant", "playback: constant, variable")
		fps       = flag.Float64("fps", 30, "frame rate")
		start     = flag.Float64("start", 0, "start frame, or start time in seconds for -mode time")
		end       = flag.Float64("end", 60, "end frame, or end time in seconds for -mode time")
		frames    = flag.Int("frames", 0, "host frames to run; 0 runs until the range ends")
		samples   = flag.Int("samples", 1, "accumulation samples per frame")
		shutter   = flag.Float64("shutter", 1, "shutter interval in [0,1]")
		jitter    = flag.Bool("jitter", true, "sub-pixel jitter while accumulating")
		format    = flag.String("format", "png", "image format: png, jpeg, tiff, bmp, raw")
		out       = flag.String("out", "", "output file name template")
		width     = flag.Int("width", 640, "frame width")
		height    = flag.Int("height", 360, "frame height")
		capRate   = flag.Bool("cap", false, "cap the loop at the frame rate")
		settingsF = flag.String("settings", "", "JSON settings file; flags are ignored")
		useGPU    = flag.Bool("gpu", false, "read frames back through a wgpu texture")
		workers   = flag.Int("workers", runtime.NumCPU(), "concurrent image encodes; 0 encodes in the frame loop")
		verbose   = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	recorder.SetLogger(logger)
	wgpubackend.SetLogger(logger)

	var settings recorder.Settings
	var err error
	if *settingsF != "" {
		settings, err = loadSettings(*settingsF)
	} else {
		settings, err = flagSettings(flagValues{
			kind: *kindName, mode: *mode, playback: *playback, fps: *fps,
			start: *start, end: *end, samples: *samples, shutter: *shutter,
			jitter: *jitter, format: *format, out: *out,
			width: *width, height: *height, capRate: *capRate,
		})
	}
	if err != nil {
		log.Fatalf("settings: %v", err)
	}

	if err := run(context.Background(), &settings, *frames, *workers, *useGPU); err != nil {
		log.Fatal(err)
	}
}

type flagValues struct {
	kind, mode, playback, format, out string
	fps, start, end, shutter          float64
	samples, width, height            int
	jitter, capRate                   bool
}

func flagSettings(v flagValues) (recorder.Settings, error) {
	kind, err := recorder.ParseKind(v.kind)
	if err != nil {
		return recorder.Settings{}, err
	}
	s := recorder.DefaultSettings(kind)
	if s.RecordMode, err = schedule.ParseRecordMode(v.mode); err != nil {
		return s, err
	}
	if s.Playback, err = schedule.ParsePlayback(v.playback); err != nil {
		return s, err
	}
	if s.ImageFormat, err = encoder.ParseImageFormat(v.format); err != nil {
		return s, err
	}
	s.FrameRate = v.fps
	s.StartFrame, s.EndFrame = int(v.start), int(v.end)
	s.StartTime, s.EndTime = v.start, v.end
	s.Width, s.Height = v.width, v.height
	s.CapFrameRate = v.capRate
	if v.out != "" {
		s.OutputPath = v.out
	}
	s.Accumulation.Samples = v.samples
	s.Accumulation.CaptureAccumulation = v.samples > 1
	s.Accumulation.ShutterInterval = v.shutter
	s.Accumulation.SubPixelJitter = v.jitter
	return s, nil
}

func loadSettings(path string) (recorder.Settings, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return recorder.Settings{}, err
	}
	var head struct {
		Kind recorder.Kind `json:"kind"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		return recorder.Settings{}, err
	}
	s := recorder.DefaultSettings(head.Kind)
	if err := json.Unmarshal(b, &s); err != nil {
		return s, err
	}
	return s, nil
}

func run(ctx context.Context, settings *recorder.Settings, frames, workers int, useGPU bool) error {
	src := recorder.NewImageSource(settings.Width, settings.Height)
	scene, err := newScene(src)
	if err != nil {
		return err
	}

	opts := []recorder.Option{
		recorder.WithSource(src),
		recorder.WithPipeline(scene.pipeline),
		recorder.WithAudioSource(&tone{rate: 48000, channels: 2, freq: 440}),
		recorder.WithAnimationSource(scene),
		recorder.WithProject("recdemo"),
		recorder.WithEncodeWorkers(workers),
	}
	if useGPU {
		gpu, err := openGPU(settings, scene)
		if err != nil {
			return err
		}
		defer gpu.close()
		opts = append(opts,
			recorder.WithSource(gpu.texture),
			recorder.WithReadbackBackend(gpu.backend))
	}

	s, err := recorder.NewSession(settings, opts...)
	if err != nil {
		return err
	}
	if err := s.BeginRecording(ctx); err != nil {
		return err
	}
	if frames <= 0 && settings.RecordMode == schedule.Manual {
		frames = int(math.Ceil(settings.FrameRate * 2))
	}

	for i := 0; !s.Done() && (frames <= 0 || i < frames); i++ {
		s.PrepareNewFrame()
		if err := scene.render(s.Time(), s.FrameIndex()); err != nil {
			log.Printf("render: %v", err)
		}
		if err := s.RecordFrame(ctx); err != nil {
			return err
		}
	}
	if err := s.EndRecording(ctx); err != nil {
		return err
	}

	st := s.Stats()
	fmt.Printf("%s take %d: %s frames recorded, %d dropped, %d readback buffers allocated, %s reuses\n",
		settings.DisplayName(), settings.Take-1,
		humanize.Comma(s.RecordedFrames()), s.DroppedFrames(),
		st.Allocated, humanize.Comma(int64(st.Reused)))
	fmt.Printf("output: %s\n", s.OutputPath(0))
	return nil
}

// gpuTarget mirrors the rendered frames into a wgpu texture.
type gpuTarget struct {
	gpu     *wgpubackend.GPU
	texture *wgpubackend.Texture
	backend *wgpubackend.Backend

	// accumulate is loaded when the session blends sub-frames.
	accumulate *webgpu.ShaderModule
}

func openGPU(settings *recorder.Settings, sc *scene) (*gpuTarget, error) {
	gpu, err := wgpubackend.OpenGPU("recdemo")
	if err != nil {
		return nil, err
	}
	format := gputypes.TextureFormatRGBA8Unorm
	if err := gpu.CheckCaptureSize(settings.Width, settings.Height, format); err != nil {
		gpu.Close()
		return nil, err
	}
	tex, err := wgpubackend.NewCaptureTexture(gpu.Device, settings.Width, settings.Height, format, "recdemo_capture")
	if err != nil {
		gpu.Close()
		return nil, err
	}
	backend, err := wgpubackend.NewBackend(gpu.Device, "recdemo_readback")
	if err != nil {
		tex.Release()
		gpu.Close()
		return nil, err
	}
	target := &gpuTarget{gpu: gpu, texture: tex, backend: backend}
	if settings.Accumulation.Enabled() {
		mod, err := wgpubackend.NewAccumulateModule(gpu.Device)
		if err != nil {
			target.close()
			return nil, fmt.Errorf("accumulation shader: %w", err)
		}
		target.accumulate = mod
	}
	queue := gpu.Device.Queue()
	sc.present = func(pix []byte) error { return tex.Upload(queue, pix) }
	return target, nil
}

func (g *gpuTarget) close() {
	if g.accumulate != nil {
		g.accumulate.Release()
	}
	g.texture.Release()
	g.gpu.Close()
}

// scene draws an orbiting circle with a caption.
type scene struct {
	src      *recorder.ImageSource
	dc       *gg.Context
	face     text.Face
	scratch  *image.RGBA
	pipeline *softPipeline
	x, y     float64

	// present, when set, receives every finished frame.
	present func(pix []byte) error
}

func newScene(src *recorder.ImageSource) (*scene, error) {
	fonts, err := text.NewFontSource(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("font: %w", err)
	}
	w, h := src.Width(), src.Height()
	return &scene{
		src:      src,
		dc:       gg.NewContext(w, h),
		face:     fonts.Face(18),
		scratch:  image.NewRGBA(image.Rect(0, 0, w, h)),
		pipeline: newSoftPipeline(w, h),
	}, nil
}

func (sc *scene) render(t float64, frame int64) error {
	w, h := float64(sc.src.Width()), float64(sc.src.Height())
	dx, dy := sc.pipeline.camera.offset()
	dc := sc.dc

	dc.SetRGB(0.08, 0.1, 0.16)
	dc.DrawRectangle(0, 0, w, h)
	if err := dc.Fill(); err != nil {
		return err
	}

	sc.x = w/2 + math.Cos(t*2)*w/4
	sc.y = h/2 + math.Sin(t*2)*h/4
	dc.SetColor(gg.HSL(math.Mod(t*90, 360), 0.8, 0.6))
	dc.DrawCircle(sc.x+dx, sc.y+dy, h/10)
	if err := dc.Fill(); err != nil {
		return err
	}

	dc.SetRGB(1, 1, 1)
	dc.SetFont(sc.face)
	dc.DrawString(fmt.Sprintf("frame %d  t=%.3fs", frame, t), 12+dx, 28+dy)

	draw.Draw(sc.scratch, sc.scratch.Bounds(), dc.Image(), image.Point{}, draw.Src)
	if err := sc.pipeline.submit(sc.scratch.Pix, sc.src.Image().Pix); err != nil {
		return err
	}
	if sc.present != nil {
		return sc.present(sc.src.Image().Pix)
	}
	return nil
}

// Sample implements recorder.AnimationSource.
func (sc *scene) Sample() map[string]float64 {
	return map[string]float64{"circle.x": sc.x, "circle.y": sc.y}
}

// softPipeline accumulates sub-frames on the CPU.
type softPipeline struct {
	camera *orthoCamera
	acc    *accumulation.Accumulator
}

func newSoftPipeline(w, h int) *softPipeline {
	return &softPipeline{camera: newOrthoCamera(w, h)}
}

func (p *softPipeline) SupportsAccumulation() bool { return true }

func (p *softPipeline) BeginAccumulation(_ context.Context, samples int, weights []float64) error {
	w, h := p.camera.Size()
	acc, err := accumulation.NewAccumulator(w, h, weights)
	if err != nil {
		return err
	}
	p.acc = acc
	return nil
}

func (p *softPipeline) EndAccumulation() { p.acc = nil }

func (p *softPipeline) Cameras() []accumulation.Camera {
	return []accumulation.Camera{p.camera}
}

// submit copies a rendered frame to dst, through the accumulator while one
// is active.
func (p *softPipeline) submit(rgba, dst []byte) error {
	if p.acc == nil {
		copy(dst, rgba)
		return nil
	}
	resolved, err := p.acc.Add(rgba)
	if err != nil {
		return err
	}
	if resolved {
		copy(dst, p.acc.Resolved())
	}
	return nil
}

// orthoCamera maps pixels to clip space.
type orthoCamera struct {
	w, h int
	base accumulation.Matrix4
	proj accumulation.Matrix4
}

func newOrthoCamera(w, h int) *orthoCamera {
	m := accumulation.Orthographic(0, float64(w), float64(h), 0, -1, 1)
	return &orthoCamera{w: w, h: h, base: m, proj: m}
}

func (c *orthoCamera) Projection() accumulation.Matrix4     { return c.proj }
func (c *orthoCamera) SetProjection(m accumulation.Matrix4) { c.proj = m }
func (c *orthoCamera) Size() (int, int)                     { return c.w, c.h }

// offset returns the jitter applied to the projection in pixels. Clip y
// points up while pixel rows go down.
func (c *orthoCamera) offset() (float64, float64) {
	return (c.proj[12] - c.base[12]) * float64(c.w) / 2,
		-(c.proj[13] - c.base[13]) * float64(c.h) / 2
}

// tone is a sine wave audio source.
type tone struct {
	rate, channels int
	freq           float64
	n              int64
}

func (a *tone) SampleRate() int { return a.rate }
func (a *tone) Channels() int   { return a.channels }

func (a *tone) ReadAudio(dst []int16) (int, error) {
	for i := 0; i+a.channels <= len(dst); i += a.channels {
		v := int16(math.Sin(2*math.Pi*a.freq*float64(a.n)/float64(a.rate)) * 0.25 * math.MaxInt16)
		for c := 0; c < a.channels; c++ {
			dst[i+c] = v
		}
		a.n++
	}
	return len(dst) - len(dst)%a.channels, nil
}
