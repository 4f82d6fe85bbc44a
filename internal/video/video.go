package video

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ivlev/story2video/internal/config"
	"github.com/ivlev/story2video/internal/system"
)

// Segment is one scene ready for encoding: a still frame, its narration and
// the filter chain that animates the frame.
type Segment struct {
	Image     image.Image
	AudioPath string // empty means silence
	Output    string
	Filter    string
	Params    config.SegmentParams
}

type VideoEncoder interface {
	EncodeSegment(ctx context.Context, seg Segment) error
	Concatenate(ctx context.Context, segmentPaths []string, finalPath string) error
}

// FFmpegEncoder encodes H.264 + AAC with the ffmpeg binary.
type FFmpegEncoder struct {
	Binary       string
	Codec        string // h264_videotoolbox, h264_nvenc or libx264
	Quality      int
	AudioBitrate string
}

const sampleRate = "44100"

func (e *FFmpegEncoder) binary() string {
	if e.Binary == "" {
		return "ffmpeg"
	}
	return e.Binary
}

func (e *FFmpegEncoder) EncodeSegment(ctx context.Context, seg Segment) error {
	bounds := seg.Image.Bounds()
	args := e.buildSegmentArgs(bounds.Dx(), bounds.Dy(), seg)

	cmd := exec.CommandContext(ctx, e.binary(), args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe error: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg start error: %w", err)
	}

	// Запись raw RGBA данных
	writeErr := writeRawRGBA(stdin, seg.Image)
	stdin.Close()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg segment %s: %w: %s", filepath.Base(seg.Output), err, tail(stderr.String()))
	}
	if writeErr != nil {
		return fmt.Errorf("write raw frame: %w", writeErr)
	}
	return nil
}

func (e *FFmpegEncoder) buildSegmentArgs(inputW, inputH int, seg Segment) []string {
	p := seg.Params
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", inputW, inputH),
		"-framerate", strconv.Itoa(p.FPS),
		"-i", "-",
	}

	// Аудио сцены дополняется тишиной до конца сегмента (apad), без аудио
	// подставляется пустая дорожка, чтобы concat получил одинаковые потоки.
	var audioGraph string
	if seg.AudioPath != "" {
		args = append(args, "-i", seg.AudioPath)
		audioGraph = fmt.Sprintf("[1:a]aresample=%s,aformat=channel_layouts=stereo,apad[a]", sampleRate)
	} else {
		audioGraph = fmt.Sprintf("anullsrc=r=%s:cl=stereo[a]", sampleRate)
	}

	args = append(args,
		"-filter_complex", fmt.Sprintf("[0:v]%s[v];%s", seg.Filter, audioGraph),
		"-map", "[v]", "-map", "[a]",
		"-frames:v", strconv.Itoa(p.Frames),
		"-t", formatSeconds(float64(p.Frames)/float64(p.FPS)),
		"-r", strconv.Itoa(p.FPS),
		"-pix_fmt", "yuv420p",
		"-c:v", e.codec(),
	)
	args = append(args, e.qualityArgs()...)
	args = append(args, e.audioArgs()...)
	return append(args, seg.Output)
}

func (e *FFmpegEncoder) Concatenate(ctx context.Context, segmentPaths []string, finalPath string) error {
	args := e.buildConcatArgs(segmentPaths, finalPath)
	if args == nil {
		return fmt.Errorf("concat: no segments")
	}
	cmd := exec.CommandContext(ctx, e.binary(), args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg concat error: %w, output: %s", err, tail(string(out)))
	}
	if info, err := os.Stat(finalPath); err != nil || info.Size() == 0 {
		return fmt.Errorf("ffmpeg concat produced no output at %s", finalPath)
	}
	return nil
}

// buildConcatArgs joins the segments in order with the concat filter. A
// single segment is remuxed as is.
func (e *FFmpegEncoder) buildConcatArgs(segmentPaths []string, finalPath string) []string {
	if len(segmentPaths) == 0 {
		return nil
	}
	args := []string{"-y", "-hide_banner", "-loglevel", "error"}
	for _, p := range segmentPaths {
		args = append(args, "-i", p)
	}
	if len(segmentPaths) == 1 {
		return append(args, "-c", "copy", "-movflags", "+faststart", finalPath)
	}

	var graph strings.Builder
	for i := range segmentPaths {
		fmt.Fprintf(&graph, "[%d:v][%d:a]", i, i)
	}
	fmt.Fprintf(&graph, "concat=n=%d:v=1:a=1[v][a]", len(segmentPaths))

	args = append(args,
		"-filter_complex", graph.String(),
		"-map", "[v]", "-map", "[a]",
		"-pix_fmt", "yuv420p",
		"-c:v", e.codec(),
	)
	args = append(args, e.qualityArgs()...)
	args = append(args, e.audioArgs()...)
	return append(args, "-movflags", "+faststart", finalPath)
}

func (e *FFmpegEncoder) codec() string {
	if e.Codec == "" {
		return "libx264"
	}
	return e.Codec
}

// Качество в зависимости от энкодера
func (e *FFmpegEncoder) qualityArgs() []string {
	quality := e.Quality
	if quality <= 0 {
		quality = system.DefaultQuality(e.codec())
	}
	switch e.codec() {
	case "h264_videotoolbox":
		// VideoToolbox не везде поддерживает -q:v, используем битрейт: 75 -> 7.5 Мбит/с
		return []string{"-b:v", fmt.Sprintf("%dk", quality*100)}
	case "h264_nvenc":
		return []string{"-cq", strconv.Itoa(quality)}
	default: // libx264
		return []string{"-crf", strconv.Itoa(quality), "-preset", "medium"}
	}
}

func (e *FFmpegEncoder) audioArgs() []string {
	bitrate := e.AudioBitrate
	if bitrate == "" {
		bitrate = "192k"
	}
	return []string{"-c:a", "aac", "-b:a", bitrate, "-ar", sampleRate, "-ac", "2"}
}

func writeRawRGBA(w io.Writer, img image.Image) error {
	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != bounds.Dx()*4 || rgba.Rect.Min.X != 0 || rgba.Rect.Min.Y != 0 {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	}
	_, err := w.Write(rgba.Pix[:bounds.Dy()*rgba.Stride])
	return err
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 6, 64)
}

func tail(out string) string {
	out = strings.TrimSpace(out)
	const limit = 2000
	if len(out) > limit {
		return "..." + out[len(out)-limit:]
	}
	return out
}
