package system

import (
	"context"
	"os/exec"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
)

// InitResourceLimits поднимает лимит открытых файлов: каждый сегмент держит
// пайпы ffmpeg и временные файлы.
func InitResourceLimits(log zerolog.Logger) {
	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		log.Warn().Err(err).Msg("read open file limit")
		return
	}
	if rLimit.Cur >= 2048 {
		return
	}

	rLimit.Cur = 2048
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		log.Warn().Err(err).Msg("raise open file limit")
		return
	}
	log.Debug().Uint64("limit", uint64(rLimit.Cur)).Msg("open file limit raised")
}

// Приоритеты: VideoToolbox (macOS), NVENC (NVIDIA), затем программный libx264.
var hardwareEncoders = []string{"h264_videotoolbox", "h264_nvenc"}

// BestH264Encoder asks ffmpeg which encoders it was built with and returns
// the preferred H.264 one.
func BestH264Encoder(ctx context.Context, ffmpeg string) string {
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	out, err := exec.CommandContext(ctx, ffmpeg, "-hide_banner", "-encoders").CombinedOutput()
	if err != nil {
		return "libx264"
	}
	return pickEncoder(string(out))
}

func pickEncoder(listing string) string {
	for _, name := range hardwareEncoders {
		if strings.Contains(listing, name) {
			return name
		}
	}
	return "libx264"
}

// DefaultQuality returns the quality setting each encoder expects when the
// user did not pick one: bitrate/100 for VideoToolbox, CQ for NVENC, CRF for x264.
func DefaultQuality(encoder string) int {
	switch encoder {
	case "h264_videotoolbox":
		return 75
	case "h264_nvenc":
		return 28
	default:
		return 23
	}
}
