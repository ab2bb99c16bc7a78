package tts

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"

	"github.com/pkg/errors"
)

// Transcoder converts a compressed audio file to the uncompressed playback
// format the telephony provider requires.
type Transcoder interface {
	Transcode(ctx context.Context, inPath, outPath string) error
}

// FFmpegTranscoder shells out to ffmpeg for mp3-to-wav conversion.
type FFmpegTranscoder struct {
	// Path is the ffmpeg executable, "ffmpeg" by default.
	Path string
}

// NewFFmpegTranscoder creates a transcoder using the given executable path.
func NewFFmpegTranscoder(path string) *FFmpegTranscoder {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpegTranscoder{Path: path}
}

// Transcode runs ffmpeg with timeout support from ctx.
func (t *FFmpegTranscoder) Transcode(ctx context.Context, inPath, outPath string) error {
	cmd := exec.CommandContext(ctx, t.Path, "-y", "-i", inPath, outPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		slog.Warn("ffmpeg command failed", "error", err, "stderr", stderr.String())
		return errors.Wrap(err, "ffmpeg command failed")
	}
	return nil
}

// IsAvailable checks if ffmpeg can be executed.
func (t *FFmpegTranscoder) IsAvailable(ctx context.Context) bool {
	return exec.CommandContext(ctx, t.Path, "-version").Run() == nil
}

var _ Transcoder = (*FFmpegTranscoder)(nil)
