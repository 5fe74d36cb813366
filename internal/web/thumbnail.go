package web

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// FFmpegThumbnailer grabs the frame at one second as a 320x240 PNG.
type FFmpegThumbnailer struct {
	Binary string
}

var _ Thumbnailer = FFmpegThumbnailer{}

func (f FFmpegThumbnailer) Generate(ctx context.Context, video []byte) ([]byte, error) {
	tmp, err := os.MkdirTemp("", "thumb-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	videoPath := filepath.Join(tmp, "input")
	if err := os.WriteFile(videoPath, video, 0644); err != nil {
		return nil, fmt.Errorf("failed to write video: %w", err)
	}

	binary := f.Binary
	if binary == "" {
		binary = "ffmpeg"
	}
	thumbPath := filepath.Join(tmp, "thumbnail.png")
	cmd := exec.CommandContext(ctx, binary,
		"-y",
		"-ss", "00:00:01.000",
		"-i", videoPath,
		"-frames:v", "1",
		"-s", "320x240",
		thumbPath,
	)
	cmd.Dir = tmp

	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %w: %s", err, tail(output, 512))
	}

	data, err := os.ReadFile(thumbPath)
	if err != nil {
		return nil, fmt.Errorf("thumbnail not produced: %w", err)
	}
	return data, nil
}

func tail(b []byte, n int) []byte {
	if len(b) > n {
		return b[len(b)-n:]
	}
	return b
}
