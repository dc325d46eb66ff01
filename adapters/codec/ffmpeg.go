package codec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/JaymarM28/kari-transcriptor/domain"
	"go.uber.org/zap"
)

// commandResult is the captured output of one process run.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

func (r *execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}
	return result, nil
}

// Convert transcodes src into mono 16 kHz signed 16-bit WAV at dst.
func (c *Codec) Convert(ctx context.Context, src, dst string) error {
	args := buildFFmpegArgs(src, dst)
	c.logger.Debug("Running ffmpeg",
		zap.String("path", c.ffmpegPath),
		zap.String("args", strings.Join(args, " ")))

	result, err := c.runner.Run(ctx, c.ffmpegPath, args...)
	if err != nil {
		return &domain.ConversionError{
			Stage:   "convert",
			Message: fmt.Sprintf("ffmpeg exited with status %d", result.ExitCode),
			Stderr:  tail(result.Stderr, 2048),
			Err:     err,
		}
	}

	info, err := c.stat(dst)
	if err != nil {
		return &domain.ConversionError{
			Stage:   "convert",
			Message: "ffmpeg produced no output",
			Stderr:  tail(result.Stderr, 2048),
			Err:     err,
		}
	}
	if info.Size() == 0 {
		return &domain.ConversionError{
			Stage:   "convert",
			Message: "ffmpeg produced an empty file",
			Stderr:  tail(result.Stderr, 2048),
		}
	}

	return nil
}

// buildFFmpegArgs builds conversion args for mono 16k PCM WAV output.
func buildFFmpegArgs(inputPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		outPath,
	}
}

// tail keeps the last n bytes of s, where ffmpeg puts the actual error.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func statFile(name string) (os.FileInfo, error) {
	return os.Stat(name)
}
