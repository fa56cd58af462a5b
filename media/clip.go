package media

import (
	"context"
	"fmt"

	"github.com/imprevi/clipgen/types"
)

const (
	defaultVideoCodec = "libx264"
	defaultAudioCodec = "aac"
	defaultCRF        = 23
)

// RenderClip cuts the window from the source and encodes it into a
// delivery-ready MP4 at the output path.
func (e *Executor) RenderClip(ctx context.Context, input string, window types.ClipWindow, output string) error {
	if window.Duration() <= 0 {
		return fmt.Errorf("invalid clip window: end must be after start")
	}

	e.logger.Info().
		Str("input", input).
		Str("output", output).
		Float64("start", window.Start).
		Float64("duration", window.Duration()).
		Msg("rendering clip")

	err := e.run(ctx,
		"-ss", formatSeconds(window.Start),
		"-i", input,
		"-t", formatSeconds(window.Duration()),
		"-c:v", defaultVideoCodec,
		"-c:a", defaultAudioCodec,
		"-crf", fmt.Sprintf("%d", defaultCRF),
		"-movflags", "+faststart",
		output,
	)
	if err != nil {
		return fmt.Errorf("clip render failed: %w", err)
	}

	e.logger.Info().Str("output", output).Msg("clip render complete")
	return nil
}

// formatSeconds renders a duration the way ffmpeg's -ss/-t expect it.
func formatSeconds(s float64) string {
	return fmt.Sprintf("%.3f", s)
}
