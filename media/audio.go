package media

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
)

// SampleRate is the rate the audio track is resampled to for analysis.
// Mono 16kHz keeps hour-long sources tractable while leaving plenty of
// resolution for one-second energy windows.
const SampleRate = 16000

// SampleRate reports the analysis sample rate ExtractAudio resamples to.
func (e *Executor) SampleRate() int {
	return SampleRate
}

// ExtractAudio decodes the source's audio track into a raw signed 16-bit
// little-endian mono PCM file at SampleRate.
func (e *Executor) ExtractAudio(ctx context.Context, input, output string) error {
	e.logger.Info().Str("input", input).Str("output", output).Msg("extracting audio")

	return e.run(ctx,
		"-i", input,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(SampleRate),
		"-ac", "1",
		"-f", "s16le",
		output,
	)
}

// ReadSamples loads a raw s16le PCM file into normalized samples in [-1, 1].
func (e *Executor) ReadSamples(path string) ([]float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening audio file: %w", err)
	}
	defer file.Close()

	return DecodeSamples(bufio.NewReaderSize(file, 1<<16))
}

// DecodeSamples parses a signed 16-bit little-endian mono stream.
func DecodeSamples(r io.Reader) ([]float64, error) {
	var samples []float64
	buf := make([]byte, 1<<14)
	var carry byte
	haveCarry := false

	for {
		n, err := r.Read(buf)
		chunk := buf[:n]
		if haveCarry && n > 0 {
			samples = append(samples, sampleOf(carry, chunk[0]))
			chunk = chunk[1:]
			haveCarry = false
		}
		for len(chunk) >= 2 {
			samples = append(samples, sampleOf(chunk[0], chunk[1]))
			chunk = chunk[2:]
		}
		if len(chunk) == 1 {
			carry = chunk[0]
			haveCarry = true
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading audio stream: %w", err)
		}
	}

	return samples, nil
}

func sampleOf(lo, hi byte) float64 {
	v := int16(binary.LittleEndian.Uint16([]byte{lo, hi}))
	return float64(v) / 32768.0
}
