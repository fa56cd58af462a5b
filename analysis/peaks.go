// Package analysis holds the pure signal-analysis core: RMS energy
// windowing, adaptive peak detection, and clip window planning. Nothing in
// here touches the filesystem or ffmpeg, so every function is deterministic
// and directly testable.
package analysis

import (
	"math"
	"sort"

	"github.com/imprevi/clipgen/types"
)

// WindowSeconds is the energy window length. One second is coarse enough
// to survive noisy streams and fine enough to localize a shout.
const WindowSeconds = 1.0

// maxRelaxations bounds the adaptive fallback: when a pass finds no peaks
// the threshold multiplier is halved and the pass re-run, at most this many
// times.
const maxRelaxations = 3

// sensitivitySlope converts the (0,1] sensitivity parameter into the
// threshold multiplier: factor = (1 - sensitivity) * sensitivitySlope.
// Sensitivity is direct — a higher value lowers the bar and can only add
// peaks, never remove them.
const sensitivitySlope = 2.0

// RMS computes root-mean-square energy of one window of samples.
func RMS(window []float64) float64 {
	if len(window) == 0 {
		return 0
	}
	var sum float64
	for _, s := range window {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(window)))
}

// WindowEnergies partitions samples into WindowSeconds windows and returns
// the RMS energy of each. A trailing partial window counts as its own
// window.
func WindowEnergies(samples []float64, sampleRate int) []float64 {
	if sampleRate <= 0 || len(samples) == 0 {
		return nil
	}

	windowSize := int(float64(sampleRate) * WindowSeconds)
	if windowSize <= 0 {
		return nil
	}

	energies := make([]float64, 0, len(samples)/windowSize+1)
	for start := 0; start < len(samples); start += windowSize {
		end := start + windowSize
		if end > len(samples) {
			end = len(samples)
		}
		energies = append(energies, RMS(samples[start:end]))
	}
	return energies
}

// DetectPeaks finds moments whose window energy substantially exceeds the
// running baseline (the mean of all earlier windows). A window is a peak
// candidate when energy > baseline * (1 + factor); the factor derives from
// params.Sensitivity as documented on that type. Accepted peaks are at
// least params.TargetClipDuration seconds apart — of two closer candidates
// the more energetic wins. When a pass finds nothing the factor is halved,
// up to maxRelaxations times, after which an empty result is final.
//
// The result holds at most params.MaxClips candidates: the highest-energy
// ones, re-sorted by timestamp.
func DetectPeaks(energies []float64, params types.Parameters) []types.PeakCandidate {
	if len(energies) < 2 {
		return nil
	}

	factor := (1 - params.Sensitivity) * sensitivitySlope
	for attempt := 0; attempt <= maxRelaxations; attempt++ {
		peaks := detectAt(energies, factor, params.TargetClipDuration)
		if len(peaks) > 0 {
			return selectTop(peaks, params.MaxClips)
		}
		factor /= 2
	}
	return nil
}

// detectAt runs a single detection pass at a fixed threshold multiplier.
// Window i is judged against the mean of windows 0..i-1, so the first
// window only seeds the baseline.
func detectAt(energies []float64, factor, minSpacing float64) []types.PeakCandidate {
	var peaks []types.PeakCandidate
	var sum float64

	for i, energy := range energies {
		if i > 0 {
			baseline := sum / float64(i)
			if baseline > 0 && energy > baseline*(1+factor) {
				candidate := types.PeakCandidate{
					Timestamp: float64(i) * WindowSeconds,
					Energy:    energy,
				}
				peaks = appendSpaced(peaks, candidate, minSpacing)
			}
		}
		sum += energy
	}
	return peaks
}

// appendSpaced enforces minimum spacing between accepted peaks, keeping
// the higher-energy candidate on conflict.
func appendSpaced(peaks []types.PeakCandidate, c types.PeakCandidate, minSpacing float64) []types.PeakCandidate {
	if n := len(peaks); n > 0 && c.Timestamp-peaks[n-1].Timestamp < minSpacing {
		if c.Energy > peaks[n-1].Energy {
			peaks[n-1] = c
		}
		return peaks
	}
	return append(peaks, c)
}

// selectTop keeps the max highest-energy candidates, ordered by timestamp.
func selectTop(peaks []types.PeakCandidate, max int) []types.PeakCandidate {
	if len(peaks) <= max {
		return peaks
	}

	byEnergy := append([]types.PeakCandidate(nil), peaks...)
	sort.Slice(byEnergy, func(i, j int) bool {
		if byEnergy[i].Energy != byEnergy[j].Energy {
			return byEnergy[i].Energy > byEnergy[j].Energy
		}
		return byEnergy[i].Timestamp < byEnergy[j].Timestamp
	})

	kept := byEnergy[:max]
	sort.Slice(kept, func(i, j int) bool {
		return kept[i].Timestamp < kept[j].Timestamp
	})
	return kept
}
