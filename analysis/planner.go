package analysis

import "github.com/imprevi/clipgen/types"

// minClipGap is the residual gap enforced between adjacent windows after
// boundary clamping pushed them together.
const minClipGap = 0.5

// PlanClips converts peaks into non-overlapping, duration-bounded windows
// clamped to [0, sourceDuration].
//
// Each window has targetDuration centered on its peak, shifted (never
// shrunk) to fit the timeline. A source shorter than targetDuration yields
// a single window covering the whole video. Residual overlap between
// adjacent shifted windows is resolved by truncating the earlier window's
// end, preserving timestamp order.
func PlanClips(peaks []types.PeakCandidate, sourceDuration, targetDuration float64) []types.ClipWindow {
	if len(peaks) == 0 || sourceDuration <= 0 || targetDuration <= 0 {
		return nil
	}

	if sourceDuration <= targetDuration {
		return []types.ClipWindow{{Start: 0, End: sourceDuration, Peak: peaks[0].Timestamp}}
	}

	windows := make([]types.ClipWindow, 0, len(peaks))
	for _, p := range peaks {
		start := p.Timestamp - targetDuration/2
		if start < 0 {
			start = 0
		}
		end := start + targetDuration
		if end > sourceDuration {
			end = sourceDuration
			start = end - targetDuration
		}
		windows = append(windows, types.ClipWindow{Start: start, End: end, Peak: p.Timestamp})
	}

	// Peaks arrive in timestamp order, so only adjacent windows can
	// overlap after clamping.
	for i := 0; i < len(windows)-1; i++ {
		if limit := windows[i+1].Start - minClipGap; windows[i].End > limit {
			windows[i].End = limit
		}
	}

	kept := windows[:0]
	for _, w := range windows {
		if w.Duration() > 0 {
			kept = append(kept, w)
		}
	}
	return kept
}
