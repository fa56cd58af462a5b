package types

import "fmt"

// PeakCandidate is a moment of high audio energy, transient to one
// analysis run.
type PeakCandidate struct {
	Timestamp float64 `json:"timestamp"`
	Energy    float64 `json:"energy"`
}

// ClipWindow is a bounded time span selected for extraction. Peak carries
// the timestamp of the candidate the window was derived from.
type ClipWindow struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Peak  float64 `json:"peak"`
}

// Duration returns the window length in seconds.
func (w ClipWindow) Duration() float64 {
	return w.End - w.Start
}

// MediaInfo is what probing a source file reveals.
type MediaInfo struct {
	Duration float64 `json:"duration"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	HasAudio bool    `json:"hasAudio"`
	Title    string  `json:"title,omitempty"`
}

// Resolution renders WxH, or empty when no video stream was found.
func (m MediaInfo) Resolution() string {
	if m.Width == 0 && m.Height == 0 {
		return ""
	}
	return fmt.Sprintf("%dx%d", m.Width, m.Height)
}
