package types

// RemoteJobRequest is the JSON body for submitting a remote VOD reference.
type RemoteJobRequest struct {
	URL                string   `json:"url" binding:"required,url"`
	Sensitivity        *float64 `json:"sensitivity,omitempty"`
	TargetClipDuration *float64 `json:"targetClipDuration,omitempty"`
	MaxClips           *int     `json:"maxClips,omitempty"`
}

// Parameters merges the request's overrides onto the defaults.
func (r RemoteJobRequest) ToParameters() Parameters {
	p := DefaultParameters()
	if r.Sensitivity != nil {
		p.Sensitivity = *r.Sensitivity
	}
	if r.TargetClipDuration != nil {
		p.TargetClipDuration = *r.TargetClipDuration
	}
	if r.MaxClips != nil {
		p.MaxClips = *r.MaxClips
	}
	return p
}

// Stats is the system-wide counters snapshot returned by the stats endpoint.
type Stats struct {
	JobsByStatus        map[JobStatus]int `json:"jobsByStatus"`
	TotalJobs           int               `json:"totalJobs"`
	TotalClipsGenerated int               `json:"totalClipsGenerated"`
	DiskUsageBytes      int64             `json:"diskUsageBytes"`
}
