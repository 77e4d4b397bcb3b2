package models

import "time"

// JobParams carries per-run overrides. Named fields cover everything the
// pipelines understand; Extra is a forward-compatible escape hatch that is
// stored and echoed back but never interpreted here.
type JobParams struct {
	From            *time.Time        `json:"from,omitempty"`
	To              *time.Time        `json:"to,omitempty"`
	Cursor          string            `json:"cursor,omitempty"`
	PageSize        int               `json:"page_size,omitempty"`
	MaxPages        int               `json:"max_pages,omitempty"`
	MaxKeys         int               `json:"max_keys,omitempty"`
	CheckpointEvery int               `json:"checkpoint_every,omitempty"`
	OverlapSeconds  int               `json:"overlap_seconds,omitempty"`
	Extra           map[string]string `json:"extra,omitempty"`
}

// ParamDefaults are the config-supplied values applied when a field is
// missing, and the bounds fields are clamped to.
type ParamDefaults struct {
	PageSize        int
	MaxPages        int
	MaxKeys         int
	CheckpointEvery int
	Overlap         time.Duration
}

// Clamp validates and bounds the parameters once, at job start. Use-sites
// can then trust every field.
func (p *JobParams) Clamp(d ParamDefaults) {
	p.PageSize = clampInt(p.PageSize, d.PageSize, 1, 100)
	p.MaxPages = clampInt(p.MaxPages, d.MaxPages, 1, 1000)
	p.MaxKeys = clampInt(p.MaxKeys, d.MaxKeys, 1, 100000)
	p.CheckpointEvery = clampInt(p.CheckpointEvery, d.CheckpointEvery, 1, 1000)

	if p.OverlapSeconds <= 0 {
		p.OverlapSeconds = int(d.Overlap / time.Second)
	}
	if max := int(24 * time.Hour / time.Second); p.OverlapSeconds > max {
		p.OverlapSeconds = max
	}

	if p.From != nil && p.To != nil && p.To.Before(*p.From) {
		p.From, p.To = p.To, p.From
	}
}

// Overlap returns the watermark overlap as a duration.
func (p *JobParams) Overlap() time.Duration {
	return time.Duration(p.OverlapSeconds) * time.Second
}

func clampInt(v, def, lo, hi int) int {
	if v == 0 {
		v = def
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
