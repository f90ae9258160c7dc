package filter

import "time"

// Preset resolves a "now"-relative time-range preset name ("15m", "1h",
// "6h", "24h") into an explicit [from, now] window. The wall clock is read
// once, when the preset is chosen; filtering itself stays deterministic.
// Unknown names yield an unbounded range.
func Preset(name string, now time.Time) (from, to *time.Time) {
	var d time.Duration
	switch name {
	case "15m":
		d = 15 * time.Minute
	case "1h":
		d = time.Hour
	case "6h":
		d = 6 * time.Hour
	case "24h":
		d = 24 * time.Hour
	default:
		return nil, nil
	}
	f := now.Add(-d)
	return &f, &now
}
