// Package export turns a saved cut into edit decision lists and output paths.
package export

import (
	"github.com/heimdex/heimdex-editor/internal/segments"
)

const (
	// DefaultFrameRate is used for EDL timecodes when the source rate is unknown.
	DefaultFrameRate = 25.0

	// MinClipMs is the shortest clip a render keeps. Kept ranges are also
	// joined when the cut between them is shorter than this.
	MinClipMs = 2000
)

// Clip is one event of an edit decision list.
type Clip struct {
	Name      string
	MediaPath string
	StartMs   int64
	EndMs     int64
}

// ClipsFor names each kept range of a source after the media title.
func ClipsFor(title, mediaPath string, kept []segments.Range) []Clip {
	clips := make([]Clip, 0, len(kept))
	for _, r := range kept {
		clips = append(clips, Clip{
			Name:      title,
			MediaPath: mediaPath,
			StartMs:   r.Start,
			EndMs:     r.End,
		})
	}
	return clips
}

// Consolidate cleans kept ranges before a render: ranges of gap or shorter are
// dropped, then neighbours closer than gap are joined into one. The input must
// be sorted and non-overlapping.
func Consolidate(kept []segments.Range, gap int64) []segments.Range {
	var long []segments.Range
	for _, r := range kept {
		if r.Len() > gap {
			long = append(long, r)
		}
	}
	if len(long) == 0 {
		return nil
	}

	out := []segments.Range{long[0]}
	for _, r := range long[1:] {
		last := &out[len(out)-1]
		if r.Start-last.End < gap {
			last.End = r.End
			continue
		}
		out = append(out, r)
	}
	return out
}

// Total returns the summed length of the ranges in milliseconds.
func Total(ranges []segments.Range) int64 {
	var n int64
	for _, r := range ranges {
		n += r.Len()
	}
	return n
}
