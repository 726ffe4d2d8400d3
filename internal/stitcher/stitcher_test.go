package stitcher

import (
	"testing"

	"github.com/five82/smartchunk/internal/avio"
)

func TestRebaseFromBase(t *testing.T) {
	tests := []struct {
		name           string
		pts, dts       int64
		base, offset   int64
		wantPTS        int64
		wantDTS        int64
	}{
		{
			name: "shifts both onto the running offset",
			pts:  1000, dts: 980, base: 1000, offset: 500,
			wantPTS: 500, wantDTS: 480,
		},
		{
			name: "zero offset on the second chunk's first packet",
			pts:  2000, dts: 2000, base: 2000, offset: 0,
			wantPTS: 0, wantDTS: 0,
		},
		{
			name: "missing pts passes through as NoPTS",
			pts:  avio.NoPTS, dts: 100, base: 100, offset: 50,
			wantPTS: avio.NoPTS, wantDTS: 50,
		},
		{
			name: "missing dts passes through as NoPTS",
			pts:  100, dts: avio.NoPTS, base: 100, offset: 50,
			wantPTS: 50, wantDTS: avio.NoPTS,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotPTS, gotDTS := rebaseFromBase(tt.pts, tt.dts, tt.base, tt.offset)
			if gotPTS != tt.wantPTS || gotDTS != tt.wantDTS {
				t.Errorf("rebaseFromBase(%d,%d,%d,%d) = (%d,%d), want (%d,%d)",
					tt.pts, tt.dts, tt.base, tt.offset, gotPTS, gotDTS, tt.wantPTS, tt.wantDTS)
			}
		})
	}
}

func TestCoalesceTimestamps(t *testing.T) {
	tests := []struct {
		name     string
		pts, dts int64
		wantPTS  int64
		wantDTS  int64
	}{
		{"both present and ordered", 100, 90, 100, 90},
		{"missing pts filled from dts", avio.NoPTS, 90, 90, 90},
		{"missing dts filled from pts", 100, avio.NoPTS, 100, 100},
		{"both missing stay missing", avio.NoPTS, avio.NoPTS, avio.NoPTS, avio.NoPTS},
		{"pts behind dts is raised to dts", 100, 150, 150, 150},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotPTS, gotDTS := coalesceTimestamps(tt.pts, tt.dts)
			if gotPTS != tt.wantPTS || gotDTS != tt.wantDTS {
				t.Errorf("coalesceTimestamps(%d,%d) = (%d,%d), want (%d,%d)",
					tt.pts, tt.dts, gotPTS, gotDTS, tt.wantPTS, tt.wantDTS)
			}
		})
	}
}

func TestOneFrameDuration(t *testing.T) {
	tests := []struct {
		name string
		s    avio.StreamInfo
		want int64
	}{
		{
			name: "25fps video in a 90kHz time base",
			s: avio.StreamInfo{
				TimeBase:     avio.Rational{Num: 1, Den: 90000},
				AvgFrameRate: avio.Rational{Num: 25, Den: 1},
			},
			want: 3600, // 90000/25
		},
		{
			name: "unknown frame rate falls back to zero",
			s: avio.StreamInfo{
				TimeBase:     avio.Rational{Num: 1, Den: 48000},
				AvgFrameRate: avio.Rational{Num: 0, Den: 0},
			},
			want: 0,
		},
		{
			name: "audio stream (no meaningful frame rate) falls back to zero",
			s: avio.StreamInfo{
				TimeBase:     avio.Rational{Num: 1, Den: 48000},
				AvgFrameRate: avio.Rational{Num: 0, Den: 1},
			},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := oneFrameDuration(tt.s)
			if got != tt.want {
				t.Errorf("oneFrameDuration(%+v) = %d, want %d", tt.s, got, tt.want)
			}
		})
	}
}

// TestMonotonicAcrossChunkBoundary checks stitcher monotonicity: rebasing
// chunk N+1's first packet onto chunk N's running offset must never produce
// a pts/dts that goes backward relative to the last packet written for
// chunk N.
func TestMonotonicAcrossChunkBoundary(t *testing.T) {
	s := avio.StreamInfo{
		TimeBase:     avio.Rational{Num: 1, Den: 90000},
		AvgFrameRate: avio.Rational{Num: 25, Den: 1},
	}
	step := oneFrameDuration(s)

	// Chunk 0: packets at 0, 3600, 7200 (verbatim).
	lastPTS, lastDTS := int64(0), int64(0)
	for _, pts := range []int64{0, 3600, 7200} {
		lastPTS, lastDTS = coalesceTimestamps(pts, pts)
	}
	offset := lastPTS + step

	// Chunk 1's packets here start at 0; base is its first packet's own pts,
	// so only each packet's distance from that first packet matters.
	base := int64(0)
	firstRebasedPTS, firstRebasedDTS := rebaseFromBase(0, 0, base, offset)
	firstRebasedPTS, firstRebasedDTS = coalesceTimestamps(firstRebasedPTS, firstRebasedDTS)

	if firstRebasedPTS <= lastPTS {
		t.Errorf("chunk boundary pts went non-increasing: last=%d, next=%d", lastPTS, firstRebasedPTS)
	}
	if firstRebasedDTS <= lastDTS {
		t.Errorf("chunk boundary dts went non-increasing: last=%d, next=%d", lastDTS, firstRebasedDTS)
	}

	// Within chunk 1, rebased values must stay non-decreasing too.
	prev := firstRebasedPTS
	for _, pts := range []int64{3600, 7200, 10800} {
		rp, _ := rebaseFromBase(pts, pts, base, offset)
		if rp < prev {
			t.Errorf("within-chunk pts went backward: prev=%d, next=%d", prev, rp)
		}
		prev = rp
	}
}
