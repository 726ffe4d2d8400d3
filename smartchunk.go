// Package smartchunk provides packet-level, keyframe-aligned video
// chunking: a pure planner, a stream-copy splitter, and a matching
// stitcher, built on cgo bindings to libavformat/libavcodec/libavutil.
package smartchunk

import (
	"context"

	"github.com/five82/smartchunk/internal/muxfmt"
	"github.com/five82/smartchunk/internal/planner"
	"github.com/five82/smartchunk/internal/probe"
	"github.com/five82/smartchunk/internal/reporter"
	"github.com/five82/smartchunk/internal/splitter"
	"github.com/five82/smartchunk/internal/stitcher"
)

// Reporter is the progress-event interface the smartchunk command drives.
// The functions in this package take no Reporter and emit no events.
type Reporter = reporter.Reporter

// NullReporter is a no-op Reporter.
type NullReporter = reporter.NullReporter

// NewCompositeReporter fans events out to every given reporter.
func NewCompositeReporter(reporters ...Reporter) Reporter {
	return reporter.NewCompositeReporter(reporters...)
}

// FrameMeta describes one video packet: presentation time, keyframe flag,
// and wire size.
type FrameMeta = probe.FrameMeta

// ProbeResult is the outcome of a packet-level scan.
type ProbeResult = probe.Result

// Chunk is one keyframe-aligned span of the source timeline.
type Chunk = planner.Chunk

// ChunkPlan is an ordered, contiguous, duration-covering sequence of Chunks.
type ChunkPlan = planner.Plan

// PlanConfig controls chunk sizing.
type PlanConfig = planner.Config

// Format selects a muxer and its options for split or stitch output.
type Format = muxfmt.Format

// Probe scans path's best video stream packet-by-packet and returns its
// frame metadata and best-effort duration. No decoding, no seeking.
func Probe(ctx context.Context, path string) (ProbeResult, error) {
	return probe.Probe(ctx, path)
}

// Plan selects keyframe-aligned cut points from a ProbeResult. Pure
// function: safe to call concurrently with different inputs.
func Plan(result ProbeResult, cfg PlanConfig) (ChunkPlan, error) {
	return planner.Plan(result, cfg)
}

// SplitOne extracts a single chunk from source into outPath via stream copy.
func SplitOne(ctx context.Context, source string, chunk Chunk, outPath string, format Format) error {
	return splitter.SplitOne(ctx, source, chunk, outPath, format)
}

// SplitAll extracts every chunk in plan from source into outDir, in
// parallel across up to workers goroutines (0 selects runtime.NumCPU()).
func SplitAll(ctx context.Context, source string, plan ChunkPlan, outDir string, format Format, workers int) error {
	return splitter.SplitAll(ctx, source, plan, outDir, format, workers)
}

// Stitch concatenates plan's chunk files from chunkDir into outPath, with a
// monotonic, re-based per-stream timeline. chunkFormat locates the chunk
// files on disk (the format SplitAll wrote them in); outFormat selects the
// muxer and options for outPath.
func Stitch(outPath string, plan ChunkPlan, chunkDir string, chunkFormat, outFormat Format) error {
	return stitcher.Stitch(outPath, plan, chunkDir, chunkFormat, outFormat)
}
