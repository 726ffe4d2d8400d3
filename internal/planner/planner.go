// Package planner turns a probe.Result into a keyframe-aligned ChunkPlan.
// It is a pure function: no I/O, no global state, safe to call concurrently
// with different inputs.
package planner

import (
	"math"

	serr "github.com/five82/smartchunk/internal/errors"
	"github.com/five82/smartchunk/internal/probe"
)

const eps = 1e-6

// Chunk is one keyframe-aligned span of the source timeline.
type Chunk struct {
	Index      int
	Start, End float64
}

// Plan is an ordered, contiguous, duration-covering sequence of chunks.
type Plan struct {
	Chunks []Chunk
}

// Config controls chunk sizing. Target, Min, and Max are seconds.
// IdealParallelism, if positive, overrides Target as Duration/IdealParallelism.
// MinChunks/MaxChunks bound the resulting chunk count (0 means unbounded).
// AllowTinyLast disables the tiny-tail merge when true.
type Config struct {
	Target           float64
	Min              float64
	Max              float64
	IdealParallelism int
	MinChunks        int
	MaxChunks        int
	AllowTinyLast    bool
}

// Plan selects cut points from result's keyframes according to cfg and
// returns the resulting chunk plan.
func Plan(result probe.Result, cfg Config) (Plan, error) {
	if len(result.Frames) == 0 || result.Duration <= 0 {
		return Plan{}, serr.New(serr.KindInval, "planner.Plan", nil)
	}

	target := cfg.Target
	if cfg.IdealParallelism > 0 {
		target = result.Duration / float64(cfg.IdealParallelism)
	}
	if target <= 0 {
		target = 10.0
	}

	minDur := cfg.Min
	if minDur <= 0 {
		minDur = target * 0.5
	}
	maxDur := cfg.Max
	if maxDur <= 0 {
		maxDur = target * 2.0
	}
	if maxDur < minDur {
		maxDur = minDur
	}

	keyTimes := collectKeyframes(result.Frames)

	var plan Plan
	if len(keyTimes) == 0 {
		appendChunk(&plan, 0, 0, result.Duration)
		return plan, nil
	}

	start := 0.0
	cursor := 0
	index := 0

	for start < result.Duration-eps {
		cut := chooseCut(start, result.Duration, target, minDur, maxDur, keyTimes, &cursor)
		if cut <= start+eps {
			cut = math.Min(start+maxDur, result.Duration)
		}
		appendChunk(&plan, index, start, cut)
		index++
		start = cut
	}

	if len(plan.Chunks) == 0 {
		return Plan{}, serr.New(serr.KindInval, "planner.Plan", nil)
	}

	plan.Chunks[len(plan.Chunks)-1].End = result.Duration
	if !cfg.AllowTinyLast {
		mergeTinyTail(&plan, minDur, result.Duration)
	}

	if cfg.MinChunks > 0 || cfg.MaxChunks > 0 {
		plan = enforceChunkCountBounds(plan, result, cfg, minDur, maxDur)
	}

	normalize(&plan, result.Duration)
	renumber(&plan)
	return plan, nil
}

func collectKeyframes(frames []probe.FrameMeta) []float64 {
	var times []float64
	for _, f := range frames {
		if f.IsKeyframe {
			times = append(times, f.PTSTime)
		}
	}
	return times
}

func appendChunk(plan *Plan, index int, start, end float64) {
	if end < start+eps {
		return
	}
	plan.Chunks = append(plan.Chunks, Chunk{Index: index, Start: start, End: end})
}

// chooseCut implements the greedy nearest-to-target cut selection: scan
// keyframes forward from cursor, skip spans shorter than minDur, stop and
// fall back at the first span longer than maxDur, otherwise keep the
// keyframe whose span is closest to target. cursor is advanced past any
// keyframe at or before the chosen cut so the next call resumes from there.
func chooseCut(start, duration, target, minDur, maxDur float64, keyTimes []float64, cursor *int) float64 {
	bestCut := -1.0
	bestScore := math.MaxFloat64
	fallback := -1.0

	idx := *cursor
	for idx < len(keyTimes) && keyTimes[idx] <= start+eps {
		idx++
	}

	for ; idx < len(keyTimes); idx++ {
		t := keyTimes[idx]
		if t >= duration-eps {
			bestCut = duration
			break
		}

		span := t - start
		if span < minDur-eps {
			continue
		}
		if span > maxDur+eps {
			fallback = t
			break
		}

		score := math.Abs(span - target)
		if score < bestScore {
			bestScore = score
			bestCut = t
		}
	}

	if bestCut < 0 {
		if fallback > 0 {
			bestCut = fallback
		} else {
			bestCut = duration
		}
	}

	if bestCut > duration {
		bestCut = duration
	}
	if bestCut < start+minDur {
		bestCut = math.Min(start+minDur, duration)
	}

	for *cursor < len(keyTimes) && keyTimes[*cursor] <= bestCut+eps {
		*cursor++
	}

	return bestCut
}

// mergeTinyTail folds a final chunk shorter than half of minDur into its
// predecessor, avoiding a near-empty trailing chunk file.
func mergeTinyTail(plan *Plan, minDur, duration float64) {
	if len(plan.Chunks) < 2 {
		return
	}
	last := &plan.Chunks[len(plan.Chunks)-1]
	prev := &plan.Chunks[len(plan.Chunks)-2]

	if last.End-last.Start < minDur*0.5 {
		prev.End = duration
		plan.Chunks = plan.Chunks[:len(plan.Chunks)-1]
	}
}

// normalize recomputes each chunk's Start from its predecessor's End (so
// rounding in chooseCut never opens a gap or overlap) and corrects residual
// drift between the summed span and the true duration onto the last chunk.
func normalize(plan *Plan, duration float64) {
	total := 0.0
	for i := range plan.Chunks {
		c := &plan.Chunks[i]
		if i > 0 {
			c.Start = plan.Chunks[i-1].End
		}
		if c.End < c.Start {
			c.End = c.Start
		}
		total += c.End - c.Start
	}

	if diff := math.Abs(total - duration); diff > 0.001 && len(plan.Chunks) > 0 {
		plan.Chunks[len(plan.Chunks)-1].End += duration - total
	}
}

func renumber(plan *Plan) {
	for i := range plan.Chunks {
		plan.Chunks[i].Index = i
	}
}

// enforceChunkCountBounds applies the two chunk-count constraints in order.
// If MinChunks wasn't reached, re-run the greedy pass once with target
// widened to duration/MinChunks. If MaxChunks is then still exceeded, fuse
// adjacent chunks by minimum summed duration until the cap is met.
func enforceChunkCountBounds(plan Plan, result probe.Result, cfg Config, minDur, maxDur float64) Plan {
	if cfg.MinChunks > 0 && len(plan.Chunks) < cfg.MinChunks {
		target := result.Duration / float64(cfg.MinChunks)
		plan = replan(result, cfg, target, minDur, maxDur)
	}
	if cfg.MaxChunks > 0 && len(plan.Chunks) > cfg.MaxChunks {
		plan = mergeAdjacentPairs(plan, cfg.MaxChunks)
	}
	return plan
}

// mergeAdjacentPairs repeatedly fuses the adjacent chunk pair with the
// smallest summed duration until count chunks remain.
func mergeAdjacentPairs(plan Plan, count int) Plan {
	chunks := append([]Chunk(nil), plan.Chunks...)
	for len(chunks) > count {
		best := 0
		bestSum := math.MaxFloat64
		for i := 0; i < len(chunks)-1; i++ {
			sum := (chunks[i].End - chunks[i].Start) + (chunks[i+1].End - chunks[i+1].Start)
			if sum < bestSum {
				bestSum = sum
				best = i
			}
		}
		chunks[best].End = chunks[best+1].End
		chunks = append(chunks[:best+1], chunks[best+2:]...)
	}
	return Plan{Chunks: chunks}
}

func replan(result probe.Result, cfg Config, target, minDur, maxDur float64) Plan {
	keyTimes := collectKeyframes(result.Frames)
	var plan Plan
	if len(keyTimes) == 0 {
		appendChunk(&plan, 0, 0, result.Duration)
		return plan
	}

	start := 0.0
	cursor := 0
	index := 0
	for start < result.Duration-eps {
		cut := chooseCut(start, result.Duration, target, minDur, maxDur, keyTimes, &cursor)
		if cut <= start+eps {
			cut = math.Min(start+maxDur, result.Duration)
		}
		appendChunk(&plan, index, start, cut)
		index++
		start = cut
	}
	if len(plan.Chunks) == 0 {
		return plan
	}
	plan.Chunks[len(plan.Chunks)-1].End = result.Duration
	if !cfg.AllowTinyLast {
		mergeTinyTail(&plan, minDur, result.Duration)
	}
	normalize(&plan, result.Duration)
	renumber(&plan)
	return plan
}
