package planner

import (
	"math"
	"testing"

	"github.com/five82/smartchunk/internal/probe"
)

func keyframesAt(times ...float64) probe.Result {
	var frames []probe.FrameMeta
	for _, t := range times {
		frames = append(frames, probe.FrameMeta{PTSTime: t, IsKeyframe: true})
	}
	duration := times[len(times)-1] + 2.0
	return probe.Result{Frames: frames, Duration: duration}
}

func totalSpan(p Plan) float64 {
	if len(p.Chunks) == 0 {
		return 0
	}
	return p.Chunks[len(p.Chunks)-1].End - p.Chunks[0].Start
}

func assertContiguous(t *testing.T, p Plan) {
	t.Helper()
	for i, c := range p.Chunks {
		if c.End <= c.Start {
			t.Errorf("chunk %d has non-positive span: start=%.3f end=%.3f", i, c.Start, c.End)
		}
		if i > 0 && math.Abs(c.Start-p.Chunks[i-1].End) > 1e-6 {
			t.Errorf("chunk %d starts at %.3f, predecessor ends at %.3f: gap or overlap",
				i, c.Start, p.Chunks[i-1].End)
		}
		if c.Index != i {
			t.Errorf("chunk at position %d has Index=%d, want %d", i, c.Index, i)
		}
	}
}

func TestPlan_EmptyInputRejected(t *testing.T) {
	_, err := Plan(probe.Result{}, Config{Target: 10})
	if err == nil {
		t.Fatal("expected an error for an empty probe result")
	}
}

func TestPlan_NoKeyframesYieldsSingleChunk(t *testing.T) {
	result := probe.Result{
		Frames:   []probe.FrameMeta{{PTSTime: 0, IsKeyframe: false}},
		Duration: 30.0,
	}
	plan, err := Plan(result, Config{Target: 10})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(plan.Chunks))
	}
	if plan.Chunks[0].Start != 0 || plan.Chunks[0].End != 30.0 {
		t.Errorf("chunk span = [%.3f, %.3f], want [0, 30]", plan.Chunks[0].Start, plan.Chunks[0].End)
	}
}

func TestPlan_ChunksAreContiguousAndCoverDuration(t *testing.T) {
	result := keyframesAt(0, 10, 20, 30, 40, 50, 60, 70, 80, 90)
	plan, err := Plan(result, Config{Target: 20, Min: 10, Max: 40})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	assertContiguous(t, plan)
	if span := totalSpan(plan); math.Abs(span-result.Duration) > 1e-6 {
		t.Errorf("total span %.3f, want %.3f (source duration)", span, result.Duration)
	}
	if plan.Chunks[0].Start != 0 {
		t.Errorf("first chunk starts at %.3f, want 0", plan.Chunks[0].Start)
	}
	last := plan.Chunks[len(plan.Chunks)-1]
	if math.Abs(last.End-result.Duration) > 1e-6 {
		t.Errorf("last chunk ends at %.3f, want %.3f", last.End, result.Duration)
	}
}

func TestPlan_CutsLandOnKeyframes(t *testing.T) {
	keyTimes := []float64{0, 9.5, 19.8, 30.1, 40.0}
	result := keyframesAt(keyTimes...)
	plan, err := Plan(result, Config{Target: 10, Min: 5, Max: 20})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	for i, c := range plan.Chunks {
		if i == len(plan.Chunks)-1 {
			continue // last chunk's End is forced to source duration, not a keyframe
		}
		onKeyframe := false
		for _, kt := range keyTimes {
			if math.Abs(c.End-kt) < 1e-6 {
				onKeyframe = true
				break
			}
		}
		if !onKeyframe {
			t.Errorf("chunk %d ends at %.3f, which is not a keyframe time", i, c.End)
		}
	}
}

func TestPlan_RespectsMaxDurationWhenKeyframesAllow(t *testing.T) {
	// Keyframes every 2s give the greedy pass a candidate near every
	// multiple of 10s, so the Max=15 bound is always satisfiable.
	times := make([]float64, 0, 21)
	for i := 0; i <= 40; i += 2 {
		times = append(times, float64(i))
	}
	result := keyframesAt(times...)
	plan, err := Plan(result, Config{Target: 10, Min: 5, Max: 15, AllowTinyLast: true})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	for i, c := range plan.Chunks {
		span := c.End - c.Start
		if i < len(plan.Chunks)-1 && span > 15+1e-6 {
			t.Errorf("chunk %d spans %.3fs, exceeds Max=15", i, span)
		}
	}
}

func TestPlan_TinyTailIsMergedByDefault(t *testing.T) {
	// Last keyframe near the end leaves a tail far shorter than min/2.
	result := keyframesAt(0, 20, 39.8)
	plan, err := Plan(result, Config{Target: 20, Min: 10, Max: 30, AllowTinyLast: false})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	for _, c := range plan.Chunks {
		span := c.End - c.Start
		if span < 5 {
			t.Errorf("chunk has tiny span %.3f; tiny tail should have merged into its predecessor", span)
		}
	}
}

func TestPlan_AllowTinyLastKeepsShortFinalChunk(t *testing.T) {
	result := keyframesAt(0, 20, 39.8)
	plan, err := Plan(result, Config{Target: 20, Min: 10, Max: 30, AllowTinyLast: true})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	assertContiguous(t, plan)
	last := plan.Chunks[len(plan.Chunks)-1]
	if span := last.End - last.Start; span >= 5 {
		t.Errorf("final chunk spans %.3fs; with AllowTinyLast the short tail should be kept", span)
	}
}

func TestPlan_IdealParallelismOverridesTarget(t *testing.T) {
	result := keyframesAt(0, 10, 20, 30, 40, 50, 60, 70, 80)
	plan, err := Plan(result, Config{Target: 1000, IdealParallelism: 4, Min: 5, Max: 60})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	// duration ~82, /4 ~= 20.5s target, so we expect roughly 4 chunks, not 1.
	if len(plan.Chunks) < 3 {
		t.Errorf("got %d chunks with IdealParallelism=4, want at least 3", len(plan.Chunks))
	}
}

func TestPlan_MinChunksWidensChunkCount(t *testing.T) {
	result := keyframesAt(0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100)
	plan, err := Plan(result, Config{Target: 100, Min: 5, Max: 100, MinChunks: 5})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Chunks) < 5 {
		t.Errorf("got %d chunks, want at least MinChunks=5", len(plan.Chunks))
	}
	assertContiguous(t, plan)
}

func TestPlan_MaxChunksNarrowsChunkCount(t *testing.T) {
	result := keyframesAt(0, 2, 4, 6, 8, 10, 12, 14, 16, 18, 20)
	// Max left generous (100) so MaxChunks=3 doesn't conflict with a span cap.
	plan, err := Plan(result, Config{Target: 2, Min: 1, Max: 100, MaxChunks: 3})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Chunks) > 3 {
		t.Errorf("got %d chunks, want at most MaxChunks=3", len(plan.Chunks))
	}
	assertContiguous(t, plan)
}

func TestPlan_MaxChunksOverridesConflictingMaxDuration(t *testing.T) {
	// Max=4 alone would force at least 6 chunks over a 22s span; MaxChunks
	// must win regardless, since it is an unconditional cap on chunk count.
	result := keyframesAt(0, 2, 4, 6, 8, 10, 12, 14, 16, 18, 20)
	plan, err := Plan(result, Config{Target: 2, Min: 1, Max: 4, MaxChunks: 3})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Chunks) > 3 {
		t.Errorf("got %d chunks, want at most MaxChunks=3 even though Max=4 conflicts", len(plan.Chunks))
	}
	assertContiguous(t, plan)
}

func TestPlan_ChunksAreRenumberedSequentially(t *testing.T) {
	result := keyframesAt(0, 10, 20, 30)
	plan, err := Plan(result, Config{Target: 10, Min: 5, Max: 20})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	for i, c := range plan.Chunks {
		if c.Index != i {
			t.Errorf("chunk at position %d has Index %d", i, c.Index)
		}
	}
}
