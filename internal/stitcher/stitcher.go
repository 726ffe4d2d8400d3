// Package stitcher concatenates chunk files back into one container with a
// monotonic, re-based timeline per stream.
package stitcher

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/five82/smartchunk/internal/avio"
	serr "github.com/five82/smartchunk/internal/errors"
	"github.com/five82/smartchunk/internal/muxfmt"
	"github.com/five82/smartchunk/internal/planner"
)

type streamState struct {
	outIndex       int
	timeBase       avio.Rational
	mediaType      avio.MediaType
	offset         int64
	lastPTS        int64
	lastDTS        int64
	avgFrameRateTB int64 // one-frame duration in this stream's time base, or 0 if unknown
}

// Stitch concatenates plan's chunk files (found under chunkDir, named per
// chunkFormat's muxer extension) into one container at outPath written in
// outFormat. Chunks are processed strictly in plan order. The first chunk's
// packets are forwarded verbatim (rescaled into the output time base only);
// every following chunk's packets are re-based onto the running per-stream
// offset so the output timeline is monotonic across the chunk boundary.
func Stitch(outPath string, plan planner.Plan, chunkDir string, chunkFormat, outFormat muxfmt.Format) error {
	if len(plan.Chunks) == 0 {
		return serr.New(serr.KindInval, "stitcher.Stitch", nil)
	}

	m, err := avio.NewMuxer(outPath, outFormat.ShortName)
	if err != nil {
		return err
	}
	defer m.Close()

	var states []streamState
	headerWritten := false

	for ci, chunk := range plan.Chunks {
		chunkPath := filepath.Join(chunkDir, muxfmt.ChunkFilename(chunk.Index, chunkFormat))

		if err := stitchOneChunk(m, &states, &headerWritten, ci, chunkPath, outFormat); err != nil {
			return fmt.Errorf("chunk %d: %w", chunk.Index, err)
		}
	}

	if !headerWritten {
		return serr.New(serr.KindStream, "stitcher.Stitch", nil)
	}
	return m.WriteTrailer()
}

func stitchOneChunk(m *avio.Muxer, states *[]streamState, headerWritten *bool, ci int, chunkPath string, mode muxfmt.Format) error {
	d, err := avio.OpenDemuxer(chunkPath)
	if err != nil {
		return err
	}
	defer d.Close()

	chunkStreams := d.Streams()
	chunkMap := make([]int, len(chunkStreams)) // index into *states, or -1
	firstPTS := make([]int64, len(chunkStreams))
	for i := range chunkMap {
		chunkMap[i] = -1
		firstPTS[i] = avio.NoPTS
	}

	mediaCount := 0
	for i, s := range chunkStreams {
		if s.MediaType == avio.MediaAttachment {
			continue
		}
		chunkMap[i] = mediaCount
		mediaCount++
	}

	if ci == 0 {
		*states = make([]streamState, mediaCount)
		stIdx := 0
		for i, s := range chunkStreams {
			if chunkMap[i] < 0 {
				continue
			}
			outIdx, err := m.AddStream(s)
			if err != nil {
				return err
			}
			(*states)[stIdx] = streamState{
				outIndex:       outIdx,
				timeBase:       s.TimeBase,
				mediaType:      s.MediaType,
				offset:         0,
				lastPTS:        avio.NoPTS,
				lastDTS:        avio.NoPTS,
				avgFrameRateTB: oneFrameDuration(s),
			}
			stIdx++
		}

		if err := m.Open(); err != nil {
			return err
		}
		if err := m.WriteHeader(mode.Options); err != nil {
			return err
		}
		*headerWritten = true
	} else if mediaCount != len(*states) {
		return serr.New(serr.KindLayout, "stitcher.stitchOneChunk", fmt.Errorf("stream count changed: %d vs %d", mediaCount, len(*states)))
	}

	// Highest rebased pts written per stream in this chunk; with B-frames the
	// last packet in decode order need not carry the highest pts.
	chunkMaxPTS := make([]int64, len(*states))
	for i := range chunkMaxPTS {
		chunkMaxPTS[i] = avio.NoPTS
	}

	for {
		pkt, err := d.ReadPacket()
		if err == io.EOF {
			break
		}
		if err != nil {
			return serr.New(serr.KindFFmpeg, "stitcher.stitchOneChunk", err)
		}

		si := pkt.StreamIndex
		stateIdx := -1
		if si >= 0 && si < len(chunkMap) {
			stateIdx = chunkMap[si]
		}
		if stateIdx < 0 {
			pkt.Free()
			continue
		}

		state := &(*states)[stateIdx]
		in := chunkStreams[si]
		if in.TimeBase != state.timeBase {
			pkt.Free()
			return serr.New(serr.KindLayout, "stitcher.stitchOneChunk", fmt.Errorf("time base changed on stream %d", si))
		}

		var rebasedPTS, rebasedDTS int64

		if ci == 0 {
			rebasedPTS, rebasedDTS = pkt.PTS, pkt.DTS
		} else {
			base := firstPTS[si]
			if base == avio.NoPTS {
				base = resolveFirstTS(pkt)
				firstPTS[si] = base
			}
			rebasedPTS, rebasedDTS = rebaseFromBase(pkt.PTS, pkt.DTS, base, state.offset)
		}

		rebasedPTS, rebasedDTS = coalesceTimestamps(rebasedPTS, rebasedDTS)

		pkt.PTS, pkt.DTS = rebasedPTS, rebasedDTS

		outTB := m.OutputTimeBase(state.outIndex)
		pkt.PTS, pkt.DTS, pkt.Duration = avio.RescaleTS(pkt.PTS, pkt.DTS, pkt.Duration, state.timeBase, outTB)
		pkt.StreamIndex = state.outIndex

		if err := m.WritePacket(pkt); err != nil {
			return err
		}

		if rebasedPTS != avio.NoPTS {
			state.lastPTS = rebasedPTS
			if chunkMaxPTS[stateIdx] == avio.NoPTS || rebasedPTS > chunkMaxPTS[stateIdx] {
				chunkMaxPTS[stateIdx] = rebasedPTS
			}
		}
		if rebasedDTS != avio.NoPTS {
			state.lastDTS = rebasedDTS
		}
	}

	for i := range *states {
		s := &(*states)[i]
		tail := chunkMaxPTS[i]
		if tail == avio.NoPTS {
			tail = s.lastPTS
		}
		if tail == avio.NoPTS {
			tail = s.lastDTS
		}
		if tail == avio.NoPTS {
			continue
		}
		step := s.avgFrameRateTB
		if step <= 0 {
			step = 1
		}
		s.offset = tail + step
	}

	return nil
}

// oneFrameDuration returns the duration of one frame of stream s expressed
// in s's own time base, derived from its average frame rate. Returns 0 if
// the frame rate is unknown (audio streams, or a video stream lacking it),
// in which case the caller falls back to a single time-base tick.
func oneFrameDuration(s avio.StreamInfo) int64 {
	if s.AvgFrameRate.Num <= 0 || s.AvgFrameRate.Den <= 0 || s.TimeBase.Num <= 0 || s.TimeBase.Den <= 0 {
		return 0
	}
	// frame duration in seconds = Den/Num; in time-base ticks = that / (Num_tb/Den_tb)
	frameSeconds := float64(s.AvgFrameRate.Den) / float64(s.AvgFrameRate.Num)
	tickSeconds := s.TimeBase.Float64()
	if tickSeconds <= 0 {
		return 0
	}
	ticks := int64(frameSeconds/tickSeconds + 0.5)
	if ticks <= 0 {
		return 1
	}
	return ticks
}

func resolveFirstTS(pkt *avio.Packet) int64 {
	if pkt.PTS != avio.NoPTS {
		return pkt.PTS
	}
	if pkt.DTS != avio.NoPTS {
		return pkt.DTS
	}
	return 0
}

// rebaseFromBase shifts pts/dts from a chunk's own timeline onto the
// running per-stream offset: rebased = (value - base) + offset. A NoPTS
// input passes through as NoPTS.
func rebaseFromBase(pts, dts, base, offset int64) (rebasedPTS, rebasedDTS int64) {
	rebasedPTS, rebasedDTS = avio.NoPTS, avio.NoPTS
	if pts != avio.NoPTS {
		rebasedPTS = pts - base + offset
	}
	if dts != avio.NoPTS {
		rebasedDTS = dts - base + offset
	}
	return
}

// coalesceTimestamps fills in a missing pts or dts from the other, and
// enforces dts <= pts (a decode timestamp may never be rebased ahead of
// its presentation timestamp).
func coalesceTimestamps(pts, dts int64) (int64, int64) {
	if pts == avio.NoPTS && dts != avio.NoPTS {
		pts = dts
	}
	if dts == avio.NoPTS && pts != avio.NoPTS {
		dts = pts
	}
	if pts != avio.NoPTS && dts != avio.NoPTS && dts > pts {
		pts = dts
	}
	return pts, dts
}
