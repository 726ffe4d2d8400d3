// Package splitter extracts one container file per planned chunk via
// stream copy: no decode, no re-encode, keyframe-aware cut points.
package splitter

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/five82/smartchunk/internal/avio"
	serr "github.com/five82/smartchunk/internal/errors"
	"github.com/five82/smartchunk/internal/muxfmt"
	"github.com/five82/smartchunk/internal/planner"
	"github.com/five82/smartchunk/internal/worker"
)

// SplitOne extracts chunk from source into outPath by stream copy. Nothing
// is emitted until a video keyframe at or after chunk.Start is seen; from
// then on, video packets are copied until a keyframe at or after chunk.End
// is seen, and packets of other streams are copied until their own
// timestamp reaches chunk.End. Packets after that first keyframe are not
// filtered against chunk.Start. Packets
// are rescaled between input and output time bases but never re-based;
// absolute timestamps are preserved for bit-identical stitching later.
func SplitOne(ctx context.Context, source string, chunk planner.Chunk, outPath string, mode muxfmt.Format) error {
	d, err := avio.OpenDemuxer(source)
	if err != nil {
		return err
	}
	defer d.Close()

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return serr.New(serr.KindOutput, "splitter.SplitOne", err)
	}

	m, err := avio.NewMuxer(outPath, mode.ShortName)
	if err != nil {
		return err
	}
	defer m.Close()

	streams := d.Streams()
	outIndex := make([]int, len(streams))
	videoStream := -1
	for i, s := range streams {
		if s.MediaType == avio.MediaAttachment {
			outIndex[i] = -1
			continue
		}
		idx, err := m.AddStream(s)
		if err != nil {
			return err
		}
		outIndex[i] = idx
		if s.MediaType == avio.MediaVideo && videoStream < 0 {
			videoStream = i
		}
	}
	if videoStream < 0 {
		return serr.New(serr.KindNoStream, "splitter.SplitOne", nil)
	}

	if err := m.Open(); err != nil {
		return err
	}

	opts := mode.Options
	if err := m.WriteHeader(opts); err != nil {
		return err
	}

	if err := d.SeekAbsolute(chunk.Start, true); err != nil {
		return err
	}

	firstKeyframeFound := false
	videoEnded := false
	streamEnded := make([]bool, len(streams))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		pkt, err := d.ReadPacket()
		if err == io.EOF {
			break
		}
		if err != nil {
			return serr.New(serr.KindFFmpeg, "splitter.SplitOne", err)
		}

		si := pkt.StreamIndex
		if si < 0 || si >= len(streams) || outIndex[si] < 0 || streamEnded[si] {
			pkt.Free()
			if allEnded(streamEnded, outIndex) {
				break
			}
			continue
		}

		tb := streams[si].TimeBase.Float64()
		ts := packetTS(pkt, tb)

		if si == videoStream {
			if !firstKeyframeFound {
				if pkt.KeyFrame && ts >= chunk.Start {
					firstKeyframeFound = true
				} else {
					pkt.Free()
					continue
				}
			}
			if !videoEnded && pkt.KeyFrame && ts >= chunk.End {
				videoEnded = true
				streamEnded[si] = true
				pkt.Free()
				if allEnded(streamEnded, outIndex) {
					break
				}
				continue
			}
		} else {
			if !firstKeyframeFound {
				pkt.Free()
				continue
			}
			if ts >= chunk.End {
				streamEnded[si] = true
				pkt.Free()
				if allEnded(streamEnded, outIndex) {
					break
				}
				continue
			}
		}

		outTB := m.OutputTimeBase(outIndex[si])
		pkt.PTS, pkt.DTS, pkt.Duration = avio.RescaleTS(pkt.PTS, pkt.DTS, pkt.Duration, streams[si].TimeBase, outTB)
		pkt.StreamIndex = outIndex[si]

		if err := m.WritePacket(pkt); err != nil {
			return err
		}

		if allEnded(streamEnded, outIndex) {
			break
		}
	}

	if err := m.WriteTrailer(); err != nil {
		return err
	}
	return nil
}

// allEnded reports whether every mapped stream (outIndex[i] >= 0) has ended.
// Unmapped streams, such as attachments, have no entry in ended and must be
// skipped or a trailing attachment stream would keep this from ever firing.
func allEnded(ended []bool, outIndex []int) bool {
	for i, e := range ended {
		if outIndex[i] < 0 {
			continue
		}
		if !e {
			return false
		}
	}
	return true
}

func packetTS(pkt *avio.Packet, tb float64) float64 {
	if pkt.PTS != avio.NoPTS {
		return float64(pkt.PTS) * tb
	}
	if pkt.DTS != avio.NoPTS {
		return float64(pkt.DTS) * tb
	}
	return 0
}

// SplitAll creates outDir and extracts every chunk in plan into it,
// dispatched across worker.Permits(workers) goroutines. mode selects the
// output muxer used for every chunk; filenames follow
// muxfmt.ChunkFilename(chunk.Index, mode).
func SplitAll(ctx context.Context, source string, plan planner.Plan, outDir string, mode muxfmt.Format, workers int) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return serr.New(serr.KindOutput, "splitter.SplitAll", err)
	}

	jobs := make([]worker.Job, len(plan.Chunks))
	for i, chunk := range plan.Chunks {
		chunk := chunk
		jobs[i] = func(ctx context.Context, _ int) error {
			outPath := filepath.Join(outDir, muxfmt.ChunkFilename(chunk.Index, mode))
			if err := SplitOne(ctx, source, chunk, outPath, mode); err != nil {
				return fmt.Errorf("chunk %d: %w", chunk.Index, err)
			}
			return nil
		}
	}

	return worker.Run(ctx, workers, jobs)
}
