// Package probe performs a packet-level scan of a container's best video
// stream: pts, keyframe flag, and packet size for every video packet, with
// no decoding and no seeking.
package probe

import (
	"context"
	"io"

	"github.com/five82/smartchunk/internal/avio"
	serr "github.com/five82/smartchunk/internal/errors"
)

// FrameMeta describes one video packet as seen on the wire.
type FrameMeta struct {
	PTSTime    float64
	IsKeyframe bool
	PktSize    uint64
}

// Result is the full packet-level scan of a container's video stream.
type Result struct {
	Frames   []FrameMeta
	Duration float64
}

// Probe scans path's best video stream and returns every packet's metadata
// plus the container's best-effort duration. The scan is linear: no seeking,
// no decoding.
func Probe(ctx context.Context, path string) (Result, error) {
	d, err := avio.OpenDemuxer(path)
	if err != nil {
		return Result{}, err
	}
	defer d.Close()

	vstream, err := d.BestVideoStream()
	if err != nil {
		return Result{}, err
	}
	tb := d.Streams()[vstream].TimeBase.Float64()

	var out Result
	bestEnd := 0.0

	for {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		default:
		}

		pkt, err := d.ReadPacket()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, serr.New(serr.KindFFmpeg, "probe.Probe", err)
		}

		if pkt.StreamIndex == vstream {
			pts := packetTime(pkt, tb, bestEnd)
			end := packetEnd(pkt, tb, pts)

			out.Frames = append(out.Frames, FrameMeta{
				PTSTime:    pts,
				IsKeyframe: pkt.KeyFrame,
				PktSize:    uint64(pkt.Size),
			})
			if end > bestEnd {
				bestEnd = end
			}
		}
		pkt.Free()
	}

	if bestEnd <= 0 {
		if sd := d.StreamDuration(vstream); sd > 0 {
			bestEnd = sd
		}
	}
	if bestEnd <= 0 {
		if cd := d.Duration(); cd > 0 {
			bestEnd = cd
		}
	}

	if len(out.Frames) == 0 {
		return Result{}, serr.New(serr.KindNoStream, "probe.Probe", nil)
	}

	out.Duration = bestEnd
	return out, nil
}

func packetTime(pkt *avio.Packet, tb, fallback float64) float64 {
	if pkt.PTS != avio.NoPTS {
		return float64(pkt.PTS) * tb
	}
	if pkt.DTS != avio.NoPTS {
		return float64(pkt.DTS) * tb
	}
	return fallback
}

func packetEnd(pkt *avio.Packet, tb, pts float64) float64 {
	if pkt.Duration > 0 {
		return pts + float64(pkt.Duration)*tb
	}
	return pts
}
