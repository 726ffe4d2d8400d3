// Package avio is a narrow cgo binding onto libavformat/libavcodec/libavutil,
// exposing exactly the demux/mux primitives the chunker needs: stream
// enumeration, packet-level read, seek, and stream-copy write. No frame is
// ever decoded.
package avio

/*
#cgo pkg-config: libavcodec libavformat libavutil
#include <libavcodec/avcodec.h>
#include <libavformat/avformat.h>
#include <libavutil/avutil.h>
#include <libavutil/dict.h>
#include <stdlib.h>

static int avio_is_nofile(AVFormatContext *ctx) {
	return ctx->oformat && (ctx->oformat->flags & AVFMT_NOFILE);
}
*/
import "C"

import (
	"fmt"
	"io"
	"unsafe"

	serr "github.com/five82/smartchunk/internal/errors"
)

// MediaType mirrors the subset of AVMediaType this package cares about.
type MediaType int

const (
	MediaVideo MediaType = iota
	MediaAudio
	MediaSubtitle
	MediaAttachment
	MediaOther
)

func mediaTypeOf(t C.enum_AVMediaType) MediaType {
	switch t {
	case C.AVMEDIA_TYPE_VIDEO:
		return MediaVideo
	case C.AVMEDIA_TYPE_AUDIO:
		return MediaAudio
	case C.AVMEDIA_TYPE_SUBTITLE:
		return MediaSubtitle
	case C.AVMEDIA_TYPE_ATTACHMENT:
		return MediaAttachment
	default:
		return MediaOther
	}
}

// Rational is a num/den pair, matching AVRational layout.
type Rational struct {
	Num, Den int32
}

func (r Rational) toC() C.AVRational { return C.AVRational{num: C.int(r.Num), den: C.int(r.Den)} }
func fromCRational(r C.AVRational) Rational {
	return Rational{Num: int32(r.num), Den: int32(r.den)}
}

// Float64 returns r as num/den.
func (r Rational) Float64() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// StreamInfo describes one stream of an opened container.
type StreamInfo struct {
	Index       int
	MediaType   MediaType
	TimeBase    Rational
	Duration    int64 // in TimeBase units; AV_NOPTS_VALUE (negative) if unknown
	AvgFrameRate Rational // zero Den means unknown (only meaningful for video)

	cStream *C.AVStream
}

// NoPTS is the sentinel for an unset timestamp, matching AV_NOPTS_VALUE.
const NoPTS = int64(C.AV_NOPTS_VALUE)

// Packet is one demuxed/remuxed access unit.
type Packet struct {
	StreamIndex int
	PTS, DTS    int64
	Duration    int64
	Size        int
	KeyFrame    bool

	c *C.AVPacket
}

// Free releases the underlying C packet. Safe to call once per ReadPacket result.
func (p *Packet) Free() {
	if p == nil || p.c == nil {
		return
	}
	C.av_packet_free(&p.c)
	p.c = nil
}

// Demuxer reads packets from one input container without decoding them.
type Demuxer struct {
	ctx     *C.AVFormatContext
	streams []StreamInfo
	path    string
}

// OpenDemuxer opens path for packet-level reading.
func OpenDemuxer(path string) (*Demuxer, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	var ctx *C.AVFormatContext
	if C.avformat_open_input(&ctx, cpath, nil, nil) < 0 {
		return nil, serr.New(serr.KindOpen, "avio.OpenDemuxer", fmt.Errorf("avformat_open_input: %s", path))
	}
	if C.avformat_find_stream_info(ctx, nil) < 0 {
		C.avformat_close_input(&ctx)
		return nil, serr.New(serr.KindFFmpeg, "avio.OpenDemuxer", fmt.Errorf("avformat_find_stream_info: %s", path))
	}

	d := &Demuxer{ctx: ctx, path: path}
	n := int(ctx.nb_streams)
	streamArr := (*[1 << 20]*C.AVStream)(unsafe.Pointer(ctx.streams))[:n:n]
	for i := 0; i < n; i++ {
		st := streamArr[i]
		d.streams = append(d.streams, StreamInfo{
			Index:        i,
			MediaType:    mediaTypeOf(st.codecpar.codec_type),
			TimeBase:     fromCRational(st.time_base),
			Duration:     int64(st.duration),
			AvgFrameRate: fromCRational(st.avg_frame_rate),
			cStream:      st,
		})
	}
	return d, nil
}

// Streams returns every stream in the container, in input order.
func (d *Demuxer) Streams() []StreamInfo { return d.streams }

// BestVideoStream returns the index of the best video stream, per av_find_best_stream.
func (d *Demuxer) BestVideoStream() (int, error) {
	idx := int(C.av_find_best_stream(d.ctx, C.AVMEDIA_TYPE_VIDEO, -1, -1, nil, 0))
	if idx < 0 {
		return -1, serr.New(serr.KindNoStream, "avio.BestVideoStream", nil)
	}
	return idx, nil
}

// Duration returns the container-level duration in seconds, or 0 if unknown.
func (d *Demuxer) Duration() float64 {
	if d.ctx.duration <= 0 {
		return 0
	}
	return float64(d.ctx.duration) / float64(C.AV_TIME_BASE)
}

// StreamDuration returns stream idx's duration in seconds, or 0 if unknown.
func (d *Demuxer) StreamDuration(idx int) float64 {
	if idx < 0 || idx >= len(d.streams) {
		return 0
	}
	s := d.streams[idx]
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.Duration) * s.TimeBase.Float64()
}

// ReadPacket returns the next packet in the container, or io.EOF at the end.
func (d *Demuxer) ReadPacket() (*Packet, error) {
	pkt := C.av_packet_alloc()
	if pkt == nil {
		return nil, serr.New(serr.KindNoMem, "avio.ReadPacket", nil)
	}
	if ret := C.av_read_frame(d.ctx, pkt); ret < 0 {
		C.av_packet_free(&pkt)
		if ret == C.AVERROR_EOF {
			return nil, io.EOF
		}
		return nil, serr.New(serr.KindFFmpeg, "avio.ReadPacket", fmt.Errorf("av_read_frame: error %d", int(ret)))
	}
	return &Packet{
		StreamIndex: int(pkt.stream_index),
		PTS:         int64(pkt.pts),
		DTS:         int64(pkt.dts),
		Duration:    int64(pkt.duration),
		Size:        int(pkt.size),
		KeyFrame:    pkt.flags&C.AV_PKT_FLAG_KEY != 0,
		c:           pkt,
	}, nil
}

// SeekAbsolute seeks the demuxer to seconds, backward to the preceding keyframe
// when backward is true (AVSEEK_FLAG_BACKWARD).
func (d *Demuxer) SeekAbsolute(seconds float64, backward bool) error {
	ts := C.int64_t(seconds * float64(C.AV_TIME_BASE))
	flags := C.int(0)
	if backward {
		flags = C.AVSEEK_FLAG_BACKWARD
	}
	if C.av_seek_frame(d.ctx, -1, ts, flags) < 0 {
		return serr.New(serr.KindSeek, "avio.SeekAbsolute", fmt.Errorf("seek to %.3fs", seconds))
	}
	return nil
}

// Close releases the demuxer's resources.
func (d *Demuxer) Close() error {
	if d.ctx != nil {
		C.avformat_close_input(&d.ctx)
		d.ctx = nil
	}
	return nil
}

// Muxer writes a stream-copy output container, one AddStream call per source
// stream, then Open/WriteHeader/WritePacket.../WriteTrailer/Close.
type Muxer struct {
	ctx      *C.AVFormatContext
	path     string
	fmtName  string
	nofile   bool
	opened   bool
	streamTB []Rational
}

// NewMuxer allocates an output context for path using the named short format
// (e.g. "mp4", "matroska", "webm", "mov").
func NewMuxer(path, formatShortName string) (*Muxer, error) {
	cfmt := C.CString(formatShortName)
	defer C.free(unsafe.Pointer(cfmt))
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	var ctx *C.AVFormatContext
	if C.avformat_alloc_output_context2(&ctx, nil, cfmt, cpath) < 0 || ctx == nil {
		return nil, serr.New(serr.KindOutput, "avio.NewMuxer", fmt.Errorf("unsupported format %q", formatShortName))
	}
	return &Muxer{ctx: ctx, path: path, fmtName: formatShortName}, nil
}

// AddStream clones src's codec parameters into a new output stream and
// returns its output index.
func (m *Muxer) AddStream(src StreamInfo) (int, error) {
	ost := C.avformat_new_stream(m.ctx, nil)
	if ost == nil {
		return -1, serr.New(serr.KindStream, "avio.AddStream", nil)
	}
	if C.avcodec_parameters_copy(ost.codecpar, src.cStream.codecpar) < 0 {
		return -1, serr.New(serr.KindStream, "avio.AddStream", fmt.Errorf("avcodec_parameters_copy"))
	}
	ost.codecpar.codec_tag = 0
	ost.time_base = src.cStream.time_base
	m.streamTB = append(m.streamTB, fromCRational(ost.time_base))
	return int(ost.index), nil
}

// OutputTimeBase returns the time base assigned to output stream idx.
func (m *Muxer) OutputTimeBase(idx int) Rational {
	if idx < 0 || idx >= len(m.streamTB) {
		return Rational{Num: 1, Den: 1}
	}
	return m.streamTB[idx]
}

// Open opens the underlying AVIO context for writing, if the muxer's format
// requires a file (AVFMT_NOFILE formats, effectively none here, are skipped).
func (m *Muxer) Open() error {
	if C.avio_is_nofile(m.ctx) != 0 {
		m.nofile = true
		return nil
	}
	cpath := C.CString(m.path)
	defer C.free(unsafe.Pointer(cpath))
	if C.avio_open(&m.ctx.pb, cpath, C.AVIO_FLAG_WRITE) < 0 {
		return serr.New(serr.KindOutput, "avio.Open", fmt.Errorf("avio_open: %s", m.path))
	}
	return nil
}

// WriteHeader writes the container header with the given muxer options
// (e.g. {"movflags": "frag_keyframe+empty_moov+omit_tfhd_offset"}).
func (m *Muxer) WriteHeader(opts map[string]string) error {
	var dict *C.AVDictionary
	for k, v := range opts {
		ck := C.CString(k)
		cv := C.CString(v)
		C.av_dict_set(&dict, ck, cv, 0)
		C.free(unsafe.Pointer(ck))
		C.free(unsafe.Pointer(cv))
	}
	defer C.av_dict_free(&dict)

	if C.avformat_write_header(m.ctx, &dict) < 0 {
		return serr.New(serr.KindWrite, "avio.WriteHeader", nil)
	}
	// The muxer may replace each stream's time base while writing the header.
	n := int(m.ctx.nb_streams)
	streamArr := (*[1 << 20]*C.AVStream)(unsafe.Pointer(m.ctx.streams))[:n:n]
	for i := 0; i < n && i < len(m.streamTB); i++ {
		m.streamTB[i] = fromCRational(streamArr[i].time_base)
	}
	m.opened = true
	return nil
}

// WritePacket writes pkt via the interleaving writer. pkt.StreamIndex must
// already refer to an output stream index (see AddStream's return value),
// and pkt.PTS/DTS/Duration must already be in the output stream's time base
// (see RescaleTS). WritePacket takes ownership of pkt's underlying buffer;
// do not call Free on pkt afterward.
func (m *Muxer) WritePacket(pkt *Packet) error {
	if pkt.c == nil {
		return serr.New(serr.KindInval, "avio.WritePacket", fmt.Errorf("packet has no backing buffer"))
	}
	pkt.c.stream_index = C.int(pkt.StreamIndex)
	pkt.c.pts = C.int64_t(pkt.PTS)
	pkt.c.dts = C.int64_t(pkt.DTS)
	pkt.c.duration = C.int64_t(pkt.Duration)
	pkt.c.pos = -1

	if C.av_interleaved_write_frame(m.ctx, pkt.c) < 0 {
		pkt.c = nil
		return serr.New(serr.KindWrite, "avio.WritePacket", nil)
	}
	// av_interleaved_write_frame takes ownership and unreferences the packet.
	pkt.c = nil
	return nil
}

// WriteTrailer finalizes the container.
func (m *Muxer) WriteTrailer() error {
	if !m.opened {
		return serr.New(serr.KindStream, "avio.WriteTrailer", fmt.Errorf("header never written"))
	}
	if C.av_write_trailer(m.ctx) < 0 {
		return serr.New(serr.KindWrite, "avio.WriteTrailer", nil)
	}
	return nil
}

// Close releases the muxer's resources.
func (m *Muxer) Close() error {
	if m.ctx == nil {
		return nil
	}
	if !m.nofile && m.ctx.pb != nil {
		C.avio_closep(&m.ctx.pb)
	}
	C.avformat_free_context(m.ctx)
	m.ctx = nil
	return nil
}

// RescaleTS rescales pkt's pts/dts/duration from one time base to another,
// mirroring av_packet_rescale_ts without needing a live AVPacket.
func RescaleTS(pts, dts, duration int64, from, to Rational) (outPTS, outDTS, outDuration int64) {
	fc, tc := from.toC(), to.toC()
	outPTS, outDTS, outDuration = NoPTS, NoPTS, 0
	if pts != NoPTS {
		outPTS = int64(C.av_rescale_q(C.int64_t(pts), fc, tc))
	}
	if dts != NoPTS {
		outDTS = int64(C.av_rescale_q(C.int64_t(dts), fc, tc))
	}
	if duration > 0 {
		outDuration = int64(C.av_rescale_q(C.int64_t(duration), fc, tc))
	}
	return
}
