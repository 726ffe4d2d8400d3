// Package muxfmt resolves the output container format for a chunk or a
// stitched file: a short libavformat muxer name plus the options needed to
// drive fragmentation or faststart, expressed as tagged variants rather than
// ad hoc string switches sprinkled through the splitter and stitcher.
package muxfmt

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format is a concrete muxer selection: short name, file extension, and the
// muxer options (movflags and friends) it needs.
type Format struct {
	ShortName string
	Ext       string
	Options   map[string]string
}

// Mp4 selects the "mp4" muxer. frag enables fragmented output
// (movflags=frag_keyframe+empty_moov+omit_tfhd_offset); faststart moves the
// moov atom to the front (movflags=faststart). The two are mutually
// exclusive; frag wins if both are requested.
func Mp4(frag, faststart bool) Format {
	f := Format{ShortName: "mp4", Ext: ".mp4", Options: map[string]string{}}
	switch {
	case frag:
		f.Options["movflags"] = "frag_keyframe+empty_moov+omit_tfhd_offset"
	case faststart:
		f.Options["movflags"] = "faststart"
	}
	return f
}

// Mov selects the "mov" muxer with no special options.
func Mov() Format { return Format{ShortName: "mov", Ext: ".mov"} }

// Matroska selects the "matroska" muxer (.mkv).
func Matroska() Format { return Format{ShortName: "matroska", Ext: ".mkv"} }

// Webm selects the "webm" muxer.
func Webm() Format { return Format{ShortName: "webm", Ext: ".webm"} }

// SplitMode controls per-chunk format selection for the splitter.
type SplitMode struct {
	Auto      bool   // derive format from the source file's extension
	Force     string // explicit muxer short name, used when Auto is false
	Fragment  bool   // fragment mp4 output (frag_keyframe+empty_moov)
	Faststart bool
}

// StitchMode controls output format selection for the stitcher.
type StitchMode struct {
	Auto      bool // derive format from the destination path's extension
	Force     string
	Fragment  bool
	Faststart bool
}

// ForSplit resolves the format a chunk should be written in. sourcePath is
// the container being split; mode.Force is only consulted when mode.Auto is
// false, matching the CLI's --frag/--force-format contract.
func ForSplit(sourcePath string, mode SplitMode) Format {
	if mode.Auto {
		return fromExt(sourcePath, mode.Fragment, mode.Faststart)
	}
	if mode.Force != "" {
		return fromShortName(mode.Force, mode.Fragment, mode.Faststart)
	}
	return Mp4(mode.Fragment, mode.Faststart)
}

// ForStitch resolves the format the stitched output should be written in.
// Stitched output always sets avoid_negative_ts=disabled so that negative
// DTS values produced by the rebasing algorithm pass through unmodified
// rather than being shifted by the muxer.
func ForStitch(outputPath string, mode StitchMode) Format {
	var f Format
	switch {
	case mode.Auto:
		f = fromExt(outputPath, mode.Fragment, mode.Faststart)
	case mode.Force != "":
		f = fromShortName(mode.Force, mode.Fragment, mode.Faststart)
	default:
		f = Mp4(mode.Fragment, mode.Faststart)
	}
	if f.Options == nil {
		f.Options = map[string]string{}
	}
	f.Options["avoid_negative_ts"] = "disabled"
	return f
}

func fromExt(path string, frag, faststart bool) Format {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "mp4":
		return Mp4(frag, faststart)
	case "mov":
		return Mov()
	case "mkv":
		return Matroska()
	case "webm":
		return Webm()
	default:
		return Mp4(frag, faststart)
	}
}

func fromShortName(name string, frag, faststart bool) Format {
	switch strings.ToLower(name) {
	case "mp4":
		return Mp4(frag, faststart)
	case "mov":
		return Mov()
	case "matroska", "mkv":
		return Matroska()
	case "webm":
		return Webm()
	default:
		return Mp4(frag, faststart)
	}
}

// ChunkFilename builds the conventional chunk filename for index using f's
// extension (fixes the fixed ".mp4" chunk naming a hand-rolled chunker would
// otherwise bake in regardless of the selected muxer).
func ChunkFilename(index int, f Format) string {
	return fmt.Sprintf("chunk_%04d%s", index, f.Ext)
}
