package muxfmt

import "testing"

func TestMp4_FragWinsOverFaststart(t *testing.T) {
	f := Mp4(true, true)
	if got := f.Options["movflags"]; got != "frag_keyframe+empty_moov+omit_tfhd_offset" {
		t.Errorf("movflags = %q, want fragmented flags when both frag and faststart are set", got)
	}
}

func TestMp4_Faststart(t *testing.T) {
	f := Mp4(false, true)
	if got := f.Options["movflags"]; got != "faststart" {
		t.Errorf("movflags = %q, want faststart", got)
	}
}

func TestMp4_Plain(t *testing.T) {
	f := Mp4(false, false)
	if _, ok := f.Options["movflags"]; ok {
		t.Errorf("expected no movflags option, got %q", f.Options["movflags"])
	}
	if f.ShortName != "mp4" || f.Ext != ".mp4" {
		t.Errorf("got ShortName=%q Ext=%q", f.ShortName, f.Ext)
	}
}

func TestForSplit_AutoDerivesFromExtension(t *testing.T) {
	tests := []struct {
		path     string
		wantName string
		wantExt  string
	}{
		{"/in/movie.mp4", "mp4", ".mp4"},
		{"/in/movie.MOV", "mov", ".mov"},
		{"/in/movie.mkv", "matroska", ".mkv"},
		{"/in/movie.webm", "webm", ".webm"},
		{"/in/movie.ts", "mp4", ".mp4"}, // unrecognized extension falls back to mp4
	}
	for _, tt := range tests {
		f := ForSplit(tt.path, SplitMode{Auto: true})
		if f.ShortName != tt.wantName || f.Ext != tt.wantExt {
			t.Errorf("ForSplit(%q) = {%q,%q}, want {%q,%q}", tt.path, f.ShortName, f.Ext, tt.wantName, tt.wantExt)
		}
	}
}

func TestForSplit_ForceOverridesSourceExtension(t *testing.T) {
	f := ForSplit("/in/movie.mp4", SplitMode{Force: "webm"})
	if f.ShortName != "webm" || f.Ext != ".webm" {
		t.Errorf("got {%q,%q}, want forced webm", f.ShortName, f.Ext)
	}
}

func TestForSplit_DefaultsToMp4(t *testing.T) {
	f := ForSplit("/in/movie.mp4", SplitMode{})
	if f.ShortName != "mp4" {
		t.Errorf("got %q, want mp4 default when neither Auto nor Force is set", f.ShortName)
	}
}

func TestForStitch_AlwaysSetsAvoidNegativeTS(t *testing.T) {
	tests := []struct {
		name string
		path string
		mode StitchMode
	}{
		{"auto from extension", "/out/final.mkv", StitchMode{Auto: true}},
		{"forced short name", "/out/final.mp4", StitchMode{Force: "webm"}},
		{"default mp4", "/out/final.mp4", StitchMode{}},
		{"fragmented mp4", "/out/final.mp4", StitchMode{Auto: true, Fragment: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := ForStitch(tt.path, tt.mode)
			if got := f.Options["avoid_negative_ts"]; got != "disabled" {
				t.Errorf("ForStitch(%q, %+v).Options[avoid_negative_ts] = %q, want %q", tt.path, tt.mode, got, "disabled")
			}
		})
	}
}

func TestChunkFilename_UsesFormatExtensionNotHardcodedMp4(t *testing.T) {
	tests := []struct {
		f    Format
		want string
	}{
		{Mp4(false, false), "chunk_0000.mp4"},
		{Webm(), "chunk_0007.webm"},
		{Matroska(), "chunk_0123.mkv"},
	}
	for _, tt := range tests {
		idx := 0
		switch tt.want {
		case "chunk_0007.webm":
			idx = 7
		case "chunk_0123.mkv":
			idx = 123
		}
		got := ChunkFilename(idx, tt.f)
		if got != tt.want {
			t.Errorf("ChunkFilename(%d, %+v) = %q, want %q", idx, tt.f, got, tt.want)
		}
	}
}
