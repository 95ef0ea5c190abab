package sysex

import (
	"testing"
)

func TestFramerFeed(t *testing.T) {
	tests := []struct {
		name   string
		chunks [][]byte
		want   []string
	}{
		{
			name:   "single frame",
			chunks: [][]byte{{0xF0, 0x7E, 0x7F, 0x06, 0x01, 0xF7}},
			want:   []string{"F0 7E 7F 06 01 F7"},
		},
		{
			name:   "split across reads",
			chunks: [][]byte{{0xF0, 0x00, 0x01}, {0x55, 0x42}, {0x08, 0xF7}},
			want:   []string{"F0 00 01 55 42 08 F7"},
		},
		{
			name:   "real-time bytes inside frame",
			chunks: [][]byte{{0xF0, 0x00, 0xF8, 0x01, 0xFE, 0xF7}},
			want:   []string{"F0 00 01 F7"},
		},
		{
			name:   "channel message aborts frame",
			chunks: [][]byte{{0xF0, 0x00, 0x90, 0x40, 0x7F, 0xF7}},
			want:   nil,
		},
		{
			name:   "restart on new start byte",
			chunks: [][]byte{{0xF0, 0x01, 0xF0, 0x02, 0xF7}},
			want:   []string{"F0 02 F7"},
		},
		{
			name:   "two frames with noise between",
			chunks: [][]byte{{0x90, 0x40, 0x7F, 0xF0, 0x01, 0xF7, 0x12, 0xF0, 0x02, 0xF7}},
			want:   []string{"F0 01 F7", "F0 02 F7"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f Framer
			var got []string
			for _, c := range tt.chunks {
				for _, m := range f.Feed(c) {
					got = append(got, m.String())
				}
			}
			if len(got) != len(tt.want) {
				t.Fatalf("frames = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("frame[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestFramerFramesAreIndependent(t *testing.T) {
	var f Framer
	first := f.Feed([]byte{0xF0, 0x01, 0xF7})
	f.Feed([]byte{0xF0, 0x02, 0xF7})
	if first[0][1] != 0x01 {
		t.Errorf("earlier frame was overwritten: %v", first[0])
	}
}

func TestSplitFrames(t *testing.T) {
	data := MustParse("F0 00 01 55 42 0C 00 01 00 F7 F0 00 01 55 42 0C 00 01 01 F7")
	frames := SplitFrames(data)
	if len(frames) != 2 {
		t.Fatalf("SplitFrames() = %d frames, want 2", len(frames))
	}
	if frames[1][8] != 0x01 {
		t.Errorf("second frame byte 8 = 0x%02X, want 0x01", frames[1][8])
	}
}
