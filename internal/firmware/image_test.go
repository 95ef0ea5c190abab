package firmware

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const (
	block0 = "F0 00 01 55 42 0C 00 00 00 01 02 03 04 F7"
	block1 = "F0 00 01 55 42 0C 00 01 00 05 06 07 08 F7"
)

func TestParseBinary(t *testing.T) {
	var data []byte
	for _, s := range []string{block0, block1} {
		b := mustHex(t, s)
		data = append(data, b...)
	}
	// real-time bytes between frames are ignored
	data = append([]byte{}, data[:14]...)
	data = append(data, 0xF8)
	data = append(data, mustHex(t, block1)...)

	img, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(img.Blocks) != 2 {
		t.Fatalf("Parse() = %d blocks, want 2", len(img.Blocks))
	}
	if img.Blocks[1].String() != block1 {
		t.Errorf("Blocks[1] = %q, want %q", img.Blocks[1], block1)
	}
	if img.Size() != 28 {
		t.Errorf("Size() = %d, want 28", img.Size())
	}
}

func TestParseHexText(t *testing.T) {
	text := block0 + "\n" + strings.ReplaceAll(block1, " ", "") + "\n"
	img, err := Parse([]byte(text))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(img.Blocks) != 2 {
		t.Fatalf("Parse() = %d blocks, want 2", len(img.Blocks))
	}
	if img.Blocks[0].String() != block0 {
		t.Errorf("Blocks[0] = %q, want %q", img.Blocks[0], block0)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name      string
		data      string
		wantErr   error
		wantBlock int
	}{
		{name: "empty", data: "  \n", wantErr: ErrEmptyImage},
		{name: "no frames", data: "01 02 03", wantErr: ErrEmptyImage},
		{name: "bad hex", data: "F0 ZZ F7"},
		{name: "wrong command", data: block0 + " F0 00 01 55 42 08 F7", wantBlock: 1},
		{name: "too short", data: "F0 00 01 55 42 0C 00 F7", wantBlock: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if err == nil {
				t.Fatal("Parse() error = nil, want error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Parse() error = %v, want %v", err, tt.wantErr)
			}
			var be *BlockError
			if errors.As(err, &be) && be.Index != tt.wantBlock {
				t.Errorf("BlockError.Index = %d, want %d", be.Index, tt.wantBlock)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "update.syx")
	if err := os.WriteFile(path, mustHex(t, block0), 0o600); err != nil {
		t.Fatal(err)
	}

	img, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if img.Name != "update.syx" || len(img.Blocks) != 1 {
		t.Errorf("Load() = %q with %d blocks", img.Name, len(img.Blocks))
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.syx")); err == nil {
		t.Error("Load(missing) error = nil")
	}
}

func TestParseReaderTooLarge(t *testing.T) {
	r := bytes.NewReader(make([]byte, MaxImageSize+1))
	if _, err := ParseReader(r); !errors.Is(err, ErrImageTooLarge) {
		t.Errorf("ParseReader() error = %v, want ErrImageTooLarge", err)
	}
}
