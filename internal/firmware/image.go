package firmware

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dcontrol/midiboot/internal/sysex"
)

// MaxImageSize bounds the size of an image file.
const MaxImageSize = 16 << 20

// minBlockLen is the shortest frame that still carries the status-control
// byte at offset 8 plus the end byte.
const minBlockLen = 10

var blockHeader = sysex.MustCompile("F0 00 01 55 42 0C")

var (
	// ErrEmptyImage is returned when an image holds no frames at all.
	ErrEmptyImage = errors.New("firmware image contains no SysEx frames")
	// ErrImageTooLarge is returned for files over MaxImageSize.
	ErrImageTooLarge = errors.New("firmware image too large")
)

// BlockError reports a frame in an image that is not a usable update block.
type BlockError struct {
	Index  int    // 0-based frame index within the image
	Reason string // Why the frame was refused
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("block %d: %s", e.Index, e.Reason)
}

// Image is a parsed firmware update image.
type Image struct {
	Name   string
	Blocks []sysex.Message
}

// Size returns the total number of bytes across all blocks.
func (img *Image) Size() int {
	n := 0
	for _, b := range img.Blocks {
		n += len(b)
	}
	return n
}

// Load reads and parses the image at path.
func Load(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open firmware image: %w", err)
	}
	defer func() { _ = f.Close() }()

	img, err := ParseReader(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	img.Name = filepath.Base(path)
	return img, nil
}

// ParseReader reads a whole image from r.
func ParseReader(r io.Reader) (*Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read firmware image: %w", err)
	}
	if len(data) > MaxImageSize {
		return nil, ErrImageTooLarge
	}
	return Parse(data)
}

// Parse decodes an image from raw bytes. Data starting with a 0xF0 byte is
// treated as a binary dump, anything else as hex text with one or more
// frames per line.
func Parse(data []byte) (*Image, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ErrEmptyImage
	}

	var frames []sysex.Message
	if trimmed[0] == sysex.Start {
		frames = sysex.SplitFrames(trimmed)
	} else {
		raw, err := sysex.Parse(string(trimmed))
		if err != nil {
			return nil, fmt.Errorf("invalid hex image: %w", err)
		}
		frames = sysex.SplitFrames(raw)
	}
	if len(frames) == 0 {
		return nil, ErrEmptyImage
	}

	for i, f := range frames {
		if !blockHeader.Match(f) {
			return nil, &BlockError{Index: i, Reason: fmt.Sprintf("not a firmware update command: %s", f)}
		}
		if len(f) < minBlockLen {
			return nil, &BlockError{Index: i, Reason: fmt.Sprintf("too short (%d bytes)", len(f))}
		}
	}
	return &Image{Blocks: frames}, nil
}
