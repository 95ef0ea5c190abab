package sysex

// MaxFrameSize bounds a single frame. Longer frames are discarded.
const MaxFrameSize = 64 * 1024

// Framer reassembles SysEx frames from a raw MIDI byte stream. It is not
// safe for concurrent use.
type Framer struct {
	buf     []byte
	inFrame bool
}

// Feed consumes raw bytes and returns every frame completed by them.
// Real-time bytes (F8-FF) are ignored wherever they appear. Any other status
// byte inside a frame abandons it.
func (f *Framer) Feed(data []byte) []Message {
	var out []Message
	for _, b := range data {
		switch {
		case b >= 0xF8:
			continue
		case b == Start:
			f.buf = append(f.buf[:0], b)
			f.inFrame = true
		case b == End:
			if f.inFrame {
				f.buf = append(f.buf, b)
				out = append(out, Message(f.buf).Clone())
			}
			f.reset()
		case b&0x80 != 0:
			f.reset()
		case f.inFrame:
			if len(f.buf) >= MaxFrameSize {
				f.reset()
				continue
			}
			f.buf = append(f.buf, b)
		}
	}
	return out
}

// Pending returns the number of bytes buffered for an unfinished frame.
func (f *Framer) Pending() int { return len(f.buf) }

func (f *Framer) reset() {
	f.buf = f.buf[:0]
	f.inFrame = false
}

// SplitFrames returns every complete frame found in data.
func SplitFrames(data []byte) []Message {
	var f Framer
	return f.Feed(data)
}
