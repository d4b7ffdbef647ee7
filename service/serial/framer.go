package serial

import (
	"bytes"
)

// LineFramer accumulates raw device bytes and extracts complete
// newline-terminated lines. Bytes after the last newline in a chunk are kept
// for the next call, so lines split across arbitrary chunk boundaries are
// reassembled exactly as if the stream had arrived in one piece.
//
// The internal buffer is bounded. If the device streams maxBuffer bytes
// without a newline the whole buffer is dropped, never a prefix of it, so a
// line with an amputated head can never be framed.
type LineFramer struct {
	buf       []byte
	maxBuffer int
	drops     int
}

// NewLineFramer creates a framer whose unframed buffer holds at most
// maxBuffer bytes.
func NewLineFramer(maxBuffer int) *LineFramer {
	return &LineFramer{maxBuffer: maxBuffer}
}

// Feed appends chunk to the internal buffer and returns all complete lines
// now available, without their terminators. Returns nil when no newline has
// been seen yet.
func (f *LineFramer) Feed(chunk []byte) []string {
	f.buf = append(f.buf, chunk...)

	idx := bytes.LastIndexByte(f.buf, '\n')
	if idx == -1 {
		if len(f.buf) > f.maxBuffer {
			f.buf = f.buf[:0]
			f.drops++
		}
		return nil
	}

	complete := f.buf[:idx]
	rest := f.buf[idx+1:]

	lines := splitLines(complete)

	// Keep the trailing fragment; reuse the backing array.
	f.buf = append(f.buf[:0], rest...)
	if len(f.buf) > f.maxBuffer {
		f.buf = f.buf[:0]
		f.drops++
	}

	return lines
}

// Pending returns the number of buffered bytes not yet part of a complete line.
func (f *LineFramer) Pending() int {
	return len(f.buf)
}

// Drops returns how many times the buffer overflowed and was discarded.
func (f *LineFramer) Drops() int {
	return f.drops
}

// splitLines splits on embedded newlines. A copy is taken because the
// framer reuses its backing array across Feed calls.
func splitLines(complete []byte) []string {
	parts := bytes.Split(complete, []byte{'\n'})
	lines := make([]string, len(parts))
	for i, p := range parts {
		lines[i] = string(p)
	}
	return lines
}
