package csvio

// streaming.go prepares raw CSV bytes before they reach encoding/csv:
//
//   - a UTF-8 byte order mark, as written by spreadsheet tools on Windows, is dropped
//   - invalid UTF-8 bytes are replaced with '?' so the parser never sees them
//   - bytes consumed can be counted for progress reporting
//
// Everything is done on the fly so memory use stays proportional to the
// parser's buffer, not the file.

import (
	"bufio"
	"bytes"
	"io"
	"sync/atomic"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// SkipBOM returns a reader over r without a leading UTF-8 BOM.
func SkipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

// Sanitizer replaces invalid UTF-8 bytes with '?'. A multi-byte sequence
// split across two reads is carried over and decoded on the next one.
type Sanitizer struct {
	r     io.Reader
	carry []byte
}

// NewSanitizer wraps r.
func NewSanitizer(r io.Reader) *Sanitizer {
	return &Sanitizer{r: r, carry: make([]byte, 0, utf8.UTFMax)}
}

// Read implements io.Reader. p should hold at least utf8.UTFMax bytes.
func (s *Sanitizer) Read(p []byte) (int, error) {
	for {
		n := copy(p, s.carry)
		s.carry = s.carry[:0]

		m, err := s.r.Read(p[n:])
		n += m
		if n == 0 {
			return 0, err
		}

		w := s.sanitize(p[:n], err == io.EOF)
		// Only a held-back partial rune was read; go round again.
		if w == 0 && err == nil {
			continue
		}
		return w, err
	}
}

// sanitize rewrites data in place and returns the number of valid bytes.
// Unless atEOF, a trailing partial rune is moved to carry.
func (s *Sanitizer) sanitize(data []byte, atEOF bool) int {
	w := 0
	for i := 0; i < len(data); {
		c := data[i]
		if c < utf8.RuneSelf {
			data[w] = c
			w++
			i++
			continue
		}
		if !atEOF && !utf8.FullRune(data[i:]) {
			s.carry = append(s.carry, data[i:]...)
			return w
		}
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			data[w] = '?'
			w++
			i++
			continue
		}
		w += copy(data[w:], data[i:i+size])
		i += size
	}
	return w
}

// CountingReader tracks bytes read. Count and Percent are safe to call
// from another goroutine while reads are in progress.
type CountingReader struct {
	r     io.Reader
	n     atomic.Int64
	total int64
}

// NewCountingReader wraps r. total may be 0 when the size is unknown.
func NewCountingReader(r io.Reader, total int64) *CountingReader {
	return &CountingReader{r: r, total: total}
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}

// Count returns the bytes read so far.
func (c *CountingReader) Count() int64 {
	return c.n.Load()
}

// Percent returns read progress in 0-100, or 0 when the total is unknown.
func (c *CountingReader) Percent() int {
	if c.total <= 0 {
		return 0
	}
	p := int(c.n.Load() * 100 / c.total)
	return min(p, 100)
}

// Prepare strips the BOM from raw CSV input and then sanitizes it.
func Prepare(r io.Reader) io.Reader {
	return NewSanitizer(SkipBOM(r))
}
