package bdoc

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"go.uber.org/zap"
)

const (
	initialCapacity = 1024
	// maxReadahead bounds how far ensureContiguous will read past what
	// was strictly requested, in the same spirit as rkive's fixed
	// read/write deadlines: a small, constant cushion rather than an
	// unbounded prefetch.
	maxReadahead = 512
	// maxUTF8Len is the per-spec cap on a single BDOC string's declared
	// length (its len field, inclusive of the trailing NUL).
	maxUTF8Len = 3 * 1024 * 1024
	// defaultMaxDocumentLen bounds the outer document length read at
	// construction time, closing the resource-exhaustion gap noted in
	// SPEC_FULL.md §4: an attacker-controlled outer length must not be
	// allowed to drive unbounded buffer growth before a single element
	// has been parsed.
	defaultMaxDocumentLen = 16 * 1024 * 1024
)

// BufferedInput is a windowed read-ahead buffer over a byte source,
// sized to one BDOC document. It is not safe for concurrent use.
type BufferedInput struct {
	src io.Reader

	buf []byte
	o   int // cursor: next unread byte
	l   int // fill end: buf[o:l] is valid, unread data

	read int64 // bytes drained past o since construction
	length int32 // declared outer length of the document being parsed

	maxDocumentLen int32

	asciiCache [128]string
}

// NewBufferedInput wraps src and reads the 4-byte outer document length
// that every BDOC document begins with. The returned BufferedInput's
// Length() reports that value; bytesRead() already accounts for the 4
// bytes consumed to read it, per spec.md §4.2 step 1.
func NewBufferedInput(src io.Reader) (*BufferedInput, error) {
	return newBufferedInputWithLimit(src, defaultMaxDocumentLen)
}

// NewBufferedInputWithLimit is like NewBufferedInput but overrides the
// maximum accepted outer document length.
func NewBufferedInputWithLimit(src io.Reader, maxDocumentLen int) (*BufferedInput, error) {
	return newBufferedInputWithLimit(src, int32(maxDocumentLen))
}

func newBufferedInputWithLimit(src io.Reader, maxDocumentLen int32) (*BufferedInput, error) {
	b := &BufferedInput{
		src: src,
		buf: make([]byte, initialCapacity),
		// length starts at 4: exactly the bytes the readI32 below needs,
		// so ensureContiguous can't read ahead past the length field
		// itself and into whatever follows on a reused connection.
		// Overwritten with the real declared length once read.
		length:         4,
		maxDocumentLen: maxDocumentLen,
	}

	n, err := b.readI32()
	if err != nil {
		return nil, err
	}
	if n < 5 || n > maxDocumentLen {
		logger.Warn("bdoc: rejecting document length", zap.Int32("length", n), zap.Int32("max", maxDocumentLen))
		return nil, newDecodeError(BadLength, "", nil)
	}
	b.length = n
	return b, nil
}

// Length returns the declared outer length of the document under parse.
func (b *BufferedInput) Length() int32 { return b.length }

// bytesRead returns the number of bytes the parser has consumed since
// construction: bytes drained past the window (including those fill read
// directly from src) plus the cursor position. Bytes read ahead into the
// window but not yet consumed are not counted.
func (b *BufferedInput) bytesRead() int64 { return b.read + int64(b.o) }

// ensureContiguous guarantees that buf[o:o+n] is valid, compacting and
// refilling from src as necessary. Read-ahead beyond the n bytes
// requested is capped at maxReadahead and never extends past the
// document's declared outer length.
func (b *BufferedInput) ensureContiguous(n int) error {
	if b.l-b.o >= n {
		return nil
	}

	if b.o > 0 {
		copy(b.buf, b.buf[b.o:b.l])
		b.l -= b.o
		b.read += int64(b.o)
		b.o = 0
	}

	if need := n + maxReadahead; cap(b.buf) < need {
		grown := make([]byte, need)
		copy(grown, b.buf[:b.l])
		b.buf = grown
	} else if len(b.buf) < need {
		b.buf = b.buf[:cap(b.buf)]
	}

	need := n - b.l
	remainingInDoc := int(b.length) - int(b.read) - b.l
	extra := maxReadahead
	if remainingInDoc-need < extra {
		extra = remainingInDoc - need
	}
	if extra < 0 {
		extra = 0
	}

	target := b.l + need + extra
	if target > len(b.buf) {
		target = len(b.buf)
	}
	if target < b.l+need {
		target = b.l + need
		if target > len(b.buf) {
			grown := make([]byte, target)
			copy(grown, b.buf[:b.l])
			b.buf = grown
		}
	}

	for b.l < target {
		m, err := b.src.Read(b.buf[b.l:target])
		if m > 0 {
			b.l += m
		}
		if err != nil {
			if b.l-b.o >= n {
				return nil
			}
			return newDecodeError(UnexpectedEOF, "", err)
		}
	}
	return nil
}

func (b *BufferedInput) readByte() (byte, error) {
	if err := b.ensureContiguous(1); err != nil {
		return 0, err
	}
	v := b.buf[b.o]
	b.o++
	return v, nil
}

func (b *BufferedInput) readI32() (int32, error) {
	if err := b.ensureContiguous(4); err != nil {
		return 0, err
	}
	v := int32(binary.LittleEndian.Uint32(b.buf[b.o:]))
	b.o += 4
	return v, nil
}

func (b *BufferedInput) readI64() (int64, error) {
	if err := b.ensureContiguous(8); err != nil {
		return 0, err
	}
	v := int64(binary.LittleEndian.Uint64(b.buf[b.o:]))
	b.o += 8
	return v, nil
}

func (b *BufferedInput) readF64() (float64, error) {
	if err := b.ensureContiguous(8); err != nil {
		return 0, err
	}
	v := math.Float64frombits(binary.LittleEndian.Uint64(b.buf[b.o:]))
	b.o += 8
	return v, nil
}

// fill drains whatever is already buffered into dst, then reads any
// remainder directly from src, bypassing the buffer for large payloads
// (e.g. Binary elements).
func (b *BufferedInput) fill(dst []byte, n int) error {
	avail := b.l - b.o
	if avail > n {
		avail = n
	}
	if avail > 0 {
		copy(dst[:avail], b.buf[b.o:b.o+avail])
		b.o += avail
	}
	remaining := n - avail
	if remaining == 0 {
		return nil
	}
	got, err := io.ReadFull(b.src, dst[avail:n])
	b.read += int64(got)
	if err != nil {
		return newDecodeError(UnexpectedEOF, "", err)
	}
	return nil
}

func isPrintableASCII(c byte) bool { return c >= 0x20 && c < 0x7f }

// readCString reads a NUL-terminated string. A single printable-ASCII
// byte name is served from a 128-entry cache of singleton strings, so
// repeated decodes of the same short field name do not reallocate.
func (b *BufferedInput) readCString() (string, error) {
	if err := b.ensureContiguous(1); err != nil {
		return "", err
	}
	if b.buf[b.o] == 0 {
		b.o++
		return "", nil
	}

	scanFrom := b.o
	for {
		if idx := bytes.IndexByte(b.buf[scanFrom:b.l], 0); idx >= 0 {
			end := scanFrom + idx
			nameLen := end - b.o
			if nameLen == 1 {
				c := b.buf[b.o]
				if c < 128 && isPrintableASCII(c) {
					s := b.asciiCache[c]
					if s == "" {
						s = string(c)
						b.asciiCache[c] = s
					}
					b.o = end + 1
					return s, nil
				}
			}
			s := string(b.buf[b.o:end])
			b.o = end + 1
			return s, nil
		}

		scanned := b.l - b.o
		want := scanned * 2
		if want < 16 {
			want = 16
		}
		if left := int(int64(b.length) - b.bytesRead()); want > left {
			want = left
		}
		if want <= scanned {
			return "", newDecodeError(UnexpectedEOF, "", io.ErrUnexpectedEOF)
		}
		if err := b.ensureContiguous(want); err != nil {
			return "", err
		}
		// ensureContiguous may have compacted the window to buf[0:], so
		// resume scanning relative to the new cursor.
		scanFrom = b.o + scanned
	}
}

// readUTF8Len reads a BDOC length-prefixed UTF-8 string: a positive
// int32 length s (rejecting s<0 or s>3MiB), s-1 bytes of UTF-8, and a
// trailing NUL.
func (b *BufferedInput) readUTF8Len() (string, error) {
	s, err := b.readI32()
	if err != nil {
		return "", err
	}
	if s < 0 || s > maxUTF8Len {
		return "", newDecodeError(BadLength, "", nil)
	}
	if s == 0 {
		return "", newDecodeError(BadLength, "", nil)
	}
	if err := b.ensureContiguous(int(s)); err != nil {
		return "", err
	}
	str := string(b.buf[b.o : b.o+int(s)-1])
	b.o += int(s)
	return str, nil
}
