package bdoc

import (
	"encoding/binary"
	"math"
)

// wireBuilder assembles raw BDOC bytes for test fixtures. It is not
// part of the package's public surface: per spec.md §1, the encoder
// that produces outbound BDOC messages is an external collaborator,
// not something this driver ships. Tests still need hand-built wire
// bytes to exercise the decoder, so this stays test-only.
type wireBuilder struct {
	buf []byte
}

func newDoc() *wireBuilder { return &wireBuilder{buf: make([]byte, 4)} }

func (w *wireBuilder) cstr(s string) {
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
}

func (w *wireBuilder) elem(t Type, name string) { w.buf = append(w.buf, byte(t)); w.cstr(name) }

func (w *wireBuilder) i32(v int32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	w.buf = append(w.buf, b[:]...)
}

func (w *wireBuilder) i64(v int64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	w.buf = append(w.buf, b[:]...)
}

func (w *wireBuilder) f64(v float64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	w.buf = append(w.buf, b[:]...)
}

func (w *wireBuilder) utf8(s string) {
	w.i32(int32(len(s) + 1))
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
}

func (w *wireBuilder) double(name string, v float64) {
	w.elem(TypeDouble, name)
	w.f64(v)
}

func (w *wireBuilder) str(name, v string) {
	w.elem(TypeString, name)
	w.utf8(v)
}

func (w *wireBuilder) boolean(name string, v bool) {
	w.elem(TypeBoolean, name)
	if v {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
}

func (w *wireBuilder) int32(name string, v int32) {
	w.elem(TypeInt32, name)
	w.i32(v)
}

func (w *wireBuilder) int64(name string, v int64) {
	w.elem(TypeInt64, name)
	w.i64(v)
}

func (w *wireBuilder) null(name string) { w.elem(TypeNull, name) }

func (w *wireBuilder) undefined(name string) { w.elem(TypeUndefined, name) }

func (w *wireBuilder) minKey(name string) { w.elem(TypeMinKey, name) }

func (w *wireBuilder) maxKey(name string) { w.elem(TypeMaxKey, name) }

func (w *wireBuilder) date(name string, ms int64) {
	w.elem(TypeDate, name)
	w.i64(ms)
}

func (w *wireBuilder) objectID(name string, oid ObjectID) {
	w.elem(TypeObjectID, name)
	for i := 0; i < 3; i++ {
		v := int32(oid[i*4]) | int32(oid[i*4+1])<<8 | int32(oid[i*4+2])<<16 | int32(oid[i*4+3])<<24
		w.i32(v)
	}
}

func (w *wireBuilder) regex(name, pattern, flags string) {
	w.elem(TypeRegex, name)
	w.cstr(pattern)
	w.cstr(flags)
}

func (w *wireBuilder) timestamp(name string, inc, secs int32) {
	w.elem(TypeTimestamp, name)
	w.i32(inc)
	w.i32(secs)
}

func (w *wireBuilder) dbref(name, ns string, oid ObjectID) {
	w.elem(TypeDBRef, name)
	w.i32(int32(len(ns) + 1))
	w.cstr(ns)
	for i := 0; i < 3; i++ {
		v := int32(oid[i*4]) | int32(oid[i*4+1])<<8 | int32(oid[i*4+2])<<16 | int32(oid[i*4+3])<<24
		w.i32(v)
	}
}

func (w *wireBuilder) binaryGeneral(name string, data []byte) {
	w.elem(TypeBinary, name)
	w.i32(int32(len(data)))
	w.buf = append(w.buf, byte(BinaryGeneric))
	w.buf = append(w.buf, data...)
}

func (w *wireBuilder) binaryLegacy(name string, data []byte) {
	w.elem(TypeBinary, name)
	w.i32(int32(len(data) + 4))
	w.buf = append(w.buf, byte(BinaryLegacy))
	w.i32(int32(len(data)))
	w.buf = append(w.buf, data...)
}

func (w *wireBuilder) binaryUUID(name string, data [16]byte) {
	w.elem(TypeBinary, name)
	w.i32(16)
	w.buf = append(w.buf, byte(BinaryUUID))
	w.buf = append(w.buf, data[:]...)
}

// object begins a nested document; call finishNested with the returned
// length position to close it. The nested elements are written into the
// same buffer in between.
func (w *wireBuilder) object(name string) (lenPos int) {
	w.elem(TypeObject, name)
	lenPos = len(w.buf)
	w.buf = append(w.buf, 0, 0, 0, 0)
	return lenPos
}

func (w *wireBuilder) array(name string) (lenPos int) {
	w.elem(TypeArray, name)
	lenPos = len(w.buf)
	w.buf = append(w.buf, 0, 0, 0, 0)
	return lenPos
}

func (w *wireBuilder) finishNested(lenPos int) {
	w.buf = append(w.buf, 0) // EOO
	n := len(w.buf) - lenPos
	binary.LittleEndian.PutUint32(w.buf[lenPos:lenPos+4], uint32(n))
}

func (w *wireBuilder) codeWithScope(name, code string) (lenPos int) {
	w.elem(TypeCodeWithScope, name)
	lenPos = len(w.buf)
	w.buf = append(w.buf, 0, 0, 0, 0) // total length placeholder
	w.utf8(code)
	return lenPos
}

// finishCodeWithScope is called after writing the scope document's
// elements and its own EOO via finishNested-style bookkeeping performed
// by the caller on the scope's own length placeholder.
func (w *wireBuilder) finishCodeWithScope(lenPos int) {
	n := len(w.buf) - lenPos
	binary.LittleEndian.PutUint32(w.buf[lenPos:lenPos+4], uint32(n))
}

func (w *wireBuilder) finish() []byte {
	w.buf = append(w.buf, 0) // EOO
	binary.LittleEndian.PutUint32(w.buf[0:4], uint32(len(w.buf)))
	return w.buf
}
