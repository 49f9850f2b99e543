package bdoc

import "io"

// BDOCDecoder parses one BDOC document at a time against a Callback.
// A decoder is not re-entrant: invoking Decode while a previous call on
// the same instance is still in progress (e.g. from within a Callback)
// fails with a Reentrant DecodeError rather than corrupting shared
// cursor state.
type BDOCDecoder struct {
	inProgress bool
}

// NewBDOCDecoder returns a decoder ready to parse documents one at a
// time. A single instance may be reused across sequential, non-nested
// Decode calls.
func NewBDOCDecoder() *BDOCDecoder { return &BDOCDecoder{} }

// Decode reads exactly one BDOC document from src, dispatching typed
// events to callback, and returns the document's declared outer
// length. Per SPEC_FULL.md §5, a mismatch between the length actually
// consumed and the length declared on the wire is a fatal
// LengthMismatch DecodeError, not a silently accepted truncation.
func (d *BDOCDecoder) Decode(src io.Reader, callback Callback) (int32, error) {
	if d.inProgress {
		return 0, &DecodeError{Kind: Reentrant}
	}
	d.inProgress = true
	defer func() { d.inProgress = false }()

	input, err := NewBufferedInput(src)
	if err != nil {
		return 0, err
	}

	start := input.bytesRead() - 4
	callback.ObjectStart("")
	for {
		more, err := d.decodeElement(input, callback)
		if err != nil {
			return 0, err
		}
		if !more {
			break
		}
	}
	callback.ObjectDone()

	consumed := input.bytesRead() - start
	if int32(consumed) != input.Length() {
		return 0, &DecodeError{Kind: LengthMismatch}
	}
	return input.Length(), nil
}

// decodeElement reads one (type, name, payload) triple and dispatches
// it to callback. It returns false when the EOO marker ends the
// enclosing document.
func (d *BDOCDecoder) decodeElement(input *BufferedInput, callback Callback) (bool, error) {
	t, err := input.readByte()
	if err != nil {
		return false, err
	}
	if Type(t) == TypeEOO {
		return false, nil
	}

	name, err := input.readCString()
	if err != nil {
		return false, err
	}

	switch Type(t) {
	case TypeDouble:
		v, err := input.readF64()
		if err != nil {
			return false, err
		}
		callback.GotDouble(name, v)

	case TypeString:
		v, err := input.readUTF8Len()
		if err != nil {
			return false, err
		}
		callback.GotString(name, v)

	case TypeObject:
		if err := d.decodeNested(input, callback, false, name); err != nil {
			return false, err
		}

	case TypeArray:
		if err := d.decodeNested(input, callback, true, name); err != nil {
			return false, err
		}

	case TypeBinary:
		if err := d.decodeBinary(input, callback, name); err != nil {
			return false, err
		}

	case TypeUndefined:
		callback.GotUndefined(name)

	case TypeObjectID:
		oid, err := readObjectID(input)
		if err != nil {
			return false, err
		}
		callback.GotObjectID(name, oid)

	case TypeBoolean:
		b, err := input.readByte()
		if err != nil {
			return false, err
		}
		callback.GotBoolean(name, b != 0)

	case TypeDate:
		v, err := input.readI64()
		if err != nil {
			return false, err
		}
		callback.GotDate(name, v)

	case TypeNull:
		callback.GotNull(name)

	case TypeRegex:
		pattern, err := input.readCString()
		if err != nil {
			return false, err
		}
		flags, err := input.readCString()
		if err != nil {
			return false, err
		}
		callback.GotRegex(name, Regex{Pattern: pattern, Flags: flags})

	case TypeDBRef:
		if _, err := input.readI32(); err != nil { // length of the ns C-string that follows; ignored
			return false, err
		}
		ns, err := input.readCString()
		if err != nil {
			return false, err
		}
		oid, err := readObjectID(input)
		if err != nil {
			return false, err
		}
		callback.GotDBRef(name, DBRef{Namespace: ns, ID: oid})

	case TypeCode:
		v, err := input.readUTF8Len()
		if err != nil {
			return false, err
		}
		callback.GotCode(name, v)

	case TypeSymbol:
		v, err := input.readUTF8Len()
		if err != nil {
			return false, err
		}
		callback.GotSymbol(name, v)

	case TypeCodeWithScope:
		if err := d.decodeCodeWithScope(input, callback, name); err != nil {
			return false, err
		}

	case TypeInt32:
		v, err := input.readI32()
		if err != nil {
			return false, err
		}
		callback.GotInt32(name, v)

	case TypeTimestamp:
		inc, err := input.readI32()
		if err != nil {
			return false, err
		}
		secs, err := input.readI32()
		if err != nil {
			return false, err
		}
		callback.GotTimestamp(name, Timestamp{Increment: inc, Seconds: secs})

	case TypeInt64:
		v, err := input.readI64()
		if err != nil {
			return false, err
		}
		callback.GotInt64(name, v)

	case TypeMinKey:
		callback.GotMinKey(name)

	case TypeMaxKey:
		callback.GotMaxKey(name)

	default:
		return false, newUnsupportedType(t, name)
	}

	return true, nil
}

// decodeNested consumes a nested document's inner length (per spec.md
// §4.2, consumed but not validated against the outer frame) and parses
// its elements into callback as an object or array.
func (d *BDOCDecoder) decodeNested(input *BufferedInput, callback Callback, isArray bool, name string) error {
	if _, err := input.readI32(); err != nil {
		return err
	}
	if isArray {
		callback.ArrayStart(name)
	} else {
		callback.ObjectStart(name)
	}
	for {
		more, err := d.decodeElement(input, callback)
		if err != nil {
			return err
		}
		if !more {
			break
		}
	}
	if isArray {
		callback.ArrayDone()
	} else {
		callback.ObjectDone()
	}
	return nil
}

func (d *BDOCDecoder) decodeBinary(input *BufferedInput, callback Callback, name string) error {
	totalLen, err := input.readI32()
	if err != nil {
		return err
	}
	if totalLen < 0 {
		return newDecodeError(BadLength, name, nil)
	}
	subtypeByte, err := input.readByte()
	if err != nil {
		return err
	}
	subtype := BinarySubtype(subtypeByte)

	switch subtype {
	case BinaryLegacy:
		innerLen, err := input.readI32()
		if err != nil {
			return err
		}
		if innerLen+4 != totalLen {
			return newDecodeError(BadBinarySubtype, name, nil)
		}
		data := make([]byte, innerLen)
		if err := input.fill(data, int(innerLen)); err != nil {
			return err
		}
		callback.GotBinary(name, Binary{Subtype: BinaryLegacy, Data: data})

	case BinaryUUID:
		if totalLen != 16 {
			return newDecodeError(BadBinarySubtype, name, nil)
		}
		data := make([]byte, 16)
		if err := input.fill(data, 16); err != nil {
			return err
		}
		callback.GotBinary(name, Binary{Subtype: BinaryUUID, Data: data})

	default:
		data := make([]byte, totalLen)
		if err := input.fill(data, int(totalLen)); err != nil {
			return err
		}
		callback.GotBinary(name, Binary{Subtype: subtype, Data: data})
	}
	return nil
}

// decodeCodeWithScope parses a CodeWithScope element. Its scope
// sub-document is decoded into a fresh Callback obtained from
// callback.MakeChild(); the parent callback resumes immediately after.
func (d *BDOCDecoder) decodeCodeWithScope(input *BufferedInput, callback Callback, name string) error {
	if _, err := input.readI32(); err != nil { // total length of code+scope; ignored
		return err
	}
	code, err := input.readUTF8Len()
	if err != nil {
		return err
	}

	child := callback.MakeChild()
	if err := d.decodeNested(input, child, false, ""); err != nil {
		return err
	}

	callback.GotCodeWithScope(name, CodeWithScope{Code: code, Scope: child.Get()})
	return nil
}

func readObjectID(input *BufferedInput) (ObjectID, error) {
	var oid ObjectID
	for i := 0; i < 3; i++ {
		v, err := input.readI32()
		if err != nil {
			return oid, err
		}
		oid[i*4] = byte(v)
		oid[i*4+1] = byte(v >> 8)
		oid[i*4+2] = byte(v >> 16)
		oid[i*4+3] = byte(v >> 24)
	}
	return oid, nil
}

// DecodeDocument is a convenience wrapper that decodes one BDOC
// document from src using the default Builder Callback.
func DecodeDocument(src io.Reader) (Document, error) {
	d := NewBDOCDecoder()
	b := NewBuilder()
	if _, err := d.Decode(src, b); err != nil {
		return nil, err
	}
	doc, _ := b.Get().(Document)
	return doc, nil
}
