package bdoc

// Callback receives one event per BDOC element as BDOCDecoder streams
// through a document. Implementations decide what, if anything, to
// build; the decoder never inspects what a Callback returns except via
// MakeChild/Get.
//
// name is "" for the outermost document's ObjectStart; every nested or
// terminal element's name is the C-string that preceded it on the wire,
// or the array index ("0", "1", ...) for array elements.
type Callback interface {
	ObjectStart(name string)
	ObjectDone()
	ArrayStart(name string)
	ArrayDone()

	GotDouble(name string, v float64)
	GotString(name string, v string)
	GotBinary(name string, v Binary)
	GotUndefined(name string)
	GotObjectID(name string, v ObjectID)
	GotBoolean(name string, v bool)
	GotDate(name string, v int64)
	GotNull(name string)
	GotRegex(name string, v Regex)
	GotDBRef(name string, v DBRef)
	GotCode(name string, v string)
	GotSymbol(name string, v string)
	GotCodeWithScope(name string, v CodeWithScope)
	GotInt32(name string, v int32)
	GotTimestamp(name string, v Timestamp)
	GotInt64(name string, v int64)
	GotMinKey(name string)
	GotMaxKey(name string)

	// MakeChild returns a fresh Callback used to decode the scope
	// document of a CodeWithScope element. The decoder restores the
	// parent callback afterward and reports the child's Get() as the
	// element's Scope.
	MakeChild() Callback

	// Reset discards any in-progress state, readying the Callback for
	// reuse by a subsequent Decode call.
	Reset()

	// Get returns whatever value the Callback built. Its concrete type
	// is implementation-defined.
	Get() any
}
