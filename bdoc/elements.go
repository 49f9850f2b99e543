package bdoc

// Type is a BDOC element type byte, as it appears on the wire
// immediately before an element's name.
type Type byte

const (
	TypeEOO           Type = 0x00
	TypeDouble        Type = 0x01
	TypeString        Type = 0x02
	TypeObject        Type = 0x03
	TypeArray         Type = 0x04
	TypeBinary        Type = 0x05
	TypeUndefined     Type = 0x06
	TypeObjectID      Type = 0x07
	TypeBoolean       Type = 0x08
	TypeDate          Type = 0x09
	TypeNull          Type = 0x0A
	TypeRegex         Type = 0x0B
	TypeDBRef         Type = 0x0C
	TypeCode          Type = 0x0D
	TypeSymbol        Type = 0x0E
	TypeCodeWithScope Type = 0x0F
	TypeInt32         Type = 0x10
	TypeTimestamp     Type = 0x11
	TypeInt64         Type = 0x12
	TypeMinKey        Type = 0xFF
	TypeMaxKey        Type = 0x7F
)

// BinarySubtype is the subtype byte carried by a TypeBinary element.
type BinarySubtype byte

const (
	BinaryGeneric BinarySubtype = 0x00
	BinaryLegacy  BinarySubtype = 0x02
	BinaryUUID    BinarySubtype = 0x03
)

// ObjectID is a 12-byte BDOC object identifier, read as three
// consecutive little-endian int32s per the wire layout in the spec.
type ObjectID [12]byte

// Timestamp is a BDOC internal replication timestamp: an increment
// counter paired with a seconds-since-epoch value.
type Timestamp struct {
	Increment int32
	Seconds   int32
}

// Regex is a BDOC regular expression: a pattern and a flags string,
// both encoded as C-strings on the wire.
type Regex struct {
	Pattern string
	Flags   string
}

// DBRef is a BDOC database reference: a collection namespace plus the
// ObjectID of the referenced document. The leading length field on the
// wire is read and discarded, matching the original decoder.
type DBRef struct {
	Namespace string
	ID        ObjectID
}

// Binary is a BDOC binary value of any subtype: generic, legacy, UUID,
// or an unrecognized subtype carried as opaque bytes.
type Binary struct {
	Subtype BinarySubtype
	Data    []byte
}

// CodeWithScope is BDOC code paired with a variable scope document.
// Scope is whatever the Callback's makeChild() built for the nested
// document; its concrete type depends on the Callback implementation.
type CodeWithScope struct {
	Code  string
	Scope any
}
