package bdoc

// Document is the map representation a Builder assembles for BDOC
// objects. Arrays decode to []any.
type Document map[string]any

type builderFrame struct {
	name  string
	isArr bool
	obj   Document
	arr   []any
}

// Builder is the default Callback: it assembles each document into a
// Document (for OBJECT) or []any (for ARRAY), mirroring the reference
// BasicBSONCallback's behavior of building an ordinary in-memory tree.
type Builder struct {
	stack  []builderFrame
	result any
}

// NewBuilder returns a fresh Builder ready for one Decode call.
func NewBuilder() *Builder { return &Builder{} }

func (b *Builder) top() *builderFrame { return &b.stack[len(b.stack)-1] }

func (b *Builder) put(name string, v any) {
	if len(b.stack) == 0 {
		b.result = v
		return
	}
	f := b.top()
	if f.isArr {
		f.arr = append(f.arr, v)
	} else {
		f.obj[name] = v
	}
}

func (b *Builder) ObjectStart(name string) {
	b.stack = append(b.stack, builderFrame{name: name, obj: Document{}})
}

func (b *Builder) ObjectDone() {
	f := b.stack[len(b.stack)-1]
	b.stack = b.stack[:len(b.stack)-1]
	b.put(f.name, f.obj)
}

func (b *Builder) ArrayStart(name string) {
	b.stack = append(b.stack, builderFrame{name: name, isArr: true})
}

func (b *Builder) ArrayDone() {
	f := b.stack[len(b.stack)-1]
	b.stack = b.stack[:len(b.stack)-1]
	arr := f.arr
	if arr == nil {
		arr = []any{}
	}
	b.put(f.name, arr)
}

func (b *Builder) GotDouble(name string, v float64)            { b.put(name, v) }
func (b *Builder) GotString(name string, v string)              { b.put(name, v) }
func (b *Builder) GotBinary(name string, v Binary)               { b.put(name, v) }
func (b *Builder) GotUndefined(name string)                      { b.put(name, nil) }
func (b *Builder) GotObjectID(name string, v ObjectID)           { b.put(name, v) }
func (b *Builder) GotBoolean(name string, v bool)                { b.put(name, v) }
func (b *Builder) GotDate(name string, v int64)                  { b.put(name, v) }
func (b *Builder) GotNull(name string)                           { b.put(name, nil) }
func (b *Builder) GotRegex(name string, v Regex)                 { b.put(name, v) }
func (b *Builder) GotDBRef(name string, v DBRef)                 { b.put(name, v) }
func (b *Builder) GotCode(name string, v string)                 { b.put(name, v) }
func (b *Builder) GotSymbol(name string, v string)                { b.put(name, v) }
func (b *Builder) GotCodeWithScope(name string, v CodeWithScope) { b.put(name, v) }
func (b *Builder) GotInt32(name string, v int32)                 { b.put(name, v) }
func (b *Builder) GotTimestamp(name string, v Timestamp)         { b.put(name, v) }
func (b *Builder) GotInt64(name string, v int64)                 { b.put(name, v) }
func (b *Builder) GotMinKey(name string)                         { b.put(name, minKey{}) }
func (b *Builder) GotMaxKey(name string)                         { b.put(name, maxKey{}) }

func (b *Builder) MakeChild() Callback { return NewBuilder() }

func (b *Builder) Reset() {
	b.stack = nil
	b.result = nil
}

func (b *Builder) Get() any { return b.result }

// minKey and maxKey are distinguishable sentinel values for the BDOC
// MinKey/MaxKey types, which carry no payload.
type minKey struct{}
type maxKey struct{}
