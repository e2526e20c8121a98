package fit

// FileHeader is the decoded 12 or 14 byte FIT file header.
type FileHeader struct {
	Size            uint8
	ProtocolVersion uint8
	ProfileVersion  uint16
	DataSize        uint32
	DataType        string
	CRC             uint16
}

// HasCRC reports whether the header carried its optional CRC field.
func (h FileHeader) HasCRC() bool {
	return h.Size == headerSizeWithCRC
}

// FieldDef is a single field entry of a definition record, in wire order.
type FieldDef struct {
	Number   uint8
	Size     uint8
	BaseType BaseType
}

// DevFieldDef is a developer field entry of a definition record. The field is
// resolved against the field_description message with the matching developer
// data index, not against the profile.
type DevFieldDef struct {
	Number   uint8
	Size     uint8
	DevIndex uint8
}

// Definition describes the layout of data records for one local message type.
// A later definition record for the same local type replaces it.
type Definition struct {
	LocalType    uint8
	GlobalNumber uint16
	BigEndian    bool
	Fields       []FieldDef
	DevFields    []DevFieldDef
}

// DataSize returns the total payload length of one data record laid out per
// this definition.
func (d *Definition) DataSize() int {
	n := 0
	for _, f := range d.Fields {
		n += int(f.Size)
	}
	for _, f := range d.DevFields {
		n += int(f.Size)
	}
	return n
}

// RawField is one field's undecoded bytes as read from a data record.
type RawField struct {
	Number   uint8
	BaseType BaseType
	Data     []byte
}

// FieldValue is one resolved field of a Message. Value is one of int64,
// uint64, float64, string, []byte, or a slice of one of the numeric kinds.
// When Missing is true the raw bytes matched the base type's invalid sentinel
// and Value is nil.
type FieldValue struct {
	Name      string `json:"name"`
	Number    uint8  `json:"number"`
	Units     string `json:"units,omitempty"`
	Value     any    `json:"value"`
	Missing   bool   `json:"missing,omitempty"`
	Developer bool   `json:"developer,omitempty"`
}

// Message is one fully resolved data record. Fields preserve wire order;
// component sub-fields appear in place of their parent when the parent
// decomposes completely.
type Message struct {
	Name         string       `json:"name"`
	GlobalNumber uint16       `json:"globalNumber"`
	LocalType    uint8        `json:"localType"`
	Fields       []FieldValue `json:"fields"`
}

// Field returns the first field with the given semantic name.
func (m *Message) Field(name string) (FieldValue, bool) {
	if m == nil {
		return FieldValue{}, false
	}
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldValue{}, false
}

// WarningCode classifies non-fatal decode conditions.
type WarningCode string

const (
	WarnChecksumMismatch   WarningCode = "checksum-mismatch"
	WarnUnresolvedMessage  WarningCode = "unresolved-message"
	WarnUnresolvedField    WarningCode = "unresolved-field"
	WarnUnknownBaseType    WarningCode = "unknown-base-type"
	WarnDeveloperField     WarningCode = "developer-field-declared"
	WarnUndeclaredDevField WarningCode = "undeclared-developer-field"
	WarnAccumulatorReset   WarningCode = "accumulator-reset"
)

// Warning records one non-fatal condition observed while decoding. Record is
// the zero-based record index the condition was observed at, or -1 when it
// applies to the file as a whole.
type Warning struct {
	Code    WarningCode `json:"code"`
	Message string      `json:"message"`
	Record  int         `json:"record"`
}

// Summary is the terminal decode report returned alongside the message
// sequence.
type Summary struct {
	Header        FileHeader     `json:"header"`
	Records       int            `json:"records"`
	Definitions   int            `json:"definitions"`
	Messages      int            `json:"messages"`
	BytesConsumed int64          `json:"bytesConsumed"`
	CRCComputed   uint16         `json:"crcComputed"`
	CRCStored     uint16         `json:"crcStored"`
	CRCValid      bool           `json:"crcValid"`
	MessageCounts map[string]int `json:"messageCounts,omitempty"`
	Warnings      []Warning      `json:"warnings,omitempty"`
}
