package fit

import "fmt"

// Field numbers of the developer metadata messages (globals 206 and 207).
const (
	fieldDescDevIndex = 0
	fieldDescNumber   = 1
	fieldDescBaseType = 2
	fieldDescName     = 3
	fieldDescScale    = 6
	fieldDescOffset   = 7
	fieldDescUnits    = 8
	devDataIDDevIndex = 3
)

type devKey struct {
	devIndex uint8
	number   uint8
}

type devFieldSchema struct {
	Name     string
	BaseType BaseType
	Scale    float64
	Offset   float64
	Units    string
}

// devRegistry holds developer field schemas declared inline in the file being
// decoded. It lives for one decode session and is consulted before the
// profile registry.
type devRegistry struct {
	indexes map[uint8]bool
	fields  map[devKey]devFieldSchema
}

func newDevRegistry() *devRegistry {
	return &devRegistry{
		indexes: make(map[uint8]bool),
		fields:  make(map[devKey]devFieldSchema),
	}
}

func (r *devRegistry) lookup(devIndex, number uint8) (devFieldSchema, bool) {
	schema, ok := r.fields[devKey{devIndex: devIndex, number: number}]
	return schema, ok
}

// registerDataID records the developer data index declared by a
// developer_data_id message.
func (r *devRegistry) registerDataID(fields []RawField) {
	for _, f := range fields {
		if f.Number == devDataIDDevIndex && len(f.Data) == 1 {
			r.indexes[f.Data[0]] = true
			return
		}
	}
}

// registerDescription records one field_description message. Unusable
// descriptions are rejected with an error so the decoder can surface a
// warning and keep going.
func (r *devRegistry) registerDescription(fields []RawField) error {
	var (
		devIndex, number uint8
		haveIndex        bool
		haveNumber       bool
		schema           = devFieldSchema{BaseType: BaseByte, Scale: 1}
	)
	for _, f := range fields {
		switch f.Number {
		case fieldDescDevIndex:
			if len(f.Data) == 1 {
				devIndex = f.Data[0]
				haveIndex = true
			}
		case fieldDescNumber:
			if len(f.Data) == 1 {
				number = f.Data[0]
				haveNumber = true
			}
		case fieldDescBaseType:
			if len(f.Data) == 1 {
				bt, _, err := parseBaseTypeByte(f.Data[0])
				if err != nil || !bt.Known() {
					return fmt.Errorf("field description declares unusable base type 0x%02X", f.Data[0])
				}
				schema.BaseType = bt
			}
		case fieldDescName:
			schema.Name = cString(f.Data)
		case fieldDescScale:
			if len(f.Data) == 1 && f.Data[0] != 0 && uint64(f.Data[0]) != BaseUint8.Invalid() {
				schema.Scale = float64(f.Data[0])
			}
		case fieldDescOffset:
			if len(f.Data) == 1 && uint64(f.Data[0]) != BaseSint8.Invalid() {
				schema.Offset = float64(int8(f.Data[0]))
			}
		case fieldDescUnits:
			schema.Units = cString(f.Data)
		}
	}
	if !haveIndex || !haveNumber {
		return fmt.Errorf("field description missing developer data index or field number")
	}
	if !r.indexes[devIndex] {
		return fmt.Errorf("field description references undeclared developer data index %d", devIndex)
	}
	if schema.Name == "" {
		schema.Name = fmt.Sprintf("developer_field_%d_%d", devIndex, number)
	}
	r.fields[devKey{devIndex: devIndex, number: number}] = schema
	return nil
}

// cString interprets raw bytes as a NUL-terminated string.
func cString(data []byte) string {
	for i, b := range data {
		if b == 0 {
			return string(data[:i])
		}
	}
	return string(data)
}
