package fit

import "fmt"

// BaseType is the low five bits of the wire base-type byte. The high bit of
// the wire byte marks the type as endian-aware and is validated against this
// table when a definition record is decoded.
type BaseType uint8

const (
	BaseEnum    BaseType = 0x00
	BaseSint8   BaseType = 0x01
	BaseUint8   BaseType = 0x02
	BaseSint16  BaseType = 0x03
	BaseUint16  BaseType = 0x04
	BaseSint32  BaseType = 0x05
	BaseUint32  BaseType = 0x06
	BaseString  BaseType = 0x07
	BaseFloat32 BaseType = 0x08
	BaseFloat64 BaseType = 0x09
	BaseUint8z  BaseType = 0x0A
	BaseUint16z BaseType = 0x0B
	BaseUint32z BaseType = 0x0C
	BaseByte    BaseType = 0x0D
	BaseSint64  BaseType = 0x0E
	BaseUint64  BaseType = 0x0F
	BaseUint64z BaseType = 0x10
)

const (
	baseTypeEndianFlag = 0x80
	baseTypeNumberMask = 0x1F
	baseTypeReserved   = 0x60
)

// TypeKind partitions base types by how their raw bytes become a native value.
type TypeKind uint8

const (
	KindUnsigned TypeKind = iota
	KindSigned
	KindFloat
	KindString
	KindBytes
)

type typeInfo struct {
	name       string
	size       int
	endianable bool
	kind       TypeKind
	invalid    uint64
}

// The invalid sentinels follow the FIT convention: all-ones for unsigned
// types, maximum positive value for signed types, an all-ones bit pattern for
// floats, and zero for the "z" variants and strings.
var baseTypes = [...]typeInfo{
	BaseEnum:    {"enum", 1, false, KindUnsigned, 0xFF},
	BaseSint8:   {"sint8", 1, false, KindSigned, 0x7F},
	BaseUint8:   {"uint8", 1, false, KindUnsigned, 0xFF},
	BaseSint16:  {"sint16", 2, true, KindSigned, 0x7FFF},
	BaseUint16:  {"uint16", 2, true, KindUnsigned, 0xFFFF},
	BaseSint32:  {"sint32", 4, true, KindSigned, 0x7FFFFFFF},
	BaseUint32:  {"uint32", 4, true, KindUnsigned, 0xFFFFFFFF},
	BaseString:  {"string", 1, false, KindString, 0x00},
	BaseFloat32: {"float32", 4, true, KindFloat, 0xFFFFFFFF},
	BaseFloat64: {"float64", 8, true, KindFloat, 0xFFFFFFFFFFFFFFFF},
	BaseUint8z:  {"uint8z", 1, false, KindUnsigned, 0x00},
	BaseUint16z: {"uint16z", 2, true, KindUnsigned, 0x0000},
	BaseUint32z: {"uint32z", 4, true, KindUnsigned, 0x00000000},
	BaseByte:    {"byte", 1, false, KindBytes, 0xFF},
	BaseSint64:  {"sint64", 8, true, KindSigned, 0x7FFFFFFFFFFFFFFF},
	BaseUint64:  {"uint64", 8, true, KindUnsigned, 0xFFFFFFFFFFFFFFFF},
	BaseUint64z: {"uint64z", 8, true, KindUnsigned, 0x0000000000000000},
}

// Known reports whether the base type number is in the table.
func (t BaseType) Known() bool {
	return int(t) < len(baseTypes)
}

// Name returns the profile name of the base type.
func (t BaseType) Name() string {
	if !t.Known() {
		return fmt.Sprintf("unknown_0x%02X", uint8(t))
	}
	return baseTypes[t].name
}

// Size returns the natural byte width of one value of this type.
func (t BaseType) Size() int {
	if !t.Known() {
		return 1
	}
	return baseTypes[t].size
}

// EndianAble reports whether multi-byte values of this type follow the
// definition record's architecture byte.
func (t BaseType) EndianAble() bool {
	return t.Known() && baseTypes[t].endianable
}

// Kind returns the decode category of the type.
func (t BaseType) Kind() TypeKind {
	if !t.Known() {
		return KindBytes
	}
	return baseTypes[t].kind
}

// Invalid returns the raw bit pattern that marks a value of this type as
// missing.
func (t BaseType) Invalid() uint64 {
	if !t.Known() {
		return 0xFF
	}
	return baseTypes[t].invalid
}

// BaseTypeByName resolves a profile base-type name back to its wire number.
func BaseTypeByName(name string) (BaseType, bool) {
	for i := range baseTypes {
		if baseTypes[i].name == name {
			return BaseType(i), true
		}
	}
	return 0, false
}

// parseBaseTypeByte splits a definition record's base-type byte into its
// number and endian flag. The reserved bits must be zero.
func parseBaseTypeByte(b uint8) (BaseType, bool, error) {
	if b&baseTypeReserved != 0 {
		return 0, false, fmt.Errorf("base type byte 0x%02X has reserved bits set", b)
	}
	t := BaseType(b & baseTypeNumberMask)
	endian := b&baseTypeEndianFlag != 0
	if t.Known() && endian != t.EndianAble() {
		return 0, false, fmt.Errorf("base type %s endian flag mismatch in byte 0x%02X", t.Name(), b)
	}
	return t, endian, nil
}
