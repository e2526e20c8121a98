package fit

import (
	"fmt"
	"math"

	"example.com/fitdec/internal/profile"
)

type fieldSchema struct {
	name        string
	units       string
	scale       float64
	offset      float64
	accumulated bool
	components  []profile.Component
}

func syntheticField(number uint8) fieldSchema {
	return fieldSchema{name: fmt.Sprintf("field_%d", number), scale: 1}
}

func fromProfile(s profile.FieldSchema) fieldSchema {
	scale := s.Scale
	if scale == 0 {
		scale = 1
	}
	return fieldSchema{
		name:        s.Name,
		units:       s.Units,
		scale:       scale,
		offset:      s.Offset,
		accumulated: s.Accumulated,
		components:  s.Components,
	}
}

// buildMessage resolves one data record into a Message. Fields resolve
// through the developer registry first, then the profile registry, then a
// synthetic fallback; decoding never fails on an unrecognized number.
func (d *Decoder) buildMessage(def *Definition, fields, devFields []RawField, recordIdx int) *Message {
	name, ok := d.registry.MessageName(def.GlobalNumber)
	if !ok {
		name = fmt.Sprintf("unknown_%d", def.GlobalNumber)
		if !d.warnedMessages[def.GlobalNumber] {
			d.warnedMessages[def.GlobalNumber] = true
			d.warn(WarnUnresolvedMessage, recordIdx, "no profile entry for message %d", def.GlobalNumber)
		}
	}
	msg := &Message{
		Name:         name,
		GlobalNumber: def.GlobalNumber,
		LocalType:    def.LocalType,
		Fields:       make([]FieldValue, 0, len(fields)+len(devFields)),
	}
	for _, rf := range fields {
		msg.Fields = append(msg.Fields, d.buildField(def, rf, recordIdx)...)
	}
	for i, rf := range devFields {
		msg.Fields = append(msg.Fields, d.buildDevField(def, def.DevFields[i], rf, recordIdx))
	}
	return msg
}

func (d *Decoder) buildField(def *Definition, rf RawField, recordIdx int) []FieldValue {
	schema, found := d.resolveSchema(def.GlobalNumber, rf.Number)
	if !found {
		key := fieldKey{global: def.GlobalNumber, field: rf.Number}
		if !d.warnedFields[key] {
			d.warnedFields[key] = true
			d.warn(WarnUnresolvedField, recordIdx, "no profile entry for message %d field %d", def.GlobalNumber, rf.Number)
		}
	}
	out := FieldValue{Name: schema.name, Number: rf.Number, Units: schema.units}

	switch rf.BaseType.Kind() {
	case KindString:
		s := cString(rf.Data)
		if s == "" {
			out.Missing = true
		} else {
			out.Value = s
		}
		return []FieldValue{out}

	case KindBytes:
		if len(schema.components) > 0 && len(rf.Data) > 0 && len(rf.Data) <= 8 {
			if allBytes(rf.Data, 0xFF) {
				out.Missing = true
				return []FieldValue{out}
			}
			full := littleEndianUint(rf.Data)
			return d.buildComponents(def, schema, out, full, uint(len(rf.Data))*8, recordIdx)
		}
		if len(rf.Data) == 0 || allBytes(rf.Data, 0xFF) {
			out.Missing = true
		} else {
			out.Value = append([]byte(nil), rf.Data...)
		}
		return []FieldValue{out}
	}

	width := rf.BaseType.Size()
	if len(rf.Data) == 0 || len(rf.Data) < width || len(rf.Data)%width != 0 {
		out.Missing = true
		return []FieldValue{out}
	}

	if len(rf.Data) == width {
		bits, missing := d.readScalar(rf.BaseType, rf.Data, def.BigEndian)
		if missing {
			out.Missing = true
			return []FieldValue{out}
		}
		if rf.Number == timestampFieldNumber && rf.BaseType == BaseUint32 {
			d.lastTimestamp = uint32(bits)
			d.hasTimestamp = true
		}
		if len(schema.components) > 0 && rf.BaseType.Kind() != KindFloat {
			return d.buildComponents(def, schema, out, bits, uint(width)*8, recordIdx)
		}
		if schema.accumulated && rf.BaseType.Kind() != KindFloat {
			bits = d.accumulate(def.LocalType, rf.Number, bits, uint(width)*8, recordIdx)
		}
		out.Value = scaledValue(rf.BaseType, bits, uint(width), schema.scale, schema.offset)
		return []FieldValue{out}
	}

	// Array field: declared size is a multiple of the natural width.
	count := len(rf.Data) / width
	values := make([]any, count)
	missingAll := true
	for i := 0; i < count; i++ {
		elem := rf.Data[i*width : (i+1)*width]
		bits, missing := d.readScalar(rf.BaseType, elem, def.BigEndian)
		if missing {
			continue
		}
		missingAll = false
		values[i] = scaledValue(rf.BaseType, bits, uint(width), schema.scale, schema.offset)
	}
	if missingAll {
		out.Missing = true
	} else {
		out.Value = values
	}
	return []FieldValue{out}
}

// buildComponents extracts the bit-packed sub-fields of parent, each with its
// own scale, offset and invalid check. The parent survives only when the
// components do not cover its full bit width.
func (d *Decoder) buildComponents(def *Definition, schema fieldSchema, parent FieldValue, full uint64, totalBits uint, recordIdx int) []FieldValue {
	out := make([]FieldValue, 0, len(schema.components)+1)
	var used uint
	for _, c := range schema.components {
		bits := uint(c.Bits)
		mask := uint64(1)<<bits - 1
		raw := (full >> used) & mask
		used += bits

		target, ok := d.registry.Field(def.GlobalNumber, c.FieldNumber)
		fv := FieldValue{Number: c.FieldNumber}
		if ok {
			fv.Name = target.Name
			fv.Units = target.Units
		} else {
			fv.Name = fmt.Sprintf("field_%d", c.FieldNumber)
		}
		if raw == mask {
			fv.Missing = true
			out = append(out, fv)
			continue
		}
		if ok && target.Accumulated {
			raw = d.accumulate(def.LocalType, c.FieldNumber, raw, bits, recordIdx)
		}
		scale := c.Scale
		if scale == 0 {
			scale = 1
		}
		if scale != 1 || c.Offset != 0 {
			fv.Value = float64(raw)/scale - c.Offset
		} else {
			fv.Value = raw
		}
		out = append(out, fv)
	}
	if used < totalBits {
		// Partial decomposition keeps the composite value too.
		parent.Value = scaledUnsigned(full, schema.scale, schema.offset)
		out = append(out, parent)
	}
	return out
}

func (d *Decoder) buildDevField(def *Definition, fd DevFieldDef, rf RawField, recordIdx int) FieldValue {
	schema, ok := d.dev.lookup(fd.DevIndex, fd.Number)
	if !ok {
		d.warn(WarnUndeclaredDevField, recordIdx,
			"developer field %d of data index %d used before declaration", fd.Number, fd.DevIndex)
		fv := FieldValue{
			Name:      fmt.Sprintf("developer_field_%d_%d", fd.DevIndex, fd.Number),
			Number:    fd.Number,
			Developer: true,
		}
		if len(rf.Data) == 0 || allBytes(rf.Data, 0xFF) {
			fv.Missing = true
		} else {
			fv.Value = append([]byte(nil), rf.Data...)
		}
		return fv
	}
	fv := FieldValue{Name: schema.Name, Number: fd.Number, Units: schema.Units, Developer: true}
	switch schema.BaseType.Kind() {
	case KindString:
		s := cString(rf.Data)
		if s == "" {
			fv.Missing = true
		} else {
			fv.Value = s
		}
	case KindBytes:
		if len(rf.Data) == 0 || allBytes(rf.Data, 0xFF) {
			fv.Missing = true
		} else {
			fv.Value = append([]byte(nil), rf.Data...)
		}
	default:
		width := schema.BaseType.Size()
		if len(rf.Data) != width {
			fv.Missing = true
			break
		}
		bits, missing := d.readScalar(schema.BaseType, rf.Data, def.BigEndian)
		if missing {
			fv.Missing = true
			break
		}
		fv.Value = scaledValue(schema.BaseType, bits, uint(width), schema.Scale, schema.Offset)
	}
	return fv
}

func (d *Decoder) resolveSchema(global uint16, field uint8) (fieldSchema, bool) {
	if s, ok := d.registry.Field(global, field); ok {
		return fromProfile(s), true
	}
	return syntheticField(field), false
}

// accumulate reconstructs the full value of a wrapping counter field from its
// truncated raw encoding. Arithmetic is unsigned modulo the raw bit width.
func (d *Decoder) accumulate(localType, field uint8, raw uint64, bits uint, recordIdx int) uint64 {
	key := accumKey{localType: localType, field: field}
	st, ok := d.accum[key]
	if !ok {
		d.accum[key] = accumState{last: raw, bits: bits}
		d.warn(WarnAccumulatorReset, recordIdx, "accumulator for local type %d field %d started at %d", localType, field, raw)
		return raw
	}
	// At the full 64-bit width the modulo is the native overflow, so the
	// reconstructed value is the raw value itself.
	full := raw
	if bits < 64 {
		mask := uint64(1)<<bits - 1
		delta := (raw - st.last) & mask
		full = st.last + delta
	}
	d.accum[key] = accumState{last: full, bits: bits}
	return full
}

// readScalar decodes one value's raw bit pattern, zero-extended, and reports
// whether it matches the type's invalid sentinel.
func (d *Decoder) readScalar(bt BaseType, data []byte, bigEndian bool) (uint64, bool) {
	var bits uint64
	if bt.EndianAble() && bigEndian {
		bits = bigEndianUint(data)
	} else {
		bits = littleEndianUint(data)
	}
	return bits, bits == bt.Invalid()
}

// scaledValue converts a raw bit pattern to a native value and applies the
// schema's scale and offset. Unscaled values keep their integer type.
func scaledValue(bt BaseType, bits uint64, width uint, scale, offset float64) any {
	switch bt.Kind() {
	case KindSigned:
		v := signExtend(bits, width*8)
		if scale != 1 || offset != 0 {
			return float64(v)/scale - offset
		}
		return v
	case KindFloat:
		var v float64
		if bt == BaseFloat32 {
			v = float64(math.Float32frombits(uint32(bits)))
		} else {
			v = math.Float64frombits(bits)
		}
		if scale != 1 || offset != 0 {
			return v/scale - offset
		}
		return v
	default:
		return scaledUnsigned(bits, scale, offset)
	}
}

func scaledUnsigned(bits uint64, scale, offset float64) any {
	if scale != 1 || offset != 0 {
		return float64(bits)/scale - offset
	}
	return bits
}

func signExtend(bits uint64, width uint) int64 {
	if width >= 64 {
		return int64(bits)
	}
	shift := 64 - width
	return int64(bits<<shift) >> shift
}

func littleEndianUint(data []byte) uint64 {
	var v uint64
	for i := len(data) - 1; i >= 0; i-- {
		v = v<<8 | uint64(data[i])
	}
	return v
}

func bigEndianUint(data []byte) uint64 {
	var v uint64
	for _, b := range data {
		v = v<<8 | uint64(b)
	}
	return v
}

func allBytes(data []byte, b byte) bool {
	for _, d := range data {
		if d != b {
			return false
		}
	}
	return len(data) > 0
}
