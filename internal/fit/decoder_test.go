package fit

import (
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"example.com/fitdec/internal/profile"
)

// fileBuilder assembles the record stream of a synthetic FIT file. The header
// and trailing CRC are added by build.
type fileBuilder struct {
	body []byte
}

func (b *fileBuilder) writeDefinition(local uint8, global uint16, fields []FieldDef, devFields []DevFieldDef) {
	hdr := byte(recordHeaderDefinition | local&recordHeaderLocalMask)
	if len(devFields) > 0 {
		hdr |= recordHeaderDeveloper
	}
	b.body = append(b.body, hdr, 0x00, archLittleEndian)
	b.body = append(b.body, byte(global), byte(global>>8))
	b.body = append(b.body, byte(len(fields)))
	for _, f := range fields {
		wire := byte(f.BaseType)
		if f.BaseType.EndianAble() {
			wire |= baseTypeEndianFlag
		}
		b.body = append(b.body, f.Number, f.Size, wire)
	}
	if len(devFields) > 0 {
		b.body = append(b.body, byte(len(devFields)))
		for _, f := range devFields {
			b.body = append(b.body, f.Number, f.Size, f.DevIndex)
		}
	}
}

func (b *fileBuilder) writeData(local uint8, payload ...byte) {
	b.body = append(b.body, local&recordHeaderLocalMask)
	b.body = append(b.body, payload...)
}

func (b *fileBuilder) writeCompressed(local, offset uint8, payload ...byte) {
	hdr := byte(recordHeaderCompressed | (local&compressedLocalMask)<<compressedLocalShift | offset&compressedOffsetMask)
	b.body = append(b.body, hdr)
	b.body = append(b.body, payload...)
}

func (b *fileBuilder) build(goodCRC bool) []byte {
	hdr := make([]byte, headerSizeWithCRC)
	hdr[0] = headerSizeWithCRC
	hdr[1] = 0x20
	binary.LittleEndian.PutUint16(hdr[2:4], 2180)
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(b.body)))
	copy(hdr[8:12], headerDataType)
	binary.LittleEndian.PutUint16(hdr[12:14], Checksum(hdr[:headerSizeMin]))
	out := append(hdr, b.body...)
	crc := Checksum(out)
	if !goodCRC {
		crc ^= 0xFFFF
	}
	return append(out, byte(crc), byte(crc>>8))
}

// buildLegacy frames the body with the 12-byte header form, which carries no
// header CRC.
func (b *fileBuilder) buildLegacy() []byte {
	hdr := make([]byte, headerSizeMin)
	hdr[0] = headerSizeMin
	hdr[1] = 0x20
	binary.LittleEndian.PutUint16(hdr[2:4], 2180)
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(b.body)))
	copy(hdr[8:12], headerDataType)
	out := append(hdr, b.body...)
	crc := Checksum(out)
	return append(out, byte(crc), byte(crc>>8))
}

func decodeAll(t *testing.T, data []byte, opts Options) ([]*Message, Summary) {
	t.Helper()
	msgs, sum, err := Decode(data, opts)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return msgs, sum
}

func hasWarning(sum Summary, code WarningCode) bool {
	for _, w := range sum.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

func countWarnings(sum Summary, code WarningCode) int {
	n := 0
	for _, w := range sum.Warnings {
		if w.Code == code {
			n++
		}
	}
	return n
}

func TestDecodeMinimalFile(t *testing.T) {
	var b fileBuilder
	b.writeDefinition(0, profile.MesgFileID, []FieldDef{
		{Number: 0, Size: 1, BaseType: BaseEnum},
		{Number: 1, Size: 2, BaseType: BaseUint16},
		{Number: 4, Size: 4, BaseType: BaseUint32},
	}, nil)
	b.writeData(0,
		4,                      // type
		0x01, 0x00,             // manufacturer
		0x00, 0xCA, 0x9A, 0x3B, // time_created = 1000000000
	)
	msgs, sum := decodeAll(t, b.build(true), Options{})

	if len(msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(msgs))
	}
	msg := msgs[0]
	if msg.Name != "file_id" || msg.GlobalNumber != profile.MesgFileID {
		t.Fatalf("message = %s (%d)", msg.Name, msg.GlobalNumber)
	}
	if fv, ok := msg.Field("type"); !ok || fv.Value != uint64(4) {
		t.Fatalf("type = %+v", fv)
	}
	if fv, ok := msg.Field("manufacturer"); !ok || fv.Value != uint64(1) {
		t.Fatalf("manufacturer = %+v", fv)
	}
	if fv, ok := msg.Field("time_created"); !ok || fv.Value != uint64(1000000000) || fv.Units != "s" {
		t.Fatalf("time_created = %+v", fv)
	}
	if sum.Records != 2 || sum.Definitions != 1 || sum.Messages != 1 {
		t.Fatalf("summary counts = %+v", sum)
	}
	if !sum.CRCValid {
		t.Fatalf("CRC should be valid: %+v", sum)
	}
	if sum.MessageCounts["file_id"] != 1 {
		t.Fatalf("message counts = %v", sum.MessageCounts)
	}
	if len(sum.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", sum.Warnings)
	}
}

func TestDecodeLegacyHeaderFile(t *testing.T) {
	var b fileBuilder
	b.writeDefinition(0, profile.MesgFileID, []FieldDef{
		{Number: 0, Size: 1, BaseType: BaseEnum},
		{Number: 1, Size: 2, BaseType: BaseUint16},
	}, nil)
	b.writeData(0,
		4,          // type
		0x01, 0x00, // manufacturer
	)
	msgs, sum := decodeAll(t, b.buildLegacy(), Options{})

	if sum.Header.Size != 12 {
		t.Fatalf("header size = %d, want 12", sum.Header.Size)
	}
	if len(msgs) != 1 || msgs[0].Name != "file_id" {
		t.Fatalf("messages = %+v", msgs)
	}
	if !sum.CRCValid {
		t.Fatalf("trailing CRC should validate: %+v", sum)
	}
	if len(sum.Warnings) != 0 {
		t.Fatalf("warnings = %+v", sum.Warnings)
	}
}

func TestBytesConsumedCoversWholeFile(t *testing.T) {
	var b fileBuilder
	b.writeDefinition(0, profile.MesgRecord, []FieldDef{{Number: 3, Size: 1, BaseType: BaseUint8}}, nil)
	b.writeData(0, 120)
	b.writeData(0, 121)
	data := b.build(true)
	_, sum := decodeAll(t, data, Options{})
	if sum.BytesConsumed != int64(len(data)) {
		t.Fatalf("BytesConsumed = %d, file is %d bytes", sum.BytesConsumed, len(data))
	}
}

func TestInvalidSentinelBecomesMissing(t *testing.T) {
	var b fileBuilder
	b.writeDefinition(0, profile.MesgRecord, []FieldDef{
		{Number: 3, Size: 1, BaseType: BaseUint8},  // heart_rate
		{Number: 2, Size: 2, BaseType: BaseUint16}, // altitude
	}, nil)
	b.writeData(0, 0xFF, 0xFF, 0xFF)
	msgs, _ := decodeAll(t, b.build(true), Options{})

	hr, ok := msgs[0].Field("heart_rate")
	if !ok || !hr.Missing || hr.Value != nil {
		t.Fatalf("heart_rate = %+v", hr)
	}
	alt, ok := msgs[0].Field("altitude")
	if !ok || !alt.Missing {
		t.Fatalf("altitude = %+v", alt)
	}
}

func TestScaleAndOffsetApplied(t *testing.T) {
	var b fileBuilder
	b.writeDefinition(0, profile.MesgRecord, []FieldDef{
		{Number: 2, Size: 2, BaseType: BaseUint16}, // altitude, scale 5 offset 500
		{Number: 6, Size: 2, BaseType: BaseUint16}, // speed, scale 1000
	}, nil)
	b.writeData(0, 0x88, 0x13, 0xD2, 0x04) // 5000, 1234
	msgs, _ := decodeAll(t, b.build(true), Options{})

	alt, _ := msgs[0].Field("altitude")
	if alt.Value != float64(500) || alt.Units != "m" {
		t.Fatalf("altitude = %+v", alt)
	}
	speed, _ := msgs[0].Field("speed")
	if speed.Value != float64(1234)/1000 || speed.Units != "m/s" {
		t.Fatalf("speed = %+v", speed)
	}
}

func TestSignedFieldDecodes(t *testing.T) {
	var b fileBuilder
	b.writeDefinition(0, profile.MesgRecord, []FieldDef{
		{Number: 0, Size: 4, BaseType: BaseSint32}, // position_lat
	}, nil)
	b.writeData(0, 0xFB, 0xFF, 0xFF, 0xFF) // -5
	msgs, _ := decodeAll(t, b.build(true), Options{})

	lat, _ := msgs[0].Field("position_lat")
	if lat.Value != int64(-5) {
		t.Fatalf("position_lat = %+v", lat)
	}
}

func TestBigEndianDefinition(t *testing.T) {
	var b fileBuilder
	b.body = append(b.body,
		0x40,             // definition, local 0
		0x00,             // reserved
		archBigEndian,    // architecture
		0x00, 0x14,       // global 20, big-endian
		0x01,             // one field
		0x02, 0x02, 0x84, // altitude, uint16
	)
	b.writeData(0, 0x13, 0x88) // 5000 big-endian
	msgs, _ := decodeAll(t, b.build(true), Options{})

	alt, _ := msgs[0].Field("altitude")
	if alt.Value != float64(500) {
		t.Fatalf("altitude = %+v", alt)
	}
}

func TestAccumulatedField(t *testing.T) {
	var b fileBuilder
	b.writeDefinition(0, profile.MesgRecord, []FieldDef{
		{Number: 18, Size: 1, BaseType: BaseUint8}, // cycles, accumulated
	}, nil)
	for _, v := range []byte{250, 10, 20} {
		b.writeData(0, v)
	}
	msgs, sum := decodeAll(t, b.build(true), Options{})

	want := []uint64{250, 266, 276}
	if len(msgs) != len(want) {
		t.Fatalf("messages = %d", len(msgs))
	}
	for i, w := range want {
		fv, _ := msgs[i].Field("cycles")
		if fv.Value != w {
			t.Errorf("message %d: cycles = %v, want %d", i, fv.Value, w)
		}
	}
	if countWarnings(sum, WarnAccumulatorReset) != 1 {
		t.Fatalf("accumulator warnings = %v", sum.Warnings)
	}
}

func TestAccumulateFullWidth(t *testing.T) {
	// A 64-bit counter wraps only with the native overflow, so every value
	// reconstructs to the raw value itself.
	d := &Decoder{accum: make(map[accumKey]accumState)}
	if got := d.accumulate(0, 5, 10, 64, 0); got != 10 {
		t.Fatalf("first value = %d, want 10", got)
	}
	if got := d.accumulate(0, 5, 3, 64, 1); got != 3 {
		t.Fatalf("second value = %d, want 3", got)
	}
	if got := d.accumulate(0, 5, ^uint64(0), 64, 2); got != ^uint64(0) {
		t.Fatalf("third value = %d, want max", got)
	}
}

func TestComponentsDecomposeParent(t *testing.T) {
	var b fileBuilder
	b.writeDefinition(0, profile.MesgRecord, []FieldDef{
		{Number: 8, Size: 3, BaseType: BaseByte}, // compressed_speed_distance
	}, nil)
	// speed raw 1234 in bits 0-11, distance raw 100 in bits 12-23
	b.writeData(0, 0xD2, 0x44, 0x06)
	msgs, _ := decodeAll(t, b.build(true), Options{})

	if _, ok := msgs[0].Field("compressed_speed_distance"); ok {
		t.Fatalf("fully decomposed parent should be dropped: %+v", msgs[0].Fields)
	}
	speed, ok := msgs[0].Field("speed")
	if !ok || speed.Value != float64(1234)/100 || speed.Units != "m/s" {
		t.Fatalf("speed component = %+v", speed)
	}
	dist, ok := msgs[0].Field("distance")
	if !ok || dist.Value != float64(100)/16 || dist.Units != "m" {
		t.Fatalf("distance component = %+v", dist)
	}
}

func TestComponentInvalidAllOnes(t *testing.T) {
	var b fileBuilder
	b.writeDefinition(0, profile.MesgRecord, []FieldDef{
		{Number: 8, Size: 3, BaseType: BaseByte},
	}, nil)
	// speed bits all ones, distance raw 32
	b.writeData(0, 0xFF, 0x0F, 0x02)
	msgs, _ := decodeAll(t, b.build(true), Options{})

	speed, ok := msgs[0].Field("speed")
	if !ok || !speed.Missing {
		t.Fatalf("speed component = %+v", speed)
	}
	dist, _ := msgs[0].Field("distance")
	if dist.Missing || dist.Value != float64(32)/16 {
		t.Fatalf("distance component = %+v", dist)
	}
}

func TestCompressedTimestampCarry(t *testing.T) {
	var b fileBuilder
	b.writeDefinition(0, profile.MesgRecord, []FieldDef{
		{Number: 253, Size: 4, BaseType: BaseUint32},
		{Number: 3, Size: 1, BaseType: BaseUint8},
	}, nil)
	b.writeDefinition(1, profile.MesgRecord, []FieldDef{
		{Number: 3, Size: 1, BaseType: BaseUint8},
	}, nil)
	b.writeData(0, 0xE8, 0x03, 0x00, 0x00, 100) // timestamp 1000
	b.writeCompressed(1, 10, 101)               // 10 > 1000%32, no carry
	b.writeCompressed(1, 5, 102)                // 5 < 10, carry into next window
	msgs, _ := decodeAll(t, b.build(true), Options{})

	if len(msgs) != 3 {
		t.Fatalf("messages = %d", len(msgs))
	}
	ts1, ok := msgs[1].Field("timestamp")
	if !ok || ts1.Value != uint64(1002) {
		t.Fatalf("first compressed timestamp = %+v", ts1)
	}
	ts2, ok := msgs[2].Field("timestamp")
	if !ok || ts2.Value != uint64(1029) {
		t.Fatalf("second compressed timestamp = %+v", ts2)
	}
}

func TestCorruptCRCWarnsByDefault(t *testing.T) {
	var b fileBuilder
	b.writeDefinition(0, profile.MesgFileID, []FieldDef{{Number: 0, Size: 1, BaseType: BaseEnum}}, nil)
	b.writeData(0, 4)
	msgs, sum, err := Decode(b.build(false), Options{})
	if err != nil {
		t.Fatalf("corrupt CRC must not fail a lenient decode: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("messages = %d", len(msgs))
	}
	if sum.CRCValid {
		t.Fatal("CRCValid = true for corrupt trailer")
	}
	if !hasWarning(sum, WarnChecksumMismatch) {
		t.Fatalf("warnings = %v", sum.Warnings)
	}
}

func TestCorruptCRCStrict(t *testing.T) {
	var b fileBuilder
	b.writeDefinition(0, profile.MesgFileID, []FieldDef{{Number: 0, Size: 1, BaseType: BaseEnum}}, nil)
	b.writeData(0, 4)
	_, _, err := Decode(b.build(false), Options{StrictCRC: true})
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("error = %v, want ErrChecksumMismatch", err)
	}
}

func TestUndefinedLocalMessage(t *testing.T) {
	var b fileBuilder
	b.writeData(3, 0x00)
	_, _, err := Decode(b.build(true), Options{})
	if !errors.Is(err, ErrUndefinedLocalMessage) {
		t.Fatalf("error = %v, want ErrUndefinedLocalMessage", err)
	}
}

func TestTruncatedRecord(t *testing.T) {
	var b fileBuilder
	b.writeDefinition(0, profile.MesgFileID, []FieldDef{{Number: 4, Size: 4, BaseType: BaseUint32}}, nil)
	b.writeData(0, 0x01, 0x02) // two of four declared bytes
	_, _, err := Decode(b.build(true), Options{})
	if !errors.Is(err, ErrTruncatedRecord) {
		t.Fatalf("error = %v, want ErrTruncatedRecord", err)
	}
}

func TestReservedHeaderBitRejected(t *testing.T) {
	var b fileBuilder
	b.body = append(b.body, 0x10)
	_, _, err := Decode(b.build(true), Options{})
	if err == nil {
		t.Fatal("reserved header bit must be rejected")
	}
}

func TestRedefinedLocalType(t *testing.T) {
	var b fileBuilder
	b.writeDefinition(0, profile.MesgFileID, []FieldDef{{Number: 0, Size: 1, BaseType: BaseEnum}}, nil)
	b.writeData(0, 4)
	b.writeDefinition(0, profile.MesgRecord, []FieldDef{{Number: 3, Size: 1, BaseType: BaseUint8}}, nil)
	b.writeData(0, 90)
	msgs, sum := decodeAll(t, b.build(true), Options{})

	if msgs[0].Name != "file_id" || msgs[1].Name != "record" {
		t.Fatalf("messages = %s, %s", msgs[0].Name, msgs[1].Name)
	}
	if sum.Definitions != 2 {
		t.Fatalf("definitions = %d", sum.Definitions)
	}
}

func TestUnresolvedMessageAndField(t *testing.T) {
	var b fileBuilder
	b.writeDefinition(0, 999, []FieldDef{{Number: 0, Size: 1, BaseType: BaseUint8}}, nil)
	b.writeData(0, 1)
	b.writeData(0, 2)
	msgs, sum := decodeAll(t, b.build(true), Options{})

	if msgs[0].Name != "unknown_999" {
		t.Fatalf("name = %s", msgs[0].Name)
	}
	fv, ok := msgs[0].Field("field_0")
	if !ok || fv.Value != uint64(1) {
		t.Fatalf("field_0 = %+v", fv)
	}
	if countWarnings(sum, WarnUnresolvedMessage) != 1 {
		t.Fatalf("unresolved message warnings = %v", sum.Warnings)
	}
	if countWarnings(sum, WarnUnresolvedField) != 1 {
		t.Fatalf("unresolved field warnings = %v", sum.Warnings)
	}
}

func TestUnknownBaseTypeDecodesAsBytes(t *testing.T) {
	var b fileBuilder
	b.writeDefinition(0, 999, []FieldDef{{Number: 0, Size: 2, BaseType: BaseType(0x1F)}}, nil)
	b.writeData(0, 0x01, 0x02)
	msgs, sum := decodeAll(t, b.build(true), Options{})

	fv, _ := msgs[0].Field("field_0")
	got, ok := fv.Value.([]byte)
	if !ok || len(got) != 2 || got[0] != 0x01 || got[1] != 0x02 {
		t.Fatalf("value = %+v", fv)
	}
	if !hasWarning(sum, WarnUnknownBaseType) {
		t.Fatalf("warnings = %v", sum.Warnings)
	}
}

func TestStringField(t *testing.T) {
	var b fileBuilder
	b.writeDefinition(0, 999, []FieldDef{{Number: 1, Size: 8, BaseType: BaseString}}, nil)
	b.writeData(0, 'a', 'b', 'c', 0, 0, 0, 0, 0)
	b.writeData(0, 0, 0, 0, 0, 0, 0, 0, 0)
	msgs, _ := decodeAll(t, b.build(true), Options{})

	fv, _ := msgs[0].Field("field_1")
	if fv.Value != "abc" {
		t.Fatalf("value = %+v", fv)
	}
	empty, _ := msgs[1].Field("field_1")
	if !empty.Missing {
		t.Fatalf("empty string should be missing: %+v", empty)
	}
}

func TestArrayField(t *testing.T) {
	var b fileBuilder
	b.writeDefinition(0, 999, []FieldDef{{Number: 2, Size: 4, BaseType: BaseUint16}}, nil)
	b.writeData(0, 0xE8, 0x03, 0xFF, 0xFF) // 1000, invalid
	msgs, _ := decodeAll(t, b.build(true), Options{})

	fv, _ := msgs[0].Field("field_2")
	arr, ok := fv.Value.([]any)
	if !ok || len(arr) != 2 {
		t.Fatalf("value = %+v", fv)
	}
	if arr[0] != uint64(1000) || arr[1] != nil {
		t.Fatalf("array = %v", arr)
	}
}

func TestNextAfterEOF(t *testing.T) {
	var b fileBuilder
	b.writeDefinition(0, profile.MesgFileID, []FieldDef{{Number: 0, Size: 1, BaseType: BaseEnum}}, nil)
	b.writeData(0, 4)
	dec, err := NewDecoder(b.build(true), Options{})
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	if _, err := dec.Next(); err != nil {
		t.Fatalf("first Next: %v", err)
	}
	if _, err := dec.Next(); err != io.EOF {
		t.Fatalf("second Next: %v", err)
	}
	if _, err := dec.Next(); err != io.EOF {
		t.Fatalf("Next after EOF: %v", err)
	}
}
