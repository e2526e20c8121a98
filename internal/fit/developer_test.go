package fit

import (
	"testing"

	"example.com/fitdec/internal/profile"
)

func padString(s string, size int) []byte {
	out := make([]byte, size)
	copy(out, s)
	return out
}

func writeDeveloperPreamble(b *fileBuilder, devIndex, fieldNum uint8, name, units string) {
	b.writeDefinition(0, profile.MesgDeveloperDataID, []FieldDef{
		{Number: 3, Size: 1, BaseType: BaseUint8}, // developer_data_index
	}, nil)
	b.writeData(0, devIndex)

	b.writeDefinition(1, profile.MesgFieldDescription, []FieldDef{
		{Number: 0, Size: 1, BaseType: BaseUint8},   // developer_data_index
		{Number: 1, Size: 1, BaseType: BaseUint8},   // field_definition_number
		{Number: 2, Size: 1, BaseType: BaseUint8},   // fit_base_type_id
		{Number: 3, Size: 16, BaseType: BaseString}, // field_name
		{Number: 8, Size: 8, BaseType: BaseString},  // units
	}, nil)
	payload := []byte{devIndex, fieldNum, byte(BaseUint8)}
	payload = append(payload, padString(name, 16)...)
	payload = append(payload, padString(units, 8)...)
	b.writeData(1, payload...)
}

func TestDeveloperFieldResolvesDeclaredName(t *testing.T) {
	var b fileBuilder
	writeDeveloperPreamble(&b, 0, 0, "heart_rate_dev", "bpm")
	b.writeDefinition(2, profile.MesgRecord, []FieldDef{
		{Number: 3, Size: 1, BaseType: BaseUint8},
	}, []DevFieldDef{
		{Number: 0, Size: 1, DevIndex: 0},
	})
	b.writeData(2, 90, 95)
	msgs, sum := decodeAll(t, b.build(true), Options{})

	if len(msgs) != 3 {
		t.Fatalf("messages = %d", len(msgs))
	}
	record := msgs[2]
	if record.Name != "record" {
		t.Fatalf("message = %s", record.Name)
	}
	native, _ := record.Field("heart_rate")
	if native.Value != uint64(90) {
		t.Fatalf("heart_rate = %+v", native)
	}
	dev, ok := record.Field("heart_rate_dev")
	if !ok {
		t.Fatalf("developer field not resolved: %+v", record.Fields)
	}
	if !dev.Developer || dev.Value != uint64(95) || dev.Units != "bpm" {
		t.Fatalf("developer field = %+v", dev)
	}
	if countWarnings(sum, WarnDeveloperField) != 2 {
		t.Fatalf("developer warnings = %v", sum.Warnings)
	}
}

func TestDeveloperFieldDefaultName(t *testing.T) {
	var b fileBuilder
	writeDeveloperPreamble(&b, 0, 5, "", "")
	b.writeDefinition(2, profile.MesgRecord, []FieldDef{
		{Number: 3, Size: 1, BaseType: BaseUint8},
	}, []DevFieldDef{
		{Number: 5, Size: 1, DevIndex: 0},
	})
	b.writeData(2, 90, 42)
	msgs, _ := decodeAll(t, b.build(true), Options{})

	dev, ok := msgs[2].Field("developer_field_0_5")
	if !ok || dev.Value != uint64(42) {
		t.Fatalf("developer field = %+v", dev)
	}
}

func TestUndeclaredDeveloperFieldWarns(t *testing.T) {
	var b fileBuilder
	b.writeDefinition(0, profile.MesgRecord, []FieldDef{
		{Number: 3, Size: 1, BaseType: BaseUint8},
	}, []DevFieldDef{
		{Number: 5, Size: 1, DevIndex: 0},
	})
	b.writeData(0, 90, 7)
	msgs, sum := decodeAll(t, b.build(true), Options{})

	dev, ok := msgs[0].Field("developer_field_0_5")
	if !ok || !dev.Developer {
		t.Fatalf("fields = %+v", msgs[0].Fields)
	}
	raw, isBytes := dev.Value.([]byte)
	if !isBytes || len(raw) != 1 || raw[0] != 7 {
		t.Fatalf("undeclared developer value = %+v", dev)
	}
	if !hasWarning(sum, WarnUndeclaredDevField) {
		t.Fatalf("warnings = %v", sum.Warnings)
	}
}

func TestFieldDescriptionWithoutDataIDRejected(t *testing.T) {
	var b fileBuilder
	// Skip the developer_data_id message entirely.
	b.writeDefinition(1, profile.MesgFieldDescription, []FieldDef{
		{Number: 0, Size: 1, BaseType: BaseUint8},
		{Number: 1, Size: 1, BaseType: BaseUint8},
		{Number: 2, Size: 1, BaseType: BaseUint8},
	}, nil)
	b.writeData(1, 0, 0, byte(BaseUint8))
	_, sum := decodeAll(t, b.build(true), Options{})

	if !hasWarning(sum, WarnUndeclaredDevField) {
		t.Fatalf("warnings = %v", sum.Warnings)
	}
}

func TestDevRegistryScaleOffset(t *testing.T) {
	reg := newDevRegistry()
	reg.registerDataID([]RawField{{Number: 3, Data: []byte{1}}})
	err := reg.registerDescription([]RawField{
		{Number: fieldDescDevIndex, Data: []byte{1}},
		{Number: fieldDescNumber, Data: []byte{2}},
		{Number: fieldDescBaseType, Data: []byte{byte(BaseUint16) | baseTypeEndianFlag}},
		{Number: fieldDescName, Data: padString("power_dev", 12)},
		{Number: fieldDescScale, Data: []byte{10}},
		{Number: fieldDescOffset, Data: []byte{0xFE}}, // -2
		{Number: fieldDescUnits, Data: padString("watts", 8)},
	})
	if err != nil {
		t.Fatalf("registerDescription: %v", err)
	}
	schema, ok := reg.lookup(1, 2)
	if !ok {
		t.Fatal("schema not registered")
	}
	if schema.Name != "power_dev" || schema.BaseType != BaseUint16 {
		t.Fatalf("schema = %+v", schema)
	}
	if schema.Scale != 10 || schema.Offset != -2 || schema.Units != "watts" {
		t.Fatalf("schema = %+v", schema)
	}
}
