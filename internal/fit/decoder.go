package fit

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"example.com/fitdec/internal/common"
	"example.com/fitdec/internal/profile"
)

const (
	maxLocalMessages = 16

	recordHeaderCompressed = 0x80
	recordHeaderDefinition = 0x40
	recordHeaderDeveloper  = 0x20
	recordHeaderReserved   = 0x10
	recordHeaderLocalMask  = 0x0F

	compressedLocalMask  = 0x03
	compressedLocalShift = 5
	compressedOffsetMask = 0x1F
	compressedOffsetBits = 32

	timestampFieldNumber = 253
)

const (
	archLittleEndian = 0x00
	archBigEndian    = 0x01
)

// Registry is the read-only profile lookup surface the decoder resolves
// semantic names and scaling rules through. It must be safe for concurrent
// use; *profile.Store satisfies it.
type Registry interface {
	MessageName(global uint16) (string, bool)
	Field(global uint16, field uint8) (profile.FieldSchema, bool)
}

// Options configures a decode session.
type Options struct {
	// Registry resolves message and field numbers. When nil the builtin
	// profile snapshot is used.
	Registry Registry

	// StrictCRC turns a trailing checksum mismatch into an error from Next
	// instead of a warning in the summary.
	StrictCRC bool
}

type fieldKey struct {
	global uint16
	field  uint8
}

type accumKey struct {
	localType uint8
	field     uint8
}

type accumState struct {
	last uint64
	bits uint
}

// Decoder walks one FIT file sequentially and yields one Message per data
// record. All state is scoped to the file; a Decoder must not be reused.
type Decoder struct {
	data    []byte
	pos     int
	dataEnd int

	hdr       FileHeader
	registry  Registry
	strictCRC bool
	metrics   *common.Metrics

	defs  [maxLocalMessages]*Definition
	dev   *devRegistry
	accum map[accumKey]accumState

	lastTimestamp uint32
	hasTimestamp  bool

	records     int
	definitions int
	messages    int
	counts      map[string]int
	warnings    []Warning

	warnedMessages map[uint16]bool
	warnedFields   map[fieldKey]bool

	crcComputed uint16
	crcStored   uint16
	crcValid    bool
	finished    bool
}

// NewDecoder validates the file header and prepares a decode session over the
// complete file contents.
func NewDecoder(data []byte, opts Options) (*Decoder, error) {
	hdr, err := ParseHeader(data, len(data))
	if err != nil {
		return nil, err
	}
	reg := opts.Registry
	if reg == nil {
		reg = profile.Builtin()
	}
	return &Decoder{
		data:           data,
		pos:            int(hdr.Size),
		dataEnd:        int(hdr.Size) + int(hdr.DataSize),
		hdr:            hdr,
		registry:       reg,
		strictCRC:      opts.StrictCRC,
		dev:            newDevRegistry(),
		accum:          make(map[accumKey]accumState),
		counts:         make(map[string]int),
		warnedMessages: make(map[uint16]bool),
		warnedFields:   make(map[fieldKey]bool),
	}, nil
}

// Header returns the decoded file header.
func (d *Decoder) Header() FileHeader {
	return d.hdr
}

// SetMetrics attaches a metrics recorder to the decoder.
func (d *Decoder) SetMetrics(m *common.Metrics) {
	d.metrics = m
	if d.metrics != nil {
		d.metrics.SetTotalBytes(int64(len(d.data)))
	}
}

// Next decodes records until it can yield the next Message. It returns io.EOF
// once the declared data size is consumed and the trailing CRC has been
// checked. Fatal conditions return an error; everything decoded before the
// failure remains available through Summary.
func (d *Decoder) Next() (*Message, error) {
	if d.finished {
		return nil, io.EOF
	}
	for {
		if d.pos >= d.dataEnd {
			return nil, d.finish()
		}
		recordIdx := d.records
		hdrByte, err := d.readByte()
		if err != nil {
			return nil, err
		}
		d.records++

		if hdrByte&recordHeaderCompressed != 0 {
			msg, err := d.decodeCompressedData(hdrByte, recordIdx)
			if err != nil {
				return nil, err
			}
			return msg, nil
		}
		if hdrByte&recordHeaderReserved != 0 {
			return nil, fmt.Errorf("record %d: reserved header bit set in 0x%02X", recordIdx, hdrByte)
		}
		localType := hdrByte & recordHeaderLocalMask
		if hdrByte&recordHeaderDefinition != 0 {
			if err := d.decodeDefinition(localType, hdrByte&recordHeaderDeveloper != 0, recordIdx); err != nil {
				return nil, err
			}
			continue
		}
		msg, err := d.decodeData(localType, recordIdx)
		if err != nil {
			return nil, err
		}
		return msg, nil
	}
}

// DecodeAll drains the message stream. On a fatal error the messages decoded
// before the failure are returned alongside it.
func (d *Decoder) DecodeAll() ([]*Message, error) {
	var msgs []*Message
	for {
		msg, err := d.Next()
		if err == io.EOF {
			return msgs, nil
		}
		if err != nil {
			return msgs, err
		}
		msgs = append(msgs, msg)
	}
}

// DecodeFile decodes the file at path with the provided options.
func DecodeFile(path string, opts Options) ([]*Message, Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Summary{}, err
	}
	return Decode(data, opts)
}

// Decode decodes a complete in-memory FIT file.
func Decode(data []byte, opts Options) ([]*Message, Summary, error) {
	dec, err := NewDecoder(data, opts)
	if err != nil {
		return nil, Summary{}, err
	}
	msgs, err := dec.DecodeAll()
	return msgs, dec.Summary(), err
}

// Summary returns the decode summary accumulated so far. After the stream has
// been drained it includes the CRC outcome.
func (d *Decoder) Summary() Summary {
	counts := make(map[string]int, len(d.counts))
	for name, n := range d.counts {
		counts[name] = n
	}
	warnings := make([]Warning, len(d.warnings))
	copy(warnings, d.warnings)
	return Summary{
		Header:        d.hdr,
		Records:       d.records,
		Definitions:   d.definitions,
		Messages:      d.messages,
		BytesConsumed: int64(d.pos),
		CRCComputed:   d.crcComputed,
		CRCStored:     d.crcStored,
		CRCValid:      d.crcValid,
		MessageCounts: counts,
		Warnings:      warnings,
	}
}

// Warnings returns the non-fatal conditions recorded so far.
func (d *Decoder) Warnings() []Warning {
	return d.Summary().Warnings
}

func (d *Decoder) finish() error {
	d.finished = true
	d.crcComputed = Checksum(d.data[:d.dataEnd])
	d.crcStored = binary.LittleEndian.Uint16(d.data[d.dataEnd : d.dataEnd+2])
	d.pos = d.dataEnd + trailerCRCSize
	d.crcValid = d.crcComputed == d.crcStored
	if d.metrics != nil {
		d.metrics.AddBytes(trailerCRCSize)
	}
	if !d.crcValid {
		if d.strictCRC {
			return fmt.Errorf("%w: stored 0x%04X, computed 0x%04X", ErrChecksumMismatch, d.crcStored, d.crcComputed)
		}
		d.warn(WarnChecksumMismatch, -1, "trailing CRC 0x%04X does not match computed 0x%04X", d.crcStored, d.crcComputed)
	}
	return io.EOF
}

func (d *Decoder) warn(code WarningCode, record int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	d.warnings = append(d.warnings, Warning{
		Code:    code,
		Message: msg,
		Record:  record,
	})
	if record >= 0 {
		common.Logf("record %d: %s", record, msg)
	} else {
		common.Logf("%s", msg)
	}
	if d.metrics != nil {
		d.metrics.IncWarning()
	}
}

func (d *Decoder) readByte() (uint8, error) {
	if d.pos >= d.dataEnd {
		return 0, fmt.Errorf("%w: need 1 byte at offset %d, data section ends at %d", ErrTruncatedRecord, d.pos, d.dataEnd)
	}
	b := d.data[d.pos]
	d.pos++
	if d.metrics != nil {
		d.metrics.AddBytes(1)
	}
	return b, nil
}

func (d *Decoder) readBytes(n int) ([]byte, error) {
	if n < 0 || d.pos+n > d.dataEnd {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, data section ends at %d", ErrTruncatedRecord, n, d.pos, d.dataEnd)
	}
	view := d.data[d.pos : d.pos+n]
	d.pos += n
	if d.metrics != nil {
		d.metrics.AddBytes(int64(n))
	}
	return view, nil
}

func (d *Decoder) readUint16(bigEndian bool) (uint16, error) {
	buf, err := d.readBytes(2)
	if err != nil {
		return 0, err
	}
	if bigEndian {
		return binary.BigEndian.Uint16(buf), nil
	}
	return binary.LittleEndian.Uint16(buf), nil
}

func (d *Decoder) decodeDefinition(localType uint8, hasDeveloper bool, recordIdx int) error {
	reserved, err := d.readByte()
	if err != nil {
		return err
	}
	if reserved != 0 {
		return fmt.Errorf("record %d: reserved byte 0x%02X after definition header", recordIdx, reserved)
	}
	arch, err := d.readByte()
	if err != nil {
		return err
	}
	if arch != archLittleEndian && arch != archBigEndian {
		return fmt.Errorf("record %d: invalid architecture byte 0x%02X", recordIdx, arch)
	}
	def := &Definition{
		LocalType: localType,
		BigEndian: arch == archBigEndian,
	}
	def.GlobalNumber, err = d.readUint16(def.BigEndian)
	if err != nil {
		return err
	}
	fieldCount, err := d.readByte()
	if err != nil {
		return err
	}
	def.Fields = make([]FieldDef, 0, fieldCount)
	for i := 0; i < int(fieldCount); i++ {
		tuple, err := d.readBytes(3)
		if err != nil {
			return err
		}
		bt, _, err := parseBaseTypeByte(tuple[2])
		if err != nil {
			return fmt.Errorf("record %d field %d: %v", recordIdx, i, err)
		}
		if !bt.Known() {
			d.warn(WarnUnknownBaseType, recordIdx,
				"message %d field %d uses unknown base type 0x%02X, decoding as bytes", def.GlobalNumber, tuple[0], tuple[2])
		}
		def.Fields = append(def.Fields, FieldDef{Number: tuple[0], Size: tuple[1], BaseType: bt})
	}
	if hasDeveloper {
		devCount, err := d.readByte()
		if err != nil {
			return err
		}
		def.DevFields = make([]DevFieldDef, 0, devCount)
		for i := 0; i < int(devCount); i++ {
			tuple, err := d.readBytes(3)
			if err != nil {
				return err
			}
			def.DevFields = append(def.DevFields, DevFieldDef{Number: tuple[0], Size: tuple[1], DevIndex: tuple[2]})
		}
	}
	d.defs[localType] = def
	d.definitions++
	if d.metrics != nil {
		d.metrics.AddRecord()
	}
	return nil
}

func (d *Decoder) decodeData(localType uint8, recordIdx int) (*Message, error) {
	def := d.defs[localType]
	if def == nil {
		return nil, fmt.Errorf("%w: local type %d at record %d", ErrUndefinedLocalMessage, localType, recordIdx)
	}
	fields, devFields, err := d.readRawFields(def)
	if err != nil {
		return nil, err
	}
	d.intercept(def, fields, recordIdx)
	msg := d.buildMessage(def, fields, devFields, recordIdx)
	d.messages++
	d.counts[msg.Name]++
	if d.metrics != nil {
		d.metrics.AddRecord()
		d.metrics.AddMessage()
	}
	return msg, nil
}

func (d *Decoder) decodeCompressedData(hdrByte uint8, recordIdx int) (*Message, error) {
	localType := (hdrByte >> compressedLocalShift) & compressedLocalMask
	offset := uint32(hdrByte & compressedOffsetMask)
	def := d.defs[localType]
	if def == nil {
		return nil, fmt.Errorf("%w: local type %d at compressed record %d", ErrUndefinedLocalMessage, localType, recordIdx)
	}
	fields, devFields, err := d.readRawFields(def)
	if err != nil {
		return nil, err
	}
	d.intercept(def, fields, recordIdx)
	msg := d.buildMessage(def, fields, devFields, recordIdx)

	// Reconstruct the full timestamp from the 5-bit offset against the most
	// recent absolute timestamp, carrying into the upper bits on wrap.
	if d.hasTimestamp {
		ts := d.lastTimestamp&^uint32(compressedOffsetMask) | offset
		if offset < d.lastTimestamp&compressedOffsetMask {
			ts += compressedOffsetBits
		}
		d.lastTimestamp = ts
		if _, ok := msg.Field("timestamp"); !ok {
			msg.Fields = append(msg.Fields, FieldValue{
				Name:   "timestamp",
				Number: timestampFieldNumber,
				Units:  "s",
				Value:  uint64(ts),
			})
		}
	}
	d.messages++
	d.counts[msg.Name]++
	if d.metrics != nil {
		d.metrics.AddRecord()
		d.metrics.AddMessage()
	}
	return msg, nil
}

func (d *Decoder) readRawFields(def *Definition) ([]RawField, []RawField, error) {
	fields := make([]RawField, 0, len(def.Fields))
	for _, fd := range def.Fields {
		data, err := d.readBytes(int(fd.Size))
		if err != nil {
			return nil, nil, err
		}
		fields = append(fields, RawField{Number: fd.Number, BaseType: fd.BaseType, Data: data})
	}
	var devFields []RawField
	if len(def.DevFields) > 0 {
		devFields = make([]RawField, 0, len(def.DevFields))
		for _, fd := range def.DevFields {
			data, err := d.readBytes(int(fd.Size))
			if err != nil {
				return nil, nil, err
			}
			devFields = append(devFields, RawField{Number: fd.Number, Data: data})
		}
	}
	return fields, devFields, nil
}

// intercept feeds developer metadata messages into the file-scoped developer
// registry before the message is handed to the builder.
func (d *Decoder) intercept(def *Definition, fields []RawField, recordIdx int) {
	switch def.GlobalNumber {
	case profile.MesgDeveloperDataID:
		d.dev.registerDataID(fields)
		d.warn(WarnDeveloperField, recordIdx, "developer data id declared")
	case profile.MesgFieldDescription:
		if err := d.dev.registerDescription(fields); err != nil {
			d.warn(WarnUndeclaredDevField, recordIdx, "field description rejected: %v", err)
			return
		}
		d.warn(WarnDeveloperField, recordIdx, "developer field described")
	}
}
