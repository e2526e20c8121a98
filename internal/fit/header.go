package fit

import (
	"encoding/binary"
	"fmt"
)

const (
	headerSizeMin     = 12
	headerSizeWithCRC = 14
	headerDataType    = ".FIT"
	trailerCRCSize    = 2

	// Protocol major versions this decoder understands. The major version
	// lives in the high nibble of the protocol version byte.
	maxProtocolMajor = 2
)

// ParseHeader decodes and validates the FIT file header at the start of data.
// total is the full file length, used to check the declared data size against
// the byte range between the header and the trailing CRC.
func ParseHeader(data []byte, total int) (FileHeader, error) {
	var hdr FileHeader
	if len(data) < 1 {
		return hdr, fmt.Errorf("%w: empty input", ErrMalformedHeader)
	}
	hdr.Size = data[0]
	if hdr.Size != headerSizeMin && hdr.Size != headerSizeWithCRC {
		return hdr, fmt.Errorf("%w: header size %d, expected 12 or 14", ErrMalformedHeader, hdr.Size)
	}
	if len(data) < int(hdr.Size) {
		return hdr, fmt.Errorf("%w: %d bytes available for %d byte header", ErrMalformedHeader, len(data), hdr.Size)
	}
	hdr.ProtocolVersion = data[1]
	hdr.ProfileVersion = binary.LittleEndian.Uint16(data[2:4])
	hdr.DataSize = binary.LittleEndian.Uint32(data[4:8])
	hdr.DataType = string(data[8:12])
	if hdr.DataType != headerDataType {
		return hdr, fmt.Errorf("%w: data type %q, expected %q", ErrMalformedHeader, hdr.DataType, headerDataType)
	}
	if major := hdr.ProtocolVersion >> 4; major > maxProtocolMajor {
		return hdr, fmt.Errorf("%w: unsupported protocol version %d.%d", ErrMalformedHeader, major, hdr.ProtocolVersion&0x0F)
	}
	want := int(hdr.Size) + int(hdr.DataSize) + trailerCRCSize
	if total != want {
		return hdr, fmt.Errorf("%w: data size %d implies %d byte file, have %d", ErrMalformedHeader, hdr.DataSize, want, total)
	}
	if hdr.Size == headerSizeWithCRC {
		hdr.CRC = binary.LittleEndian.Uint16(data[12:14])
		// A zero header CRC means the writer skipped it.
		if hdr.CRC != 0 {
			if got := Checksum(data[:headerSizeMin]); got != hdr.CRC {
				return hdr, fmt.Errorf("%w: header CRC 0x%04X, computed 0x%04X", ErrMalformedHeader, hdr.CRC, got)
			}
		}
	}
	return hdr, nil
}
