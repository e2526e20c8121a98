package fit

// crcTable is the 16-entry lookup table for the FIT CRC-16 (reflected
// polynomial 0xA001). Each input byte is folded in as two nibbles.
var crcTable = [16]uint16{
	0x0000, 0xCC01, 0xD801, 0x1400,
	0xF001, 0x3C00, 0x2800, 0xE401,
	0xA001, 0x6C00, 0x7800, 0xB401,
	0x5000, 0x9C01, 0x8801, 0x4400,
}

// CRC is a streaming FIT CRC-16 calculator.
type CRC struct {
	value uint16
}

// Write folds the provided bytes into the running checksum.
func (c *CRC) Write(p []byte) {
	if c == nil {
		return
	}
	crc := c.value
	for _, b := range p {
		tmp := crcTable[crc&0x0F]
		crc = (crc >> 4) & 0x0FFF
		crc = crc ^ tmp ^ crcTable[b&0x0F]

		tmp = crcTable[crc&0x0F]
		crc = (crc >> 4) & 0x0FFF
		crc = crc ^ tmp ^ crcTable[(b>>4)&0x0F]
	}
	c.value = crc
}

// Sum16 returns the current checksum value.
func (c *CRC) Sum16() uint16 {
	if c == nil {
		return 0
	}
	return c.value
}

// Reset clears the running checksum.
func (c *CRC) Reset() {
	if c != nil {
		c.value = 0
	}
}

// Checksum computes the FIT CRC-16 of the provided bytes.
func Checksum(p []byte) uint16 {
	var c CRC
	c.Write(p)
	return c.Sum16()
}
