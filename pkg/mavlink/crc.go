package mavlink

const crcInit uint16 = 0xffff

// crcAccumulate folds one byte into a CRC-16/MCRF4XX (X.25) checksum.
func crcAccumulate(b byte, crc uint16) uint16 {
	tmp := b ^ byte(crc)
	tmp ^= tmp << 4
	return (crc >> 8) ^ (uint16(tmp) << 8) ^ (uint16(tmp) << 3) ^ (uint16(tmp) >> 4)
}

func crcCalculate(crc uint16, data []byte) uint16 {
	for _, b := range data {
		crc = crcAccumulate(b, crc)
	}
	return crc
}
