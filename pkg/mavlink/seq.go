package mavlink

// Seq is the 8-bit frame sequence number.
type Seq byte

// Next returns the following sequence number, wrapping at 256.
func (s Seq) Next() Seq {
	return s + 1
}
