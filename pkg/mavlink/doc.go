// Package mavlink implements the subset of MAVLink v2 used on the
// companion computer link.
package mavlink

// Frames are laid out as
//
//	STX(0xFD) LEN INCOMPAT COMPAT SEQ SYSID COMPID MSGID(3, LE) PAYLOAD CRC(2, LE) [SIGNATURE(13)]
//
// CRC is CRC-16/MCRF4XX over everything after STX up to the end of the
// payload, followed by the per-message CRC_EXTRA byte. Trailing zero bytes
// of the payload are not transmitted; receivers zero-extend.
//
// Producer: this bridge (HEARTBEAT, NAMED_VALUE_FLOAT)
// Consumer: flight controller, which in turn streams HEARTBEAT,
// SYSTEM_TIME and GLOBAL_POSITION_INT back.
