package mavlink

import (
	"encoding/binary"
	"fmt"
)

// Result is the outcome of one parsing step, either a frame or an error.
type Result struct {
	Frame *Frame
	Err   error
}

type parseState int

const (
	stateMagic     parseState = iota // hunting for STX
	stateLen                         // waiting for payload length
	stateIncompat                    // waiting for incompat flags
	stateCompat                      // waiting for compat flags
	stateSeq                         // waiting for sequence
	stateSysID                       // waiting for system id
	stateCompID                      // waiting for component id
	stateMsgID                       // receiving 3 bytes of message id
	statePayload                     // receiving payload
	stateChecksum                    // receiving 2 bytes of checksum
	stateSignature                   // receiving signature
)

// Parser reassembles frames from a byte stream. The zero value is ready to use.
type Parser struct {
	state      parseState
	frame      *Frame
	raw        []byte
	payloadLen int
	remain     int
}

// Reset drops any partially received frame.
func (p *Parser) Reset() {
	p.resync()
}

// Receiving reports whether a frame is partially received.
func (p *Parser) Receiving() bool {
	return p.state != stateMagic
}

// Feed consumes a chunk and returns frames and errors in stream order.
// After a rejected frame, the bytes following its STX are parsed again
// so a real frame hidden behind a false start is not lost.
func (p *Parser) Feed(data []byte) (results []Result) {
	for len(data) > 0 {
		b := data[0]
		data = data[1:]
		f, err := p.parseByte(b)
		if f != nil {
			results = append(results, Result{Frame: f})
			continue
		}
		if err != nil {
			results = append(results, Result{Err: err})
			replay := append([]byte(nil), p.raw[1:]...)
			p.resync()
			data = append(replay, data...)
		}
	}
	return
}

func (p *Parser) parseByte(b byte) (*Frame, error) {
	if p.state == stateMagic {
		if b == STX {
			p.raw = append(p.raw[:0], b)
			p.frame = &Frame{}
			p.state = stateLen
		}
		return nil, nil
	}
	p.raw = append(p.raw, b)
	switch p.state {
	case stateLen:
		p.payloadLen = int(b)
		p.state = stateIncompat
	case stateIncompat:
		if b&^IncompatSigned != 0 {
			return nil, fmt.Errorf("%w: 0x%02x", ErrUnsupportedFlags, b)
		}
		p.frame.IncompatFlags = b
		p.state = stateCompat
	case stateCompat:
		p.frame.CompatFlags = b
		p.state = stateSeq
	case stateSeq:
		p.frame.Seq = Seq(b)
		p.state = stateSysID
	case stateSysID:
		p.frame.SystemID = b
		p.state = stateCompID
	case stateCompID:
		p.frame.ComponentID = b
		p.state, p.remain = stateMsgID, 3
	case stateMsgID:
		p.frame.MsgID |= uint32(b) << (8 * uint(3-p.remain))
		if p.remain--; p.remain > 0 {
			break
		}
		if p.payloadLen == 0 {
			p.state, p.remain = stateChecksum, checksumLen
		} else {
			p.frame.Payload = make([]byte, 0, p.payloadLen)
			p.state = statePayload
		}
	case statePayload:
		p.frame.Payload = append(p.frame.Payload, b)
		if len(p.frame.Payload) >= p.payloadLen {
			p.state, p.remain = stateChecksum, checksumLen
		}
	case stateChecksum:
		if p.remain--; p.remain > 0 {
			break
		}
		return p.checksumReady()
	case stateSignature:
		p.frame.Signature = append(p.frame.Signature, b)
		if len(p.frame.Signature) >= signatureLen {
			return p.frameReady(), nil
		}
	}
	return nil, nil
}

func (p *Parser) checksumReady() (*Frame, error) {
	n := len(p.raw)
	p.frame.Checksum = binary.LittleEndian.Uint16(p.raw[n-checksumLen:])
	// unknown messages can't be verified, they are passed on as-is
	if info, ok := registry[p.frame.MsgID]; ok {
		crc := crcAccumulate(info.crcExtra, crcCalculate(crcInit, p.raw[1:n-checksumLen]))
		if crc != p.frame.Checksum {
			return nil, fmt.Errorf("%w: %s seq %d", ErrBadCRC, info.name, p.frame.Seq)
		}
	}
	if p.frame.Signed() {
		p.frame.Signature = make([]byte, 0, signatureLen)
		p.state = stateSignature
		return nil, nil
	}
	return p.frameReady(), nil
}

func (p *Parser) resync() {
	p.state = stateMagic
	p.frame = nil
	p.raw = p.raw[:0]
	p.payloadLen, p.remain = 0, 0
}

func (p *Parser) frameReady() *Frame {
	f := p.frame
	p.resync()
	return f
}
