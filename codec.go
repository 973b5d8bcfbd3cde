package gocork

import "encoding/binary"

import "github.com/pkg/errors"

// | id uint16 | debugid uint32 | payload |
//
// SerializeMessage appends msg as a record to out. A panic from Encode,
// or a ModCount that moved while encoding, is reported as
// ErrorSerializationFault naming the message type.
func SerializeMessage(msg Message, out []byte) (record []byte, err error) {
	var before uint64
	mc, checkmod := msg.(ModCounter)
	if checkmod {
		before = mc.ModCount()
	}

	n := len(out)
	defer func() {
		if r := recover(); r != nil {
			fmsg := "writing %T is not thread-safe: %v"
			err = errors.Wrapf(ErrorSerializationFault, fmsg, msg, r)
			record = out[:n]
		}
	}()

	out = appendUint16(out, msg.ID())
	out = appendUint32(out, msg.DebugID())
	record = msg.Encode(out)
	if checkmod && mc.ModCount() != before {
		fmsg := "writing %T is not thread-safe: modified while encoding"
		return record[:n], errors.Wrapf(ErrorSerializationFault, fmsg, msg)
	}
	return record, nil
}

// ParseRecord reads the header of the record at the start of buf,
// returns false if buf is shorter than a record header.
func ParseRecord(buf []byte) (id uint16, debugid uint32, payload []byte, ok bool) {
	if len(buf) < recordHeaderSize {
		return 0, 0, nil, false
	}
	id = binary.BigEndian.Uint16(buf)
	debugid = binary.BigEndian.Uint32(buf[2:])
	return id, debugid, buf[recordHeaderSize:], true
}

// | length uint32 | payload |
//
// AppendFrame appends payload, prefixed with its length, to out.
func AppendFrame(out, payload []byte) []byte {
	out = appendUint32(out, uint32(len(payload)))
	return append(out, payload...)
}

// ExtractFrame reads one length prefixed frame from the start of buf. If
// buf does not hold the complete frame ok is false and buf must be kept
// until more data arrives. Frame and remainder alias buf.
func ExtractFrame(buf []byte) (frame, remainder []byte, ok bool) {
	if len(buf) < framePrefixSize {
		return nil, buf, false
	}
	size := uint64(binary.BigEndian.Uint32(buf))
	if uint64(len(buf)) < size+framePrefixSize {
		return nil, buf, false
	}
	end := framePrefixSize + int(size)
	return buf[framePrefixSize:end], buf[end:], true
}

func appendUint16(out []byte, v uint16) []byte {
	return append(out, byte(v>>8), byte(v))
}

func appendUint32(out []byte, v uint32) []byte {
	return append(out, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}
