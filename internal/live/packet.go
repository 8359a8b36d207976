// ABOUTME: Binary frame codec for the live feed websocket protocol
// ABOUTME: 16-byte big-endian header; version 2 bodies are zlib-nested frames

package live

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
)

const headerLen = 16

// Protocol operations. The feed multiplexes control and data frames over
// one websocket using the operation field.
const (
	opHeartbeat      uint32 = 2
	opHeartbeatReply uint32 = 3
	opSendEvent      uint32 = 5
	opAuth           uint32 = 7
	opAuthReply      uint32 = 8
)

// packet is one decoded protocol frame.
type packet struct {
	packetLen uint32
	headerLen uint16
	version   uint16
	operation uint32
	sequence  uint32
	body      []byte
}

// encodePacket frames a body with the 16-byte header. Outgoing frames are
// always version 1 (plain JSON) with sequence 1.
func encodePacket(operation uint32, body []byte) []byte {
	buf := make([]byte, headerLen+len(body))
	binary.BigEndian.PutUint32(buf[0:4], uint32(headerLen+len(body)))
	binary.BigEndian.PutUint16(buf[4:6], headerLen)
	binary.BigEndian.PutUint16(buf[6:8], 1)
	binary.BigEndian.PutUint32(buf[8:12], operation)
	binary.BigEndian.PutUint32(buf[12:16], 1)
	copy(buf[headerLen:], body)
	return buf
}

// decodePackets parses a buffer of concatenated frames. Version 2 frames
// carry a zlib-compressed run of nested frames, which are flattened into
// the result. Trailing truncated data is ignored.
func decodePackets(data []byte) ([]packet, error) {
	var packets []packet
	offset := 0

	for offset+headerLen <= len(data) {
		packetLen := int(binary.BigEndian.Uint32(data[offset : offset+4]))
		if packetLen == 0 || offset+packetLen > len(data) {
			break
		}

		p := packet{
			packetLen: uint32(packetLen),
			headerLen: binary.BigEndian.Uint16(data[offset+4 : offset+6]),
			version:   binary.BigEndian.Uint16(data[offset+6 : offset+8]),
			operation: binary.BigEndian.Uint32(data[offset+8 : offset+12]),
			sequence:  binary.BigEndian.Uint32(data[offset+12 : offset+16]),
		}
		p.body = data[offset+int(p.headerLen) : offset+packetLen]

		if p.version == 2 {
			r, err := zlib.NewReader(bytes.NewReader(p.body))
			if err != nil {
				return nil, fmt.Errorf("opening compressed frame: %w", err)
			}
			decoded, err := io.ReadAll(r)
			r.Close()
			if err != nil {
				return nil, fmt.Errorf("inflating compressed frame: %w", err)
			}

			inner, err := decodePackets(decoded)
			if err != nil {
				return nil, err
			}
			packets = append(packets, inner...)
		} else {
			packets = append(packets, p)
		}

		offset += packetLen
	}

	return packets, nil
}
