// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"fadeout/internal/transport"
)

/*
Status Packet Structure (BigEndian)

+------------------------------------------------------------------+
| Field           | Data Type | Size (Bytes) | Description           |
|-----------------|-----------|--------------|-----------------------|
| Sequence Number | uint32    | 4            | Monotonically increasing |
| Timestamp       | int64     | 8            | Nanoseconds since epoch |
| Attenuation     | float64   | 8            | Current divisor, 1 = none |
| Level           | float32   | 4            | RMS level in dBFS     |
| Peak            | float32   | 4            | Peak level in dBFS    |
| Flags           | uint8     | 1            | fade, stream, playing |
+------------------------------------------------------------------+
*/

// PacketSize is the encoded size of a status packet.
const PacketSize = 4 + 8 + 8 + 4 + 4 + 1

// ErrShortPacket is returned when decoding fewer than PacketSize bytes.
var ErrShortPacket = errors.New("udp: short status packet")

// AppendStatus appends the binary encoding of st to dst.
func AppendStatus(dst []byte, st transport.Status) []byte {
	dst = binary.BigEndian.AppendUint32(dst, st.Sequence)
	dst = binary.BigEndian.AppendUint64(dst, uint64(st.Timestamp))
	dst = binary.BigEndian.AppendUint64(dst, math.Float64bits(st.Attenuation))
	dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(float32(st.LevelDB)))
	dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(float32(st.PeakDB)))
	return append(dst, st.Flags())
}

// DecodeStatus parses a status packet. Bytes past PacketSize are ignored.
func DecodeStatus(b []byte) (transport.Status, error) {
	var st transport.Status
	if len(b) < PacketSize {
		return st, fmt.Errorf("%w: %d bytes", ErrShortPacket, len(b))
	}
	st.Sequence = binary.BigEndian.Uint32(b[0:])
	st.Timestamp = int64(binary.BigEndian.Uint64(b[4:]))
	st.Attenuation = math.Float64frombits(binary.BigEndian.Uint64(b[12:]))
	st.LevelDB = float64(math.Float32frombits(binary.BigEndian.Uint32(b[20:])))
	st.PeakDB = float64(math.Float32frombits(binary.BigEndian.Uint32(b[24:])))
	st.SetFlags(b[28])
	return st, nil
}

// StatusTransport encodes each transport.Status into a packet and sends it
// with a UDPSender.
type StatusTransport struct {
	sender *UDPSender
	mu     sync.Mutex
	packet []byte // Reused between sends
}

// NewStatusTransport dials targetAddress.
func NewStatusTransport(targetAddress string) (*StatusTransport, error) {
	sender, err := NewUDPSender(targetAddress)
	if err != nil {
		return nil, err
	}
	return &StatusTransport{sender: sender, packet: make([]byte, 0, PacketSize)}, nil
}

// Send implements transport.Transport.
func (t *StatusTransport) Send(data any) error {
	st, ok := data.(transport.Status)
	if !ok {
		return fmt.Errorf("udp: cannot encode %T", data)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.packet = AppendStatus(t.packet[:0], st)
	return t.sender.Send(t.packet)
}

// Close implements transport.Transport.
func (t *StatusTransport) Close() error {
	return t.sender.Close()
}

var _ transport.Transport = (*StatusTransport)(nil)
