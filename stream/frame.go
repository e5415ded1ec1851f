package stream

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Frame is a rendered RGB frame. Timestamp is the intended presentation time
// in milliseconds since the Unix epoch, not the time it was rendered.
type Frame struct {
	Timestamp int64
	Width     int
	Height    int
	Pixels    []byte // RGB, 3 bytes per pixel
}

// NewFrame copies pixels out of a render buffer into a new Frame.
func NewFrame(timestamp int64, width, height int, buf []byte) *Frame {
	pixels := make([]byte, len(buf))
	copy(pixels, buf)
	return &Frame{
		Timestamp: timestamp,
		Width:     width,
		Height:    height,
		Pixels:    pixels,
	}
}

// WireFrame is the encoded response to a frame request. SendTimestamp is taken
// when the response is built and may precede Timestamp if clocks are skewed.
type WireFrame struct {
	Timestamp     int64  `msgpack:"timestamp"`
	SendTimestamp int64  `msgpack:"send_timestamp"`
	Width         uint32 `msgpack:"width"`
	Height        uint32 `msgpack:"height"`
	Pixels        []byte `msgpack:"pixels"`
}

// NewWireFrame takes over the pixels of f and stamps it with the send time.
func NewWireFrame(f *Frame, sent time.Time) *WireFrame {
	return &WireFrame{
		Timestamp:     f.Timestamp,
		SendTimestamp: sent.UnixMilli(),
		Width:         uint32(f.Width),
		Height:        uint32(f.Height),
		Pixels:        f.Pixels,
	}
}

// Latency is the time between the intended presentation time and sending.
func (w *WireFrame) Latency() time.Duration {
	return time.Duration(w.SendTimestamp-w.Timestamp) * time.Millisecond
}

// MarshalBinary encodes the frame as a MessagePack map.
func (w *WireFrame) MarshalBinary() ([]byte, error) {
	data, err := msgpack.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("encode frame %d: %w", w.Timestamp, err)
	}
	return data, nil
}

// UnmarshalWireFrame decodes a frame produced by MarshalBinary.
func UnmarshalWireFrame(data []byte) (*WireFrame, error) {
	w := new(WireFrame)
	if err := msgpack.Unmarshal(data, w); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return w, nil
}

// EncodeTimestamp encodes t as a single MessagePack integer of milliseconds since the epoch.
func EncodeTimestamp(t time.Time) ([]byte, error) {
	return msgpack.Marshal(t.UnixMilli())
}

// DecodeTimestamp is the inverse of EncodeTimestamp.
func DecodeTimestamp(data []byte) (int64, error) {
	var ms int64
	err := msgpack.Unmarshal(data, &ms)
	return ms, err
}
