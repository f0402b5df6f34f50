// Package port implements the universal input/output framing, routing,
// and buffering the engine expects from external port adapters: a frame
// reader/writer, an input-port-id to output-port-id router, and a
// grow-by-doubling byte buffer with initial capacity 1, matching this
// engine's container-growth discipline.
package port

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Frame is one universal input record: port_id (u8), timestamp (u64 LE),
// data_size (u32 LE), data (data_size bytes).
type Frame struct {
	PortID    uint8
	Timestamp uint64
	Data      []byte
}

// ReadFrame decodes one Frame from r. A short read returns io.ErrUnexpectedEOF
// (or io.EOF if the stream ended cleanly before any byte of a new frame).
func ReadFrame(r io.Reader) (*Frame, error) {
	var header [13]byte
	if _, err := io.ReadFull(r, header[:1]); err != nil {
		return nil, err // clean EOF before a new frame starts
	}
	if _, err := io.ReadFull(r, header[1:]); err != nil {
		return nil, fmt.Errorf("port: short read in frame header: %w", io.ErrUnexpectedEOF)
	}

	f := &Frame{PortID: header[0]}
	f.Timestamp = binary.LittleEndian.Uint64(header[1:9])
	size := binary.LittleEndian.Uint32(header[9:13])

	f.Data = make([]byte, size)
	if _, err := io.ReadFull(r, f.Data); err != nil {
		return nil, fmt.Errorf("port: short read in frame data: %w", io.ErrUnexpectedEOF)
	}

	return f, nil
}

// WriteFrame encodes f to w in the same layout ReadFrame expects.
func WriteFrame(w io.Writer, f *Frame) error {
	var header [13]byte
	header[0] = f.PortID
	binary.LittleEndian.PutUint64(header[1:9], f.Timestamp)
	binary.LittleEndian.PutUint32(header[9:13], uint32(len(f.Data)))

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("port: write frame header: %w", err)
	}
	if _, err := w.Write(f.Data); err != nil {
		return fmt.Errorf("port: write frame data: %w", err)
	}

	return nil
}

// Router maps an input port id to the output port id continuations
// addressed to it should be written to.
type Router struct {
	routes map[uint8]uint8
}

// NewRouter returns an empty Router.
func NewRouter() *Router {
	return &Router{routes: make(map[uint8]uint8)}
}

// Route records that output addressed from inputPort should be written
// to outputPort.
func (r *Router) Route(inputPort, outputPort uint8) {
	r.routes[inputPort] = outputPort
}

// OutputPort returns the output port id routed from inputPort, and
// whether a route is registered.
func (r *Router) OutputPort(inputPort uint8) (uint8, bool) {
	p, ok := r.routes[inputPort]

	return p, ok
}

// Buffer is a growable byte buffer for the universal input/output
// streams, starting at capacity 1 and doubling — every dynamic container
// in this engine starts small and grows by doubling.
type Buffer struct {
	data []byte
}

// NewBuffer returns an empty Buffer with capacity 1.
func NewBuffer() *Buffer {
	return &Buffer{data: make([]byte, 0, 1)}
}

// Write appends p to the buffer, growing capacity by doubling as needed.
func (b *Buffer) Write(p []byte) {
	needed := len(b.data) + len(p)
	if needed > cap(b.data) {
		newCap := cap(b.data)
		if newCap == 0 {
			newCap = 1
		}
		for newCap < needed {
			newCap *= 2
		}
		grown := make([]byte, len(b.data), newCap)
		copy(grown, b.data)
		b.data = grown
	}
	b.data = append(b.data, p...)
}

// Read copies up to len(into) bytes from the front of the buffer into
// into, consuming them, and returns the count copied. Returns 0, nil when
// the buffer is empty — "no data now", not an error.
func (b *Buffer) Read(into []byte) (int, error) {
	n := copy(into, b.data)
	b.data = b.data[n:]

	return n, nil
}

// Len returns the number of unread bytes currently buffered.
func (b *Buffer) Len() int { return len(b.data) }
