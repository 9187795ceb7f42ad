// Package kfmt provides output sinks that are usable before any display
// driver has been initialized.
package kfmt

import "io"

// ringBufferSize defines the size of the ring buffer that captures early log
// output. It is large enough to hold the log lines emitted while decoding the
// boot information and probing drivers. The size must always be a power of 2.
const ringBufferSize = 8192

// RingBuffer captures log output before a display is available. Once full,
// new writes overwrite the oldest bytes. The zero value is ready for use.
type RingBuffer struct {
	buffer         [ringBufferSize]byte
	rIndex, wIndex int
}

// Write writes len(p) bytes from p to the ring buffer.
func (rb *RingBuffer) Write(p []byte) (int, error) {
	for _, b := range p {
		rb.buffer[rb.wIndex] = b
		rb.wIndex = (rb.wIndex + 1) & (ringBufferSize - 1)
		if rb.rIndex == rb.wIndex {
			rb.rIndex = (rb.rIndex + 1) & (ringBufferSize - 1)
		}
	}

	return len(p), nil
}

// Len returns the number of unread bytes.
func (rb *RingBuffer) Len() int {
	return (rb.wIndex - rb.rIndex) & (ringBufferSize - 1)
}

// Read reads up to len(p) bytes into p. It returns io.EOF when the buffer
// has been drained.
func (rb *RingBuffer) Read(p []byte) (n int, err error) {
	switch {
	case rb.rIndex < rb.wIndex:
		n = min(rb.wIndex-rb.rIndex, len(p))
		copy(p, rb.buffer[rb.rIndex:rb.rIndex+n])
		rb.rIndex += n

		return n, nil
	case rb.rIndex > rb.wIndex:
		// Read up to the end of the buffer; the next call wraps around
		n = min(len(rb.buffer)-rb.rIndex, len(p))
		copy(p, rb.buffer[rb.rIndex:rb.rIndex+n])
		rb.rIndex = (rb.rIndex + n) & (ringBufferSize - 1)

		return n, nil
	default: // rIndex == wIndex
		return 0, io.EOF
	}
}

// WriteTo drains the buffer into w.
func (rb *RingBuffer) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for rb.rIndex != rb.wIndex {
		end := rb.wIndex
		if rb.rIndex > rb.wIndex {
			end = len(rb.buffer)
		}

		n, err := w.Write(rb.buffer[rb.rIndex:end])
		total += int64(n)
		rb.rIndex = (rb.rIndex + n) & (ringBufferSize - 1)
		if err != nil {
			return total, err
		}
	}

	return total, nil
}
