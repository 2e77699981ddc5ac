package utils

import (
	"github.com/valyala/bytebufferpool"
)

// streamPool keeps streaming buffers in their own pool so bytebufferpool's
// size-class calibration tracks frame sizes, not unrelated allocations.
var streamPool bytebufferpool.Pool

// Get retrieves a buffer from the streaming pool
func Get() *bytebufferpool.ByteBuffer {
	return streamPool.Get()
}

// Put returns a buffer to the streaming pool
func Put(buf *bytebufferpool.ByteBuffer) {
	streamPool.Put(buf)
}
