// Package writers delivers framed SSE events to transport endpoints. Writers
// never compose or append frames themselves; the stream layer above owns the
// wire format, terminal marker included.
package writers

import (
	"bufio"

	"github.com/signalwork-ai/agent-relay/internal/services/stream/contracts"

	"github.com/valyala/fasthttp"
)

// HTTPFrameWriter writes frames to an HTTP response stream with connection
// awareness.
type HTTPFrameWriter struct {
	writer      *bufio.Writer
	connState   contracts.ConnectionState
	requestID   string
	totalBytes  int64
	totalFrames int64
}

// NewHTTPFrameWriter creates a frame writer over a buffered HTTP body stream.
func NewHTTPFrameWriter(writer *bufio.Writer, connState contracts.ConnectionState, requestID string) *HTTPFrameWriter {
	return &HTTPFrameWriter{
		writer:    writer,
		connState: connState,
		requestID: requestID,
	}
}

// WriteFrame writes one framed event to the HTTP stream
func (w *HTTPFrameWriter) WriteFrame(frame string) error {
	if len(frame) == 0 {
		return nil
	}

	if !w.connState.IsConnected() {
		return contracts.NewClientDisconnectError(w.requestID)
	}

	n, err := w.writer.WriteString(frame)
	if n > 0 {
		// Account for actual bytes written, even on partial write or error
		w.totalBytes += int64(n)
	}

	if err != nil {
		if contracts.IsConnectionClosed(err) {
			return contracts.NewClientDisconnectError(w.requestID)
		}
		return contracts.NewInternalError(w.requestID, "write failed", err)
	}

	w.totalFrames++
	return nil
}

// Flush flushes buffered data to the client
func (w *HTTPFrameWriter) Flush() error {
	if !w.connState.IsConnected() {
		return contracts.NewClientDisconnectError(w.requestID)
	}

	if err := w.writer.Flush(); err != nil {
		if contracts.IsConnectionClosed(err) {
			return contracts.NewClientDisconnectError(w.requestID)
		}
		return contracts.NewInternalError(w.requestID, "flush failed", err)
	}

	return nil
}

// Close flushes any remaining buffered data. It writes nothing of its own:
// the terminal marker is the stream layer's responsibility.
func (w *HTTPFrameWriter) Close() error {
	if !w.connState.IsConnected() {
		return nil
	}

	if err := w.writer.Flush(); err != nil {
		if contracts.IsConnectionClosed(err) {
			return contracts.NewClientDisconnectError(w.requestID)
		}
		return contracts.NewInternalError(w.requestID, "flush failed", err)
	}
	return nil
}

// TotalBytes returns total bytes written
func (w *HTTPFrameWriter) TotalBytes() int64 {
	return w.totalBytes
}

// TotalFrames returns the number of frames written
func (w *HTTPFrameWriter) TotalFrames() int64 {
	return w.totalFrames
}

// FastHTTPConnectionState wraps FastHTTP context for connection state
type FastHTTPConnectionState struct {
	ctx *fasthttp.RequestCtx
}

// NewFastHTTPConnectionState creates connection state from FastHTTP context
func NewFastHTTPConnectionState(ctx *fasthttp.RequestCtx) *FastHTTPConnectionState {
	return &FastHTTPConnectionState{ctx: ctx}
}

// IsConnected checks if client is still connected
func (c *FastHTTPConnectionState) IsConnected() bool {
	if c.ctx == nil {
		return false
	}
	select {
	case <-c.ctx.Done():
		return false
	default:
		return true
	}
}

// Done returns channel that closes when client disconnects
func (c *FastHTTPConnectionState) Done() <-chan struct{} {
	if c.ctx == nil {
		// Return closed channel
		done := make(chan struct{})
		close(done)
		return done
	}
	return c.ctx.Done()
}
