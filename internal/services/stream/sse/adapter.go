package sse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/signalwork-ai/agent-relay/internal/models"
	"github.com/signalwork-ai/agent-relay/internal/services/stream/contracts"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

// Client-facing failure messages. Provider and internal detail never crosses
// this boundary; the full errors go to the reporter instead.
const (
	decodeFailedMessage   = "Stream failed (decoder encountered an error)"
	internalFailedMessage = "Stream failed (internal error occurred)"
	streamFailedPrefix    = "Stream failed: "
)

// StreamAdapter turns a chunk stream plus an optional usage future into a
// framed SSE event sequence: chunk frames in order, then the usage record (or
// a folded error frame), then the terminal marker when enabled. Every failure
// mode ends in a well-formed frame; clients never see a dangling stream
// without explanation short of a crash or disconnect.
type StreamAdapter struct {
	chunks     contracts.ChunkStream
	usage      contracts.UsageFuture
	reporter   contracts.ErrorReporter
	requestID  string
	sendDone   bool
	chunkDelay time.Duration
}

// NewStreamAdapter creates a stream adapter. usage may be nil when the run
// has no usage computation attached. chunks and reporter must not be nil.
func NewStreamAdapter(
	chunks contracts.ChunkStream,
	usage contracts.UsageFuture,
	reporter contracts.ErrorReporter,
	requestID string,
	sendDone bool,
	chunkDelay time.Duration,
) *StreamAdapter {
	if chunks == nil {
		panic("sse: NewStreamAdapter requires a chunk stream")
	}
	if reporter == nil {
		panic("sse: NewStreamAdapter requires an error reporter")
	}
	return &StreamAdapter{
		chunks:     chunks,
		usage:      usage,
		reporter:   reporter,
		requestID:  requestID,
		sendDone:   sendDone,
		chunkDelay: chunkDelay,
	}
}

// Handle drives the full adaptation: it drains the chunk stream into frames,
// resolves the usage future, folds failures into error frames, and closes
// with the terminal marker. It returns nil when the stream was delivered,
// including the cases where delivery consisted of a folded error frame, and
// a *contracts.StreamError when delivery itself broke (client disconnect,
// write failure, context cancellation).
func (a *StreamAdapter) Handle(ctx context.Context, writer contracts.FrameWriter) error {
	startTime := time.Now()
	var frames int64

	fiberlog.Infof("[%s] Starting SSE stream", a.requestID)

	defer func() {
		duration := time.Since(startTime)
		fiberlog.Infof("[%s] SSE stream finished: %d frames in %v", a.requestID, frames, duration)

		if err := a.chunks.Close(); err != nil {
			fiberlog.Errorf("[%s] Error closing chunk stream: %v", a.requestID, err)
		}
		if err := writer.Close(); err != nil && !contracts.IsExpectedError(err) {
			fiberlog.Errorf("[%s] Error closing frame writer: %v", a.requestID, err)
		}
	}()

	// The terminal marker goes out on every controlled exit path, error
	// frames included. A panic is not a controlled exit: it is re-raised
	// untouched so a framing contract violation stays loud instead of being
	// dressed up as a clean stream. Registered after the cleanup defer so it
	// runs before the writer is closed.
	defer func() {
		if r := recover(); r != nil {
			panic(r)
		}
		if !a.sendDone {
			return
		}
		if err := a.emit(writer, FormatFrame(FinishMessage)); err != nil {
			if contracts.IsExpectedError(err) {
				fiberlog.Debugf("[%s] Client gone before terminal marker", a.requestID)
			} else {
				fiberlog.Errorf("[%s] Failed to write terminal marker: %v", a.requestID, err)
			}
			return
		}
		frames++
	}()

	for a.chunks.Next() {
		select {
		case <-ctx.Done():
			fiberlog.Infof("[%s] Context cancelled, stopping stream", a.requestID)
			return contracts.NewClientDisconnectError(a.requestID)
		default:
		}

		if a.chunkDelay > 0 {
			select {
			case <-time.After(a.chunkDelay):
			case <-ctx.Done():
				return contracts.NewClientDisconnectError(a.requestID)
			}
		}

		frame := FormatFrame(normalizeChunk(a.chunks.Current()))
		if err := a.emit(writer, frame); err != nil {
			if contracts.IsClientDisconnect(err) {
				fiberlog.Infof("[%s] Client disconnected during chunk write", a.requestID)
			}
			return err
		}
		frames++

		if frames%100 == 0 {
			fiberlog.Debugf("[%s] Stream progress: %d frames in %v", a.requestID, frames, time.Since(startTime))
		}
	}

	if chunkErr := a.chunks.Err(); chunkErr != nil {
		// The chunk source broke. The usage future, if any, stays detached:
		// its result has nowhere meaningful to go once the stream is dead.
		a.reporter.Report(chunkErr)
		fiberlog.Errorf("[%s] Chunk stream failed: %v", a.requestID, chunkErr)

		if err := a.emit(writer, FormatFrame(map[string]any{"error": decodeFailedMessage})); err != nil {
			return err
		}
		frames++
		return nil
	}

	if a.usage != nil {
		if err := a.streamUsage(ctx, writer, &frames); err != nil {
			return err
		}
	}

	return nil
}

// streamUsage resolves the usage future and writes the closing usage frame,
// or the error frame its failure folds into.
func (a *StreamAdapter) streamUsage(ctx context.Context, writer contracts.FrameWriter, frames *int64) error {
	result, err := a.usage.Await(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// Our own context died while waiting; nothing left to deliver to.
			return contracts.NewClientDisconnectError(a.requestID)
		}

		a.reporter.Report(err)
		fiberlog.Errorf("[%s] Usage task failed: %v", a.requestID, err)

		if werr := a.emit(writer, FormatFrame(usageFailurePayload(err))); werr != nil {
			return werr
		}
		*frames++
		return nil
	}

	stats, ok := result.(*models.UsageStatistics)
	if !ok {
		typeErr := fmt.Errorf("unexpected usage task result type %T, expected *models.UsageStatistics", result)
		a.reporter.Report(typeErr)
		fiberlog.Errorf("[%s] %v", a.requestID, typeErr)

		if werr := a.emit(writer, FormatFrame(map[string]any{"error": internalFailedMessage})); werr != nil {
			return werr
		}
		*frames++
		return nil
	}

	if err := a.emit(writer, FormatFrame(stats.StreamFields())); err != nil {
		return err
	}
	*frames++
	return nil
}

// emit writes one frame and flushes it so the client observes frames as they
// are produced, never batched.
func (a *StreamAdapter) emit(writer contracts.FrameWriter, frame string) error {
	if err := writer.WriteFrame(frame); err != nil {
		return err
	}
	return writer.Flush()
}

// usageFailurePayload folds a usage task failure into its client-facing error
// payload. The recognized run failures keep their message and carry their
// code (an explicit null when the failure has none); everything else
// collapses to the generic internal failure.
func usageFailurePayload(err error) map[string]any {
	var contextWindowErr *models.ContextWindowExceededError
	if errors.As(err, &contextWindowErr) {
		return namedFailurePayload(contextWindowErr.Message, contextWindowErr.Code)
	}

	var rateLimitErr *models.RateLimitExceededError
	if errors.As(err, &rateLimitErr) {
		return namedFailurePayload(rateLimitErr.Message, rateLimitErr.Code)
	}

	return map[string]any{"error": internalFailedMessage}
}

func namedFailurePayload(message string, code models.ErrorCode) map[string]any {
	payload := map[string]any{
		"error": streamFailedPrefix + message,
		"code":  nil,
	}
	if code != "" {
		payload["code"] = string(code)
	}
	return payload
}

// normalizeChunk maps an arbitrary chunk onto a frameable payload. Structured
// records serialize their canonical field mapping, enum-like values stringify
// their underlying scalar, ready-made mappings pass through, and anything
// else is stringified opaquely. The case order is the dispatch precedence.
func normalizeChunk(chunk any) any {
	switch v := chunk.(type) {
	case contracts.StreamRecord:
		return v.StreamFields()
	case contracts.EnumValuer:
		return fmt.Sprint(v.EnumValue())
	case map[string]any:
		return v
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
