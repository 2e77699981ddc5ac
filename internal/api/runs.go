package api

import (
	"bufio"
	"time"

	"github.com/signalwork-ai/agent-relay/internal/config"
	"github.com/signalwork-ai/agent-relay/internal/services/reporting"
	"github.com/signalwork-ai/agent-relay/internal/services/runs"
	"github.com/signalwork-ai/agent-relay/internal/services/stream/contracts"
	"github.com/signalwork-ai/agent-relay/internal/services/stream/sse"
	"github.com/signalwork-ai/agent-relay/internal/services/stream/writers"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/valyala/fasthttp"
)

// RunHandler handles run requests end-to-end: request identity, body
// parsing, execution against the provider, and delivery as SSE or JSON.
type RunHandler struct {
	cfg      *config.Config
	runSvc   *runs.Service
	reqSvc   *runs.RequestService
	respSvc  *runs.ResponseService
	reporter *reporting.Reporter
}

// NewRunHandler wires up dependencies and initializes the run handler.
func NewRunHandler(
	cfg *config.Config,
	runSvc *runs.Service,
	reqSvc *runs.RequestService,
	respSvc *runs.ResponseService,
	reporter *reporting.Reporter,
) *RunHandler {
	if cfg == nil || runSvc == nil || reqSvc == nil || respSvc == nil || reporter == nil {
		panic("run handler requires all dependencies")
	}
	return &RunHandler{
		cfg:      cfg,
		runSvc:   runSvc,
		reqSvc:   reqSvc,
		respSvc:  respSvc,
		reporter: reporter,
	}
}

// CreateRun handles POST /v1/runs. With stream=true the response is an SSE
// event sequence; otherwise the run is aggregated into a single JSON body.
func (h *RunHandler) CreateRun(c *fiber.Ctx) error {
	requestID := h.reqSvc.GetRequestID(c)
	fiberlog.Infof("[%s] starting run request", requestID)

	req, err := h.reqSvc.ParseRunRequest(c)
	if err != nil {
		return h.respSvc.HandleError(c, err, requestID)
	}

	userID := h.reqSvc.GetUserID(c)
	if userID == "" {
		userID = "anonymous"
	}

	meta := runs.Meta{
		RequestID: requestID,
		RunID:     h.reqSvc.GenerateRunID(),
		UserID:    userID,
	}
	fiberlog.Infof("[%s] run %s: provider=%s model=%s stream=%t",
		requestID, meta.RunID, req.Provider, req.Model, req.Stream)

	if !req.Stream {
		resp, err := h.runSvc.Execute(c.UserContext(), req, meta)
		if err != nil {
			return h.respSvc.HandleError(c, err, requestID)
		}
		return h.respSvc.Success(c, resp)
	}

	// The fasthttp ctx outlives the fiber handler and cancels when the
	// client drops, so it drives both the provider read and SSE delivery.
	fasthttpCtx := c.Context()

	// Open the provider stream before headers: pre-stream failures still
	// get a plain HTTP error response.
	chunks, task, err := h.runSvc.Stream(fasthttpCtx, req, meta)
	if err != nil {
		return h.respSvc.HandleError(c, err, requestID)
	}

	// A nil *Task must not reach the adapter as a non-nil interface.
	var usageFuture contracts.UsageFuture
	if task != nil {
		usageFuture = task
	}

	sendDone := req.SendDoneMarker(!h.cfg.Stream.DisableDoneMarker)
	chunkDelay := time.Duration(h.cfg.Stream.ChunkDelayMs) * time.Millisecond

	h.respSvc.SetStreamHeaders(c)

	fasthttpCtx.SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		connState := writers.NewFastHTTPConnectionState(fasthttpCtx)
		frameWriter := writers.NewHTTPFrameWriter(w, connState, requestID)

		adapter := sse.NewStreamAdapter(chunks, usageFuture, h.reporter, requestID, sendDone, chunkDelay)
		if err := adapter.Handle(fasthttpCtx, frameWriter); err != nil {
			if contracts.IsExpectedError(err) {
				fiberlog.Infof("[%s] stream ended: %v", requestID, err)
			} else {
				fiberlog.Errorf("[%s] stream delivery failed: %v", requestID, err)
			}
		}
	}))

	return nil
}
