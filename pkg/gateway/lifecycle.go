package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"mercator-hq/ganymede/pkg/audit"
	"mercator-hq/ganymede/pkg/backend"
	"mercator-hq/ganymede/pkg/protocol"
	"mercator-hq/ganymede/pkg/telemetry/metrics"
)

// ManagerConfig configures the request lifecycle manager.
type ManagerConfig struct {
	// ServerName and ServerVersion are reported in the initialize result.
	ServerName    string
	ServerVersion string
}

// Manager admits parsed requests into sessions and drives them to their
// terminal responses. It enforces the ordering rules (initialize first, no
// duplicate in-flight identifiers, nothing after shutdown begins), owns the
// per-request cancellation handles, and dispatches to the completion
// backend.
type Manager struct {
	cfg      ManagerConfig
	backend  backend.Backend
	registry *Registry
	coord    *Coordinator
	logger   *slog.Logger
	metrics  *metrics.Collector
	recorder *audit.Recorder
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithMetrics attaches a metrics collector.
func WithMetrics(collector *metrics.Collector) ManagerOption {
	return func(m *Manager) { m.metrics = collector }
}

// WithAuditRecorder attaches an audit recorder.
func WithAuditRecorder(recorder *audit.Recorder) ManagerOption {
	return func(m *Manager) { m.recorder = recorder }
}

// NewManager creates a request lifecycle manager.
func NewManager(cfg ManagerConfig, bk backend.Backend, registry *Registry, coord *Coordinator, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		cfg:      cfg,
		backend:  bk,
		registry: registry,
		coord:    coord,
		logger:   logger.With("component", "gateway.lifecycle"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// pending is the bookkeeping for one admitted request. Its terminal
// resolution runs exactly once regardless of which path gets there first.
type pending struct {
	sess   *Session
	id     json.RawMessage
	idKey  string
	method string
	start  time.Time
	cancel context.CancelFunc
	done   atomic.Bool

	// Stream accounting for the audit record.
	chunks int
	model  string
	usage  *backend.TokenUsage
}

// Admit routes one parsed message into the session. Responses are emitted
// through the session's Sender; Admit itself never blocks on the backend.
func (m *Manager) Admit(sess *Session, req *protocol.Request) {
	sess.Touch()

	if req.IsNotification() {
		m.handleNotification(sess, req)
		return
	}

	// Ordering preconditions. Failures here have no side effects: nothing
	// was registered, so the identifier stays free.
	if m.coord != nil && m.coord.Draining() {
		m.send(sess, protocol.NewError(req.ID, protocol.CodeShuttingDown,
			"gateway is shutting down", nil))
		return
	}
	if !sess.Initialized() && req.Method != protocol.MethodInitialize {
		m.send(sess, protocol.NewError(req.ID, protocol.CodeNotInitialized,
			"connection is not initialized", nil))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	idKey := req.IDKey()

	if _, errObj := sess.register(idKey, cancel); errObj != nil {
		cancel()
		m.send(sess, protocol.NewError(req.ID, errObj.Code, errObj.Message, nil))
		return
	}

	if m.metrics != nil {
		m.metrics.RequestAdmitted()
	}

	p := &pending{
		sess:   sess,
		id:     req.ID,
		idKey:  idKey,
		method: req.Method,
		start:  time.Now(),
		cancel: cancel,
	}

	// Synchronous handlers run on the caller's goroutine; a panic in one
	// must still resolve the request.
	defer m.recoverPanic(p)

	switch req.Method {
	case protocol.MethodInitialize:
		m.handleInitialize(p, req)
	case protocol.MethodGenerate:
		params, ok := m.parseGenerateParams(p, req)
		if !ok {
			return
		}
		go m.runGenerate(ctx, p, params)
	case protocol.MethodStream:
		params, ok := m.parseGenerateParams(p, req)
		if !ok {
			return
		}
		go m.runStream(ctx, p, params)
	case protocol.MethodCancel:
		m.handleCancel(p, req)
	case protocol.MethodConfigure:
		m.handleConfigure(p, req)
	case protocol.MethodShutdown:
		m.handleShutdown(p)
	default:
		m.resolveError(p, protocol.CodeMethodNotFound, "method not found: "+req.Method)
	}
}

// Cancel triggers the cancellation handle for a request on the given
// session. Returns false when the identifier is not in flight.
func (m *Manager) Cancel(sess *Session, idKey string) bool {
	return sess.CancelRequest(idKey)
}

// handleNotification serves messages that expect no response.
func (m *Manager) handleNotification(sess *Session, req *protocol.Request) {
	switch req.Method {
	case protocol.MethodShutdown:
		if m.coord != nil {
			m.coord.Trigger("client shutdown notification")
		}
	case protocol.MethodExit:
		m.logger.Info("client exit", "connection_id", sess.ID.String())
		m.registry.Remove(sess.ID, "client_exit")
	default:
		// Unknown notifications are dropped: there is no identifier to
		// attach an error to.
		m.logger.Debug("ignoring unknown notification",
			"connection_id", sess.ID.String(),
			"method", req.Method,
		)
	}
}

// handleInitialize completes the handshake and returns the capability
// descriptor.
func (m *Manager) handleInitialize(p *pending, req *protocol.Request) {
	var params protocol.InitializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			m.resolveError(p, protocol.CodeInvalidParams, "invalid initialize params")
			return
		}
	}

	if errObj := p.sess.Initialize(); errObj != nil {
		m.resolveError(p, errObj.Code, errObj.Message)
		return
	}

	if params.ClientInfo != nil {
		m.logger.Info("connection initialized",
			"connection_id", p.sess.ID.String(),
			"client_name", params.ClientInfo.Name,
			"client_version", params.ClientInfo.Version,
		)
	} else {
		m.logger.Info("connection initialized", "connection_id", p.sess.ID.String())
	}

	m.resolveResult(p, &protocol.InitializeResult{
		ProtocolVersion: protocol.ProtocolVersion,
		ServerInfo: protocol.ServerInfo{
			Name:    m.cfg.ServerName,
			Version: m.cfg.ServerVersion,
		},
		Capabilities: protocol.Capabilities{
			Generate:  true,
			Stream:    true,
			Cancel:    true,
			Configure: true,
		},
	})
}

// parseGenerateParams validates the shared generate/stream parameters,
// resolving the request with InvalidParams on failure.
func (m *Manager) parseGenerateParams(p *pending, req *protocol.Request) (*protocol.GenerateParams, bool) {
	var params protocol.GenerateParams
	if len(req.Params) == 0 {
		m.resolveError(p, protocol.CodeInvalidParams, "params are required")
		return nil, false
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		m.resolveError(p, protocol.CodeInvalidParams, "invalid params: "+err.Error())
		return nil, false
	}
	if params.Prompt == "" {
		m.resolveError(p, protocol.CodeInvalidParams, "prompt is required")
		return nil, false
	}
	if params.Temperature != nil && (*params.Temperature < 0 || *params.Temperature > 2) {
		m.resolveError(p, protocol.CodeInvalidParams, "temperature must be between 0 and 2")
		return nil, false
	}
	if params.MaxTokens != nil && *params.MaxTokens <= 0 {
		m.resolveError(p, protocol.CodeInvalidParams, "maxTokens must be positive")
		return nil, false
	}
	return &params, true
}

// runGenerate serves one non-streaming completion.
func (m *Manager) runGenerate(ctx context.Context, p *pending, params *protocol.GenerateParams) {
	defer m.recoverPanic(p)

	creq := &backend.CompletionRequest{
		Prompt:        params.Prompt,
		Model:         params.Model,
		Temperature:   params.Temperature,
		MaxTokens:     params.MaxTokens,
		StopSequences: params.StopSequences,
	}

	callStart := time.Now()
	comp, err := m.backend.Complete(ctx, creq)
	m.observeBackendCall(callStart, err)

	if err != nil {
		if isCancellation(ctx, err) {
			m.resolveCancelled(p)
			return
		}
		code, msg := wireError(err)
		m.resolveError(p, code, msg)
		return
	}

	p.model = comp.Model
	p.usage = &comp.Usage
	m.resolveResult(p, &protocol.GenerateResult{
		Content:     comp.Content,
		Model:       comp.Model,
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
	})
}

// runStream serves one streaming completion: intermediate responses per
// chunk, exactly one terminal response. Cancellation is observed at chunk
// boundaries.
func (m *Manager) runStream(ctx context.Context, p *pending, params *protocol.GenerateParams) {
	defer m.recoverPanic(p)

	creq := &backend.CompletionRequest{
		Prompt:        params.Prompt,
		Model:         params.Model,
		Temperature:   params.Temperature,
		MaxTokens:     params.MaxTokens,
		StopSequences: params.StopSequences,
	}

	callStart := time.Now()
	chunks, err := m.backend.CompleteStream(ctx, creq)
	if err != nil {
		m.observeBackendCall(callStart, err)
		if isCancellation(ctx, err) {
			m.resolveCancelled(p)
			return
		}
		code, msg := wireError(err)
		m.resolveError(p, code, msg)
		return
	}

	for {
		// Cancellation wins over a ready chunk so the client sees the
		// cancelled terminal promptly after requesting it.
		if ctx.Err() != nil {
			m.observeBackendCall(callStart, ctx.Err())
			m.resolveCancelled(p)
			return
		}

		select {
		case <-ctx.Done():
			m.observeBackendCall(callStart, ctx.Err())
			m.resolveCancelled(p)
			return

		case chunk, ok := <-chunks:
			if !ok {
				// Natural exhaustion: the single terminal response.
				m.observeBackendCall(callStart, nil)
				m.resolveResult(p, &protocol.StreamResult{Content: "", Done: true})
				return
			}

			if chunk.Err != nil {
				m.observeBackendCall(callStart, chunk.Err)
				if isCancellation(ctx, chunk.Err) {
					m.resolveCancelled(p)
					return
				}
				code, msg := wireError(chunk.Err)
				m.resolveError(p, code, msg)
				return
			}

			if chunk.Usage != nil {
				p.usage = chunk.Usage
			}
			if chunk.Delta == "" {
				continue
			}

			resp := protocol.NewResult(p.id, &protocol.StreamResult{
				Content: chunk.Delta,
				Done:    false,
			})
			if err := p.sess.Sender().Send(resp); err != nil {
				// Transport is gone; the registry cascade handles the
				// connection. Resolve locally to release the identifier.
				m.observeBackendCall(callStart, err)
				m.resolveError(p, protocol.CodeInternalError, "connection lost")
				return
			}
			p.chunks++
			if m.metrics != nil {
				m.metrics.ChunkEmitted()
			}
		}
	}
}

// handleCancel triggers the handle of another in-flight request on the same
// connection. Cancel is idempotent: a missing target means the operation
// already resolved, and that is still success.
func (m *Manager) handleCancel(p *pending, req *protocol.Request) {
	var params protocol.CancelParams
	if len(req.Params) == 0 {
		m.resolveError(p, protocol.CodeInvalidParams, "params are required")
		return
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		m.resolveError(p, protocol.CodeInvalidParams, "invalid params: "+err.Error())
		return
	}
	if len(params.RequestID) == 0 {
		m.resolveError(p, protocol.CodeInvalidParams, "requestId is required")
		return
	}

	targetKey := protocol.IDKey(params.RequestID)
	triggered := m.Cancel(p.sess, targetKey)

	m.logger.Debug("cancel requested",
		"connection_id", p.sess.ID.String(),
		"target", targetKey,
		"triggered", triggered,
	)

	m.resolveResult(p, &protocol.CancelResult{Cancelled: true})
}

// handleConfigure acknowledges per-connection settings. Settings are
// accepted but do not mutate shared generation defaults.
func (m *Manager) handleConfigure(p *pending, req *protocol.Request) {
	var params protocol.ConfigureParams
	if len(req.Params) == 0 {
		m.resolveError(p, protocol.CodeInvalidParams, "params are required")
		return
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		m.resolveError(p, protocol.CodeInvalidParams, "invalid params: "+err.Error())
		return
	}
	if params.Configuration == nil {
		m.resolveError(p, protocol.CodeInvalidParams, "configuration object is required")
		return
	}

	m.resolveResult(p, &protocol.ConfigureResult{Accepted: true})
}

// handleShutdown acknowledges the request and begins the drain sequence.
func (m *Manager) handleShutdown(p *pending) {
	m.resolveResult(p, struct{}{})
	if m.coord != nil {
		m.coord.Trigger("client shutdown request")
	}
}

// recoverPanic converts a panic in a dispatch goroutine into an internal
// error terminal response. The panic details stay server-side.
func (m *Manager) recoverPanic(p *pending) {
	if r := recover(); r != nil {
		m.logger.Error("panic in request handler",
			"connection_id", p.sess.ID.String(),
			"method", p.method,
			"panic", r,
			"stack", string(debug.Stack()),
		)
		m.resolveError(p, protocol.CodeInternalError, "internal error")
	}
}

// resolveResult emits the successful terminal response.
func (m *Manager) resolveResult(p *pending, result any) {
	m.finish(p, protocol.NewResult(p.id, result), audit.StatusOK, 0)
}

// resolveError emits an error terminal response.
func (m *Manager) resolveError(p *pending, code int, message string) {
	status := audit.StatusError
	if code == protocol.CodeRequestCancelled {
		status = audit.StatusCancelled
	}
	m.finish(p, protocol.NewError(p.id, code, message, nil), status, code)
}

// resolveCancelled emits the cancelled terminal response.
func (m *Manager) resolveCancelled(p *pending) {
	m.resolveError(p, protocol.CodeRequestCancelled, "request cancelled")
}

// finish performs the exactly-once terminal resolution: remove the in-flight
// entry, emit the response, release the cancellation context, record metrics
// and the audit record.
func (m *Manager) finish(p *pending, resp *protocol.Response, status string, errCode int) {
	if !p.done.CompareAndSwap(false, true) {
		return
	}

	if err := p.sess.resolve(p.idKey, resp); err != nil {
		m.logger.Debug("terminal response not delivered",
			"connection_id", p.sess.ID.String(),
			"request_id", p.idKey,
			"error", err,
		)
	}
	p.cancel()

	duration := time.Since(p.start)
	if m.metrics != nil {
		m.metrics.RequestResolved(p.method, status, duration)
	}

	if m.recorder != nil {
		rec := &audit.Record{
			ConnectionID: p.sess.ID.String(),
			RequestID:    p.idKey,
			Method:       p.method,
			Status:       status,
			ErrorCode:    errCode,
			Model:        p.model,
			Chunks:       p.chunks,
			Duration:     duration,
		}
		if p.usage != nil {
			rec.PromptTokens = p.usage.PromptTokens
			rec.CompletionTokens = p.usage.CompletionTokens
			rec.TotalTokens = p.usage.TotalTokens
		}
		m.recorder.Record(rec)
	}
}

// observeBackendCall records backend call metrics and keeps the health gauge
// current.
func (m *Manager) observeBackendCall(start time.Time, err error) {
	if m.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.metrics.BackendRequest(m.backend.Name(), status, time.Since(start))
}

// send writes a response outside the in-flight bookkeeping (precondition
// failures that never registered a handle).
func (m *Manager) send(sess *Session, resp *protocol.Response) {
	if err := sess.Sender().Send(resp); err != nil {
		m.logger.Debug("response not delivered",
			"connection_id", sess.ID.String(),
			"error", err,
		)
	}
}
