// SPDX-License-Identifier: MIT
//
// File: engine.go
// Role: Thin, deterministic public facade wiring ingest → edges → wave →
// output into one serialized processing pass, plus the programmatic
// lifecycle (create/open/close/save). No algorithms live here — see
// ingest/edges/wave/output/persist for those.
// AI-HINT (file):
//   - ProcessInput is the ONLY entry point that advances the graph; it
//     holds passMu for its entire body, so one logical processing pass
//     is always serialized with respect to the graph.
package melvin

import (
	"fmt"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/Jak3Gil/melvin/edges"
	"github.com/Jak3Gil/melvin/graph"
	"github.com/Jak3Gil/melvin/ingest"
	"github.com/Jak3Gil/melvin/output"
	"github.com/Jak3Gil/melvin/persist"
	"github.com/Jak3Gil/melvin/port"
	"github.com/Jak3Gil/melvin/wave"
)

// Engine is the top-level handle over one knowledge file: lifecycle
// (Create/Open/Close/Save), the universal input/output buffers, and the
// processing pass that grows the graph.
type Engine struct {
	passMu sync.Mutex

	path   string
	store  *persist.Store
	graph  *graph.Graph
	logger *zap.Logger
	router *port.Router

	input  *port.Buffer
	output *port.Buffer

	workers       int
	skippedFrames uint64
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithLogger overrides the engine's structured logger. Defaults to
// zap.NewNop() so a caller who never wires logging pays no cost.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithFilesystem overrides the afero.Fs used for Save/Open, for tests
// that want an afero.NewMemMapFs() instead of the real disk.
func WithFilesystem(fs afero.Fs) Option {
	return func(e *Engine) { e.store.Fs = fs }
}

// WithWorkers raises the fan-out of the read-only batch computations in
// wave propagation. The default is 1, the single-writer-safe minimum; a
// caller that knows its core count may pass runtime.GOMAXPROCS(0).
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

func newEngine(path string, opts ...Option) *Engine {
	e := &Engine{
		path:    path,
		store:   &persist.Store{Fs: afero.NewOsFs()},
		graph:   graph.New(),
		logger:  zap.NewNop(),
		router:  port.NewRouter(),
		input:   port.NewBuffer(),
		output:  port.NewBuffer(),
		workers: 1,
	}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Create initializes a brand-new, empty knowledge graph bound to path.
// The file is not written until the first Save: saves happen on explicit
// request or graceful shutdown, not at creation.
func Create(path string, opts ...Option) *Engine {
	e := newEngine(path, opts...)
	e.logger.Info("created knowledge graph", zap.String("path", path))

	return e
}

// Open loads an existing knowledge file from path. A format error
// aborts the load and no partially-built graph is retained.
func Open(path string, opts ...Option) (*Engine, error) {
	e := newEngine(path, opts...)
	g, _, err := e.store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("melvin: open %s: %w", path, err)
	}
	e.graph = g
	e.logger.Info("opened knowledge graph",
		zap.String("path", path),
		zap.Int("nodes", g.NodeCount()),
		zap.Int("edges", g.EdgeCount()),
	)

	return e, nil
}

// Close releases e's in-memory resources. Close does not save; callers
// that want a graceful shutdown to persist state must call Save first —
// the shutdown policy belongs to the driver, not the engine.
func (e *Engine) Close() error {
	e.passMu.Lock()
	defer e.passMu.Unlock()
	e.logger.Info("closed knowledge graph", zap.String("path", e.path))

	return nil
}

// Save writes e's current graph state to its knowledge file via
// write-to-temp, fsync, rename, so a crash mid-save leaves the previous
// file intact.
func (e *Engine) Save() error {
	e.passMu.Lock()
	defer e.passMu.Unlock()

	if err := e.store.Save(e.path, e.graph, nowUnix()); err != nil {
		return fmt.Errorf("melvin: save %s: %w", e.path, err)
	}
	e.logger.Info("saved knowledge graph",
		zap.String("path", e.path),
		zap.Uint64("adaptation_count", e.graph.AdaptationCount()),
	)

	return nil
}

// AdaptationCount returns the number of processing passes applied to the
// graph so far.
func (e *Engine) AdaptationCount() uint64 { return e.graph.AdaptationCount() }

// NodeCount returns the number of nodes currently in the graph.
func (e *Engine) NodeCount() int { return e.graph.NodeCount() }

// EdgeCount returns the number of edges currently in the graph.
func (e *Engine) EdgeCount() int { return e.graph.EdgeCount() }

// IsDirty reports whether the graph has unsaved changes.
func (e *Engine) IsDirty() bool { return e.graph.Dirty() }

// SkippedFrameCount returns the number of frames this engine has
// skipped due to a framing error. A skipped frame never corrupts a later
// one.
func (e *Engine) SkippedFrameCount() uint64 {
	e.passMu.Lock()
	defer e.passMu.Unlock()

	return e.skippedFrames
}

// Router exposes the engine's input-port-id → output-port-id routing
// table for a driver to configure.
func (e *Engine) Router() *port.Router { return e.router }

// UniversalInputWrite appends bytes (one or more framed records) to the
// universal input buffer. It does not process them; call ProcessInput to
// consume the buffer.
func (e *Engine) UniversalInputWrite(b []byte) {
	e.passMu.Lock()
	defer e.passMu.Unlock()
	e.input.Write(b)
}

// UniversalOutputRead copies up to len(into) unread bytes from the
// universal output buffer into into, returning the count copied. Returns
// 0, nil when no output is currently buffered: "no data now", not EOF.
func (e *Engine) UniversalOutputRead(into []byte) (int, error) {
	e.passMu.Lock()
	defer e.passMu.Unlock()

	return e.output.Read(into)
}

// ProcessInput consumes one framed record from the universal input
// buffer and runs the full ingest → edges → wave → output pass against
// it, serialized by passMu. Returns false with no error when the input
// buffer is empty, or when the frame at its front fails to parse: an
// incomplete frame is not kept for a later write but skipped and
// counted, never corrupting the graph.
func (e *Engine) ProcessInput() (bool, error) {
	e.passMu.Lock()
	defer e.passMu.Unlock()

	frame, ok := e.nextFrame()
	if !ok {
		return false, nil
	}

	pass := ingest.Ingest(e.graph, frame.Data)
	if err := edges.Form(e.graph, pass); err != nil {
		return false, fmt.Errorf("melvin: edge formation: %w", err)
	}

	waveRes, err := wave.Propagate(e.graph, pass.Sequence, e.workers)
	if err != nil {
		return false, fmt.Errorf("melvin: wave propagation: %w", err)
	}

	e.graph.IncrementAdaptation()

	if readiness := output.Readiness(pass.Sequence); readiness > 0 {
		continuation := output.Collect(e.graph, pass.Sequence)
		e.routeOutput(frame.PortID, continuation)
	}

	e.logger.Debug("processed frame",
		zap.Uint8("port_id", frame.PortID),
		zap.Int("bytes", len(frame.Data)),
		zap.Int("nodes_created", pass.NodesCreated),
		zap.Int("wave_steps", waveRes.Steps),
		zap.Int("hierarchy_nodes", waveRes.HierarchyNodes),
	)

	return true, nil
}

// nextFrame pulls and decodes one frame from the front of the input
// buffer. A framing error drains the whole remaining buffer (frame
// boundaries cannot be recovered once a length prefix is untrustworthy)
// and counts the skip.
func (e *Engine) nextFrame() (*port.Frame, bool) {
	if e.input.Len() == 0 {
		return nil, false
	}

	raw := make([]byte, e.input.Len())
	n, _ := e.input.Read(raw)
	raw = raw[:n]

	reader := &byteReader{data: raw}
	frame, err := port.ReadFrame(reader)
	if err != nil {
		e.skippedFrames++
		e.logger.Warn("skipped unparseable frame", zap.Error(err))

		return nil, false
	}

	// Re-buffer whatever ReadFrame did not consume, so a subsequent
	// ProcessInput call picks up the next frame in the same write.
	if reader.pos < len(raw) {
		e.input.Write(raw[reader.pos:])
	}

	return frame, true
}

// routeOutput appends a collected continuation to the universal output
// buffer as raw bytes, addressed to the output port routed from the
// frame's input port (the router default is the input port itself).
func (e *Engine) routeOutput(inputPort uint8, continuation []byte) {
	if len(continuation) == 0 {
		return
	}
	outPort, ok := e.router.OutputPort(inputPort)
	if !ok {
		outPort = inputPort
	}
	e.output.Write(continuation)
	e.logger.Debug("routed continuation",
		zap.Uint8("input_port", inputPort),
		zap.Uint8("output_port", outPort),
		zap.Int("bytes", len(continuation)),
	)
}
