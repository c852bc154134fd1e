package tether

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/pipz"
	"golang.org/x/text/encoding"
)

// Document binds an in-memory tree of maps, slices, and scalars to a
// destination file. Mutations performed through the tree's Node handles
// are observed and persisted as whole-file overwrites, either blocking
// the mutating call or scheduled on the document's writer.
//
// At most one Document observes a given root at a time; React replaces,
// never stacks, observation.
type Document struct {
	path     string
	format   string
	codec    Codec
	enc      encoding.Encoding
	async    bool
	deep     bool
	reactive bool
	debounce time.Duration
	clock    clockz.Clock
	metrics  MetricsProvider
	fileMode os.FileMode
	pipeline pipz.Chainable[*SaveRequest]

	mu   sync.RWMutex
	root any
	gen  uint64 // bumped on every observed mutation

	// savemu is the per-path critical section: no two writes to the
	// bound file ever run concurrently.
	savemu    sync.Mutex
	lastWrite atomic.Pointer[[]byte]

	state   atomic.Int32
	lastErr atomic.Pointer[error]
	ring    *errorRing
	errs    chan error

	dirtyc    chan struct{}
	done      chan struct{}
	flushed   chan struct{}
	closeOnce sync.Once
}

// newDocument wires a validated root and config into a running document.
func newDocument(root any, path, format string, codec Codec, cfg config) *Document {
	d := &Document{
		path:     path,
		format:   format,
		codec:    codec,
		enc:      cfg.encoding,
		async:    cfg.async,
		deep:     cfg.deep,
		reactive: cfg.reactive,
		debounce: cfg.debounce,
		clock:    cfg.clock,
		metrics:  cfg.metrics,
		fileMode: cfg.fileMode,
		root:     root,
		ring:     newErrorRing(cfg.ringSize),
		errs:     make(chan error, 8),
		dirtyc:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		flushed:  make(chan struct{}),
	}
	d.state.Store(int32(StateClean))
	d.pipeline = buildSavePipeline(pipz.Apply("save-write", d.write), cfg.saveOpts)
	go d.writeLoop()
	return d
}

// Path returns the bound destination path.
func (d *Document) Path() string { return d.path }

// Format returns the document's format identifier.
func (d *Document) Format() string { return d.format }

// State returns the current persistence state.
func (d *Document) State() State {
	return State(d.state.Load())
}

// LastError returns the last save error, or nil if the last save
// succeeded or none has run.
func (d *Document) LastError() error {
	ptr := d.lastErr.Load()
	if ptr == nil {
		return nil
	}
	return *ptr
}

// ErrorHistory returns recent save errors, oldest first.
// Returns nil unless WithErrorHistory enabled retention.
func (d *Document) ErrorHistory() []error {
	return d.ring.recent()
}

// Errors returns the channel on which non-blocking save failures are
// delivered. Delivery never blocks the writer: if the channel is full the
// error is still retained via LastError, ErrorHistory, the degraded
// state, and the DocumentSaveFailed signal.
func (d *Document) Errors() <-chan error {
	return d.errs
}

// Root returns the observed handle over the document's root container.
func (d *Document) Root() Node {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if m, ok := d.root.(map[string]any); ok {
		return Node{doc: d, live: true, m: m}
	}
	return Node{doc: d, live: true}
}

// Raw returns the underlying root container. Mutations performed directly
// on it are not observed; call React to re-arm observation and Save to
// persist them.
func (d *Document) Raw() any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.root
}

// Replace swaps the entire root container and notifies, persisting the
// new tree according to the save policy.
func (d *Document) Replace(root any) error {
	root, err := normalizeTree(unwrapValue(root))
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.root = root
	d.gen++
	d.mu.Unlock()
	return d.changed()
}

// React re-establishes observation over the current root, replacing any
// prior observation. Use it after bulk-mutating the tree through Raw, or
// after splicing foreign subtrees in through a non-observed path: stray
// handles are unwrapped and the returned root handle observes the result.
// Calling React repeatedly is idempotent and never duplicates
// notifications, since handles route through a single per-document sink.
func (d *Document) React() (Node, error) {
	// Normalizing unwraps handles, which read-lock their owning document;
	// run it outside the write lock so a stray handle to this document
	// cannot deadlock. Mutation is single-threaded by contract.
	root, err := normalizeTree(d.Raw())
	if err != nil {
		return Node{}, err
	}
	d.mu.Lock()
	d.root = root
	d.mu.Unlock()
	capitan.Emit(context.Background(), DocumentReactArmed,
		KeyPath.Field(d.path),
		KeyFormat.Field(d.format),
	)
	return d.Root(), nil
}

// changed handles one observed mutation: state bookkeeping, signals,
// metrics, then persistence per the save policy. The mutation has already
// taken effect on the tree, so the snapshot written reflects it.
func (d *Document) changed() error {
	if !d.reactive {
		return nil
	}
	ctx := context.Background()
	d.transition(ctx, StateDirty)
	capitan.Emit(ctx, DocumentChangeDetected, KeyPath.Field(d.path))
	if d.metrics != nil {
		d.metrics.OnChangeDetected()
	}
	if d.async {
		d.schedule(ctx)
		return nil
	}
	return d.SaveNow(ctx)
}

// Save schedules a non-blocking write of the current tree, even absent a
// triggering mutation. Failures surface via Errors, LastError, and the
// degraded state.
func (d *Document) Save() {
	d.schedule(context.Background())
}

// SaveNow writes the current tree before returning, propagating failures
// synchronously. Use it as a forced flush before shutdown.
func (d *Document) SaveNow(ctx context.Context) error {
	d.savemu.Lock()
	defer d.savemu.Unlock()
	return d.writeSnapshot(ctx)
}

// Close flushes any pending scheduled save and stops the writer.
// Flush failures surface through the usual non-blocking channels.
func (d *Document) Close(ctx context.Context) error {
	d.closeOnce.Do(func() { close(d.done) })
	select {
	case <-d.flushed:
	case <-ctx.Done():
		return ctx.Err()
	}
	capitan.Emit(ctx, DocumentClosed,
		KeyPath.Field(d.path),
		KeyState.Field(d.State().String()),
	)
	return nil
}

// schedule queues a save for the writer. A token already in flight means
// a save is pending; it will serialize the tree as of write time, so the
// change is covered (last write wins).
func (d *Document) schedule(ctx context.Context) {
	select {
	case <-d.done:
		// Scheduled after Close: must fail observably, never silently.
		d.setError(ErrClosed)
		d.transition(ctx, StateDegraded)
		select {
		case d.errs <- ErrClosed:
		default:
		}
		return
	default:
	}
	select {
	case d.dirtyc <- struct{}{}:
		capitan.Emit(ctx, DocumentSaveScheduled, KeyPath.Field(d.path))
	default:
	}
}

// writeLoop runs scheduled saves one at a time, optionally debouncing
// bursts of mutations into a single write.
func (d *Document) writeLoop() {
	defer close(d.flushed)
	ctx := context.Background()

	var (
		timer   clockz.Timer
		pending bool
	)

	for {
		var timerC <-chan time.Time
		if timer != nil {
			timerC = timer.C()
		}

		select {
		case <-d.done:
			if timer != nil {
				timer.Stop()
			}
			select {
			case <-d.dirtyc:
				pending = true
			default:
			}
			if pending {
				d.runSave(ctx)
			}
			return

		case <-d.dirtyc:
			if d.debounce <= 0 {
				d.runSave(ctx)
				continue
			}
			pending = true
			if timer == nil {
				timer = d.clock.NewTimer(d.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C():
					default:
					}
				}
				timer.Reset(d.debounce)
			}

		case <-timerC:
			if pending {
				d.runSave(ctx)
				pending = false
			}
		}
	}
}

// runSave executes one serialized write and surfaces failures out-of-band.
func (d *Document) runSave(ctx context.Context) {
	d.savemu.Lock()
	err := d.writeSnapshot(ctx)
	d.savemu.Unlock()
	if err != nil {
		select {
		case d.errs <- err:
		default:
		}
	}
}

// writeSnapshot encodes the current tree and writes it through the save
// pipeline. Callers must hold savemu.
func (d *Document) writeSnapshot(ctx context.Context) error {
	start := d.clock.Now()

	d.mu.RLock()
	gen := d.gen
	data, err := d.codec.Marshal(d.root)
	d.mu.RUnlock()
	if err != nil {
		encErr := &EncodeError{Format: d.format, Err: err}
		d.saveFailed(ctx, "encode", encErr, start)
		return encErr
	}

	if d.enc != nil {
		data, err = d.enc.NewEncoder().Bytes(data)
		if err != nil {
			stErr := &StorageError{Op: "transcode", Path: d.path, Err: err}
			d.saveFailed(ctx, "encode", stErr, start)
			return stErr
		}
	}

	req := &SaveRequest{Path: d.path, Format: d.format, Data: data, Mode: d.fileMode}
	if _, err := d.pipeline.Process(ctx, req); err != nil {
		d.saveFailed(ctx, "write", err, start)
		return err
	}

	d.lastWrite.Store(&data)
	d.saveSucceeded(ctx, gen, len(data), start)
	return nil
}

// write is the terminal save pipeline stage: ensure the destination
// directory exists, then replace the file contents.
func (d *Document) write(_ context.Context, req *SaveRequest) (*SaveRequest, error) {
	dir := filepath.Dir(req.Path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return req, &StorageError{Op: "mkdir", Path: dir, Err: err}
		}
	}
	if err := os.WriteFile(req.Path, req.Data, req.Mode); err != nil {
		return req, &StorageError{Op: "write", Path: req.Path, Err: err}
	}
	return req, nil
}

// saveSucceeded records a durable write. The state only returns to clean
// when no mutation arrived after the snapshot was taken.
func (d *Document) saveSucceeded(ctx context.Context, gen uint64, n int, start time.Time) {
	d.lastErr.Store(nil)
	d.ring.reset()

	d.mu.RLock()
	current := d.gen
	d.mu.RUnlock()
	if current == gen {
		d.transition(ctx, StateClean)
	}

	capitan.Emit(ctx, DocumentSaveSucceeded,
		KeyPath.Field(d.path),
		KeyFormat.Field(d.format),
		KeyBytes.Field(n),
	)
	if d.metrics != nil {
		d.metrics.OnSaveSuccess(d.clock.Since(start))
	}
}

// saveFailed records a failed save attempt. Prior on-disk content is
// untouched; the in-memory tree remains authoritative.
func (d *Document) saveFailed(ctx context.Context, stage string, err error, start time.Time) {
	d.setError(err)
	d.transition(ctx, StateDegraded)
	capitan.Emit(ctx, DocumentSaveFailed,
		KeyPath.Field(d.path),
		KeyStage.Field(stage),
		KeyError.Field(err.Error()),
	)
	if d.metrics != nil {
		d.metrics.OnSaveFailure(stage, d.clock.Since(start))
	}
}

// setError stores an error atomically and adds it to the error history.
func (d *Document) setError(err error) {
	e := err
	d.lastErr.Store(&e)
	d.ring.record(err)
}

// transition updates the state and emits a state change event if changed.
func (d *Document) transition(ctx context.Context, to State) {
	for {
		old := State(d.state.Load())
		if old == to {
			return
		}
		if d.state.CompareAndSwap(int32(old), int32(to)) {
			capitan.Emit(ctx, DocumentStateChanged,
				KeyPath.Field(d.path),
				KeyOldState.Field(old.String()),
				KeyNewState.Field(to.String()),
			)
			if d.metrics != nil {
				d.metrics.OnStateChange(old, to)
			}
			return
		}
	}
}

// lastWritten returns the bytes of the last successful save, or nil.
func (d *Document) lastWritten() []byte {
	ptr := d.lastWrite.Load()
	if ptr == nil {
		return nil
	}
	return *ptr
}
