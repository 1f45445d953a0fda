package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/scrypster/recall/internal/storage"
	"github.com/scrypster/recall/pkg/types"
)

// Engine is the core orchestrator for conversation memory. It provides
// fire-and-forget Ingest() over a bounded queue and worker pool, and
// RetrieveAndAssemble() which never blocks past its read deadline: on
// expiry the caller gets an empty context, not an error.
type Engine struct {
	config Config

	store storage.GraphStore

	// Ingestion pipeline
	ingestQueue     chan *IngestJob
	workerWaitGroup sync.WaitGroup
	workerCtx       context.Context
	workerCancel    context.CancelFunc

	// State management
	started      bool
	shuttingDown bool
	mu           sync.RWMutex

	// Callbacks
	onEventStored   func(kind types.EventKind, ref string)
	onEventDropped  func(kind types.EventKind, reason string)
	onContextServed func(lane string, contextUsed bool)
}

// NewEngine creates a new memory engine over the given graph store.
// Use DefaultConfig() for sensible defaults.
func NewEngine(store storage.GraphStore, config Config) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("graph store is required")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Engine{
		config:      config,
		store:       store,
		ingestQueue: make(chan *IngestJob, config.QueueSize),
	}, nil
}

// SetOnEventStored sets a callback fired after an event is persisted.
// The ref identifies the stored node (contact key, URL or lane ID).
func (e *Engine) SetOnEventStored(callback func(kind types.EventKind, ref string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onEventStored = callback
}

// SetOnEventDropped sets a callback fired when an event is dropped
// (validation failure, full queue, or exhausted retries).
func (e *Engine) SetOnEventDropped(callback func(kind types.EventKind, reason string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onEventDropped = callback
}

// SetOnContextServed sets a callback fired after each retrieval, useful
// for broadcasting activity to UI clients.
func (e *Engine) SetOnContextServed(callback func(lane string, contextUsed bool)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onContextServed = callback
}

// Start starts the engine and its worker pool. It must be called before
// Ingest() or RetrieveAndAssemble().
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return fmt.Errorf("engine already started")
	}

	log.Println("Starting memory engine...")

	e.workerCtx, e.workerCancel = context.WithCancel(ctx)
	for i := 0; i < e.config.NumWorkers; i++ {
		e.workerWaitGroup.Add(1)
		go e.ingestWorker(e.workerCtx, i)
	}

	e.started = true
	log.Printf("Memory engine started with %d ingest workers", e.config.NumWorkers)
	return nil
}

// Ingest validates the event and enqueues it for asynchronous persistence,
// returning immediately. It reports whether the event was accepted:
// invalid events and events arriving on a full queue are dropped and
// logged, never surfaced as caller errors.
func (e *Engine) Ingest(event types.Event) bool {
	e.mu.RLock()
	canQueue := e.started && !e.shuttingDown
	e.mu.RUnlock()
	if !canQueue {
		return false
	}

	if err := event.Validate(); err != nil {
		log.Printf("Dropping invalid %s event: %v", event.Kind(), err)
		e.notifyDropped(event.Kind(), "validation: "+err.Error())
		return false
	}

	return e.queueJob(&IngestJob{Event: event, Timestamp: time.Now()})
}

// queueJob enqueues without blocking. A full queue drops the job. The
// state check and the send share the read lock so a send can never race
// Shutdown closing the queue; worker retries during the drain are dropped
// here instead of panicking on the closed channel.
func (e *Engine) queueJob(job *IngestJob) bool {
	e.mu.RLock()
	if !e.started || e.shuttingDown {
		e.mu.RUnlock()
		log.Printf("Engine shutting down, dropping %s event", job.Event.Kind())
		e.notifyDropped(job.Event.Kind(), "shutting down")
		return false
	}
	select {
	case e.ingestQueue <- job:
		e.mu.RUnlock()
		return true
	default:
		e.mu.RUnlock()
		log.Printf("Ingest queue full, dropping %s event", job.Event.Kind())
		e.notifyDropped(job.Event.Kind(), "queue full")
		return false
	}
}

// RetrieveAndAssemble retrieves the lane's context and assembles it under
// the read deadline. Deadline expiry and store errors both degrade to an
// empty-context bundle carrying only the visible snippet; the call itself
// only fails if the engine is not started.
func (e *Engine) RetrieveAndAssemble(ctx context.Context, req RetrieveRequest) (*ContextBundle, error) {
	e.mu.RLock()
	if !e.started {
		e.mu.RUnlock()
		return nil, fmt.Errorf("engine not started")
	}
	e.mu.RUnlock()

	lane := Route(req.Platform, req.Counterpart, req.Tag)

	deadline := req.Deadline
	if deadline <= 0 {
		deadline = e.config.ReadDeadline
	}
	maxMessages := req.MaxMessages
	if maxMessages <= 0 {
		maxMessages = e.config.MessageWindow
	}

	slice := e.retrieveWithDeadline(ctx, lane, maxMessages, deadline)
	bundle := e.assemble(slice, req.VisibleSnippet, counterpartLabel(req.Counterpart))
	bundle.Lane = lane.ID

	e.notifyServed(lane.ID, bundle.ContextUsed)
	return bundle, nil
}

// retrieveWithDeadline races the store read against a timer. The losing
// read keeps running on its own goroutine until the store call returns;
// its result is discarded via the buffered channel.
func (e *Engine) retrieveWithDeadline(ctx context.Context, lane Lane, maxMessages int, deadline time.Duration) *ContextSlice {
	readCtx, cancel := context.WithTimeout(ctx, deadline)

	type result struct {
		slice *ContextSlice
		err   error
	}
	resultCh := make(chan result, 1)

	go func() {
		defer cancel()
		slice, err := e.retrieveContext(readCtx, lane, maxMessages)
		resultCh <- result{slice: slice, err: err}
	}()

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case res := <-resultCh:
		if res.err != nil {
			log.Printf("Context retrieval for lane %s degraded to empty: %v", lane.ID, res.err)
			return &ContextSlice{}
		}
		return res.slice
	case <-timer.C:
		log.Printf("Read deadline %v expired for lane %s, serving empty context", deadline, lane.ID)
		return &ContextSlice{}
	case <-ctx.Done():
		return &ContextSlice{}
	}
}

// PurgeContact removes the contact and its full message subgraph,
// returning the number of messages deleted.
func (e *Engine) PurgeContact(ctx context.Context, platform, counterpart string) (int, error) {
	key := storage.NewContactKey(platform, counterpart)
	return e.store.PurgeContact(ctx, key)
}

// QueueSize returns the current number of jobs waiting for a worker.
func (e *Engine) QueueSize() int {
	return len(e.ingestQueue)
}

// Store exposes the underlying graph store for read paths that bypass the
// deadline orchestration (history endpoints, stats).
func (e *Engine) Store() storage.GraphStore {
	return e.store
}

// Shutdown gracefully shuts down the engine: the queue is closed and
// workers drain remaining jobs, bounded by ShutdownTimeout.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if !e.started || e.shuttingDown {
		e.mu.Unlock()
		return fmt.Errorf("engine not started")
	}

	log.Println("Shutting down memory engine...")
	e.shuttingDown = true
	close(e.ingestQueue)
	// The lock is released for the drain: workers still fire callbacks and
	// re-check state through it while finishing their jobs.
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.workerWaitGroup.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
		log.Println("All ingest workers finished gracefully")
	case <-time.After(e.config.ShutdownTimeout):
		log.Printf("WARNING: Shutdown timeout reached, %d ingest jobs may be dropped", len(e.ingestQueue))
	case <-ctx.Done():
		log.Printf("WARNING: Context cancelled, %d ingest jobs may be dropped", len(e.ingestQueue))
		err = ctx.Err()
	}

	if e.workerCancel != nil {
		e.workerCancel()
	}

	e.mu.Lock()
	e.started = false
	e.shuttingDown = false
	e.mu.Unlock()
	log.Println("Memory engine shut down")
	return err
}

func (e *Engine) notifyStored(kind types.EventKind, ref string) {
	e.mu.RLock()
	cb := e.onEventStored
	e.mu.RUnlock()
	if cb != nil {
		cb(kind, ref)
	}
}

func (e *Engine) notifyDropped(kind types.EventKind, reason string) {
	e.mu.RLock()
	cb := e.onEventDropped
	e.mu.RUnlock()
	if cb != nil {
		cb(kind, reason)
	}
}

func (e *Engine) notifyServed(lane string, contextUsed bool) {
	e.mu.RLock()
	cb := e.onContextServed
	e.mu.RUnlock()
	if cb != nil {
		cb(lane, contextUsed)
	}
}
