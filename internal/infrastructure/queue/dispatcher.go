package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/skillboard/portal/internal/api/metrics"
	"github.com/skillboard/portal/internal/core/domain"
	"github.com/skillboard/portal/internal/core/ports"
	"github.com/skillboard/portal/pkg/redact"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256

	insertTimeout = 5 * time.Second
	insertRetries = 2
	retryBackoff  = 100 * time.Millisecond
)

// AuditDispatcher hands login events to a fixed set of workers that persist
// them. Events are sharded on email so one account's trail keeps its order.
// Record never blocks: when a shard is full the event is dropped.
type AuditDispatcher struct {
	mu      sync.RWMutex
	closed  bool
	workers []chan domain.LoginEvent
	repo    ports.AuditRepository
	log     zerolog.Logger
	wg      sync.WaitGroup
	backoff time.Duration
}

// NewAuditDispatcher creates a dispatcher with numWorkers shards of
// queueSize events each. Non-positive values fall back to the defaults.
func NewAuditDispatcher(numWorkers, queueSize int, repo ports.AuditRepository, log zerolog.Logger) *AuditDispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	if queueSize <= 0 {
		queueSize = channelBuffer
	}
	d := &AuditDispatcher{
		workers: make([]chan domain.LoginEvent, numWorkers),
		repo:    repo,
		log:     log.With().Str("component", "audit").Logger(),
		backoff: retryBackoff,
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.LoginEvent, queueSize)
	}
	return d
}

// Start launches the worker goroutines. Cancelling ctx does not discard
// queued events; Close stops intake and lets the workers drain.
func (d *AuditDispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(context.WithoutCancel(ctx), i, ch)
	}
}

// Record enqueues event on the shard owning its email.
func (d *AuditDispatcher) Record(event domain.LoginEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop(event, "dispatcher closed")
		return
	}

	idx := d.shardIndex(event.Email)
	select {
	case d.workers[idx] <- event:
		metrics.AuditQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
	default:
		d.drop(event, "queue full")
	}
}

func (d *AuditDispatcher) drop(event domain.LoginEvent, reason string) {
	metrics.AuditDroppedTotal.Inc()
	d.log.Warn().
		Str("email", redact.Email(event.Email)).
		Str("result", string(event.Result)).
		Str("reason", reason).
		Msg("login event dropped")
}

// Close stops accepting events. Already queued events are still persisted.
func (d *AuditDispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	for _, ch := range d.workers {
		close(ch)
	}
}

// Wait blocks until every worker has drained its shard. Call after Close.
func (d *AuditDispatcher) Wait() {
	d.wg.Wait()
}

// shardIndex maps an email deterministically to a worker index.
func (d *AuditDispatcher) shardIndex(email string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(email))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *AuditDispatcher) runWorker(ctx context.Context, id int, ch <-chan domain.LoginEvent) {
	defer d.wg.Done()
	label := strconv.Itoa(id)
	for event := range ch {
		metrics.AuditQueueDepth.WithLabelValues(label).Set(float64(len(ch)))
		if err := d.persist(ctx, &event); err != nil {
			d.log.Error().Err(err).
				Str("event_id", event.ID).
				Str("email", redact.Email(event.Email)).
				Int("worker_id", id).
				Msg("login event not persisted")
		}
	}
}

func (d *AuditDispatcher) persist(ctx context.Context, event *domain.LoginEvent) error {
	backoff := retry.WithMaxRetries(insertRetries, retry.NewConstant(d.backoff))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		insertCtx, cancel := context.WithTimeout(ctx, insertTimeout)
		defer cancel()
		if err := d.repo.InsertLoginEvent(insertCtx, event); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}
