package messaging

import (
	"sync"
	"sync/atomic"
	"time"

	"waste-report-service/internal/model"

	"github.com/avast/retry-go"
	"go.uber.org/zap"
)

const (
	defaultQueueSize   = 256
	maxDeliverAttempts = 3
	initialDelay       = 200 * time.Millisecond
	maxDelay           = 5 * time.Second
)

// EventSink receives report events from the Dispatcher.
type EventSink interface {
	Name() string
	Deliver(event model.ReportEvent) error
}

// DispatcherStats is a snapshot of the dispatcher counters.
type DispatcherStats struct {
	Queued    int    `json:"queued"`
	Delivered uint64 `json:"delivered"`
	Failed    uint64 `json:"failed"`
	Dropped   uint64 `json:"dropped"`
}

// Dispatcher decouples report writes from event delivery. Publish never
// blocks: when the queue is full the event is dropped and counted.
type Dispatcher struct {
	queue  chan model.ReportEvent
	sinks  []EventSink
	logger *zap.Logger
	done   chan struct{}
	wg     sync.WaitGroup

	attempts uint
	delay    time.Duration

	delivered atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

func NewDispatcher(logger *zap.Logger, queueSize int, sinks ...EventSink) *Dispatcher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Dispatcher{
		queue:    make(chan model.ReportEvent, queueSize),
		sinks:    sinks,
		logger:   logger,
		done:     make(chan struct{}),
		attempts: maxDeliverAttempts,
		delay:    initialDelay,
	}
}

func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go d.processLoop()
	d.logger.Info("dispatcher started", zap.Int("sinks", len(d.sinks)))
}

func (d *Dispatcher) Publish(event model.ReportEvent) {
	select {
	case d.queue <- event:
	default:
		d.dropped.Add(1)
		d.logger.Warn("dispatcher queue full, dropping event",
			zap.String("type", string(event.Type)),
			zap.String("report_id", event.Report.ID))
	}
}

func (d *Dispatcher) processLoop() {
	defer d.wg.Done()

	for {
		select {
		case <-d.done:
			d.drain()
			return
		case event := <-d.queue:
			d.deliver(event)
		}
	}
}

// drain delivers whatever is still queued at shutdown.
func (d *Dispatcher) drain() {
	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(event model.ReportEvent) {
	for _, sink := range d.sinks {
		sink := sink
		err := retry.Do(
			func() error {
				return sink.Deliver(event)
			},
			retry.Attempts(d.attempts),
			retry.Delay(d.delay),
			retry.MaxDelay(maxDelay),
			retry.DelayType(retry.BackOffDelay),
			retry.LastErrorOnly(true),
			retry.OnRetry(func(n uint, err error) {
				d.logger.Warn("dispatcher retry",
					zap.String("sink", sink.Name()),
					zap.Uint("attempt", n+1),
					zap.Error(err))
			}),
		)
		if err != nil {
			d.failed.Add(1)
			d.logger.Error("dispatcher delivery failed",
				zap.String("sink", sink.Name()),
				zap.String("type", string(event.Type)),
				zap.String("report_id", event.Report.ID),
				zap.Error(err))
			continue
		}
		d.delivered.Add(1)
	}
}

func (d *Dispatcher) Stop() {
	close(d.done)
	d.wg.Wait()
	d.logger.Info("dispatcher stopped")
}

func (d *Dispatcher) GetStats() DispatcherStats {
	return DispatcherStats{
		Queued:    len(d.queue),
		Delivered: d.delivered.Load(),
		Failed:    d.failed.Load(),
		Dropped:   d.dropped.Load(),
	}
}
