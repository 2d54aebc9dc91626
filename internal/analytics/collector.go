package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/searchworks/persondex/pkg/kafka"
)

const flushInterval = 5 * time.Second

// Collector accumulates search events in memory and flushes them to
// Kafka in bulk, either when the buffer reaches maxBuffer events or on
// a timer, whichever comes first. Track never blocks the request path.
type Collector struct {
	producer  *kafka.Producer
	mu        sync.Mutex
	buffer    []kafka.Event
	maxBuffer int
	logger    *slog.Logger
	done      chan struct{}
}

// NewCollector creates a Collector flushing to the given producer.
func NewCollector(producer *kafka.Producer, maxBuffer int) *Collector {
	if maxBuffer <= 0 {
		maxBuffer = 1000
	}
	return &Collector{
		producer:  producer,
		buffer:    make([]kafka.Event, 0, maxBuffer),
		maxBuffer: maxBuffer,
		logger:    slog.Default().With("component", "analytics-collector"),
		done:      make(chan struct{}),
	}
}

// Start launches the background flush loop, which runs until ctx is
// cancelled and performs one final flush on the way out.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.flush(ctx)
			case <-ctx.Done():
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				c.flush(flushCtx)
				cancel()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started", "max_buffer", c.maxBuffer)
}

// Track buffers one event. When the buffer is full the oldest events
// are dropped rather than blocking a request.
func (c *Collector) Track(event SearchEvent) {
	if c == nil {
		return
	}
	c.mu.Lock()
	if len(c.buffer) >= c.maxBuffer {
		c.buffer = c.buffer[1:]
	}
	c.buffer = append(c.buffer, kafka.Event{Key: event.RequestID, Value: event})
	c.mu.Unlock()
}

// BufferLen returns the current number of buffered events.
func (c *Collector) BufferLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffer)
}

// Close waits for the background flush loop to finish.
func (c *Collector) Close() {
	<-c.done
}

func (c *Collector) flush(ctx context.Context) {
	c.mu.Lock()
	if len(c.buffer) == 0 {
		c.mu.Unlock()
		return
	}
	batch := c.buffer
	c.buffer = make([]kafka.Event, 0, c.maxBuffer)
	c.mu.Unlock()

	if err := c.producer.PublishBatch(ctx, batch); err != nil {
		c.logger.Error("event flush failed", "batch_size", len(batch), "error", err)
	}
}
