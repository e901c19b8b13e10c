package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ConsumerConfig configures a Consumer.
type ConsumerConfig struct {
	Logger *slog.Logger
	// OnDelivery, when set, observes every delivery attempt.
	OnDelivery func(tag WorkTag, err error)
}

// Consumer delivers queued items to an Authority from one goroutine. It
// sleeps until the queue signals an empty to non-empty transition, then
// drains the queue, delivering each head item outside the queue lock before
// removing it.
type Consumer struct {
	queue      *Queue
	authority  Authority
	logger     *slog.Logger
	onDelivery func(WorkTag, error)

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewConsumer starts a consumer for q.
func NewConsumer(q *Queue, authority Authority, cfg ConsumerConfig) *Consumer {
	if authority == nil {
		authority = NoOpAuthority{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	c := &Consumer{
		queue:      q,
		authority:  authority,
		logger:     cfg.Logger,
		onDelivery: cfg.OnDelivery,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	c.wg.Add(1)
	go c.run()

	return c
}

func (c *Consumer) run() {
	defer c.wg.Done()

	for {
		select {
		case <-c.queue.Wake():
			c.drain()
		case <-c.done:
			c.drain()
			return
		}
	}
}

func (c *Consumer) drain() {
	for item := c.queue.Head(); item != nil; item = c.queue.Dequeue() {
		c.deliver(item)
	}
}

func (c *Consumer) deliver(item *WorkItem) {
	if c.queue.Dead() {
		return
	}
	err := c.authority.Deliver(c.ctx, item)
	switch {
	case err == nil:
	case errors.Is(err, ErrAuthorityGone):
		c.logger.Error("audit authority gone, draining queue", "tag", item.Tag.String())
		c.queue.MarkDead()
	default:
		c.logger.Warn("audit delivery failed", "tag", item.Tag.String(), "error", err)
	}
	if c.onDelivery != nil {
		c.onDelivery(item.Tag, err)
	}
}

// Close stops the consumer after a final drain. If ctx ends first, pending
// deliveries are cancelled and Close returns ctx's error once the goroutine
// has exited.
func (c *Consumer) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		close(c.done)
	})

	finished := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		c.cancel()
		return nil
	case <-ctx.Done():
		c.cancel()
		<-finished
		return ctx.Err()
	}
}
