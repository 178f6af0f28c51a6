package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
	"github.com/shelfwatch/ingestion-worker/common/models"
)

// JobHandler processes one decoded scrape job. Returned errors are
// diagnostics, not retry signals: the message is acknowledged either way.
type JobHandler interface {
	Handle(ctx context.Context, job *models.ScrapeJob) error
}

// JobConsumer pulls scrape jobs from the durable work queue, one at a time.
// Every message is acknowledged regardless of outcome: a poison payload or
// a failing scraper must never wedge the queue.
type JobConsumer struct {
	broker     *NatsBroker
	handler    JobHandler
	consumeCtx jetstream.ConsumeContext
}

// NewJobConsumer creates a consumer bound to a handler.
func NewJobConsumer(broker *NatsBroker, handler JobHandler) *JobConsumer {
	return &JobConsumer{
		broker:  broker,
		handler: handler,
	}
}

// Start declares the durable scrape_jobs queue and begins consuming.
// MaxAckPending of 1 enforces the single-in-flight model: scaling out means
// more worker processes, not more concurrency inside one.
func (c *JobConsumer) Start(ctx context.Context) error {
	if _, err := c.broker.EnsureStream(ctx, ScrapeJobStream, []string{ScrapeJobSubject}); err != nil {
		return fmt.Errorf("ensuring scrape job stream: %w", err)
	}

	consumer, err := c.broker.CreateConsumer(ctx, ScrapeJobStream, jetstream.ConsumerConfig{
		Name:          ScrapeJobConsumer,
		Durable:       ScrapeJobConsumer,
		FilterSubject: ScrapeJobSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Minute, // a full multi-page browser scrape can be slow
		MaxAckPending: 1,
	})
	if err != nil {
		return fmt.Errorf("creating scrape job consumer: %w", err)
	}

	consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		c.handleMessage(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("consuming scrape jobs: %w", err)
	}
	c.consumeCtx = consumeCtx

	log.Info().
		Str("stream", ScrapeJobStream).
		Str("subject", ScrapeJobSubject).
		Msg("Job consumer started")

	return nil
}

// Stop halts message delivery.
func (c *JobConsumer) Stop() {
	if c.consumeCtx != nil {
		c.consumeCtx.Stop()
	}
}

func (c *JobConsumer) handleMessage(ctx context.Context, msg jetstream.Msg) {
	defer func() {
		if err := msg.Ack(); err != nil {
			log.Error().Err(err).Msg("Failed to acknowledge scrape job message")
			return
		}
		log.Info().Msg("Scrape job message acknowledged")
	}()

	log.Info().Str("payload", string(msg.Data())).Msg("Received scrape job")

	job, err := models.ScrapeJobFromJson(msg.Data())
	if err != nil {
		log.Error().Err(err).Msg("Malformed scrape job payload, dropping")
		return
	}
	if job.Target == "" || job.Query == "" {
		log.Error().
			Str("target", job.Target).
			Str("query", job.Query).
			Msg("Scrape job missing target or query, dropping")
		return
	}

	if err := c.handler.Handle(ctx, job); err != nil {
		// Scrape failures are soft: logged, acknowledged, never retried here.
		log.Error().Err(err).
			Str("target", job.Target).
			Str("query", job.Query).
			Msg("Scrape job failed")
		return
	}

	log.Info().
		Str("target", job.Target).
		Str("query", job.Query).
		Msg("Scrape job completed")
}
