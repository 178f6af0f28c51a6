package messaging

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shelfwatch/ingestion-worker/common/models"
)

// ProductPublisher hands a normalized product batch to the downstream
// pricing ingestion pipeline.
type ProductPublisher interface {
	Publish(ctx context.Context, batch *models.ProductBatch) error
}

// NatsProductPublisher publishes product batches to JetStream.
type NatsProductPublisher struct {
	broker *NatsBroker
}

// NewNatsProductPublisher ensures the outbound stream exists and returns a
// publisher bound to it.
func NewNatsProductPublisher(ctx context.Context, broker *NatsBroker) (*NatsProductPublisher, error) {
	if _, err := broker.EnsureStream(ctx, ProductStream, []string{ProductIngestedSubject}); err != nil {
		return nil, fmt.Errorf("ensuring product stream: %w", err)
	}
	return &NatsProductPublisher{broker: broker}, nil
}

// Publish sends one batch to the products.ingested subject.
func (p *NatsProductPublisher) Publish(ctx context.Context, batch *models.ProductBatch) error {
	data, err := batch.ToJson()
	if err != nil {
		return fmt.Errorf("encoding product batch: %w", err)
	}

	if err := p.broker.PublishSync(ctx, ProductIngestedSubject, data); err != nil {
		return err
	}

	log.Info().
		Str("runID", batch.RunID).
		Str("target", batch.Target).
		Int("products", len(batch.Products)).
		Msg("Published product batch")

	return nil
}
