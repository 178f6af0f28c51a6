package scrapers

import (
	"context"
	"errors"
	"testing"

	"github.com/shelfwatch/ingestion-worker/common/models"
)

type capturingPublisher struct {
	batches []*models.ProductBatch
	err     error
}

func (p *capturingPublisher) Publish(ctx context.Context, batch *models.ProductBatch) error {
	p.batches = append(p.batches, batch)
	return p.err
}

func TestServicePublishesCompletedRun(t *testing.T) {
	strategy := &stubStrategy{
		store: models.StoreAldi,
		products: []models.Product{
			{Name: "Oat Milk", Store: models.StoreAldi},
			{Name: "Soy Milk", Store: models.StoreAldi},
		},
	}
	publisher := &capturingPublisher{}
	svc := NewService(NewDispatcher(strategy), nil, nil, publisher)

	job := &models.ScrapeJob{Target: "aldi", Query: "milk"}
	if err := svc.Handle(context.Background(), job); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if len(publisher.batches) != 1 {
		t.Fatalf("published %d batches, want 1", len(publisher.batches))
	}
	batch := publisher.batches[0]
	if batch.RunID == "" {
		t.Error("batch RunID is empty")
	}
	if batch.Target != "aldi" || batch.Query != "milk" {
		t.Errorf("batch target/query = %q/%q, want aldi/milk", batch.Target, batch.Query)
	}
	if len(batch.Products) != 2 {
		t.Errorf("batch has %d products, want 2", len(batch.Products))
	}
}

func TestServicePublishesPartialResultsOnBlock(t *testing.T) {
	strategy := &stubStrategy{
		store:    models.StoreColes,
		products: []models.Product{{Name: "Partial", Store: models.StoreColes}},
		err:      ErrBlocked,
	}
	publisher := &capturingPublisher{}
	svc := NewService(NewDispatcher(strategy), nil, nil, publisher)

	err := svc.Handle(context.Background(), &models.ScrapeJob{Target: "coles", Query: "bread"})
	if !errors.Is(err, ErrBlocked) {
		t.Fatalf("Handle() error = %v, want ErrBlocked", err)
	}
	if len(publisher.batches) != 1 {
		t.Fatalf("published %d batches, want the partial batch", len(publisher.batches))
	}
	if len(publisher.batches[0].Products) != 1 {
		t.Errorf("partial batch has %d products, want 1", len(publisher.batches[0].Products))
	}
}

func TestServiceSkipsEmptyBatch(t *testing.T) {
	strategy := &stubStrategy{store: models.StoreAldi}
	publisher := &capturingPublisher{}
	svc := NewService(NewDispatcher(strategy), nil, nil, publisher)

	if err := svc.Handle(context.Background(), &models.ScrapeJob{Target: "aldi", Query: "unobtainium"}); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(publisher.batches) != 0 {
		t.Errorf("published %d batches for an empty result, want 0", len(publisher.batches))
	}
}

func TestServiceUnknownTargetIsSoft(t *testing.T) {
	publisher := &capturingPublisher{}
	svc := NewService(NewDispatcher(), nil, nil, publisher)

	err := svc.Handle(context.Background(), &models.ScrapeJob{Target: "costco", Query: "milk"})
	if !errors.Is(err, ErrUnknownTarget) {
		t.Fatalf("Handle() error = %v, want ErrUnknownTarget", err)
	}
	if len(publisher.batches) != 0 {
		t.Errorf("published %d batches for an unknown target, want 0", len(publisher.batches))
	}
}

func TestServiceReportsPublishFailure(t *testing.T) {
	strategy := &stubStrategy{
		store:    models.StoreAldi,
		products: []models.Product{{Name: "Oat Milk", Store: models.StoreAldi}},
	}
	wantErr := errors.New("broker down")
	publisher := &capturingPublisher{err: wantErr}
	svc := NewService(NewDispatcher(strategy), nil, nil, publisher)

	err := svc.Handle(context.Background(), &models.ScrapeJob{Target: "aldi", Query: "milk"})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Handle() error = %v, want the publish error", err)
	}
}
