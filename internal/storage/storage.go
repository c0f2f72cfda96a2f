package storage

import (
	"context"
	"errors"

	"lendingScope/internal/model"
)

// Storage defines a sink for oracle reads and deposit history.
type Storage interface {
	PutPrices(ctx context.Context, prices []model.PriceRecord) error
	PutDeposits(ctx context.Context, deposits []model.DepositRecord) error
}

// Multi fans records out to every sink. All sinks are attempted; the
// returned error joins the individual failures.
type Multi []Storage

func (m Multi) PutPrices(ctx context.Context, prices []model.PriceRecord) error {
	var errs []error
	for _, s := range m {
		if err := s.PutPrices(ctx, prices); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) PutDeposits(ctx context.Context, deposits []model.DepositRecord) error {
	var errs []error
	for _, s := range m {
		if err := s.PutDeposits(ctx, deposits); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
