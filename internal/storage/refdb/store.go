// Package refdb implements the reference data storage area using BadgerHold.
// It holds externally supplied security prices and currency exchange rates —
// consumed as lookups by the ledger, never computed here.
package refdb

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/timshannon/badgerhold/v4"

	"github.com/corvusfin/corvus/internal/common"
	"github.com/corvusfin/corvus/internal/interfaces"
	"github.com/corvusfin/corvus/internal/models"
)

// Store implements interfaces.ReferenceStore using BadgerHold.
type Store struct {
	db     *badgerhold.Store
	logger *common.Logger
}

// NewStore opens the reference storage area at path.
func NewStore(logger *common.Logger, path string) (*Store, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create reference db path %s: %w", path, err)
	}
	opts := badgerhold.DefaultOptions
	opts.Dir = path
	opts.ValueDir = path
	opts.Logger = nil
	db, err := badgerhold.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open reference db at %s: %w", path, err)
	}
	logger.Info().Str("path", path).Msg("ReferenceDB opened")
	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) GetPrice(_ context.Context, symbol string, securityType models.SecurityType) (*models.SecurityPrice, error) {
	var price models.SecurityPrice
	if err := s.db.Get(models.PriceKey(symbol, securityType), &price); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("price for '%s' %w", symbol, models.ErrNotFound)
		}
		return nil, &models.StorageError{Op: "get price", Err: err}
	}
	return &price, nil
}

func (s *Store) SavePrice(_ context.Context, price *models.SecurityPrice) error {
	price.UpdatedAt = time.Now()
	if err := s.db.Upsert(price.Key(), price); err != nil {
		return &models.StorageError{Op: "save price", Err: err}
	}
	s.logger.Debug().Str("symbol", price.Symbol).Str("price", price.Price.String()).Msg("Price saved")
	return nil
}

// GetRate returns the exchange rate for (from, to) at or before date.
// Identical currencies always yield rate 1. When no rate exists for the exact
// date, the most recent earlier rate is used.
func (s *Store) GetRate(_ context.Context, from, to string, date time.Time) (*models.ExchangeRate, error) {
	if from == to {
		return &models.ExchangeRate{
			From: from,
			To:   to,
			Date: models.SnapshotDate(date),
			Rate: decimal.NewFromInt(1),
		}, nil
	}

	day := models.SnapshotDate(date)

	// Exact date first
	var rate models.ExchangeRate
	if err := s.db.Get(models.RateKey(from, to, day), &rate); err == nil {
		return &rate, nil
	} else if err != badgerhold.ErrNotFound {
		return nil, &models.StorageError{Op: "get rate", Err: err}
	}

	// Fall back to most recent rate at or before the date
	var rates []models.ExchangeRate
	query := badgerhold.Where("From").Eq(from).And("To").Eq(to).And("Date").Le(day)
	if err := s.db.Find(&rates, query); err != nil {
		return nil, &models.StorageError{Op: "find rate", Err: err}
	}
	if len(rates) == 0 {
		return nil, fmt.Errorf("rate %s/%s at %s %w", from, to, day.Format("2006-01-02"), models.ErrNotFound)
	}
	sort.Slice(rates, func(i, j int) bool { return rates[i].Date.After(rates[j].Date) })
	return &rates[0], nil
}

func (s *Store) SaveRate(_ context.Context, rate *models.ExchangeRate) error {
	rate.Date = models.SnapshotDate(rate.Date)
	rate.UpdatedAt = time.Now()
	if err := s.db.Upsert(rate.Key(), rate); err != nil {
		return &models.StorageError{Op: "save rate", Err: err}
	}
	s.logger.Debug().Str("pair", rate.From+"/"+rate.To).Str("rate", rate.Rate.String()).Msg("Rate saved")
	return nil
}

// Compile-time check
var _ interfaces.ReferenceStore = (*Store)(nil)
