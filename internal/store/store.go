// Package store persists the two pieces of durable state: the affiliate
// gateway configuration and the ordered posted-product history. Everything
// else (automation settings, activity logs) is session-scoped and never
// touches the store.
package store

import (
	"context"

	"shopee-deal-bot/internal/models"
)

type Store interface {
	// LoadConfig returns the saved affiliate config, or (nil, nil) when none
	// has been saved yet.
	LoadConfig(ctx context.Context) (*models.AffiliateConfig, error)
	SaveConfig(ctx context.Context, cfg *models.AffiliateConfig) error

	// History returns posted product ids in append order, oldest first.
	History(ctx context.Context) ([]string, error)
	// AppendPosted records a delivered product id. Appending an id that is
	// already present returns models.ErrAlreadyPosted.
	AppendPosted(ctx context.Context, id string) error
	IsPosted(ctx context.Context, id string) (bool, error)

	Close() error
}
