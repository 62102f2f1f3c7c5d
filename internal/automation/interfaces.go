package automation

import (
	"context"

	"shopee-deal-bot/internal/gateway"
	"shopee-deal-bot/internal/models"
)

// Generator produces products and promotional copy.
type Generator interface {
	DiscoverTrending(ctx context.Context, category string) ([]models.Product, error)
	GenerateCopy(ctx context.Context, product *models.Product) (*models.DealContent, error)
}

// Sender delivers a rendered deal to the configured group.
type Sender interface {
	Send(ctx context.Context, product *models.Product, deal *models.DealContent, destination string) (gateway.SendResult, error)
}

// History is the posted-product dedup record.
type History interface {
	IsPosted(ctx context.Context, id string) (bool, error)
	AppendPosted(ctx context.Context, id string) error
}

// ConfigSource yields the current affiliate config. The engine consults it
// at the start of every step so config edits take effect without a restart.
type ConfigSource interface {
	Config() *models.AffiliateConfig
}
