package models

// Source is a grounding citation attached to an AI-discovered product.
type Source struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// Product represents a single Shopee offer, either discovered by the AI
// search flow or extracted from a user-supplied URL.
type Product struct {
	ID             string            `json:"id" firestore:"id"`
	Title          string            `json:"title" firestore:"title" validate:"required"`
	Price          float64           `json:"price" firestore:"price" validate:"gte=0"`
	OriginalPrice  float64           `json:"originalPrice,omitempty" firestore:"originalPrice,omitempty" validate:"gte=0"`
	ImageURL       string            `json:"imageUrl" firestore:"imageUrl" validate:"omitempty,url"`
	ImageURLs      []string          `json:"imageUrls" firestore:"imageUrls"`
	ProductURL     string            `json:"productUrl" firestore:"productUrl" validate:"required,url"`
	AffiliateURL   string            `json:"affiliateUrl,omitempty" firestore:"affiliateUrl,omitempty" validate:"omitempty,url"`
	Category       string            `json:"category" firestore:"category"`
	Description    string            `json:"description,omitempty" firestore:"description,omitempty"`
	TrendMetric    string            `json:"trendMetric,omitempty" firestore:"trendMetric,omitempty"`
	Specifications map[string]string `json:"specifications,omitempty" firestore:"specifications,omitempty"`
	Sources        []Source          `json:"sources,omitempty" firestore:"sources,omitempty"`
}

// EffectiveURL returns the affiliate-rewritten URL when present, falling
// back to the plain product URL.
func (p *Product) EffectiveURL() string {
	if p.AffiliateURL != "" {
		return p.AffiliateURL
	}
	return p.ProductURL
}

// DiscountPercent returns the rounded percentage off, or 0 when there is no
// valid original price to compare against.
func (p *Product) DiscountPercent() int {
	if p.OriginalPrice <= p.Price || p.Price < 0 {
		return 0
	}
	return int((1-p.Price/p.OriginalPrice)*100 + 0.5)
}

// DealContent is the AI-generated promotional copy for one product.
// Hashtags carry no leading '#'. Content is produced fresh per product and
// never cached.
type DealContent struct {
	Caption  string   `json:"caption" validate:"required"`
	Hashtags []string `json:"hashtags"`
}
