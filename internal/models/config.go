package models

// Provider selects which messaging gateway dialect to speak.
type Provider string

const (
	ProviderZAPI      Provider = "z-api"
	ProviderEvolution Provider = "evolution"
	ProviderCustom    Provider = "custom"
)

// Valid reports whether p is one of the known providers.
func (p Provider) Valid() bool {
	switch p {
	case ProviderZAPI, ProviderEvolution, ProviderCustom:
		return true
	}
	return false
}

// AffiliateConfig is the persisted gateway/affiliate configuration. It is
// loaded once at startup and written back on every explicit save.
type AffiliateConfig struct {
	AffiliateID string   `json:"affiliateId" firestore:"affiliateId"`
	Provider    Provider `json:"apiProvider" firestore:"apiProvider" validate:"required,oneof=z-api evolution custom"`
	EndpointURL string   `json:"endpointUrl" firestore:"endpointUrl" validate:"omitempty,url"`
	GroupID     string   `json:"groupId" firestore:"groupId"`
	ClientToken string   `json:"clientToken,omitempty" firestore:"clientToken,omitempty"`
	Active      bool     `json:"active" firestore:"active"`
}

// Ready reports whether the config is complete enough for API sends. When
// false, sharing falls back to a wa.me deep link.
func (c *AffiliateConfig) Ready() bool {
	return c != nil && c.Active && c.EndpointURL != "" && c.GroupID != ""
}

// AutomationSettings drives the automation loop's timing. Only MinInterval
// is currently consulted; MaxInterval is kept for the interval slider.
// Settings are ephemeral: they live for the session only.
type AutomationSettings struct {
	Enabled     bool  `json:"isEnabled"`
	MinInterval int   `json:"minInterval" validate:"gte=1"`
	MaxInterval int   `json:"maxInterval"`
	LastPost    int64 `json:"lastPostTime,omitempty"`
	NextPost    int64 `json:"nextPostTime,omitempty"`
}
