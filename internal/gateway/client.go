package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"shopee-deal-bot/internal/models"
)

// groupIDSuffix is the JID convention identifying WhatsApp groups.
const groupIDSuffix = "@g.us"

// inviteDomain must appear in any invite link before resolution is attempted.
const inviteDomain = "chat.whatsapp.com"

// GroupInfo is one entry from the provider's group listing.
type GroupInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SendResult reports the HTTP outcome of a send. Delivery beyond the HTTP
// status is not confirmed; 2xx is treated as posted.
type SendResult struct {
	OK         bool `json:"ok"`
	StatusCode int  `json:"statusCode"`
}

// Client delivers rendered messages to a WhatsApp group through one of the
// supported HTTP dialects.
type Client struct {
	cfg     models.AffiliateConfig
	client  *http.Client
	limiter *rate.Limiter
}

func New(cfg models.AffiliateConfig) *Client {
	return &Client{
		cfg:     cfg,
		client:  &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// RenderMessage assembles the final WhatsApp text: caption, link block, and
// hashtag line.
func RenderMessage(product *models.Product, deal *models.DealContent) string {
	var sb strings.Builder
	sb.WriteString(deal.Caption)
	sb.WriteString("\n\n🔗 ")
	sb.WriteString(product.EffectiveURL())
	if len(deal.Hashtags) > 0 {
		sb.WriteString("\n\n")
		for i, tag := range deal.Hashtags {
			if i > 0 {
				sb.WriteString(" ")
			}
			sb.WriteString("#")
			sb.WriteString(strings.TrimPrefix(tag, "#"))
		}
	}
	return sb.String()
}

// DeepLink returns the wa.me share URL used when no gateway is configured.
// Opening it is the caller's job; no history is written for deep-link shares.
func DeepLink(product *models.Product, deal *models.DealContent) string {
	return "https://wa.me/?text=" + url.QueryEscape(RenderMessage(product, deal))
}

// Send posts the rendered message to the destination group. Success is
// decided purely by HTTP status.
func (c *Client) Send(ctx context.Context, product *models.Product, deal *models.DealContent, destination string) (SendResult, error) {
	if c.cfg.EndpointURL == "" {
		return SendResult{}, fmt.Errorf("%w: no send endpoint configured", models.ErrValidation)
	}
	if destination == "" {
		destination = c.cfg.GroupID
	}
	if destination == "" {
		return SendResult{}, fmt.Errorf("%w: no destination group configured", models.ErrValidation)
	}

	d := dialectFor(c.cfg.Provider)
	text := RenderMessage(product, deal)

	var payload map[string]any
	if isImageEndpoint(c.cfg.Provider, c.cfg.EndpointURL) && product.ImageURL != "" {
		payload = d.buildImage(destination, product.ImageURL, text)
	} else {
		payload = d.buildText(destination, text)
	}

	resp, err := c.post(ctx, c.cfg.EndpointURL, payload)
	if err != nil {
		return SendResult{}, fmt.Errorf("%w: gateway send: %v", models.ErrUpstream, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return SendResult{
		OK:         resp.StatusCode >= 200 && resp.StatusCode < 300,
		StatusCode: resp.StatusCode,
	}, nil
}

// Status performs the "test connection" check against the provider's status
// endpoint.
func (c *Client) Status(ctx context.Context) error {
	d, err := derive(c.cfg.Provider, c.cfg.EndpointURL)
	if err != nil {
		return err
	}
	spec := dialectFor(c.cfg.Provider)
	if spec.statusPath == nil {
		return fmt.Errorf("%w: provider %s has no status endpoint", models.ErrValidation, c.cfg.Provider)
	}

	resp, err := c.get(ctx, spec.statusPath(d))
	if err != nil {
		return fmt.Errorf("%w: status check: %v", models.ErrUpstream, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status check returned %d", models.ErrUpstream, resp.StatusCode)
	}
	return nil
}

// ListGroups fetches the provider's chat/group listing and keeps only
// entries whose id follows the group JID convention. Entries without a
// conforming id are dropped silently.
func (c *Client) ListGroups(ctx context.Context) ([]GroupInfo, error) {
	d, err := derive(c.cfg.Provider, c.cfg.EndpointURL)
	if err != nil {
		return nil, err
	}
	spec := dialectFor(c.cfg.Provider)
	if spec.groupsPath == nil {
		return nil, fmt.Errorf("%w: provider %s has no group listing", models.ErrValidation, c.cfg.Provider)
	}

	resp, err := c.get(ctx, spec.groupsPath(d))
	if err != nil {
		return nil, fmt.Errorf("%w: group listing: %v", models.ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: group listing read: %v", models.ErrUpstream, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: group listing returned %d", models.ErrUpstream, resp.StatusCode)
	}

	entries, err := decodeGroupEnvelope(body)
	if err != nil {
		return nil, err
	}

	var groups []GroupInfo
	for _, e := range entries {
		if !strings.HasSuffix(e.ID, groupIDSuffix) {
			continue
		}
		name := e.Name
		if name == "" {
			name = e.Subject
		}
		groups = append(groups, GroupInfo{ID: e.ID, Name: name})
	}
	return groups, nil
}

// ResolveInvite turns a human-entered invite link into a group JID via the
// provider's resolution endpoint. The link is validated before any network
// call.
func (c *Client) ResolveInvite(ctx context.Context, inviteLink string) (string, error) {
	if !strings.Contains(inviteLink, inviteDomain) {
		return "", fmt.Errorf("%w: invite link must contain %s", models.ErrValidation, inviteDomain)
	}
	code := inviteCode(inviteLink)
	if code == "" {
		return "", fmt.Errorf("%w: invite link has no invite code", models.ErrValidation)
	}

	d, err := derive(c.cfg.Provider, c.cfg.EndpointURL)
	if err != nil {
		return "", err
	}
	spec := dialectFor(c.cfg.Provider)
	if spec.invitePath == nil {
		return "", fmt.Errorf("%w: provider %s cannot resolve invites", models.ErrValidation, c.cfg.Provider)
	}

	resp, err := c.get(ctx, spec.invitePath(d, inviteLink, code))
	if err != nil {
		return "", fmt.Errorf("%w: invite resolution: %v", models.ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: invite resolution read: %v", models.ErrUpstream, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: invite resolution returned %d", models.ErrUpstream, resp.StatusCode)
	}

	groupID := probeGroupID(body)
	if groupID == "" {
		return "", fmt.Errorf("%w: no group id in invite response", models.ErrResolution)
	}
	return groupID, nil
}

// groupEntry covers both dialects' listing fields: Z-API uses name,
// Evolution uses subject.
type groupEntry struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Subject string `json:"subject"`
}

// decodeGroupEnvelope accepts the three envelope shapes seen across
// providers: a bare array, {value: [...]}, or {data: [...]}.
func decodeGroupEnvelope(body []byte) ([]groupEntry, error) {
	var entries []groupEntry
	if err := json.Unmarshal(body, &entries); err == nil {
		return entries, nil
	}

	var envelope struct {
		Value []groupEntry `json:"value"`
		Data  []groupEntry `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: unrecognized group listing shape: %v", models.ErrParse, err)
	}
	if envelope.Value != nil {
		return envelope.Value, nil
	}
	if envelope.Data != nil {
		return envelope.Data, nil
	}
	return nil, fmt.Errorf("%w: group listing envelope has no value or data array", models.ErrParse)
}

// probeGroupID looks for the group JID under the field names the two
// dialects use, including the nested metadata form.
func probeGroupID(body []byte) string {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return ""
	}

	for _, key := range []string{"id", "jid", "groupJid"} {
		if id, ok := doc[key].(string); ok && strings.HasSuffix(id, groupIDSuffix) {
			return id
		}
	}
	if meta, ok := doc["groupMetadata"].(map[string]any); ok {
		if id, ok := meta["id"].(string); ok && strings.HasSuffix(id, groupIDSuffix) {
			return id
		}
	}
	return ""
}

// inviteCode extracts the token segment from an invite link.
func inviteCode(link string) string {
	trimmed := link
	if i := strings.IndexAny(trimmed, "?#"); i >= 0 {
		trimmed = trimmed[:i]
	}
	trimmed = strings.TrimSuffix(trimmed, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	if trimmed == inviteDomain {
		return ""
	}
	return trimmed
}

func (c *Client) post(ctx context.Context, endpoint string, payload map[string]any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)
	return c.do(ctx, req)
}

func (c *Client) get(ctx context.Context, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	c.setAuth(req)
	return c.do(ctx, req)
}

func (c *Client) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.client.Do(req)
}

// setAuth applies the provider's auth header. The header is omitted
// entirely when no token is configured.
func (c *Client) setAuth(req *http.Request) {
	if c.cfg.ClientToken == "" {
		return
	}
	req.Header.Set(dialectFor(c.cfg.Provider).authHeader, c.cfg.ClientToken)
}
