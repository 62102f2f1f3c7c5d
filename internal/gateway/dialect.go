package gateway

import (
	"fmt"
	"net/url"
	"strings"

	"shopee-deal-bot/internal/models"
)

// dialect describes one gateway provider: how its payloads are keyed, which
// header carries the token, and how auxiliary endpoints derive from the
// configured send URL. New providers are added here, not as call-site
// branches.
type dialect struct {
	textMarkers  []string // path segments identifying the text-send endpoint
	imageMarkers []string // path segments identifying the image-send variant
	authHeader   string

	buildText  func(dest, text string) map[string]any
	buildImage func(dest, imageURL, caption string) map[string]any

	statusPath func(d derived) string
	groupsPath func(d derived) string
	invitePath func(d derived, link, code string) string
}

// derived holds the pieces cut out of a configured send endpoint.
type derived struct {
	base     string // URL prefix before the send segment
	instance string // trailing instance name (Evolution only)
}

var dialects = map[models.Provider]dialect{
	models.ProviderZAPI: {
		textMarkers:  []string{"/send-text"},
		imageMarkers: []string{"/send-image"},
		authHeader:   "client-token",
		buildText: func(dest, text string) map[string]any {
			return map[string]any{"phone": dest, "message": text}
		},
		buildImage: func(dest, imageURL, caption string) map[string]any {
			return map[string]any{"phone": dest, "image": imageURL, "caption": caption}
		},
		statusPath: func(d derived) string { return d.base + "/status" },
		groupsPath: func(d derived) string { return d.base + "/chats" },
		invitePath: func(d derived, link, _ string) string {
			return d.base + "/group-metadata-by-invite-link?url=" + url.QueryEscape(link)
		},
	},
	models.ProviderEvolution: {
		textMarkers:  []string{"/message/sendText/"},
		imageMarkers: []string{"/message/sendMedia/"},
		authHeader:   "apikey",
		buildText: func(dest, text string) map[string]any {
			return map[string]any{"number": dest, "text": text}
		},
		buildImage: func(dest, imageURL, caption string) map[string]any {
			return map[string]any{"number": dest, "media": imageURL, "caption": caption}
		},
		statusPath: func(d derived) string { return d.base + "/instance/connectionState/" + d.instance },
		groupsPath: func(d derived) string {
			return d.base + "/group/fetchAllGroups/" + d.instance + "?getParticipants=false"
		},
		invitePath: func(d derived, _, code string) string {
			return d.base + "/group/inviteInfo/" + d.instance + "?inviteCode=" + url.QueryEscape(code)
		},
	},
	// Custom endpoints are send-only passthroughs speaking the Z-API payload
	// shape; there is no URL convention to derive auxiliary endpoints from.
	models.ProviderCustom: {
		authHeader: "client-token",
		buildText: func(dest, text string) map[string]any {
			return map[string]any{"phone": dest, "message": text}
		},
		buildImage: func(dest, imageURL, caption string) map[string]any {
			return map[string]any{"phone": dest, "image": imageURL, "caption": caption}
		},
	},
}

// dialectFor returns the dialect table entry for the provider, defaulting
// unknown values to the custom passthrough.
func dialectFor(p models.Provider) dialect {
	if d, ok := dialects[p]; ok {
		return d
	}
	return dialects[models.ProviderCustom]
}

// derive cuts the configured send endpoint at the provider's send marker so
// auxiliary endpoints (status, groups, invite resolution) can be built from
// the prefix.
func derive(p models.Provider, endpoint string) (derived, error) {
	d := dialectFor(p)
	markers := append(append([]string{}, d.textMarkers...), d.imageMarkers...)
	for _, marker := range markers {
		idx := strings.Index(endpoint, marker)
		if idx < 0 {
			continue
		}
		out := derived{base: endpoint[:idx]}
		rest := endpoint[idx+len(marker):]
		if i := strings.IndexAny(rest, "/?"); i >= 0 {
			rest = rest[:i]
		}
		out.instance = rest
		return out, nil
	}
	return derived{}, fmt.Errorf("%w: endpoint %q does not match any %s send path", models.ErrValidation, endpoint, p)
}

// isImageEndpoint reports whether the configured endpoint selects the
// provider's image+caption send variant.
func isImageEndpoint(p models.Provider, endpoint string) bool {
	for _, marker := range dialectFor(p).imageMarkers {
		if strings.Contains(endpoint, marker) {
			return true
		}
	}
	return false
}
