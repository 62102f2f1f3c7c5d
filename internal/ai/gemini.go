package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"google.golang.org/genai"

	"shopee-deal-bot/internal/models"
	"shopee-deal-bot/internal/util"
)

// categoryManual is assigned to products extracted from a user-supplied URL.
const categoryManual = "manual entry"

// Client issues generation requests against the Gemini API. All outbound
// calls go through the transient-retry wrapper; response parsing happens
// after the retry boundary and fails fast.
type Client struct {
	client      *genai.Client
	flashModel  string
	proModel    string
	maxAttempts int
}

func NewClient(ctx context.Context, apiKey, flashModel, proModel string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: gemini api key is required", models.ErrValidation)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Client{
		client:      client,
		flashModel:  flashModel,
		proModel:    proModel,
		maxAttempts: util.DefaultMaxAttempts,
	}, nil
}

// DiscoverTrending asks the search-grounded model for trending Shopee Brasil
// offers in the given category.
func (c *Client) DiscoverTrending(ctx context.Context, category string) ([]models.Product, error) {
	prompt := fmt.Sprintf(`PESQUISE NO GOOGLE: "Melhores Ofertas Shopee Brasil categoria %s hoje".
Foque em produtos que são tendência de vendas ou 'Mais Vendidos'.
RETORNE APENAS UM ARRAY JSON contendo 8 objetos com:
- id: string única (ex: SHP123)
- title: Título curto e chamativo
- price: número real (ex: 45.90)
- originalPrice: número real maior que o preço
- trendMetric: ex: "1.000+ vendidos"
- productUrl: LINK DIRETO PARA O PRODUTO NA SHOPEE BRASIL (DOMÍNIO shopee.com.br)
- imageUrl: URL de imagem real do produto
- imageUrls: array com mais 2 URLs de imagens.

Atenção: Não invente links. Use links reais da Shopee encontrados na busca.`, category)

	cfg := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{
			{GoogleSearch: &genai.GoogleSearch{}},
		},
	}

	text, sources, err := c.generate(ctx, c.flashModel, prompt, cfg)
	if err != nil {
		return nil, err
	}

	raw, err := extractJSON(text)
	if err != nil {
		return nil, err
	}

	var products []models.Product
	if err := json.Unmarshal([]byte(raw), &products); err != nil {
		return nil, fmt.Errorf("%w: trending response is not a product array: %v", models.ErrParse, err)
	}

	for i := range products {
		normalizeProduct(&products[i])
		products[i].Category = category
		products[i].Sources = sources
	}
	return products, nil
}

// AnalyzeURL extracts product data for a single user-supplied Shopee link.
// The returned product's URL is always the input URL, whatever the model
// claims.
func (c *Client) AnalyzeURL(ctx context.Context, url string) (*models.Product, error) {
	prompt := fmt.Sprintf(`Analise este link da Shopee: %s.
Retorne um objeto JSON com: title, price, originalPrice, trendMetric, imageUrl, imageUrls (array).
Se não conseguir extrair dados reais, pesquise no Google pelo título aproximado do produto no link.`, url)

	cfg := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{
			{GoogleSearch: &genai.GoogleSearch{}},
		},
	}

	text, sources, err := c.generate(ctx, c.proModel, prompt, cfg)
	if err != nil {
		return nil, err
	}

	raw, err := extractJSON(text)
	if err != nil {
		return nil, err
	}

	var product models.Product
	if err := json.Unmarshal([]byte(raw), &product); err != nil {
		return nil, fmt.Errorf("%w: analysis response is not a product object: %v", models.ErrParse, err)
	}

	normalizeProduct(&product)
	product.ProductURL = url
	product.Category = categoryManual
	product.Sources = sources
	return &product, nil
}

// GenerateCopy produces WhatsApp promotional copy for one product. The
// response schema is enforced upstream, so the text is parsed directly.
func (c *Client) GenerateCopy(ctx context.Context, product *models.Product) (*models.DealContent, error) {
	prompt := fmt.Sprintf(`Crie uma copy curta e agressiva para WhatsApp.
Produto: %s
Preço: R$ %.2f
Métrica: %s
Link: %s

Formato JSON: { "caption": "texto da legenda", "hashtags": ["tag1", "tag2"] }`,
		product.Title, product.Price, product.TrendMetric, product.EffectiveURL())

	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0.7),
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"caption":  {Type: genai.TypeString},
				"hashtags": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
			},
			Required: []string{"caption", "hashtags"},
		},
	}

	text, _, err := c.generate(ctx, c.flashModel, prompt, cfg)
	if err != nil {
		return nil, err
	}

	var content models.DealContent
	if err := json.Unmarshal([]byte(stripFences(text)), &content); err != nil {
		return nil, fmt.Errorf("%w: copy response is not valid JSON: %v", models.ErrParse, err)
	}
	if strings.TrimSpace(content.Caption) == "" {
		return nil, fmt.Errorf("%w: copy response has empty caption", models.ErrParse)
	}
	return &content, nil
}

// generate performs one generation request through the retry wrapper and
// returns the response text plus any grounding citations.
func (c *Client) generate(ctx context.Context, model, prompt string, cfg *genai.GenerateContentConfig) (string, []models.Source, error) {
	var resp *genai.GenerateContentResponse

	err := util.RetryTransient(ctx, c.maxAttempts, func() error {
		var callErr error
		resp, callErr = c.client.Models.GenerateContent(ctx, model, genai.Text(prompt), cfg)
		return callErr
	})
	if err != nil {
		return "", nil, fmt.Errorf("%w: gemini generation: %v", models.ErrUpstream, err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil ||
		len(resp.Candidates[0].Content.Parts) == 0 {
		return "", nil, fmt.Errorf("%w: no response candidates from gemini", models.ErrUpstream)
	}

	cand := resp.Candidates[0]
	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), groundingSources(cand), nil
}

func groundingSources(cand *genai.Candidate) []models.Source {
	if cand.GroundingMetadata == nil {
		return nil
	}
	var sources []models.Source
	for _, chunk := range cand.GroundingMetadata.GroundingChunks {
		if chunk.Web == nil || chunk.Web.URI == "" {
			continue
		}
		sources = append(sources, models.Source{URI: chunk.Web.URI, Title: chunk.Web.Title})
	}
	return sources
}

// jsonPattern locates the first bracketed array or object anywhere inside a
// prose response.
var jsonPattern = regexp.MustCompile(`(?s)\[.*\]|\{.*\}`)

// extractJSON pulls a JSON array or object substring out of a larger text
// blob. The model may wrap its JSON in explanatory prose or markdown fences.
func extractJSON(text string) (string, error) {
	match := jsonPattern.FindString(stripFences(text))
	if match == "" {
		return "", fmt.Errorf("%w: no JSON structure found in response", models.ErrParse)
	}
	if !json.Valid([]byte(match)) {
		return "", fmt.Errorf("%w: extracted text is not valid JSON", models.ErrParse)
	}
	return match, nil
}

func stripFences(text string) string {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// normalizeProduct fills the fields the model tends to omit. Normalizing an
// already-complete product changes nothing.
func normalizeProduct(p *models.Product) {
	if p.ID == "" {
		p.ID = util.RandomToken(9)
	}
	if len(p.ImageURLs) == 0 && p.ImageURL != "" {
		p.ImageURLs = []string{p.ImageURL}
	}
	if p.Specifications == nil {
		p.Specifications = map[string]string{}
	}
}
