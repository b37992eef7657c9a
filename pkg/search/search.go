package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"wallebot/pkg/config"
)

const (
	defaultBaseURL     = "https://serpapi.com/search.json"
	defaultLimit       = 3
	limitCap           = 10
	defaultMarketplace = "flipkart.com"
	defaultTimeout     = 15 * time.Second
)

// Product is one ranked candidate from the shopping provider.
type Product struct {
	Name  string `json:"name"`
	Price string `json:"price"`
	URL   string `json:"url"`
}

type shoppingResponse struct {
	ShoppingResults []struct {
		Title string `json:"title"`
		Price string `json:"price"`
		Link  string `json:"link"`
	} `json:"shopping_results"`
}

// Client queries SerpAPI Google Shopping scoped to one marketplace.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	marketplace string
	limit       int
	log         *slog.Logger
}

// New validates search configuration and constructs a provider client.
func New(cfg config.SearchConfig, log *slog.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("search.api_key is required")
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	marketplace := strings.TrimSpace(cfg.Marketplace)
	if marketplace == "" {
		marketplace = defaultMarketplace
	}

	limit := cfg.ResultLimit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > limitCap {
		limit = limitCap
	}

	timeout := time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	if log == nil {
		log = slog.Default()
	}

	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     baseURL,
		apiKey:      apiKey,
		marketplace: marketplace,
		limit:       limit,
		log:         log.With("component", "search.serpapi"),
	}, nil
}

// Limit returns the configured (capped) result count.
func (c *Client) Limit() int {
	return c.limit
}

// Search issues one shopping query scoped to the configured marketplace and
// returns up to limit candidates in provider order.
//
// Provider errors and empty result sets both degrade to an empty slice; the
// turn proceeds and the caller owns the "no matches" messaging. No retries.
func (c *Client) Search(ctx context.Context, query string, limit int) []Product {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	if limit <= 0 || limit > c.limit {
		limit = c.limit
	}

	log := c.log.With("operation", "search")
	startedAt := time.Now()
	log.Debug("provider request started", "query_length", len(query), "limit", limit)

	response, err := c.fetch(ctx, query, limit)
	if err != nil {
		log.Warn("Shopping search degraded to empty result", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return nil
	}

	products := make([]Product, 0, limit)
	for _, item := range response.ShoppingResults {
		if len(products) == limit {
			break
		}
		name := strings.TrimSpace(item.Title)
		if name == "" {
			continue
		}
		products = append(products, Product{
			Name:  name,
			Price: strings.TrimSpace(item.Price),
			URL:   strings.TrimSpace(item.Link),
		})
	}

	log.Debug("provider request completed", "duration_ms", time.Since(startedAt).Milliseconds(), "results", len(products))
	return products
}

func (c *Client) fetch(ctx context.Context, query string, limit int) (*shoppingResponse, error) {
	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", query+" site:"+c.marketplace)
	params.Set("tbm", "shop")
	params.Set("num", strconv.Itoa(limit))
	params.Set("api_key", c.apiKey)

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search request returned status %d", resp.StatusCode)
	}

	var response shoppingResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	return &response, nil
}
