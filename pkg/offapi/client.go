// Package offapi talks to the Open Food Facts product database.
package offapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"food-explorer/pkg/models"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

const (
	BaseURL          = "https://world.openfoodfacts.org"
	DefaultUserAgent = "food-explorer/1.0 (+https://world.openfoodfacts.org)"
)

// Client implements catalog.Source. Each call runs on a clone of Collector,
// so a Client can be shared between goroutines.
type Client struct {
	Collector *colly.Collector
	BaseURL   string
	log       *zap.Logger
}

type Option func(*Client)

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.Collector.UserAgent = ua
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.Collector.SetRequestTimeout(d)
		}
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = BaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", baseURL)
	}

	c := colly.NewCollector(
		colly.AllowedDomains(u.Hostname()),
		colly.UserAgent(DefaultUserAgent),
		colly.AllowURLRevisit(),
	)
	client := &Client{
		Collector: c,
		BaseURL:   strings.TrimRight(baseURL, "/"),
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

type searchResponse struct {
	Count    models.FlexInt   `json:"count"`
	Page     models.FlexInt   `json:"page"`
	Products []models.Product `json:"products"`
}

type categoriesResponse struct {
	Count models.FlexInt    `json:"count"`
	Tags  []models.Category `json:"tags"`
}

type productResponse struct {
	Code          string          `json:"code"`
	Status        models.FlexInt  `json:"status"`
	StatusVerbose string          `json:"status_verbose"`
	Product       *models.Product `json:"product"`
}

func (c *Client) FetchPage(ctx context.Context, page, pageSize int) ([]models.Product, error) {
	q := searchQuery(pageSize)
	q.Set("page", strconv.Itoa(page))

	var resp searchResponse
	if err := c.get(ctx, "/cgi/search.pl", q, &resp); err != nil {
		return nil, err
	}
	return nonNil(resp.Products), nil
}

func (c *Client) Categories(ctx context.Context) ([]models.Category, error) {
	var resp categoriesResponse
	if err := c.get(ctx, "/categories.json", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Tags == nil {
		return []models.Category{}, nil
	}
	return resp.Tags, nil
}

func (c *Client) SearchByName(ctx context.Context, query string, pageSize int) ([]models.Product, error) {
	q := searchQuery(pageSize)
	q.Set("search_terms", query)

	var resp searchResponse
	if err := c.get(ctx, "/cgi/search.pl", q, &resp); err != nil {
		return nil, err
	}
	return nonNil(resp.Products), nil
}

// LookupBarcode returns models.ErrProductNotFound unless the database reports
// status 1 with a product attached.
func (c *Client) LookupBarcode(ctx context.Context, code string) (*models.Product, error) {
	var resp productResponse
	if err := c.get(ctx, "/api/v0/product/"+url.PathEscape(code)+".json", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Status != 1 || resp.Product == nil {
		return nil, models.ErrProductNotFound
	}
	if resp.Product.Code == "" {
		resp.Product.Code = code
	}
	return resp.Product, nil
}

func searchQuery(pageSize int) url.Values {
	q := url.Values{}
	q.Set("search_simple", "1")
	q.Set("action", "process")
	q.Set("json", "1")
	q.Set("page_size", strconv.Itoa(pageSize))
	return q
}

func nonNil(products []models.Product) []models.Product {
	if products == nil {
		return []models.Product{}
	}
	return products
}

func (c *Client) endpoint(path string, q url.Values) string {
	target := c.BaseURL + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	return target
}

// get visits the endpoint and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	target := c.endpoint(path, q)

	collector := c.Collector.Clone()
	collector.Context = ctx

	var decodeErr, fetchErr error
	collector.OnResponse(func(r *colly.Response) {
		if err := json.Unmarshal(r.Body, out); err != nil {
			decodeErr = fmt.Errorf("decode %s: %w", path, err)
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("request %s: status %d: %w", path, r.StatusCode, err)
	})

	c.log.Debug("Requesting product database", zap.String("url", target))
	if err := collector.Visit(target); err != nil {
		if fetchErr != nil {
			return fetchErr
		}
		return fmt.Errorf("request %s: %w", path, err)
	}
	if fetchErr != nil {
		return fetchErr
	}
	return decodeErr
}
