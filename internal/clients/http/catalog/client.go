// Package catalog calls the product catalog service for list prices.
package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrProductNotFound is returned when the catalog has no such product.
var ErrProductNotFound = errors.New("product not found in catalog")

// Product is the catalog's view of one sellable item.
type Product struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name,omitempty"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type apiError struct {
	Message string `json:"message"`
}

// Client reads products from the catalog API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// NewClient instantiates the catalog client. A nil httpClient gets a traced
// client with a 5s timeout.
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("catalog base URL is required")
	}
	parsed, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse catalog base URL")
	}
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   5 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// Product fetches one product by id.
func (c *Client) Product(ctx context.Context, productID string) (*Product, error) {
	if c == nil || c.httpClient == nil {
		return nil, errors.New("catalog client not configured")
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, errors.New("product id is required")
	}
	endpoint := c.baseURL.JoinPath("v1", "products", productID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "build catalog request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "call catalog API")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var product Product
		if err := json.NewDecoder(resp.Body).Decode(&product); err != nil {
			return nil, errors.Wrap(err, "decode catalog product")
		}
		return &product, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.Wrap(ErrProductNotFound, productID)
	default:
		return nil, errors.Errorf("catalog API error: %s", errorMessage(resp))
	}
}

func errorMessage(resp *http.Response) string {
	var body apiError
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		if msg := strings.TrimSpace(body.Message); msg != "" {
			return msg
		}
	}
	return resp.Status
}
