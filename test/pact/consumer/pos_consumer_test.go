//go:build pact
// +build pact

package consumer_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	pacttest "github.com/Apurer/order-lifecycle-engine/test/pact"

	pactconsumer "github.com/pact-foundation/pact-go/v2/consumer"
	pactlog "github.com/pact-foundation/pact-go/v2/log"
	"github.com/pact-foundation/pact-go/v2/matchers"
	"github.com/stretchr/testify/require"
)

type orderPayload struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	State   string `json:"state"`
	Total   string `json:"total"`
	Version int64  `json:"version"`
}

type ticketPayload struct {
	OrderID string `json:"orderId"`
	State   string `json:"state"`
}

type problemDetail struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

type apiError struct {
	status  int
	problem problemDetail
}

func (e apiError) Error() string {
	return fmt.Sprintf("%s: %s (status %d)", e.problem.Title, e.problem.Detail, e.status)
}

func TestPOSTerminalContract(t *testing.T) {
	pactlog.SetLogLevel("INFO")

	pact, err := pactconsumer.NewV2Pact(pactconsumer.MockHTTPProviderConfig{
		Consumer: pacttest.ConsumerName,
		Provider: pacttest.ProviderName,
		PactDir:  pacttest.PactDir(t),
		LogDir:   pacttest.LogDir(t),
	})
	require.NoError(t, err)

	jsonContentType := matchers.Regex("application/json; charset=utf-8", "application\\/json(?:;\\s?charset=utf-8)?")
	problemContentType := matchers.S("application/problem+json")
	orderPath := "/v1/orders/" + pacttest.ExistingOrderID

	pact.AddInteraction().
		Given(pacttest.StateNoOrders).
		UponReceiving("a request to create a take-away order").
		WithRequest("POST", "/v1/orders", func(b *pactconsumer.V2RequestBuilder) {
			b.Header("Content-Type", matchers.S("application/json"))
			b.JSONBody(pacttest.ExampleCreatePayload())
		}).
		WillRespondWith(http.StatusCreated, func(b *pactconsumer.V2ResponseBuilder) {
			b.Header("Content-Type", jsonContentType)
			b.JSONBody(matchers.Map{
				"id":      matchers.S(pacttest.ExistingOrderID),
				"type":    matchers.S("TakeAway"),
				"state":   matchers.S("Creating"),
				"version": matchers.Like(1),
			})
		})

	pact.AddInteraction().
		Given(pacttest.StateOrderConfirmed).
		UponReceiving("a payment confirmation for a confirmed order").
		WithRequest("POST", orderPath+"/pay").
		WillRespondWith(http.StatusOK, func(b *pactconsumer.V2ResponseBuilder) {
			b.Header("Content-Type", jsonContentType)
			b.JSONBody(matchers.Map{
				"id":      matchers.S(pacttest.ExistingOrderID),
				"state":   matchers.S("Paid"),
				"total":   matchers.Like(pacttest.ExamplePrice),
				"version": matchers.Like(4),
			})
		})

	pact.AddInteraction().
		Given(pacttest.StateOrderCreating).
		UponReceiving("a processing start before the order is paid").
		WithRequest("POST", orderPath+"/start-processing").
		WillRespondWith(http.StatusConflict, func(b *pactconsumer.V2ResponseBuilder) {
			b.Header("Content-Type", problemContentType)
			b.JSONBody(matchers.Map{
				"type":   matchers.S("/problems/conflict"),
				"title":  matchers.S("Conflict"),
				"status": matchers.Like(http.StatusConflict),
				"extensions": matchers.Map{
					"operation": matchers.S("StartProcessing"),
					"expected":  matchers.S("Paid"),
					"actual":    matchers.S("Creating"),
				},
			})
		})

	pact.AddInteraction().
		Given(pacttest.StateNoOrders).
		UponReceiving("a request for an unknown order").
		WithRequest("GET", "/v1/orders/"+pacttest.MissingOrderID).
		WillRespondWith(http.StatusNotFound, func(b *pactconsumer.V2ResponseBuilder) {
			b.Header("Content-Type", problemContentType)
			b.JSONBody(matchers.Map{
				"type":   matchers.S("/problems/not-found"),
				"title":  matchers.S("Resource Not Found"),
				"status": matchers.Like(http.StatusNotFound),
			})
		})

	pact.AddInteraction().
		Given(pacttest.StateKitchenTicket).
		UponReceiving("a kitchen report that the last item is finished").
		WithRequest("POST", "/v1/kitchen/orders/"+pacttest.ExistingOrderID+"/items/"+pacttest.ExampleItemID+"/finish").
		WillRespondWith(http.StatusOK, func(b *pactconsumer.V2ResponseBuilder) {
			b.Header("Content-Type", jsonContentType)
			b.JSONBody(matchers.Map{
				"orderId": matchers.S(pacttest.ExistingOrderID),
				"state":   matchers.S("Finished"),
			})
		})

	err = pact.ExecuteTest(t, func(config pactconsumer.MockServerConfig) error {
		client := newPOSClient(config)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		created, err := client.post(ctx, "/v1/orders", pacttest.ExampleCreatePayload())
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		var order orderPayload
		if err := json.Unmarshal(created, &order); err != nil {
			return err
		}
		if order.State != "Creating" {
			return fmt.Errorf("expected Creating, got %q", order.State)
		}

		paid, err := client.post(ctx, "/v1/orders/"+pacttest.ExistingOrderID+"/pay", nil)
		if err != nil {
			return fmt.Errorf("pay order: %w", err)
		}
		if err := json.Unmarshal(paid, &order); err != nil {
			return err
		}
		if order.State != "Paid" {
			return fmt.Errorf("expected Paid, got %q", order.State)
		}

		if _, err := client.post(ctx, "/v1/orders/"+pacttest.ExistingOrderID+"/start-processing", nil); !isStatus(err, http.StatusConflict) {
			return fmt.Errorf("expected 409, got %v", err)
		}

		if _, err := client.get(ctx, "/v1/orders/"+pacttest.MissingOrderID); !isStatus(err, http.StatusNotFound) {
			return fmt.Errorf("expected 404, got %v", err)
		}

		finished, err := client.post(ctx, "/v1/kitchen/orders/"+pacttest.ExistingOrderID+"/items/"+pacttest.ExampleItemID+"/finish", nil)
		if err != nil {
			return fmt.Errorf("finish item: %w", err)
		}
		var ticket ticketPayload
		if err := json.Unmarshal(finished, &ticket); err != nil {
			return err
		}
		if ticket.State != "Finished" {
			return fmt.Errorf("expected Finished, got %q", ticket.State)
		}
		return nil
	})
	require.NoError(t, err)
}

func isStatus(err error, status int) bool {
	apiErr, ok := err.(apiError)
	return ok && apiErr.status == status
}

type posClient struct {
	baseURL    string
	httpClient *http.Client
}

func newPOSClient(config pactconsumer.MockServerConfig) *posClient {
	host := config.Host
	if host == "" {
		host = "localhost"
	}
	transport := &http.Transport{TLSClientConfig: config.TLSConfig}
	return &posClient{
		baseURL:    fmt.Sprintf("http://%s:%d", host, config.Port),
		httpClient: &http.Client{Transport: transport, Timeout: 10 * time.Second},
	}
}

func (c *posClient) post(ctx context.Context, path string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req)
}

func (c *posClient) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *posClient) do(req *http.Request) ([]byte, error) {
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode >= http.StatusBadRequest {
		var problem problemDetail
		_ = json.Unmarshal(raw, &problem)
		return nil, apiError{status: res.StatusCode, problem: problem}
	}
	return raw, nil
}
