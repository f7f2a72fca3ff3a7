//go:build pact
// +build pact

package pacttest

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

const (
	ProviderName = "order-lifecycle-api"
	ConsumerName = "pos-terminal"

	StateNoOrders       = "no orders exist"
	StateOrderConfirmed = "order 0c7d9a4e confirmed with one item"
	StateOrderCreating  = "order 0c7d9a4e is being created"
	StateKitchenTicket  = "kitchen ticket for order 0c7d9a4e in progress"
)

const (
	ExistingOrderID = "0c7d9a4e-2b6f-4f1a-9e3d-5a8b7c6d4e2f"
	MissingOrderID  = "9f1e2d3c-4b5a-4978-8a6b-5c4d3e2f1a0b"
	ExampleItemID   = "item-1"
	ExampleProduct  = "latte"
	ExamplePrice    = "3.80"
)

// PactDir is where consumer runs write pact files and the provider reads them.
func PactDir(t testing.TB) string {
	return workspaceDir(t, "pacts")
}

// PactFile is the contract between the POS terminal and the order API.
func PactFile(t testing.TB) string {
	return filepath.Join(PactDir(t), ConsumerName+"-"+ProviderName+".json")
}

// LogDir collects pact-go logs next to other build output.
func LogDir(t testing.TB) string {
	return workspaceDir(t, "bin", "pact-logs")
}

func workspaceDir(t testing.TB, parts ...string) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot locate pact helpers")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(file), "..", ".."))
	dir := filepath.Join(append([]string{root}, parts...)...)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("create %s: %v", dir, err)
	}
	return dir
}

// ExampleCreatePayload provides stable test data for order creation.
func ExampleCreatePayload() map[string]any {
	return map[string]any{
		"orderId":  ExistingOrderID,
		"type":     "TakeAway",
		"comments": "no sugar",
	}
}
