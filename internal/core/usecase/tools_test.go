package usecase

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/mkravets/fin-advisor-agent/internal/core/domain"
)

func TestTickerValidationRejectsBeforeAnyNetworkCall(t *testing.T) {
	provider := &fakeMarketProvider{}
	tool := NewPriceLookupTool(provider)

	bad := []map[string]any{
		{"ticker": "toolong"},
		{"ticker": "aapl"},
		{"ticker": "AAPL123"},
		{"ticker": "A.B.C"},
		{"ticker": ""},
		{},
	}
	for _, args := range bad {
		if err := tool.Validate(args); !domain.IsKind(err, domain.ErrValidation) {
			t.Fatalf("expected validation error for %v, got %v", args, err)
		}
		if _, err := tool.Invoke(context.Background(), args); !domain.IsKind(err, domain.ErrValidation) {
			t.Fatalf("expected invoke to reject %v, got %v", args, err)
		}
	}

	quoteCalls, _ := provider.calls()
	if quoteCalls != 0 {
		t.Fatalf("invalid tickers must never reach the provider, saw %d calls", quoteCalls)
	}
}

func TestTickerValidationAcceptsExchangeVariants(t *testing.T) {
	tool := NewPriceLookupTool(&fakeMarketProvider{})
	for _, ticker := range []string{"A", "AAPL", "BRK.B", "RIO-L"} {
		if err := tool.Validate(map[string]any{"ticker": ticker}); err != nil {
			t.Fatalf("expected %q to validate, got %v", ticker, err)
		}
	}
}

func TestProjectionAnnualCompounding(t *testing.T) {
	got := Project(1000, 0.05, 10, 1)
	if math.Abs(got-1628.89) > 0.01 {
		t.Fatalf("expected about 1628.89, got %f", got)
	}
}

func TestProjectionToolComputesFutureValue(t *testing.T) {
	tool := NewProjectionTool()
	args := map[string]any{
		"principal":   float64(1000),
		"annual_rate": 0.05,
		"years":       float64(10),
		"compounding": "annual",
	}
	if err := tool.Validate(args); err != nil {
		t.Fatalf("validate: %v", err)
	}
	result, err := tool.Invoke(context.Background(), args)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if result == "" {
		t.Fatal("expected a result string")
	}
}

func TestProjectionMonthlyContributions(t *testing.T) {
	got := ProjectContributions(100, 0.12, 1)
	if math.Abs(got-1268.25) > 0.01 {
		t.Fatalf("expected about 1268.25, got %f", got)
	}

	flat := ProjectContributions(100, 0, 2)
	if math.Abs(flat-2400) > 0.001 {
		t.Fatalf("zero rate must sum contributions, got %f", flat)
	}
}

func TestProjectionToolAddsContributions(t *testing.T) {
	tool := NewProjectionTool()
	args := map[string]any{
		"principal":            float64(1000),
		"annual_rate":          0.05,
		"years":                float64(10),
		"monthly_contribution": float64(100),
	}
	result, err := tool.Invoke(context.Background(), args)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if !strings.Contains(result, "100.00 monthly") {
		t.Fatalf("expected the contribution in the result, got %q", result)
	}
}

func TestProjectionRejectsImpossibleInputs(t *testing.T) {
	tool := NewProjectionTool()

	cases := []map[string]any{
		{"principal": float64(1000), "annual_rate": float64(-150), "years": float64(1)},
		{"principal": float64(1000), "annual_rate": 0.05, "years": float64(0)},
		{"principal": float64(1000), "annual_rate": 0.05, "years": float64(-2)},
		{"principal": float64(-5), "annual_rate": 0.05, "years": float64(1)},
		{"principal": float64(1000), "annual_rate": 0.05, "years": float64(1), "compounding": "hourly"},
		{"principal": float64(1000), "annual_rate": 0.05, "years": float64(1), "monthly_contribution": float64(-10)},
	}
	for _, args := range cases {
		if err := tool.Validate(args); !domain.IsKind(err, domain.ErrInvalidProjectionInput) {
			t.Fatalf("expected invalid projection input for %v, got %v", args, err)
		}
	}
}

func TestRegistryDescribeListsToolsInOrder(t *testing.T) {
	registry := NewToolRegistry(
		NewPriceLookupTool(&fakeMarketProvider{}),
		NewCompanyInfoTool(&fakeMarketProvider{}),
		NewProjectionTool(),
	)

	if _, ok := registry.Get("price_lookup"); !ok {
		t.Fatal("price_lookup missing from registry")
	}
	if _, ok := registry.Get("nonexistent"); ok {
		t.Fatal("unknown tool must not resolve")
	}
	catalog := registry.Describe()
	if catalog == "" {
		t.Fatal("expected a tool catalog")
	}
}
