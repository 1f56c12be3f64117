package usecase

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/mkravets/fin-advisor-agent/internal/core/domain"
	"github.com/mkravets/fin-advisor-agent/internal/core/ports"
)

// Tool is one live data function the router may invoke. Validate must be
// cheap and local; Invoke may hit the network. Planner output is untrusted,
// so Validate always runs first.
type Tool interface {
	Name() string
	Description() string
	Validate(args map[string]any) error
	Invoke(ctx context.Context, args map[string]any) (string, error)
}

type ToolRegistry struct {
	tools map[string]Tool
	order []string
}

func NewToolRegistry(tools ...Tool) *ToolRegistry {
	registry := &ToolRegistry{tools: make(map[string]Tool)}
	for _, tool := range tools {
		registry.tools[tool.Name()] = tool
		registry.order = append(registry.order, tool.Name())
	}
	return registry
}

func (r *ToolRegistry) Get(name string) (Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

func (r *ToolRegistry) Describe() string {
	var sb strings.Builder
	for _, name := range r.order {
		fmt.Fprintf(&sb, "- %s: %s\n", name, r.tools[name].Description())
	}
	return sb.String()
}

// tickerPattern accepts 1-5 uppercase letters with an optional exchange
// variant suffix such as BRK.B or RIO-L.
var tickerPattern = regexp.MustCompile(`^[A-Z]{1,5}([.-][A-Z]{1,2})?$`)

func validateTicker(args map[string]any) (string, error) {
	raw, ok := args["ticker"].(string)
	if !ok || raw == "" {
		return "", domain.WrapError(domain.ErrValidation, "validate ticker",
			fmt.Errorf("missing ticker argument"))
	}
	ticker := strings.TrimSpace(raw)
	if !tickerPattern.MatchString(ticker) {
		return "", domain.WrapError(domain.ErrValidation, "validate ticker",
			fmt.Errorf("%q is not a valid ticker symbol", ticker))
	}
	return ticker, nil
}

// PriceLookupTool resolves a ticker to its latest market price.
type PriceLookupTool struct {
	provider ports.MarketDataProvider
}

func NewPriceLookupTool(provider ports.MarketDataProvider) *PriceLookupTool {
	return &PriceLookupTool{provider: provider}
}

func (t *PriceLookupTool) Name() string { return "price_lookup" }

func (t *PriceLookupTool) Description() string {
	return "current market price for a stock ticker; args: {\"ticker\": \"AAPL\"}"
}

func (t *PriceLookupTool) Validate(args map[string]any) error {
	_, err := validateTicker(args)
	return err
}

func (t *PriceLookupTool) Invoke(ctx context.Context, args map[string]any) (string, error) {
	ticker, err := validateTicker(args)
	if err != nil {
		return "", err
	}
	quote, err := t.provider.Quote(ctx, ticker)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s trades at %.2f %s as of %s (source: price_lookup)",
		quote.Ticker, quote.Price, quote.Currency, quote.AsOf.Format("2006-01-02 15:04 MST")), nil
}

// CompanyInfoTool resolves a ticker to its company profile.
type CompanyInfoTool struct {
	provider ports.MarketDataProvider
}

func NewCompanyInfoTool(provider ports.MarketDataProvider) *CompanyInfoTool {
	return &CompanyInfoTool{provider: provider}
}

func (t *CompanyInfoTool) Name() string { return "company_info" }

func (t *CompanyInfoTool) Description() string {
	return "company name, sector and business summary for a stock ticker; args: {\"ticker\": \"MSFT\"}"
}

func (t *CompanyInfoTool) Validate(args map[string]any) error {
	_, err := validateTicker(args)
	return err
}

func (t *CompanyInfoTool) Invoke(ctx context.Context, args map[string]any) (string, error) {
	ticker, err := validateTicker(args)
	if err != nil {
		return "", err
	}
	profile, err := t.provider.CompanyProfile(ctx, ticker)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s (%s), sector %s, market cap %d: %s (source: company_info)",
		profile.Name, profile.Ticker, profile.Sector, profile.MarketCap, profile.Summary), nil
}

// ProjectionTool computes compound growth. Pure computation, no network.
type ProjectionTool struct{}

func NewProjectionTool() *ProjectionTool {
	return &ProjectionTool{}
}

func (t *ProjectionTool) Name() string { return "investment_projection" }

func (t *ProjectionTool) Description() string {
	return "future value of a principal under compound interest, optionally with a recurring monthly contribution; args: {\"principal\": 1000, \"annual_rate\": 0.05, \"years\": 10, \"compounding\": \"annual\", \"monthly_contribution\": 100}"
}

var compoundingPeriods = map[string]int{
	"annual":     1,
	"semiannual": 2,
	"quarterly":  4,
	"monthly":    12,
}

func (t *ProjectionTool) Validate(args map[string]any) error {
	_, err := parseProjectionArgs(args)
	return err
}

func (t *ProjectionTool) Invoke(_ context.Context, args map[string]any) (string, error) {
	p, err := parseProjectionArgs(args)
	if err != nil {
		return "", err
	}

	futureValue := Project(p.principal, p.rate, p.years, p.periods)
	if p.monthlyContribution > 0 {
		futureValue += ProjectContributions(p.monthlyContribution, p.rate, p.years)
		return fmt.Sprintf("projected value after %.4g years: %.2f (principal %.2f at %.2f%% annual rate plus %.2f monthly, source: investment_projection)",
			p.years, futureValue, p.principal, p.rate*100, p.monthlyContribution), nil
	}
	return fmt.Sprintf("projected value after %.4g years: %.2f (principal %.2f at %.2f%% annual rate, source: investment_projection)",
		p.years, futureValue, p.principal, p.rate*100), nil
}

// Project returns the compounded future value of principal at the given
// annual rate over years, with m compounding periods per year.
func Project(principal, annualRate, years float64, periodsPerYear int) float64 {
	m := float64(periodsPerYear)
	return principal * math.Pow(1+annualRate/m, m*years)
}

// ProjectContributions returns the future value of a recurring monthly
// contribution compounded monthly over years. Contributions are made at the
// end of each month.
func ProjectContributions(monthly, annualRate, years float64) float64 {
	n := 12 * years
	i := annualRate / 12
	if i == 0 {
		return monthly * n
	}
	return monthly * (math.Pow(1+i, n) - 1) / i
}

type projectionArgs struct {
	principal           float64
	rate                float64
	years               float64
	periods             int
	monthlyContribution float64
}

func parseProjectionArgs(args map[string]any) (projectionArgs, error) {
	var p projectionArgs

	principal, ok := toFloat(args["principal"])
	if !ok || principal < 0 {
		return p, domain.WrapError(domain.ErrInvalidProjectionInput, "validate projection",
			fmt.Errorf("principal must be a non-negative number"))
	}
	rate, ok := toFloat(args["annual_rate"])
	if !ok || rate < -1 {
		return p, domain.WrapError(domain.ErrInvalidProjectionInput, "validate projection",
			fmt.Errorf("annual_rate must be a number not below -100%%"))
	}
	years, ok := toFloat(args["years"])
	if !ok || years <= 0 {
		return p, domain.WrapError(domain.ErrInvalidProjectionInput, "validate projection",
			fmt.Errorf("years must be a positive number"))
	}

	compounding := "annual"
	if raw, ok := args["compounding"].(string); ok && raw != "" {
		compounding = strings.ToLower(raw)
	}
	periods, ok := compoundingPeriods[compounding]
	if !ok {
		return p, domain.WrapError(domain.ErrInvalidProjectionInput, "validate projection",
			fmt.Errorf("compounding must be one of annual, semiannual, quarterly, monthly"))
	}

	contribution := 0.0
	if _, present := args["monthly_contribution"]; present {
		contribution, ok = toFloat(args["monthly_contribution"])
		if !ok || contribution < 0 {
			return p, domain.WrapError(domain.ErrInvalidProjectionInput, "validate projection",
				fmt.Errorf("monthly_contribution must be a non-negative number"))
		}
	}

	return projectionArgs{
		principal:           principal,
		rate:                rate,
		years:               years,
		periods:             periods,
		monthlyContribution: contribution,
	}, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
