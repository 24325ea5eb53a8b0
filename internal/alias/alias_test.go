package alias

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/broker-crm/internal/normalize"
)

func TestResolve_AliasPriorityWins(t *testing.T) {
	payload := map[string]any{
		"CompanyName":  "Beta",
		"BusinessName": "Acme",
	}
	v, ok := Resolve(payload, CompanyName)
	assert.True(t, ok)
	assert.Equal(t, "Acme", v)
}

func TestResolve_RootBeforeNestedBags(t *testing.T) {
	payload := map[string]any{
		"Email": "root@acme.com",
		"Fields": map[string]any{
			"Email": "nested@acme.com",
		},
	}
	v, ok := Resolve(payload, Email)
	assert.True(t, ok)
	assert.Equal(t, "root@acme.com", v)
}

func TestResolve_SearchesNestedLocations(t *testing.T) {
	payload := map[string]any{
		"Fields": map[string]any{
			"FundingAmount": "75,000",
		},
	}
	v, ok := Resolve(payload, LoanAmount)
	assert.True(t, ok)
	assert.Equal(t, "75,000", v)

	payload = map[string]any{
		"FormData": map[string]any{"TradeName": "Doe LLC"},
	}
	v, ok = Resolve(payload, CompanyName)
	assert.True(t, ok)
	assert.Equal(t, "Doe LLC", v)
}

func TestResolve_SkipsEmptyAndWhitespace(t *testing.T) {
	payload := map[string]any{
		"BusinessName": "   ",
		"CompanyName":  "Beta",
	}
	v, ok := Resolve(payload, CompanyName)
	assert.True(t, ok)
	assert.Equal(t, "Beta", v)
}

func TestResolve_AmountZeroTreatedAsAbsent(t *testing.T) {
	payload := map[string]any{
		"LoanAmount":    float64(0),
		"FundingAmount": float64(50000),
	}
	v, ok := Resolve(payload, LoanAmount)
	assert.True(t, ok)
	assert.Equal(t, "50000", v)
}

func TestResolve_NoMatchReturnsFalse(t *testing.T) {
	_, ok := Resolve(map[string]any{"Unrelated": "x"}, CompanyName)
	assert.False(t, ok)

	_, ok = Resolve(nil, CompanyName)
	assert.False(t, ok)
}

func TestResolveAmount(t *testing.T) {
	payload := map[string]any{
		"Fields": map[string]any{"CapitalNeeded": "$120,000"},
	}
	assert.Equal(t, 120000.0, ResolveAmount(payload, normalize.ParseCurrency))

	assert.Equal(t, 0.0, ResolveAmount(map[string]any{}, normalize.ParseCurrency))
}
