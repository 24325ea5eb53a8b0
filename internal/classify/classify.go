// Package classify holds the shared loan-type keyword table and the
// lead-quality scoring used by both ingestion channels. One table serves both
// the email and form paths so the categories cannot drift apart.
package classify

import (
	"regexp"
	"strings"

	"github.com/sells-group/broker-crm/internal/model"
)

// loanTypeKeywords maps each category to its trigger keywords. Order matters:
// the first category whose keyword appears in the text wins, so the more
// specific products come before the generic ones.
var loanTypeKeywords = []struct {
	Type     model.LoanType
	Keywords []string
}{
	{model.LoanSBA504, []string{"sba 504", "504 loan"}},
	{model.LoanSBA7a, []string{"sba 7(a)", "sba 7a", "sba loan", "sba"}},
	{model.LoanEquipmentFinancing, []string{"equipment", "machinery", "vehicle financing"}},
	{model.LoanCommercialRE, []string{"real estate", "commercial property", "property purchase", "mortgage"}},
	{model.LoanMCA, []string{"merchant cash", "cash advance", "mca"}},
	{model.LoanLineOfCredit, []string{"line of credit", "credit line", "revolving credit"}},
	{model.LoanFactoring, []string{"factoring", "invoice financing", "accounts receivable"}},
	{model.LoanWorkingCapital, []string{"working capital", "payroll", "inventory", "cash flow"}},
	{model.LoanPersonal, []string{"personal loan", "personal"}},
	{model.LoanTermLoan, []string{"term loan", "business loan", "expansion"}},
}

// LoanTypeFromText returns the first category whose keyword appears in the
// text (case-insensitive substring). ok is false when nothing matches.
func LoanTypeFromText(text string) (model.LoanType, bool) {
	lower := strings.ToLower(text)
	if strings.TrimSpace(lower) == "" {
		return "", false
	}
	for _, entry := range loanTypeKeywords {
		for _, kw := range entry.Keywords {
			if strings.Contains(lower, kw) {
				return entry.Type, true
			}
		}
	}
	return "", false
}

// LoanTypeFromAmount is the last-resort heuristic when no text matched:
// large requests read as real estate, small ones as working capital, and the
// middle as a generic term loan.
func LoanTypeFromAmount(amount float64) model.LoanType {
	switch {
	case amount > 500000:
		return model.LoanCommercialRE
	case amount > 0 && amount < 100000:
		return model.LoanWorkingCapital
	default:
		return model.LoanTermLoan
	}
}

// ClassifyLoanType runs the full chain: keyword table over the given text
// fragments in order, then the amount heuristic.
func ClassifyLoanType(amount float64, texts ...string) model.LoanType {
	for _, text := range texts {
		if lt, ok := LoanTypeFromText(text); ok {
			return lt
		}
	}
	return LoanTypeFromAmount(amount)
}

// subjectLoanTypeRe matches the closed set of loan-type names that appear in
// notification subjects.
var subjectLoanTypeRe = regexp.MustCompile(`(?i)\b(business loan|equipment financing|working capital|commercial real estate|sba|merchant cash advance|line of credit|term loan|personal loan|factoring)\b`)

// LoanTypeFromSubject extracts a loan type from an email subject line using a
// fixed regex over the closed category set. Returns Unknown when no match.
func LoanTypeFromSubject(subject string) model.LoanType {
	m := subjectLoanTypeRe.FindString(subject)
	if m == "" {
		return model.LoanUnknown
	}
	switch strings.ToLower(m) {
	case "business loan":
		return model.LoanBusiness
	case "equipment financing":
		return model.LoanEquipmentFinancing
	case "working capital":
		return model.LoanWorkingCapital
	case "commercial real estate":
		return model.LoanCommercialRE
	case "sba":
		return model.LoanSBA7a
	case "merchant cash advance":
		return model.LoanMCA
	case "line of credit":
		return model.LoanLineOfCredit
	case "term loan":
		return model.LoanTermLoan
	case "personal loan":
		return model.LoanPersonal
	case "factoring":
		return model.LoanFactoring
	default:
		return model.LoanUnknown
	}
}

// LeadFacts captures which fields were present on a form submission. The
// score is a function of presence only, never of value quality.
type LeadFacts struct {
	HasCompany        bool
	HasEmail          bool
	HasPhone          bool
	AmountPositive    bool
	HasMonthlyRevenue bool
	HasTimeInBusiness bool
	HasIndustry       bool
}

// Score computes the deterministic lead-quality point total.
func (f LeadFacts) Score() int {
	score := 0
	if f.HasCompany {
		score += 2
	}
	if f.HasEmail {
		score += 2
	}
	if f.HasPhone {
		score += 2
	}
	if f.AmountPositive {
		score += 3
	}
	if f.HasMonthlyRevenue {
		score++
	}
	if f.HasTimeInBusiness {
		score++
	}
	if f.HasIndustry {
		score++
	}
	return score
}

// Status maps a lead-quality score onto the initial pipeline status.
func (f LeadFacts) Status() model.DealStatus {
	switch score := f.Score(); {
	case score >= 8:
		return model.StatusQualified
	case score >= 6:
		return model.StatusContacted
	default:
		return model.StatusNew
	}
}
