package parse

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sells-group/broker-crm/internal/alias"
	"github.com/sells-group/broker-crm/internal/classify"
	"github.com/sells-group/broker-crm/internal/model"
	"github.com/sells-group/broker-crm/internal/normalize"
)

// ParseForm converts a forms-platform entry into a canonical ParsedDeal.
// Field resolution goes through the aliaser; classification and the lead
// score are deterministic functions of what was found.
func ParseForm(entry model.FormEntry) *model.ParsedDeal {
	payload := entry.Fields
	if payload == nil {
		payload = map[string]any{}
	}

	resolve := func(f alias.Field) string {
		v, _ := alias.Resolve(payload, f)
		return v
	}

	company := normalize.CleanCompany(resolve(alias.CompanyName))
	email := normalize.CleanEmail(resolve(alias.Email))
	phone := resolve(alias.Phone)
	amount := alias.ResolveAmount(payload, normalize.ParseCurrency)

	firstName := resolve(alias.FirstName)
	lastName := resolve(alias.LastName)
	purpose := resolve(alias.Purpose)
	businessType := resolve(alias.BusinessType)
	industry := resolve(alias.Industry)
	monthlyRevenue := resolve(alias.MonthlyRevenue)
	timeInBusiness := resolve(alias.TimeInBusiness)

	if company == "" {
		company = fmt.Sprintf("Form Entry #%d", entry.Number)
	}

	facts := classify.LeadFacts{
		HasCompany:        !strings.HasPrefix(company, "Form Entry #"),
		HasEmail:          email != "",
		HasPhone:          phone != "",
		AmountPositive:    amount > 0,
		HasMonthlyRevenue: monthlyRevenue != "",
		HasTimeInBusiness: timeInBusiness != "",
		HasIndustry:       industry != "",
	}

	classifyText := strings.TrimSpace(purpose + " " + businessType + " " + industry)
	loanType := classify.ClassifyLoanType(amount, entry.FormName, classifyText)

	deal := &model.ParsedDeal{
		LegalCompanyName:   company,
		ClientName:         deriveClientName(firstName, lastName, email),
		ClientEmail:        email,
		ClientPhone:        normalize.FormatPhone(phone),
		LoanAmountSought:   amount,
		LoanType:           loanType,
		Status:             facts.Status(),
		Source:             model.SourceCognitoForms,
		Purpose:            purpose,
		BusinessType:       businessType,
		Industry:           industry,
		MonthlyRevenue:     monthlyRevenue,
		TimeInBusiness:     timeInBusiness,
		Address:            resolve(alias.Address),
		City:               resolve(alias.City),
		State:              resolve(alias.State),
		ZipCode:            resolve(alias.ZipCode),
		CognitoEntryID:     entry.ID,
		CognitoEntryNumber: entry.Number,
		CognitoFormID:      entry.FormID,
		CreatedAt:          entryCreatedAt(entry),
		RawPayload:         archivePayload(entry),
	}

	return deal
}

// deriveClientName picks the best available client name: both name parts,
// first name alone, or the email local-part title-cased.
func deriveClientName(first, last, email string) string {
	first = strings.TrimSpace(first)
	last = strings.TrimSpace(last)
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	case email != "":
		return normalize.NameFromEmail(email)
	default:
		return ""
	}
}

// entryCreatedAt uses the source's submission timestamp, never the sync time,
// unless the source gave nothing parseable at all.
func entryCreatedAt(entry model.FormEntry) time.Time {
	if entry.DateCreated != "" {
		iso := normalize.NormalizeDate(entry.DateCreated)
		// Prefer the full timestamp when the source sent one.
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
			if t, err := time.Parse(layout, entry.DateCreated); err == nil {
				return t
			}
		}
		if t, err := time.Parse("2006-01-02", iso); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}

// archivePayload stringifies the raw entry for later inspection. The blob is
// an audit artifact; parse failures degrade to an empty string rather than
// blocking ingestion.
func archivePayload(entry model.FormEntry) string {
	b, err := json.Marshal(map[string]any{
		"source":       "cognitoforms_api",
		"entry_id":     entry.ID,
		"entry_number": entry.Number,
		"form_id":      entry.FormID,
		"form_name":    entry.FormName,
		"fields":       entry.Fields,
	})
	if err != nil {
		return ""
	}
	return string(b)
}
