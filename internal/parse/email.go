// Package parse turns raw channel submissions (email bodies, form entry
// payloads) into canonical ParsedDeal records. Each channel runs a chain of
// independent extraction strategies; earlier strategies win, later ones only
// fill remaining gaps.
package parse

import (
	"regexp"
	"strings"
	"time"

	"github.com/sells-group/broker-crm/internal/classify"
	"github.com/sells-group/broker-crm/internal/model"
	"github.com/sells-group/broker-crm/internal/normalize"
)

// UnknownCompany is the placeholder left when no strategy could resolve a
// company name. A record still carrying it after all strategies is skippable.
const UnknownCompany = "Unknown Company"

// cognitoNotificationDomain identifies the forms platform's notification
// sender. Combined with a loan-type keyword in the subject it gates whether
// an email is treated as a forms submission at all.
const cognitoNotificationDomain = "cognitoforms.com"

var subjectGateKeywords = []string{
	"loan", "financing", "funding", "capital", "application", "sba",
	"merchant cash advance", "line of credit", "factoring",
}

// IsCognitoNotification reports whether an email looks like a forms-platform
// submission notification: the From address contains the platform domain and
// the subject carries at least one loan-type keyword.
func IsCognitoNotification(from, subject string) bool {
	if !strings.Contains(strings.ToLower(from), cognitoNotificationDomain) {
		return false
	}
	lower := strings.ToLower(subject)
	for _, kw := range subjectGateKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

var (
	kvLineRe     = regexp.MustCompile(`^\s*([A-Za-z][A-Za-z0-9 /()'&.]{1,40}?)\s*[:\x{2013}\x{2014}]\s*(.+)$`)
	kvDashRe     = regexp.MustCompile(`^\s*([A-Za-z][A-Za-z0-9 /()'&.]{1,40}?)\s+-\s+(.+)$`)
	htmlTagRe    = regexp.MustCompile(`<[^>]+>`)
	tableCellRe  = regexp.MustCompile(`(?is)<t[dh][^>]*>\s*([^<>]+?)\s*:?\s*</t[dh]>\s*<t[dh][^>]*>\s*([^<>]+?)\s*</t[dh]>`)
	boldPairRe   = regexp.MustCompile(`(?is)<(?:b|strong)[^>]*>\s*([^<>]+?)\s*:?\s*</(?:b|strong)>\s*:?\s*([^<>\n]+)`)
	dollarRe     = regexp.MustCompile(`\$\s?[0-9][0-9,]*(?:\.[0-9]{1,2})?`)
	phoneLineRe  = regexp.MustCompile(`(?:\+?1[ .\-]?)?\(?[2-9][0-9]{2}\)?[ .\-]?[0-9]{3}[ .\-]?[0-9]{4}`)
	subjectRe    = regexp.MustCompile(`(?i)(?:from|by|for)[ :]+([A-Za-z][A-Za-z0-9 .,&'\-]{1,60})`)
	subjectAppRe = regexp.MustCompile(`(?i)application\s*[-\x{2013}\x{2014}]\s*([A-Za-z][A-Za-z0-9 .,&'\-]{1,60})`)
	brTagRe      = regexp.MustCompile(`(?i)<br\s*/?>`)
	blockCloseRe = regexp.MustCompile(`(?i)</(?:p|tr|div|li|h[1-6])>`)
	labelJunkRe  = regexp.MustCompile(`[^a-z0-9]+`)
)

// label aliases used by the key-value line strategy. Labels are normalized
// to lower_snake_case before lookup.
var kvAliases = map[string][]string{
	"company":    {"legal_company_name", "company_name", "business_name", "company", "business", "legal_business_name", "dba_name", "dba"},
	"name":       {"client_name", "contact_name", "full_name", "name", "applicant_name", "your_name"},
	"email":      {"email", "email_address", "business_email", "contact_email"},
	"phone":      {"phone", "phone_number", "business_phone", "contact_phone", "cell_phone", "mobile"},
	"amount":     {"loan_amount", "funding_amount", "amount_needed", "amount_requested", "capital_needed", "amount", "requested_amount"},
	"city":       {"city"},
	"state":      {"state"},
	"zip":        {"zip", "zip_code", "postal_code"},
	"purpose":    {"purpose", "loan_purpose", "use_of_funds", "purpose_of_loan"},
	"employment": {"employment", "employer", "occupation", "employment_status", "job_title"},
	"referral":   {"referral", "referral_source", "how_did_you_hear_about_us", "referred_by"},
	"date":       {"date_submitted", "submitted", "date", "submission_date"},
}

// EmailStrategy is one extraction pass over an email. Strategies never see
// what earlier passes found; precedence is applied by the merge step.
type EmailStrategy func(body, subject string) Patch

// emailStrategies in priority order.
var emailStrategies = []EmailStrategy{
	scanKeyValueLines,
	scanHTMLTables,
	scanLineHeuristics,
	scanSubjectFallback,
}

// ParseEmail extracts deal fields from a raw email and produces a canonical
// ParsedDeal. The record's CreatedAt comes from the message's sent time.
func ParseEmail(raw model.RawEmail) *model.ParsedDeal {
	var merged Patch
	for _, strategy := range emailStrategies {
		merged.merge(strategy(raw.Body, raw.Subject))
	}

	company := normalize.CleanCompany(merged.Company)
	if company == "" {
		company = UnknownCompany
	}

	sentAt := raw.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now().UTC()
	}

	deal := &model.ParsedDeal{
		LegalCompanyName: company,
		ClientName:       strings.TrimSpace(merged.Name),
		ClientEmail:      normalize.CleanEmail(merged.Email),
		ClientPhone:      normalize.FormatPhone(merged.Phone),
		LoanAmountSought: merged.Amount,
		LoanType:         classify.LoanTypeFromSubject(raw.Subject),
		Status:           model.StatusNew,
		Source:           model.SourceGmail,
		City:             strings.TrimSpace(merged.City),
		State:            strings.TrimSpace(merged.State),
		ZipCode:          strings.TrimSpace(merged.ZipCode),
		Purpose:          strings.TrimSpace(merged.Purpose),
		EmploymentInfo:   strings.TrimSpace(merged.Employment),
		ReferralSource:   strings.TrimSpace(merged.Referral),
		GmailMessageID:   raw.MessageID,
		CreatedAt:        sentAt,
	}

	if deal.ClientName == "" && deal.ClientEmail != "" {
		deal.ClientName = normalize.NameFromEmail(deal.ClientEmail)
	}

	if merged.DateSubmitted != "" {
		if t, err := time.Parse("2006-01-02", normalize.NormalizeDate(merged.DateSubmitted)); err == nil {
			deal.CreatedAt = t
		}
	}

	return deal
}

// Skippable reports whether a parsed email produced nothing usable: the
// company name is still the unknown placeholder.
func Skippable(deal *model.ParsedDeal) bool {
	return deal == nil || deal.LegalCompanyName == UnknownCompany
}

// scanKeyValueLines builds a normalized label→value map from "Label: value"
// (also en/em dash and spaced hyphen) lines and resolves fields through the
// label alias lists.
func scanKeyValueLines(body, _ string) Patch {
	text := stripHTML(body)
	labels := make(map[string]string)

	for _, line := range strings.Split(text, "\n") {
		m := kvLineRe.FindStringSubmatch(line)
		if m == nil {
			m = kvDashRe.FindStringSubmatch(line)
		}
		if m == nil {
			continue
		}
		label := normalizeLabel(m[1])
		value := strings.TrimSpace(m[2])
		if label == "" || value == "" {
			continue
		}
		if _, seen := labels[label]; !seen {
			labels[label] = value
		}
	}

	lookup := func(field string) string {
		for _, key := range kvAliases[field] {
			if v, ok := labels[key]; ok {
				return v
			}
		}
		return ""
	}

	p := Patch{
		Company:       lookup("company"),
		Name:          lookup("name"),
		Email:         lookup("email"),
		Phone:         lookup("phone"),
		City:          lookup("city"),
		State:         lookup("state"),
		ZipCode:       lookup("zip"),
		Purpose:       lookup("purpose"),
		Employment:    lookup("employment"),
		Referral:      lookup("referral"),
		DateSubmitted: lookup("date"),
	}
	if raw := lookup("amount"); raw != "" {
		if amt := normalize.ParseCurrency(raw); amt > 0 {
			p.Amount = amt
			p.AmountSet = true
		}
	}
	return p
}

// scanHTMLTables matches label/value pairs in adjacent table cells or
// bold-tag label followed by inline value. Only runs when the body actually
// carries table or bold markup.
func scanHTMLTables(body, _ string) Patch {
	var p Patch
	lower := strings.ToLower(body)
	if !strings.Contains(lower, "<table") && !strings.Contains(lower, "<b") && !strings.Contains(lower, "<strong") {
		return p
	}

	apply := func(label, value string) {
		value = strings.TrimSpace(value)
		if value == "" {
			return
		}
		switch normalizeLabel(label) {
		case "company", "company_name", "business_name", "legal_company_name", "business":
			if p.Company == "" {
				p.Company = value
			}
		case "email", "email_address":
			if p.Email == "" {
				p.Email = value
			}
		case "phone", "phone_number":
			if p.Phone == "" {
				p.Phone = value
			}
		case "amount", "loan_amount", "funding_amount", "amount_requested":
			if !p.AmountSet {
				if amt := normalize.ParseCurrency(value); amt > 0 {
					p.Amount = amt
					p.AmountSet = true
				}
			}
		}
	}

	for _, m := range tableCellRe.FindAllStringSubmatch(body, -1) {
		apply(m[1], m[2])
	}
	for _, m := range boldPairRe.FindAllStringSubmatch(body, -1) {
		apply(m[1], m[2])
	}
	return p
}

// scanLineHeuristics is the loose pass: a "company"/"business" line yields
// the value after the colon or, failing that, the following line; the first
// email address, phone number, and dollar amount anywhere in the body are
// taken independently.
func scanLineHeuristics(body, _ string) Patch {
	var p Patch
	text := stripHTML(body)
	lines := strings.Split(text, "\n")

	for i, line := range lines {
		lower := strings.ToLower(line)
		if p.Company == "" && (strings.Contains(lower, "company") || strings.Contains(lower, "business")) {
			if _, after, found := strings.Cut(line, ":"); found && strings.TrimSpace(after) != "" {
				p.Company = strings.TrimSpace(after)
			} else if i+1 < len(lines) && strings.TrimSpace(lines[i+1]) != "" {
				p.Company = strings.TrimSpace(lines[i+1])
			}
		}
		if p.Email == "" {
			p.Email = normalize.CleanEmail(line)
		}
		if p.Phone == "" {
			p.Phone = phoneLineRe.FindString(line)
		}
		if !p.AmountSet {
			if d := dollarRe.FindString(line); d != "" {
				if amt := normalize.ParseCurrency(d); amt > 0 {
					p.Amount = amt
					p.AmountSet = true
				}
			}
		}
	}
	return p
}

// scanSubjectFallback pulls a name out of the subject line when the body gave
// nothing: "... from NAME", "... for NAME", or "Application - NAME".
func scanSubjectFallback(_, subject string) Patch {
	var p Patch
	if m := subjectAppRe.FindStringSubmatch(subject); m != nil {
		p.Name = strings.TrimSpace(m[1])
	} else if m := subjectRe.FindStringSubmatch(subject); m != nil {
		p.Name = strings.TrimSpace(m[1])
	}
	// Subjects name a person or a company interchangeably; use the match for
	// both slots and let cleanup decide.
	p.Company = p.Name
	return p
}

func stripHTML(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	s = brTagRe.ReplaceAllString(s, "\n")
	s = blockCloseRe.ReplaceAllString(s, "\n")
	s = htmlTagRe.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	return s
}

func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(s, ":*")
	s = labelJunkRe.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}
