package model

import "time"

// DealStatus represents a deal's position in the sales pipeline.
type DealStatus string

const (
	StatusNew          DealStatus = "New"
	StatusContacted    DealStatus = "Contacted"
	StatusQualified    DealStatus = "Qualified"
	StatusUnderwriting DealStatus = "Underwriting"
	StatusFunded       DealStatus = "Funded"
	StatusDeclined     DealStatus = "Declined"
)

// AllDealStatuses returns all defined pipeline statuses.
func AllDealStatuses() []DealStatus {
	return []DealStatus{
		StatusNew,
		StatusContacted,
		StatusQualified,
		StatusUnderwriting,
		StatusFunded,
		StatusDeclined,
	}
}

// LoanType represents a loan product category.
type LoanType string

const (
	LoanEquipmentFinancing LoanType = "Equipment Financing"
	LoanWorkingCapital     LoanType = "Working Capital"
	LoanCommercialRE       LoanType = "Commercial Real Estate"
	LoanSBA7a              LoanType = "SBA 7(a)"
	LoanSBA504             LoanType = "SBA 504"
	LoanMCA                LoanType = "Merchant Cash Advance"
	LoanLineOfCredit       LoanType = "Line of Credit"
	LoanTermLoan           LoanType = "Term Loan"
	LoanPersonal           LoanType = "Personal Loan"
	LoanFactoring          LoanType = "Factoring"
	LoanUnknown            LoanType = "Unknown"

	// LoanBusiness only appears on email-sourced deals whose subject carried
	// the generic "Business Loan" wording rather than a product name.
	LoanBusiness LoanType = "Business Loan"
)

// Source tags identifying which channel created a deal. Free-text provenance,
// not enforced by the store.
const (
	SourceCognitoForms = "CognitoForms"
	SourceGmail        = "Gmail"
	SourceDemo         = "demo"
	SourceTestData     = "test_data"
)

// ExternalIDColumn names a store column holding a source-provided identity.
type ExternalIDColumn string

const (
	ColCognitoEntryID ExternalIDColumn = "cognito_entry_id"
	ColGmailMessageID ExternalIDColumn = "gmail_message_id"
)

// ParsedDeal is the canonical output of a channel parser. It is created fresh
// on every parse and handed to the dedup gate; nothing caches it.
type ParsedDeal struct {
	LegalCompanyName string     `json:"legal_company_name"`
	ClientName       string     `json:"client_name,omitempty"`
	ClientEmail      string     `json:"client_email,omitempty"`
	ClientPhone      string     `json:"client_phone,omitempty"`
	LoanAmountSought float64    `json:"loan_amount_sought"`
	LoanType         LoanType   `json:"loan_type"`
	Status           DealStatus `json:"status"`
	Source           string     `json:"source"`

	Purpose        string `json:"purpose,omitempty"`
	BusinessType   string `json:"business_type,omitempty"`
	Industry       string `json:"industry,omitempty"`
	MonthlyRevenue string `json:"monthly_revenue,omitempty"`
	TimeInBusiness string `json:"time_in_business,omitempty"`
	Address        string `json:"address,omitempty"`
	City           string `json:"city,omitempty"`
	State          string `json:"state,omitempty"`
	ZipCode        string `json:"zip_code,omitempty"`
	ReferralSource string `json:"referral_source,omitempty"`
	EmploymentInfo string `json:"employment_info,omitempty"`

	// External identity, used as the deduplication key.
	CognitoEntryID     string `json:"cognito_entry_id,omitempty"`
	CognitoEntryNumber int    `json:"cognito_entry_number,omitempty"`
	CognitoFormID      string `json:"cognito_form_id,omitempty"`
	GmailMessageID     string `json:"gmail_message_id,omitempty"`

	// CreatedAt reflects the source system's submission time, never sync time.
	CreatedAt  time.Time `json:"created_at"`
	RawPayload string    `json:"raw_payload,omitempty"`
}

// ExternalID returns the dedup key column and value for this deal's channel.
// ok is false when the deal carries no external identity at all.
func (p *ParsedDeal) ExternalID() (col ExternalIDColumn, value string, ok bool) {
	if p.GmailMessageID != "" {
		return ColGmailMessageID, p.GmailMessageID, true
	}
	if p.CognitoEntryID != "" {
		return ColCognitoEntryID, p.CognitoEntryID, true
	}
	return "", "", false
}

// Deal is the persisted record owned by the deal store. After creation the
// ingestion pipeline never touches its business fields; only CRM users mutate
// status, notes, and assignment.
type Deal struct {
	ID string `json:"id"`
	ParsedDeal
	NotesInternal string    `json:"notes_internal,omitempty"`
	AssignedTo    string    `json:"assigned_to,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// RunResult aggregates a sync orchestrator run's per-item outcomes.
type RunResult struct {
	Processed    int       `json:"processed"`
	Skipped      int       `json:"skipped"`
	Errors       int       `json:"errors"`
	FormsChecked int       `json:"forms_checked,omitempty"`
	Replaced     int64     `json:"replaced,omitempty"`
	From         time.Time `json:"from,omitempty"`
	To           time.Time `json:"to,omitempty"`
}
