// Package alias resolves canonical deal fields from form payloads that use
// any of dozens of differently-named keys, possibly nested inside alternate
// payload shapes. Resolution order is fixed: locations first, then alias
// priority within each location; the first non-empty value wins.
package alias

import (
	"fmt"
	"strings"
)

// Field is a canonical deal field the resolver knows how to find.
type Field string

const (
	CompanyName    Field = "company_name"
	Email          Field = "email"
	Phone          Field = "phone"
	LoanAmount     Field = "loan_amount"
	FirstName      Field = "first_name"
	LastName       Field = "last_name"
	Purpose        Field = "purpose"
	BusinessType   Field = "business_type"
	Industry       Field = "industry"
	MonthlyRevenue Field = "monthly_revenue"
	TimeInBusiness Field = "time_in_business"
	Address        Field = "address"
	City           Field = "city"
	State          Field = "state"
	ZipCode        Field = "zip_code"
)

// locations are the nested bags searched inside a payload, in priority order.
// The empty string means the payload root.
var locations = []string{"", "Fields", "Data", "FormData", "Entry"}

// aliases maps each canonical field to its known key spellings in priority
// order. The first alias found with a usable value wins regardless of where
// later aliases appear in the payload.
var aliases = map[Field][]string{
	CompanyName: {
		"BusinessName", "LegalBusinessName", "CompanyName", "LegalCompanyName",
		"Company", "Business", "DBAName", "DBA", "TradeName", "EntityName",
		"OrganizationName", "Organization", "BusinessLegalName", "NameOfBusiness",
		"CompanyLegalName", "MerchantName", "BorrowerBusinessName",
	},
	Email: {
		"Email", "EmailAddress", "BusinessEmail", "ContactEmail", "WorkEmail",
		"ApplicantEmail", "YourEmail",
	},
	Phone: {
		"Phone", "PhoneNumber", "BusinessPhone", "ContactPhone", "CellPhone",
		"MobilePhone", "WorkPhone", "ApplicantPhone", "TelephoneNumber",
	},
	LoanAmount: {
		"LoanAmount", "FundingAmount", "AmountNeeded", "CapitalNeeded",
		"AmountRequested", "RequestedAmount", "DesiredAmount", "LoanAmountSought",
		"HowMuchFunding", "FundingNeeded", "AmountOfFunding", "Amount",
		"DesiredLoanAmount", "CapitalRequested",
	},
	FirstName: {
		"FirstName", "First", "GivenName", "ApplicantFirstName", "ContactFirstName",
	},
	LastName: {
		"LastName", "Last", "Surname", "FamilyName", "ApplicantLastName",
		"ContactLastName",
	},
	Purpose: {
		"Purpose", "LoanPurpose", "UseOfFunds", "PurposeOfLoan", "FundingPurpose",
		"WhatWillFundsBeUsedFor", "ReasonForLoan",
	},
	BusinessType: {
		"BusinessType", "TypeOfBusiness", "EntityType", "BusinessStructure",
		"CompanyType",
	},
	Industry: {
		"Industry", "BusinessIndustry", "IndustryType", "Sector", "NatureOfBusiness",
	},
	MonthlyRevenue: {
		"MonthlyRevenue", "AverageMonthlyRevenue", "MonthlySales",
		"GrossMonthlyRevenue", "RevenuePerMonth", "AvgMonthlyRevenue",
	},
	TimeInBusiness: {
		"TimeInBusiness", "YearsInBusiness", "BusinessAge", "HowLongInBusiness",
		"YearsOperating", "MonthsInBusiness",
	},
	Address: {
		"Address", "BusinessAddress", "StreetAddress", "Street", "MailingAddress",
	},
	City: {
		"City", "BusinessCity",
	},
	State: {
		"State", "BusinessState", "Province",
	},
	ZipCode: {
		"ZipCode", "Zip", "PostalCode", "BusinessZip", "ZIP",
	},
}

// Resolve returns the first usable value for the field, searching every
// location in priority order and every alias in priority order within each.
// Numeric values at or below zero are treated as absent for the amount field.
// Returns ("", false) when nothing matches.
func Resolve(payload map[string]any, field Field) (string, bool) {
	keys, known := aliases[field]
	if !known || payload == nil {
		return "", false
	}

	for _, loc := range locations {
		bag := payload
		if loc != "" {
			nested, ok := payload[loc].(map[string]any)
			if !ok {
				continue
			}
			bag = nested
		}
		for _, key := range keys {
			v, ok := bag[key]
			if !ok || v == nil {
				continue
			}
			s, usable := stringify(v, field == LoanAmount)
			if usable {
				return s, true
			}
		}
	}
	return "", false
}

// ResolveAmount resolves the loan amount field directly to a float. Zero is
// returned both for "absent" and "unparseable"; callers treat them the same.
func ResolveAmount(payload map[string]any, parse func(any) float64) float64 {
	s, ok := Resolve(payload, LoanAmount)
	if !ok {
		return 0
	}
	return parse(s)
}

func stringify(v any, amount bool) (string, bool) {
	switch t := v.(type) {
	case string:
		trimmed := strings.TrimSpace(t)
		return trimmed, trimmed != ""
	case float64:
		if amount && t <= 0 {
			return "", false
		}
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", t), "0"), "."), true
	case int:
		if amount && t <= 0 {
			return "", false
		}
		return fmt.Sprintf("%d", t), true
	case bool:
		return fmt.Sprintf("%t", t), true
	default:
		return "", false
	}
}
