package parse

// Patch is a partial set of fields produced by one extraction strategy.
// Strategies run in priority order and a later patch only fills fields the
// merged result does not have yet.
type Patch struct {
	Company       string
	Name          string
	Email         string
	Phone         string
	Amount        float64
	AmountSet     bool
	City          string
	State         string
	ZipCode       string
	Purpose       string
	Employment    string
	Referral      string
	DateSubmitted string
}

// merge fills p's unset fields from next. Earlier strategies always win.
func (p *Patch) merge(next Patch) {
	if p.Company == "" {
		p.Company = next.Company
	}
	if p.Name == "" {
		p.Name = next.Name
	}
	if p.Email == "" {
		p.Email = next.Email
	}
	if p.Phone == "" {
		p.Phone = next.Phone
	}
	if !p.AmountSet && next.AmountSet {
		p.Amount = next.Amount
		p.AmountSet = true
	}
	if p.City == "" {
		p.City = next.City
	}
	if p.State == "" {
		p.State = next.State
	}
	if p.ZipCode == "" {
		p.ZipCode = next.ZipCode
	}
	if p.Purpose == "" {
		p.Purpose = next.Purpose
	}
	if p.Employment == "" {
		p.Employment = next.Employment
	}
	if p.Referral == "" {
		p.Referral = next.Referral
	}
	if p.DateSubmitted == "" {
		p.DateSubmitted = next.DateSubmitted
	}
}
