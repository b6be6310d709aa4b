package entity

import "time"

// Provider is a medical provider claims are paid to
type Provider struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`

	PartnerRef     string `json:"partner_ref,omitempty"`     // accounting partner for payments
	ExpenseAccount string `json:"expense_account,omitempty"` // overrides the company default when set

	CreatedAt time.Time `json:"created_at"`
}

// Service is a billable medical service (e.g. LAB, RAD, SURG)
type Service struct {
	ID          int64  `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Active      bool   `json:"active"`
	Description string `json:"description,omitempty"`
}
