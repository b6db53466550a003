package models

// Profile represents normalized company reference data for a symbol.
type Profile struct {
	Symbol        string  `json:"symbol" validate:"required"`
	Name          string  `json:"name"`
	Sector        string  `json:"sector,omitempty"`
	Industry      string  `json:"industry,omitempty"`
	Description   string  `json:"description,omitempty"`
	Website       string  `json:"website,omitempty"`
	Country       string  `json:"country,omitempty"`
	City          string  `json:"city,omitempty"`
	Exchange      string  `json:"exchange,omitempty"`
	Currency      string  `json:"currency,omitempty"`
	EmployeeCount *int    `json:"employee_count,omitempty"`
	CEO           *string `json:"ceo,omitempty"`
}
