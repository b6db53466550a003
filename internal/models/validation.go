package models

// ValidationError represents a domain-record validation failure.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// Error implements the error interface.
func (ve ValidationError) Error() string {
	return ve.Message
}
