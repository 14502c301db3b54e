package domain

// User is an externally sourced user record handed to reconciliation.
// It is input, not persisted state; the persisted counterpart is Principal.
type User struct {
	OrgID          string `json:"org_id"`
	AccountID      string `json:"account_id,omitempty"`
	Username       string `json:"username"`
	UserID         string `json:"user_id"` // external user identifier
	Admin          bool   `json:"admin"`
	Active         bool   `json:"active"`
	ServiceAccount bool   `json:"service_account,omitempty"`
}
