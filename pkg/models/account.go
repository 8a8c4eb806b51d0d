package models

// Account is a registered platform account as summarized by the admin user
// listing. Only the fields the distribution workflow needs are modeled.
type Account struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	KYCStatus string `json:"kyc_status,omitempty"`
}
