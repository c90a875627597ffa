package types

// BankingDetails is the payout destination supplied with a payout request and
// remembered on the earnings account for the next one. All fields are
// required; structural validation happens before anything is persisted, and
// the struct is sealed before it touches the database.
type BankingDetails struct {
	AccountHolder string `json:"accountHolder" validate:"required,min=2"`
	BankName      string `json:"bankName" validate:"required"`
	AccountNumber string `json:"accountNumber" validate:"required,numeric,min=6,max=17"`
	BranchCode    string `json:"branchCode" validate:"required,numeric,len=6"`
	AccountType   string `json:"accountType" validate:"required,oneof=cheque savings business"`
}
