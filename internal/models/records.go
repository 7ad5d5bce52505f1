package models

import "time"

type DatasetKind string

const (
	KindTransactions DatasetKind = "transactions"
	KindCustomers    DatasetKind = "customers"
	KindStrategies   DatasetKind = "strategies"
)

func (k DatasetKind) Valid() bool {
	switch k {
	case KindTransactions, KindCustomers, KindStrategies:
		return true
	}
	return false
}

// TransactionRecord is one subscription or purchase event from the
// performance export. SignedYear/Month/Day are zero when the signing date
// could not be parsed.
type TransactionRecord struct {
	GroupID         string  `json:"group_id" bson:"group_id"`
	Amount          float64 `json:"amount" bson:"amount"`
	AdvisorID       string  `json:"advisor_id" bson:"advisor_id"`
	AdvisorName     string  `json:"advisor_name" bson:"advisor_name"`
	MainAdvisorID   string  `json:"main_advisor_id" bson:"main_advisor_id"`
	MainAdvisorName string  `json:"main_advisor_name" bson:"main_advisor_name"`
	CustomerTier    string  `json:"customer_tier" bson:"customer_tier"`
	BusinessUnit    string  `json:"business_unit" bson:"business_unit"`
	ProductName     string  `json:"product_name" bson:"product_name"`
	ProjectName     string  `json:"project_name" bson:"project_name"`
	ProductCode     string  `json:"product_code" bson:"product_code"`
	SignedDate      string  `json:"signed_date" bson:"signed_date"`
	SignedYear      int     `json:"signed_year" bson:"signed_year"`
	SignedMonth     int     `json:"signed_month" bson:"signed_month"`
	SignedDay       int     `json:"signed_day" bson:"signed_day"`
}

// CustomerRecord is one household from the customer roster.
type CustomerRecord struct {
	GroupID            string  `json:"group_id" bson:"group_id"`
	DirectAdvisorID    string  `json:"direct_advisor_id" bson:"direct_advisor_id"`
	DirectAdvisorName  string  `json:"direct_advisor_name" bson:"direct_advisor_name"`
	CollabAdvisorID    string  `json:"collab_advisor_id" bson:"collab_advisor_id"`
	CollabAdvisorName  string  `json:"collab_advisor_name" bson:"collab_advisor_name"`
	FutureTier         string  `json:"future_tier" bson:"future_tier"`
	InvestmentBalance  float64 `json:"investment_balance" bson:"investment_balance"`
	WealthCenter       string  `json:"wealth_center" bson:"wealth_center"`
	MaskedCustomerName string  `json:"masked_customer_name" bson:"masked_customer_name"`
	Injured            string  `json:"injured" bson:"injured"`
}

type StrategyMapping struct {
	ProjectName    string `json:"project_name" bson:"project_name"`
	ProductName    string `json:"product_name" bson:"product_name"`
	ProductCode    string `json:"product_code" bson:"product_code"`
	MajorStrategy  string `json:"major_strategy" bson:"major_strategy"`
	DetailStrategy string `json:"detail_strategy" bson:"detail_strategy"`
	IsQD           string `json:"is_qd" bson:"is_qd"`
}

// Datasets is the read-only view of the three uploaded tables that every
// analysis pass receives. Slices are shared, never mutated.
type Datasets struct {
	Transactions []TransactionRecord `json:"transactions"`
	Customers    []CustomerRecord    `json:"customers"`
	Strategies   []StrategyMapping   `json:"strategies"`
}

type DatasetInfo struct {
	Kind       DatasetKind `json:"kind"`
	Records    int         `json:"records"`
	Version    string      `json:"version,omitempty"`
	UploadedAt time.Time   `json:"uploaded_at,omitzero"`
	Source     string      `json:"source,omitempty"`
}
