package models

type Segment string

const (
	SegmentTotal  Segment = "total"
	SegmentSelf   Segment = "self"
	SegmentCollab Segment = "collab"
)

func (s Segment) SortOrder() int {
	switch s {
	case SegmentTotal:
		return 0
	case SegmentSelf:
		return 1
	default:
		return 2
	}
}

// GroupTotal is a single-dimension row over transactions.
type GroupTotal struct {
	Dimension             string  `json:"dimension"`
	Key                   string  `json:"key"`
	ID                    string  `json:"id,omitempty"`
	Name                  string  `json:"name"`
	TransactionCount      int     `json:"transaction_count"`
	CustomerCount         int     `json:"customer_count"`
	TotalAmount           float64 `json:"total_amount"`
	AmountShare           float64 `json:"amount_share"`
	AveragePerTransaction float64 `json:"average_per_transaction"`
	AveragePerCustomer    float64 `json:"average_per_customer"`
}

type YearBucket struct {
	Year             int     `json:"year"`
	TransactionCount int     `json:"transaction_count"`
	TotalAmount      float64 `json:"total_amount"`
}

type MonthBucket struct {
	Period           string  `json:"period"`
	Year             int     `json:"year"`
	Month            int     `json:"month"`
	TransactionCount int     `json:"transaction_count"`
	TotalAmount      float64 `json:"total_amount"`
}

type TimeSeries struct {
	ByYear  []YearBucket  `json:"by_year"`
	ByMonth []MonthBucket `json:"by_month"`
}

type AdvisorMapping struct {
	AdvisorName     string  `json:"advisor_name"`
	MainAdvisorName string  `json:"main_advisor_name"`
	Amount          float64 `json:"amount"`
	Percentage      float64 `json:"percentage"`
}

type DataSummary struct {
	TotalAmount      float64 `json:"total_amount"`
	TransactionCount int     `json:"transaction_count"`
	CustomerCount    int     `json:"customer_count"`
	AdvisorCount     int     `json:"advisor_count"`
	ProductCount     int     `json:"product_count"`
}

// Overview is the transaction dashboard: every single-dimension grouping
// computed over the same (possibly filtered) transaction slice.
type Overview struct {
	Summary        DataSummary      `json:"summary"`
	Advisors       []GroupTotal     `json:"advisors"`
	MainAdvisors   []GroupTotal     `json:"main_advisors"`
	Tiers          []GroupTotal     `json:"tiers"`
	TiersByRank    []GroupTotal     `json:"tiers_by_rank"`
	BusinessUnits  []GroupTotal     `json:"business_units"`
	Products       []GroupTotal     `json:"products"`
	Projects       []GroupTotal     `json:"projects"`
	Time           TimeSeries       `json:"time"`
	AdvisorMapping []AdvisorMapping `json:"advisor_mapping"`
}

// OrderStats is the customer-keyed aggregate shared by the order views.
type OrderStats struct {
	CustomerCount          int     `json:"customer_count"`
	OrderedCount           int     `json:"ordered_count"`
	UnorderedCount         int     `json:"unordered_count"`
	TotalInvestment        float64 `json:"total_investment"`
	TotalTransactionAmount float64 `json:"total_transaction_amount"`
	OrderRate              float64 `json:"order_rate"`
}

type AdvisorOrderRow struct {
	AdvisorName string  `json:"advisor_name"`
	Segment     Segment `json:"segment"`
	SortOrder   int     `json:"sort_order"`
	OrderStats
}

type TierOrderRow struct {
	Tier string `json:"tier"`
	OrderStats
}

type TierOrderRates struct {
	All    []TierOrderRow `json:"all"`
	Self   []TierOrderRow `json:"self"`
	Collab []TierOrderRow `json:"collab"`
}

type OrderSummary struct {
	TotalCustomers         int     `json:"total_customers"`
	OrderedCustomers       int     `json:"ordered_customers"`
	UnorderedCustomers     int     `json:"unordered_customers"`
	TotalInvestment        float64 `json:"total_investment"`
	TotalTransactionAmount float64 `json:"total_transaction_amount"`
	OrderRate              float64 `json:"order_rate"`
}

type OrderStatusReport struct {
	Advisors []AdvisorOrderRow `json:"advisors"`
	Tiers    TierOrderRates    `json:"tiers"`
	Summary  OrderSummary      `json:"summary"`
}

type CounterpartGroup struct {
	DirectAdvisorName string         `json:"direct_advisor_name"`
	Total             OrderStats     `json:"total"`
	ByTier            []TierOrderRow `json:"by_tier"`
}

type AdvisorDetailSummary struct {
	CustomerCount   int     `json:"customer_count"`
	OrderedCount    int     `json:"ordered_count"`
	TotalInvestment float64 `json:"total_investment"`
	OrderRate       float64 `json:"order_rate"`
}

type AdvisorDetailReport struct {
	AdvisorName         string               `json:"advisor_name"`
	TotalByTier         []TierOrderRow       `json:"total_by_tier"`
	SelfByTier          []TierOrderRow       `json:"self_by_tier"`
	CollabByCounterpart []CounterpartGroup   `json:"collab_by_counterpart"`
	Summary             AdvisorDetailSummary `json:"summary"`
}

type AttributionSplit struct {
	SelfCount        int     `json:"self_count"`
	CollabCount      int     `json:"collab_count"`
	SelfInvestment   float64 `json:"self_investment"`
	CollabInvestment float64 `json:"collab_investment"`
}

type TierSplit struct {
	Tier string `json:"tier"`
	AttributionSplit
}

type PortfolioAdvisorRow struct {
	AdvisorName     string      `json:"advisor_name"`
	AdvisorID       string      `json:"advisor_id"`
	CustomerCount   int         `json:"customer_count"`
	TotalInvestment float64     `json:"total_investment"`
	Tiers           []TierSplit `json:"tiers"`
	AttributionSplit
}

type PortfolioTierRow struct {
	Tier            string  `json:"tier"`
	CustomerCount   int     `json:"customer_count"`
	TotalInvestment float64 `json:"total_investment"`
	AttributionSplit
}

type CollaborationShare struct {
	Attribution     string  `json:"attribution"`
	CustomerCount   int     `json:"customer_count"`
	TotalInvestment float64 `json:"total_investment"`
	CustomerShare   float64 `json:"customer_share"`
	InvestmentShare float64 `json:"investment_share"`
}

type PortfolioSummary struct {
	TotalCustomers   int     `json:"total_customers"`
	TotalInvestment  float64 `json:"total_investment"`
	SelfCustomers    int     `json:"self_customers"`
	CollabCustomers  int     `json:"collab_customers"`
	SelfInvestment   float64 `json:"self_investment"`
	CollabInvestment float64 `json:"collab_investment"`
}

type CustomerPortfolio struct {
	Advisors      []PortfolioAdvisorRow `json:"advisors"`
	Tiers         []PortfolioTierRow    `json:"tiers"`
	Collaboration []CollaborationShare  `json:"collaboration"`
	Summary       PortfolioSummary      `json:"summary"`
}

type StrategyRow struct {
	Strategy         string  `json:"strategy"`
	MajorStrategy    string  `json:"major_strategy,omitempty"`
	TransactionCount int     `json:"transaction_count"`
	CustomerCount    int     `json:"customer_count"`
	TotalAmount      float64 `json:"total_amount"`
}

type StrategyReport struct {
	Year             int           `json:"year"`
	TransactionCount int           `json:"transaction_count"`
	TotalAmount      float64       `json:"total_amount"`
	MatchedCount     int           `json:"matched_count"`
	MatchedAmount    float64       `json:"matched_amount"`
	UnmatchedCount   int           `json:"unmatched_count"`
	UnmatchedAmount  float64       `json:"unmatched_amount"`
	MatchRate        float64       `json:"match_rate"`
	Major            []StrategyRow `json:"major"`
	Detail           []StrategyRow `json:"detail"`
}

type FilterOptions struct {
	BusinessUnits []string `json:"business_units"`
	Tiers         []string `json:"tiers"`
	Products      []string `json:"products"`
	Projects      []string `json:"projects"`
	Advisors      []string `json:"advisors"`
	MainAdvisors  []string `json:"main_advisors"`
}
