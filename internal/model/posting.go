package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sentinel accounts hledger routes uncategorized postings to.
const (
	UnknownIncomeAccount  = "income:unknown"
	UnknownExpenseAccount = "expenses:unknown"
)

// UnknownPosting is a transaction leg the ledger engine parked under a
// sentinel unknown account during a dry-run preview.
type UnknownPosting struct {
	Date        time.Time
	Description string
	Amount      decimal.Decimal
	Currency    string
	Account     string
	// Running is the cumulative unknown amount up to and including
	// this posting, as reported in preview order.
	Running decimal.Decimal
	// Source holds the original CSV row the posting came from, when
	// it could be recovered. Enrichment is best-effort; a nil map
	// means the row could not be located.
	Source map[string]string
}
