package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// StatementStatus is the lifecycle state of a broker statement.
type StatementStatus string

// Statement lifecycle states. Transitions are strictly forward and
// single-step; PAID is terminal.
const (
	StatementUploaded  StatementStatus = "UPLOADED"
	StatementParsing   StatementStatus = "PARSING"
	StatementParsed    StatementStatus = "PARSED"
	StatementValidated StatementStatus = "VALIDATED"
	StatementSent      StatementStatus = "SENT"
	StatementPaid      StatementStatus = "PAID"
)

// SentMethod records how a statement's reclaim was submitted.
type SentMethod string

const (
	SentMethodEmail  SentMethod = "EMAIL"
	SentMethodPostal SentMethod = "POSTAL"
	SentMethodOnline SentMethod = "ONLINE"
)

// DividendStatement is the unit of intake: one uploaded broker statement,
// tracked from upload through payout. The summary fields (DividendCount,
// TotalGrossAmount, TotalReclaimable) are stamped together with the parsed
// dividend rows.
type DividendStatement struct {
	ID               string           `json:"id"`
	OwnerUserID      string           `json:"ownerUserId"`
	SourceFileRef    string           `json:"sourceFileRef"`
	Broker           string           `json:"broker"`
	PeriodStart      time.Time        `json:"periodStart"`
	PeriodEnd        time.Time        `json:"periodEnd"`
	Status           StatementStatus  `json:"status"`
	ParsedAt         *time.Time       `json:"parsedAt"`
	ValidatedAt      *time.Time       `json:"validatedAt"`
	SentAt           *time.Time       `json:"sentAt"`
	PaidAt           *time.Time       `json:"paidAt"`
	SentMethod       SentMethod       `json:"sentMethod,omitempty"` // set when entering SENT
	SentNotes        string           `json:"sentNotes,omitempty"`
	PaidAmount       *decimal.Decimal `json:"paidAmount"`
	DividendCount    int              `json:"dividendCount"`
	TotalGrossAmount decimal.Decimal  `json:"totalGrossAmount"`
	TotalReclaimable decimal.Decimal  `json:"totalReclaimable"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}
