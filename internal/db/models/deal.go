// deal.go defines the Deal row plus the Status and Stage enumerations. Stage
// carries a fixed pipeline position used by the lifecycle engine to classify a
// transition as forward or backward.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DealStatus is the deal's outcome classification, independent of its pipeline
// stage.
type DealStatus string

const (
	DealStatusNew        DealStatus = "new"
	DealStatusInProgress DealStatus = "in_progress"
	DealStatusWon        DealStatus = "won"
	DealStatusLost       DealStatus = "lost"
)

// Valid reports whether s is a defined status.
func (s DealStatus) Valid() bool {
	switch s {
	case DealStatusNew, DealStatusInProgress, DealStatusWon, DealStatusLost:
		return true
	}
	return false
}

// DealStage is the deal's position in the fixed pipeline.
type DealStage string

const (
	StageQualification DealStage = "qualification"
	StageProposal      DealStage = "proposal"
	StageNegotiation   DealStage = "negotiation"
	StageClosed        DealStage = "closed"
)

// stagePosition is the total order over pipeline stages. A transition to a lower
// position is a backward move and is role-gated.
var stagePosition = map[DealStage]int{
	StageQualification: 0,
	StageProposal:      1,
	StageNegotiation:   2,
	StageClosed:        3,
}

// Valid reports whether s is a defined stage.
func (s DealStage) Valid() bool {
	_, ok := stagePosition[s]
	return ok
}

// Position returns the stage's index in the pipeline order.
func (s DealStage) Position() int {
	return stagePosition[s]
}

// Before reports whether s comes strictly earlier in the pipeline than other.
func (s DealStage) Before(other DealStage) bool {
	return stagePosition[s] < stagePosition[other]
}

// Deal is the core entity. Status and stage default to new/qualification on
// creation; every later mutation flows through the lifecycle engine, which
// stamps UpdatedAt.
type Deal struct {
	ID             string          `json:"id"`
	OrganizationID string          `json:"organization_id"`
	ContactID      string          `json:"contact_id"`
	OwnerID        string          `json:"owner_id"`
	Title          string          `json:"title"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Status         DealStatus      `json:"status"`
	Stage          DealStage       `json:"stage"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
