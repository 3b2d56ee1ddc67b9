package model

import (
	"math/big"
	"time"
)

// OutcomeKind tags how a cycle ended.
type OutcomeKind string

const (
	OutcomeSuccess              OutcomeKind = "success"
	OutcomeFetchFailed          OutcomeKind = "fetch_failed"
	OutcomeSubmitFailed         OutcomeKind = "submit_failed"
	OutcomeReverted             OutcomeKind = "reverted"
	OutcomeConfirmationTimedOut OutcomeKind = "confirmation_timed_out"
)

// Stage names the part of the cycle an outcome was decided in.
type Stage string

const (
	StageFetch   Stage = "fetch"
	StageSubmit  Stage = "submit"
	StageConfirm Stage = "confirm"
)

// CycleOutcome is the single result recorded for one update cycle.
type CycleOutcome struct {
	Kind           OutcomeKind
	Stage          Stage
	TxHash         string
	ScaledPrice    *big.Int
	ConfirmedPrice string
	Err            error
	StartedAt      time.Time
	FinishedAt     time.Time
}

// OK reports whether the cycle confirmed a price update.
func (o CycleOutcome) OK() bool {
	return o.Kind == OutcomeSuccess
}

// Duration returns how long the cycle ran.
func (o CycleOutcome) Duration() time.Duration {
	return o.FinishedAt.Sub(o.StartedAt)
}
