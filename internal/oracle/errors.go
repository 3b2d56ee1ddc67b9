package oracle

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// QuoteError reports that the router quote could not be obtained.
type QuoteError struct {
	Attempts int
	Err      error
}

func (e *QuoteError) Error() string {
	return fmt.Sprintf("quote failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *QuoteError) Unwrap() error {
	return e.Err
}

// SubmissionReason classifies why the node did not accept an update.
type SubmissionReason string

const (
	ReasonSigning           SubmissionReason = "signing"
	ReasonInsufficientFunds SubmissionReason = "insufficient_funds"
	ReasonNonceConflict     SubmissionReason = "nonce_conflict"
	ReasonRejected          SubmissionReason = "rejected"
)

// SubmissionError reports that the price update never reached the pool.
type SubmissionError struct {
	Reason SubmissionReason
	Err    error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit price update (%s): %v", e.Reason, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// RevertedError reports a mined transaction whose execution reverted.
type RevertedError struct {
	TxHash      common.Hash
	BlockNumber uint64
	Reason      string
}

func (e *RevertedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("tx %s reverted in block %d without reason", e.TxHash.Hex(), e.BlockNumber)
	}
	return fmt.Sprintf("tx %s reverted in block %d: %s", e.TxHash.Hex(), e.BlockNumber, e.Reason)
}

// ConfirmationTimeoutError reports that no receipt appeared within the wait bound.
// The transaction may still be mined later.
type ConfirmationTimeoutError struct {
	TxHash common.Hash
	Waited time.Duration
	Err    error
}

func (e *ConfirmationTimeoutError) Error() string {
	return fmt.Sprintf("tx %s not confirmed after %s: %v", e.TxHash.Hex(), e.Waited.Round(time.Millisecond), e.Err)
}

func (e *ConfirmationTimeoutError) Unwrap() error {
	return e.Err
}

var errShortAmounts = errors.New("router returned fewer amounts than path length")

func classifySubmitError(err error) SubmissionReason {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "insufficient funds"):
		return ReasonInsufficientFunds
	case strings.Contains(msg, "nonce too low"),
		strings.Contains(msg, "nonce too high"),
		strings.Contains(msg, "already known"),
		strings.Contains(msg, "replacement transaction underpriced"),
		strings.Contains(msg, "invalid nonce"):
		return ReasonNonceConflict
	default:
		return ReasonRejected
	}
}
