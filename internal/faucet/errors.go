package faucet

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// ErrorKind is the stable classification handed to the HTTP layer. Every
// failure inside the claim path maps to exactly one of these; no internal
// error type crosses the coordinator boundary.
type ErrorKind string

const (
	KindInvalidAddress       ErrorKind = "InvalidAddress"
	KindNetworkQueryFailed   ErrorKind = "NetworkQueryFailed"
	KindNotUnused            ErrorKind = "NotUnused"
	KindNonZeroBalance       ErrorKind = "NonZeroBalance"
	KindAlreadyClaimed       ErrorKind = "AlreadyClaimed"
	KindPayoutFailed         ErrorKind = "PayoutFailed"
	KindPayoutOutcomeUnknown ErrorKind = "PayoutOutcomeUnknown"
)

// ErrPayoutOutcomeUnknown is wrapped by payout senders when a transaction
// was handed to the network but its fate could not be confirmed.
var ErrPayoutOutcomeUnknown = errors.New("payout outcome unknown")

type ClaimError struct {
	Kind    ErrorKind
	Message string
	err     error
}

func (e *ClaimError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ClaimError) Unwrap() error {
	return e.err
}

func newClaimError(kind ErrorKind, message string, err error) *ClaimError {
	return &ClaimError{
		Kind:    kind,
		Message: message,
		err:     err,
	}
}

// AsClaimError extracts the typed claim error, wrapping anything else as
// a generic network failure so callers always see a stable kind.
func AsClaimError(err error) *ClaimError {
	claimErr := &ClaimError{}
	if errors.As(err, &claimErr) {
		return claimErr
	}
	return newClaimError(KindNetworkQueryFailed, msgNetworkQueryFailed, err)
}

const (
	msgInvalidAddress       = "Wallet address does not appear to be valid."
	msgNetworkQueryFailed   = "Unable to query the network right now. Please try again later."
	msgNotUnused            = "Entered address does not appear to be unused."
	msgPayoutFailed         = "Sending faucet gas failed. Please try again later."
	msgPayoutOutcomeUnknown = "Sending faucet gas could not be confirmed. Please wait before retrying."
)

func msgNonZeroBalance(balanceWei *big.Int) string {
	return fmt.Sprintf("Entered address appears to have a non-zero balance: %s", formatWei(balanceWei))
}

func msgAlreadyClaimed(remaining time.Duration) string {
	if remaining <= 0 {
		return "It appears your IP address has claimed for an address recently."
	}
	return fmt.Sprintf("It appears your IP address has claimed for an address recently. Try again in %s.", remaining.Round(time.Second))
}

// formatWei renders a wei amount in whole coins for user-facing messages.
// Display only; eligibility decisions always compare raw wei.
func formatWei(wei *big.Int) string {
	return decimal.NewFromBigInt(wei, -18).String()
}
