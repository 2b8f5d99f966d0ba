package domain

import (
	"errors"
	"time"
)

type AccountStatus string

// remember to add new statuses to the accountStatusRank map
const (
	AccountStatusNone     AccountStatus = "none"
	AccountStatusPending  AccountStatus = "pending"
	AccountStatusVerified AccountStatus = "verified"
)

// statuses only ever move to an equal or higher rank
var accountStatusRank = map[AccountStatus]int{
	AccountStatusNone:     0,
	AccountStatusPending:  1,
	AccountStatusVerified: 2,
}

func ToAccountStatus(s string) (AccountStatus, error) {
	status := AccountStatus(s)
	if _, ok := accountStatusRank[status]; ok {
		return status, nil
	}

	return "", errors.New("invalid account status")
}

// CanTransition reports whether from -> to keeps the status monotonic.
// Verified is terminal.
func CanTransition(from, to AccountStatus) bool {
	fromRank, ok := accountStatusRank[from]
	if !ok {
		return false
	}

	toRank, ok := accountStatusRank[to]
	if !ok {
		return false
	}

	if from == AccountStatusVerified {
		return to == AccountStatusVerified
	}

	return toRank >= fromRank
}

// PayoutAccount is a seller's connected account at the payment gateway.
type PayoutAccount struct {
	SellerID         string
	GatewayAccountID string
	Status           AccountStatus

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (a PayoutAccount) Payable() bool {
	return a.Status == AccountStatusVerified && a.GatewayAccountID != ""
}

// AccountFlags are the verification flags the gateway reports for a connected account.
type AccountFlags struct {
	ChargesEnabled   bool
	PayoutsEnabled   bool
	DetailsSubmitted bool
}

func (f AccountFlags) Status() AccountStatus {
	if f.ChargesEnabled && f.PayoutsEnabled && f.DetailsSubmitted {
		return AccountStatusVerified
	}
	return AccountStatusPending
}
