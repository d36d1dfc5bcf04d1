package domain

import "time"

// MerchantState is the processor-side verification state of a seller account.
// It only ever moves forward: pending -> approved|rejected.
type MerchantState string

const (
	MerchantPending  MerchantState = "pending"
	MerchantApproved MerchantState = "approved"
	MerchantRejected MerchantState = "rejected"
)

type Merchant struct {
	UserID              string
	ProcessorMerchantID *string
	State               MerchantState
	UpdatedAt           time.Time
}

// MerchantStateRank orders states for forward-only webhook application.
func MerchantStateRank(s MerchantState) int {
	switch s {
	case MerchantPending:
		return 1
	case MerchantApproved, MerchantRejected:
		return 2
	default:
		return 0
	}
}
