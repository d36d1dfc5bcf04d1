package services

import "github.com/marketloop/order-engine/internal/application"

type ReserveCommand struct {
	ListingID string
	BuyerID   string
}

type TokenizeCommand struct {
	OrderID        string
	BuyerID        string
	IdempotencyKey string
}

type PayCommand struct {
	OrderID        string
	BuyerID        string
	Token          string
	Billing        application.BillingDetails
	IdempotencyKey string
}

type UploadTrackingCommand struct {
	OrderID  string
	SellerID string
	Carrier  string
	Number   string
}

type RequestRefundCommand struct {
	OrderID     string
	BuyerID     string
	Reason      string
	AmountCents *int64
}

type SubmitReturnCommand struct {
	RefundID       string
	BuyerID        string
	Carrier        string
	TrackingNumber string
}

type DecideRefundCommand struct {
	RefundID string
	SellerID string
	Reason   string
}
