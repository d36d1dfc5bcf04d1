package domain

import "time"

// ListingStatus mirrors the catalog service's status field. This engine is the
// only writer of the reserved/sold transitions.
type ListingStatus string

const (
	ListingDraft    ListingStatus = "draft"
	ListingActive   ListingStatus = "active"
	ListingReserved ListingStatus = "reserved"
	ListingSold     ListingStatus = "sold"
)

// Listing is an external aggregate referenced by orders, not owned here beyond
// its purchasability flag and reservation back-reference.
type Listing struct {
	ID             string
	SellerID       string
	Title          string
	PriceCents     int64
	Currency       string
	ImageURL       *string
	Status         ListingStatus
	CurrentOrderID *string
	CreatedAt      time.Time
}

// Purchasable reports whether a reservation attempt may proceed.
func (l *Listing) Purchasable() bool {
	return l.Status == ListingActive
}
