package types

// ListingRecord maps an internal record id to the upstream listing, its owner and the last
// stock quantity the gateway observed. ListingID is empty until upstream confirms.
type ListingRecord struct {
	RecordID  int64  `json:"record_id"`
	ListingID string `json:"listing_id,omitempty"`
	ClientID  string `json:"client_id"`
	Quantity  int    `json:"quantity"`
}

// SaleEvent is published when a stock check observes units sold.
type SaleEvent struct {
	ClientID  string `json:"client_id"`
	RecordID  int64  `json:"record_id"`
	ListingID string `json:"listing_id"`
	Sold      int    `json:"sold"`
	Quantity  int    `json:"quantity"`
	At        int64  `json:"at"`
}
