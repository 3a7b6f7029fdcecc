package payloads

// LowStockEvent is emitted when a ledger commit drops a unit below its
// reorder threshold.
type LowStockEvent struct {
	SKU          string `json:"sku"`
	BinLocation  string `json:"bin_location"`
	Quantity     int    `json:"quantity"`
	MinThreshold int    `json:"min_threshold"`
}
