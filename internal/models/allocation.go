package models

// ShareAllocation is one shareholder's frozen weight in the pool.
// The share of every inflow is Units / registry.TotalUnits.
type ShareAllocation struct {
	Shareholder string `json:"address"`
	Units       uint64 `json:"units"`
}
