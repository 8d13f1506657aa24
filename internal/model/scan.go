package model

import "time"

// ScanType selects which detector phases a scan run executes.
type ScanType string

const (
	ScanWarehouse ScanType = "warehouse"
	ScanLightning ScanType = "lightning"
	ScanCoupon    ScanType = "coupon"
	ScanRegular   ScanType = "regular"
	ScanAll       ScanType = "all"
)

// ValidScanType reports whether s names a known scan type.
func ValidScanType(s ScanType) bool {
	switch s {
	case ScanWarehouse, ScanLightning, ScanCoupon, ScanRegular, ScanAll:
		return true
	}
	return false
}

// ScanStatus is the lifecycle state of a scan run.
type ScanStatus string

const (
	ScanStatusRunning   ScanStatus = "running"
	ScanStatusCompleted ScanStatus = "completed"
	ScanStatusFailed    ScanStatus = "failed"
)

// ScanStats accumulates run-level counters.
type ScanStats struct {
	ProductsScanned int `json:"products_scanned"`
	DealsFound      int `json:"deals_found"`
	AlertsCreated   int `json:"alerts_created"`
}

// ScanRun records one orchestrator invocation. Append-only: a failed run
// still carries whatever partial counts were accumulated before the error.
type ScanRun struct {
	ID          string     `json:"id"`
	Type        ScanType   `json:"scan_type"`
	Status      ScanStatus `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Stats       ScanStats  `json:"stats"`
	Errors      []string   `json:"errors,omitempty"`
}
