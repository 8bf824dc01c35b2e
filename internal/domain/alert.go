package domain

// Alert type constants
const (
	AlertTypeCrawlFailure   = "crawl_failure"
	AlertTypeCrawlRecovered = "crawl_recovered"
)

// Alert severity constants
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// AlertStatus is the lifecycle state of an alert.
type AlertStatus string

const (
	AlertStatusActive       AlertStatus = "active"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResolved     AlertStatus = "resolved"
)

// Alert is a source-health alert. At most one active alert exists per
// (source, alertType) at a time.
type Alert struct {
	AlertID    string
	AlertType  string
	Severity   string
	Status     AlertStatus
	SourceID   string
	Title      string
	Message    string
	Details    map[string]string
	CreatedAt  int64  // ms
	ResolvedAt *int64 // ms, nil until resolved
}
