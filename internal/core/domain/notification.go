package domain

import "time"

type NotificationType string

const (
	NotificationLowStock       NotificationType = "Low Stock"
	NotificationExpiryWarning  NotificationType = "Expiry Warning"
	NotificationOutstandingDue NotificationType = "Outstanding Due"
)

type Category string

const (
	CategoryInventory Category = "Inventory"
	CategoryFinance   Category = "Finance"
	CategorySales     Category = "Sales"
	CategoryHR        Category = "HR"
	CategorySystem    Category = "System"
)

type Severity string

const (
	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
)

type NotificationStatus string

const (
	NotificationUnread NotificationStatus = "Unread"
	NotificationRead   NotificationStatus = "Read"
)

const (
	RelatedStockItems = "stock_items"
	RelatedCustomers  = "customers"
)

type Notification struct {
	ID           int64              `db:"id" json:"id"`
	Type         NotificationType   `db:"type" json:"type"`
	Message      string             `db:"message" json:"message"`
	Category     Category           `db:"category" json:"category"`
	Severity     Severity           `db:"severity" json:"severity"`
	RelatedTable string             `db:"related_table" json:"related_table"`
	RelatedID    int64              `db:"related_id" json:"related_id"`
	Status       NotificationStatus `db:"status" json:"status"`
	CreatedAt    time.Time          `db:"created_at" json:"created_at"`
}

// AlertKey identifies the condition a notification reports on. At most one
// Unread notification exists per key.
type AlertKey struct {
	Type         NotificationType
	RelatedTable string
	RelatedID    int64
}

func (n Notification) Key() AlertKey {
	return AlertKey{Type: n.Type, RelatedTable: n.RelatedTable, RelatedID: n.RelatedID}
}

// NotificationFilter fields are combined with AND; empty fields match
// everything.
type NotificationFilter struct {
	Status     NotificationStatus
	Categories []Category
	Severities []Severity
	Keyword    string
}

type ThresholdSettings struct {
	LowStockThreshold          int
	HighSeverityStockThreshold int
	ExpiryWarningDays          int
}

const (
	SettingLowStockThreshold          = "notification_low_stock_threshold"
	SettingHighSeverityStockThreshold = "notification_high_severity_stock_threshold"
	SettingExpiryWarningDays          = "notification_expiry_warning_days"
)

func DefaultThresholds() ThresholdSettings {
	return ThresholdSettings{
		LowStockThreshold:          10,
		HighSeverityStockThreshold: 5,
		ExpiryWarningDays:          30,
	}
}
