package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/waleedtradee5-svg/pharmacy-management-system/internal/core/domain"
	"github.com/waleedtradee5-svg/pharmacy-management-system/internal/port"
)

const (
	scanLockKey = "notifications:scan"
	scanLockTTL = time.Minute

	// expiring stock this close is always High severity
	urgentExpiryDays = 7
)

type ScanResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

type NotificationEngine struct {
	store      port.Store
	locker     port.Locker
	thresholds domain.ThresholdSettings
	preset     bool
	metrics    *Metrics
	log        logrus.FieldLogger
	now        func() time.Time
}

type EngineOption func(*NotificationEngine)

// WithClock replaces time.Now for scans.
func WithClock(now func() time.Time) EngineOption {
	return func(e *NotificationEngine) { e.now = now }
}

// WithThresholds skips loading thresholds from the settings table.
func WithThresholds(th domain.ThresholdSettings) EngineOption {
	return func(e *NotificationEngine) {
		e.thresholds = th
		e.preset = true
	}
}

// NewNotificationEngine loads the thresholds once; later changes to the
// settings table need a restart. locker may be nil when only one process
// scans.
func NewNotificationEngine(ctx context.Context, store port.Store, locker port.Locker, metrics *Metrics, log logrus.FieldLogger, opts ...EngineOption) (*NotificationEngine, error) {
	e := &NotificationEngine{
		store:   store,
		locker:  locker,
		metrics: metrics,
		log:     orDiscard(log),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}
	if !e.preset {
		th, err := LoadThresholds(ctx, store.Settings())
		if err != nil {
			return nil, err
		}
		e.thresholds = th
	}

	e.log.WithFields(logrus.Fields{
		"low_stock":     e.thresholds.LowStockThreshold,
		"high_severity": e.thresholds.HighSeverityStockThreshold,
		"expiry_days":   e.thresholds.ExpiryWarningDays,
	}).Info("NOTIFY:THRESHOLDS_LOADED")
	return e, nil
}

func (e *NotificationEngine) Thresholds() domain.ThresholdSettings {
	return e.thresholds
}

// Scan evaluates every alert rule and inserts a notification for each
// condition that has no Unread notification yet.
func (e *NotificationEngine) Scan(ctx context.Context) (ScanResult, error) {
	var res ScanResult

	if e.locker != nil {
		release, err := e.locker.Acquire(ctx, scanLockKey, scanLockTTL)
		if err != nil {
			if errors.Is(err, port.ErrLockNotObtained) {
				return res, fmt.Errorf("notification scan already running: %w", domain.ErrState)
			}
			return res, fmt.Errorf("acquire scan lock: %w", err)
		}
		defer release()
	}

	candidates, err := e.inventoryAlerts(ctx)
	if err != nil {
		return res, err
	}
	dues, err := e.financeAlerts(ctx)
	if err != nil {
		return res, err
	}
	candidates = append(candidates, dues...)

	for i := range candidates {
		n := &candidates[i]
		created, err := e.store.Notifications().CreateIfNoUnread(ctx, n)
		if err != nil {
			return res, fmt.Errorf("insert %s notification for %s %d: %w", n.Type, n.RelatedTable, n.RelatedID, err)
		}
		if !created {
			res.Skipped++
			continue
		}
		res.Created++
		e.metrics.observeNotification(n.Type)
	}

	e.log.WithFields(logrus.Fields{
		"created": res.Created,
		"skipped": res.Skipped,
	}).Info("NOTIFY:SCANNED")
	return res, nil
}

func (e *NotificationEngine) inventoryAlerts(ctx context.Context) ([]domain.Notification, error) {
	items, err := e.store.Items().List(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list stock items: %w", err)
	}

	now := e.now()
	today := dateOf(now, now.Location())
	var out []domain.Notification

	for _, item := range items {
		if item.Quantity <= e.thresholds.LowStockThreshold {
			sev := domain.SeverityMedium
			if item.Quantity <= e.thresholds.HighSeverityStockThreshold {
				sev = domain.SeverityHigh
			}
			out = append(out, e.newNotification(
				domain.NotificationLowStock, domain.CategoryInventory, sev,
				domain.RelatedStockItems, item.ID,
				fmt.Sprintf("Low stock: '%s' has only %d units left.", item.Name, item.Quantity),
			))
		}

		if item.ExpiryDate == nil {
			continue
		}
		expiry := dateOf(*item.ExpiryDate, now.Location())
		daysLeft := daysBetween(today, expiry)
		if daysLeft < 0 || daysLeft > e.thresholds.ExpiryWarningDays {
			continue
		}
		sev := domain.SeverityMedium
		if daysLeft <= urgentExpiryDays {
			sev = domain.SeverityHigh
		}
		out = append(out, e.newNotification(
			domain.NotificationExpiryWarning, domain.CategoryInventory, sev,
			domain.RelatedStockItems, item.ID,
			fmt.Sprintf("Expiry warning: '%s' will expire in %d days on %s.", item.Name, daysLeft, expiry.Format(time.DateOnly)),
		))
	}
	return out, nil
}

func (e *NotificationEngine) financeAlerts(ctx context.Context) ([]domain.Notification, error) {
	customers, err := e.store.Customers().ListWithOutstanding(ctx)
	if err != nil {
		return nil, fmt.Errorf("list customers with dues: %w", err)
	}

	out := make([]domain.Notification, 0, len(customers))
	for _, c := range customers {
		if !c.IsActive() || !c.OutstandingAmount.IsPositive() {
			continue
		}
		out = append(out, e.newNotification(
			domain.NotificationOutstandingDue, domain.CategoryFinance, domain.SeverityMedium,
			domain.RelatedCustomers, c.ID,
			fmt.Sprintf("Pending payment from '%s' of Rs %s.", c.Name, formatAmount(c.OutstandingAmount)),
		))
	}
	return out, nil
}

func (e *NotificationEngine) newNotification(t domain.NotificationType, cat domain.Category, sev domain.Severity, table string, id int64, msg string) domain.Notification {
	return domain.Notification{
		Type:         t,
		Message:      msg,
		Category:     cat,
		Severity:     sev,
		RelatedTable: table,
		RelatedID:    id,
		Status:       domain.NotificationUnread,
		CreatedAt:    e.now(),
	}
}

func (e *NotificationEngine) List(ctx context.Context, filter domain.NotificationFilter) ([]domain.Notification, error) {
	return e.store.Notifications().List(ctx, filter)
}

func (e *NotificationEngine) Unread(ctx context.Context) ([]domain.Notification, error) {
	return e.store.Notifications().List(ctx, domain.NotificationFilter{Status: domain.NotificationUnread})
}

// MarkRead acknowledges one notification. Acknowledging a Read notification
// is a no-op.
func (e *NotificationEngine) MarkRead(ctx context.Context, id int64) error {
	if err := e.store.Notifications().MarkRead(ctx, id); err != nil {
		return err
	}
	e.log.WithField("notification_id", id).Info("NOTIFY:READ")
	return nil
}

func (e *NotificationEngine) MarkAllRead(ctx context.Context) (int64, error) {
	n, err := e.store.Notifications().MarkAllRead(ctx)
	if err != nil {
		return 0, err
	}
	e.log.WithField("count", n).Info("NOTIFY:ALL_READ")
	return n, nil
}

// RunScanner scans every interval until ctx is cancelled.
func (e *NotificationEngine) RunScanner(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.log.Info("NOTIFY:SCANNER_STOPPED")
			return
		case <-ticker.C:
			if _, err := e.Scan(ctx); err != nil && ctx.Err() == nil {
				e.log.WithError(err).Warn("NOTIFY:SCAN_FAILED")
			}
		}
	}
}

func dateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// daysBetween counts calendar days; both arguments must be midnights.
func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Round(24*time.Hour) / (24 * time.Hour))
}

// formatAmount renders 12345.6 as "12,345.60".
func formatAmount(d decimal.Decimal) string {
	s := d.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if d.IsNegative() {
		b.WriteByte('-')
	}
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}
