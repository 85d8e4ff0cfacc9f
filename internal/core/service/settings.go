package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/waleedtradee5-svg/pharmacy-management-system/internal/core/domain"
	"github.com/waleedtradee5-svg/pharmacy-management-system/internal/port"
)

// LoadThresholds reads the notification thresholds. Missing keys keep their
// defaults; a present but non-numeric or negative value is an error.
func LoadThresholds(ctx context.Context, repo port.SettingsRepository) (domain.ThresholdSettings, error) {
	th := domain.DefaultThresholds()

	values, err := repo.All(ctx)
	if err != nil {
		return th, fmt.Errorf("load settings: %w", err)
	}

	fields := []struct {
		key string
		dst *int
	}{
		{domain.SettingLowStockThreshold, &th.LowStockThreshold},
		{domain.SettingHighSeverityStockThreshold, &th.HighSeverityStockThreshold},
		{domain.SettingExpiryWarningDays, &th.ExpiryWarningDays},
	}
	for _, f := range fields {
		raw, ok := values[f.key]
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || n < 0 {
			return th, domain.Validationf("setting %s: %q is not a non-negative integer", f.key, raw)
		}
		*f.dst = n
	}
	return th, nil
}
