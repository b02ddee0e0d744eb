package analytics

import (
	"encoding/json"
	"log"
	"time"

	"github.com/bountyhub-app/bountyhub/internal/pkg/cache"
)

const (
	dashboardCacheKey = "admin:analytics:dashboard"
	dashboardCacheTTL = 60 * time.Second
)

// DashboardData is the admin analytics payload. Numbers are mock data until
// real aggregation lands; the shape is what the admin frontend consumes.
type DashboardData struct {
	GeneratedAt       time.Time      `json:"generated_at"`
	TotalRevenueCents int64          `json:"total_revenue_cents"`
	TotalPayoutCents  int64          `json:"total_payout_cents"`
	ActiveBounties    int            `json:"active_bounties"`
	OpenRiskActions   int            `json:"open_risk_actions"`
	RevenueSeries     []RevenuePoint `json:"revenue_series"`
}

// RevenuePoint is one day of the revenue series.
type RevenuePoint struct {
	Date         string `json:"date"`
	RevenueCents int64  `json:"revenue_cents"`
	PayoutCents  int64  `json:"payout_cents"`
}

// GetDashboard returns the analytics payload, cached for a minute.
func GetDashboard() (*DashboardData, error) {
	if raw, err := cache.Get(dashboardCacheKey); err == nil && raw != "" {
		var data DashboardData
		if err := json.Unmarshal([]byte(raw), &data); err == nil {
			return &data, nil
		}
	}

	data := buildMockDashboard(time.Now())
	if raw, err := json.Marshal(data); err == nil {
		if err := cache.Set(dashboardCacheKey, string(raw), dashboardCacheTTL); err != nil {
			log.Printf("failed to cache analytics dashboard: %v", err)
		}
	}
	return data, nil
}

func buildMockDashboard(now time.Time) *DashboardData {
	series := make([]RevenuePoint, 0, 7)
	for i := 6; i >= 0; i-- {
		day := now.AddDate(0, 0, -i)
		// Deterministic placeholder curve keyed on the weekday.
		weekday := int64(day.Weekday()) + 1
		series = append(series, RevenuePoint{
			Date:         day.Format("2006-01-02"),
			RevenueCents: weekday * 125_00,
			PayoutCents:  weekday * 90_00,
		})
	}

	var revenue, payout int64
	for _, p := range series {
		revenue += p.RevenueCents
		payout += p.PayoutCents
	}
	return &DashboardData{
		GeneratedAt:       now,
		TotalRevenueCents: revenue,
		TotalPayoutCents:  payout,
		ActiveBounties:    42,
		OpenRiskActions:   3,
		RevenueSeries:     series,
	}
}
