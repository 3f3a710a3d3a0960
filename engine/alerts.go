package engine

import "fmt"

// AlertPolicy selects how threshold alerts are reported.
type AlertPolicy string

const (
	// AlertPolicyStacked returns every threshold message at or below the
	// current level, ascending severity.
	AlertPolicyStacked AlertPolicy = "stacked"
	// AlertPolicyHighest returns only the most severe triggered message.
	AlertPolicyHighest AlertPolicy = "highest"
)

// Valid reports whether p is a known policy.
func (p AlertPolicy) Valid() bool {
	return p == AlertPolicyStacked || p == AlertPolicyHighest
}

// bannerThreshold is the fill percentage at which a category's alerts are
// promoted into the dashboard-wide warnings banner.
const bannerThreshold = 85

// alertTiers are the fixed, cumulative capacity thresholds.
var alertTiers = []struct {
	threshold int
	format    string
}{
	{80, "%s bin is reaching high capacity."},
	{90, "Warning: %s bin is 90%%+ full."},
	{95, "Critical: %s bin is 95%%+ full."},
	{98, "%s bin is full and has been locked."},
}

// AlertsFor derives the capacity alerts for a fill percentage. Alerts are
// recomputed on every read and never stored. The result is always non-nil so
// JSON encodes an empty list rather than null.
func AlertsFor(percentage int, category BinCategory, policy AlertPolicy) []string {
	alerts := make([]string, 0, len(alertTiers))
	for _, tier := range alertTiers {
		if percentage >= tier.threshold {
			alerts = append(alerts, fmt.Sprintf(tier.format, category.Display()))
		}
	}
	if policy == AlertPolicyHighest && len(alerts) > 1 {
		return alerts[len(alerts)-1:]
	}
	return alerts
}
