package decision

import (
	"fmt"
	"strings"
)

// FormatRationale renders a human-readable audit trail for one verdict.
// The decision-horizon regime and the all-expiry context regime are shown
// side by side so a sign disagreement between them is visible at a glance.
func FormatRationale(r *Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s", r.Ticker, r.Action)
	if r.Action != ActionNoTrade {
		fmt.Fprintf(&b, " conviction %d/10", r.Conviction)
	} else if r.ReasonCode != "" {
		fmt.Fprintf(&b, " [%s]", r.ReasonCode)
	}
	b.WriteString("\n")

	if r.DecisionRegime.Label != "" || r.ContextRegime.Label != "" {
		fmt.Fprintf(&b, "regime: 0DTE %s (%.0f%%) | aggregate %s (%.0f%%)\n",
			r.DecisionRegime.Label, r.DecisionRegime.Confidence*100,
			r.ContextRegime.Label, r.ContextRegime.Confidence*100)
		if r.DecisionRegime.Warning != "" {
			fmt.Fprintf(&b, "warning: %s\n", r.DecisionRegime.Warning)
		}
	}

	for _, g := range r.Gates {
		mark := "pass"
		if !g.Passed {
			mark = "FAIL"
		}
		fmt.Fprintf(&b, "  [%s] %s", mark, g.Name)
		if g.Detail != "" {
			fmt.Fprintf(&b, ": %s", g.Detail)
		}
		b.WriteString("\n")
	}

	if r.Action != ActionNoTrade {
		rc := r.RiskControls
		fmt.Fprintf(&b, "exits: premium stop %.0f%%, time stop %dm, %d VWAP failures",
			rc.PremiumStopPct, rc.TimeStopMinutes, rc.VWAPFailExitCount)
		if rc.PriceInvalidation > 0 {
			fmt.Fprintf(&b, ", invalid below/above %.2f", rc.PriceInvalidation)
		}
		b.WriteString("\n")
	}

	return b.String()
}
