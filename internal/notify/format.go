package notify

import (
	"fmt"
	"strings"

	"github.com/polyedge/polyedge/internal/domain"
)

// Event types used to filter outbound notifications.
const (
	EventSignal     = "signal"
	EventResolution = "resolution"
	EventScan       = "scan"
)

// FormatSignal renders a signal as a notification title and message body.
func FormatSignal(sig domain.Signal) (title, message string) {
	title = fmt.Sprintf("%s %s signal", sig.Direction, signalTypeLabel(sig.Type))

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", sig.MarketQuestion)
	fmt.Fprintf(&b, "Confidence: %.2f | Entry: %.2f | Tier: %s\n",
		sig.Confidence, sig.EntryPrice, sig.MarketTier)
	b.WriteString(sig.Reasoning)
	return title, b.String()
}

// FormatResolution renders the outcome of a resolved signal.
func FormatResolution(sig domain.Signal, gainPct float64) (title, message string) {
	outcome := "LOSS"
	if sig.Status == domain.StatusResolvedWin {
		outcome = "WIN"
	}
	title = fmt.Sprintf("Signal resolved: %s", outcome)
	message = fmt.Sprintf("%s\n%s %s at %.2f closed %+.1f%%",
		sig.MarketQuestion, sig.Direction, signalTypeLabel(sig.Type), sig.EntryPrice, gainPct)
	return title, message
}

// signalTypeLabel maps the upper-snake signal type constants to readable
// labels for notification text.
func signalTypeLabel(t domain.SignalType) string {
	switch t {
	case domain.SignalSentimentDivergence:
		return "sentiment divergence"
	case domain.SignalVolumeSurge:
		return "volume surge"
	case domain.SignalSocialSpike:
		return "social spike"
	case domain.SignalPriceMomentum:
		return "price momentum"
	default:
		return strings.ToLower(string(t))
	}
}
