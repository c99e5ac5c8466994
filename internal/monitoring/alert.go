package monitoring

import (
	"github.com/rs/zerolog/log"
)

// Alert reports an operation left half done. It is logged at error level and
// counted under alerts_total so it can page someone.
func Alert(message string, labels map[string]string) {
	event := log.Error().Str("alert", message)
	for k, v := range labels {
		event = event.Str(k, v)
	}
	event.Msg("ALERT: operation left unfinished")
	AlertsRaised.WithLabelValues(message).Inc()
}
