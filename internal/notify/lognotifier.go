// Package notify provides Notifier implementations for outbound messages.
package notify

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// LogNotifier writes outbound notifications to the process log instead of a
// platform. It stands in for a real adapter in development deployments.
type LogNotifier struct{}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// Send logs the notification and reports success.
func (n *LogNotifier) Send(_ context.Context, platform, platformID, text string) error {
	log.WithFields(log.Fields{
		"platform":    platform,
		"platform_id": platformID,
	}).Infof("notify: %s", text)
	return nil
}
