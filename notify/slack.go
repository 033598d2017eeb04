/*
Package notify posts status-change notifications to a Slack incoming
webhook.

PURPOSE:
  Supervisors want a ping when someone starts work, takes a break, or
  goes missing - but not for every heartbeat. Only the important status
  transitions notify; Present heartbeats are noise.

DESIGN:
  Best effort with a short timeout. A Slack outage must never slow or
  fail activity ingestion, so failures are logged and dropped.

SEE ALSO:
  - api/handlers.go: Calls Notify from the ingestion path (async)
*/
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/warp/presence-engine/activity"
)

// Notifier posts messages to a Slack incoming webhook. A Notifier with
// an empty WebhookURL is valid and drops everything.
type Notifier struct {
	WebhookURL string
	Client     *http.Client
}

// New creates a Notifier with a webhook-appropriate timeout.
func New(webhookURL string) *Notifier {
	return &Notifier{
		WebhookURL: webhookURL,
		Client:     &http.Client{Timeout: 3 * time.Second},
	}
}

// Important reports whether a status transition is worth notifying.
func Important(status activity.Status) bool {
	switch status {
	case activity.StatusWorkStart, activity.StatusBreakStart, activity.StatusBreakEnd, activity.StatusAway:
		return true
	}
	return false
}

// StatusChanged posts a notification for a subject's status transition.
// No-op for unimportant statuses or when no webhook is configured.
func (n *Notifier) StatusChanged(ctx context.Context, subjectName string, status activity.Status) {
	if n == nil || n.WebhookURL == "" || !Important(status) {
		return
	}

	var text string
	switch status {
	case activity.StatusWorkStart:
		text = fmt.Sprintf("🟢 *%s* has started work.", subjectName)
	case activity.StatusBreakStart:
		text = fmt.Sprintf("☕ *%s* is taking a break.", subjectName)
	case activity.StatusAway:
		text = fmt.Sprintf("⚠️ *%s* is marked as *Away/Missing*!", subjectName)
	default:
		text = fmt.Sprintf("📢 *%s* status update: *%s*", subjectName, status)
	}

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		log.Printf("[Notify] failed to encode message: %v", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.WebhookURL, bytes.NewReader(body))
	if err != nil {
		log.Printf("[Notify] failed to build request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.Client.Do(req)
	if err != nil {
		log.Printf("[Notify] slack post failed: %v", err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Printf("[Notify] slack returned %d", resp.StatusCode)
	}
}
