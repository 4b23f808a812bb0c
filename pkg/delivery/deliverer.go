// Package delivery posts activities to remote subscriber inboxes. Request
// signing is handled by the fronting transport and stays out of this client.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const contentType = "application/activity+json"

// HTTPDeliverer delivers activities over plain HTTP POST.
type HTTPDeliverer struct {
	client    *http.Client
	userAgent string
}

// NewHTTPDeliverer creates a delivery client with the given timeout
func NewHTTPDeliverer(timeout time.Duration, userAgent string) *HTTPDeliverer {
	return &HTTPDeliverer{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// Deliver posts the activity to the subscriber's inbox. A non-success status
// is an error; the caller decides whether it is fatal (it never is for the
// polling cycle).
func (d *HTTPDeliverer) Deliver(ctx context.Context, activity any, subscriber string) error {
	payload, err := json.Marshal(activity)
	if err != nil {
		return fmt.Errorf("marshal activity: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, InboxURL(subscriber), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver to %s: %w", subscriber, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("deliver to %s: status %d", subscriber, resp.StatusCode)
	}
	return nil
}

// InboxURL derives the inbox endpoint for a subscriber actor URI.
func InboxURL(subscriber string) string {
	if strings.HasSuffix(subscriber, "/inbox") {
		return subscriber
	}
	return strings.TrimSuffix(subscriber, "/") + "/inbox"
}
