package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const brevoEndpoint = "https://api.brevo.com/v3/smtp/email"

// messageTemplate escapes its fields; sender names, titles, and previews are
// user input landing in an HTML body.
var messageTemplate = template.Must(template.New("new_message").Parse(
	`<p>{{.SenderName}} sent you a message about <strong>{{.ListingTitle}}</strong>:</p>
<blockquote>{{.Preview}}</blockquote>
<p>Log in to Campus Market to reply.</p>`))

// EmailNotifier sends transactional emails via the Brevo HTTP API v3.
// The zero value is disabled; construct with NewEmailNotifier.
type EmailNotifier struct {
	apiKey      string
	senderEmail string
	senderName  string
	endpoint    string
	client      *http.Client
	log         *zap.Logger
}

func NewEmailNotifier(apiKey, senderEmail, senderName string, logger *zap.Logger) *EmailNotifier {
	return &EmailNotifier{
		apiKey:      apiKey,
		senderEmail: senderEmail,
		senderName:  senderName,
		endpoint:    brevoEndpoint,
		client:      &http.Client{Timeout: 10 * time.Second},
		log:         logger,
	}
}

// Enabled reports whether the notifier has an API key configured. With no
// key, sends are silently skipped so local setups work without Brevo.
func (e *EmailNotifier) Enabled() bool {
	return e != nil && e.apiKey != ""
}

// NotifyNewMessage emails a recipient that a message arrived while they had
// no live connection to the thread. Preview text is truncated by the caller.
func (e *EmailNotifier) NotifyNewMessage(ctx context.Context, toEmail, senderName, listingTitle, preview string) error {
	if !e.Enabled() {
		return nil
	}

	var html bytes.Buffer
	err := messageTemplate.Execute(&html, map[string]string{
		"SenderName":   senderName,
		"ListingTitle": listingTitle,
		"Preview":      preview,
	})
	if err != nil {
		return err
	}

	payload := map[string]any{
		"sender":      map[string]string{"name": e.senderName, "email": e.senderEmail},
		"to":          []map[string]string{{"email": toEmail}},
		"subject":     fmt.Sprintf("New message about %s", listingTitle),
		"htmlContent": html.String(),
	}
	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(payload); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		e.log.Info("notification email sent", zap.String("to", toEmail))
		return nil
	}
	e.log.Warn("brevo send failed", zap.Int("status", resp.StatusCode))
	return fmt.Errorf("brevo send failed status=%d", resp.StatusCode)
}
