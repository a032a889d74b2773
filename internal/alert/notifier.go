package alert

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/your-org/facewatch/internal/config"
)

// Notifier delivers one alert message to a destination (a phone number).
// Failures are logged by the caller and never retried.
type Notifier interface {
	Send(ctx context.Context, destination, text string) error
}

// TwilioNotifier sends SMS through the Twilio Messages REST API.
type TwilioNotifier struct {
	accountSID string
	authToken  string
	from       string
	client     *http.Client
	baseURL    string
}

func NewTwilioNotifier(cfg config.TwilioConfig) *TwilioNotifier {
	return &TwilioNotifier{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		from:       cfg.FromNumber,
		client:     &http.Client{Timeout: 10 * time.Second},
		baseURL:    "https://api.twilio.com",
	}
}

func (n *TwilioNotifier) Send(ctx context.Context, destination, text string) error {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", n.baseURL, n.accountSID)

	form := url.Values{}
	form.Set("To", destination)
	form.Set("From", n.from)
	form.Set("Body", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.SetBasicAuth(n.accountSID, n.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("send sms: status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// LogNotifier is used when no SMS provider is configured. Alerts still pass
// through the gate and are recorded in the log.
type LogNotifier struct{}

func (LogNotifier) Send(_ context.Context, destination, text string) error {
	slog.Info("alert (sms disabled)", "destination", destination, "text", text)
	return nil
}

// NewNotifier picks the Twilio client when credentials are present,
// otherwise the log-only fallback.
func NewNotifier(cfg config.AlertsConfig) Notifier {
	if cfg.Twilio.AccountSID != "" && cfg.Twilio.AuthToken != "" {
		return NewTwilioNotifier(cfg.Twilio)
	}
	return LogNotifier{}
}
