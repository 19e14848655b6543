// Package sms dispatches SOS notifications through the Twilio Messages API.
package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dhruv1108git/pulse/internal/domain"
)

const defaultBaseURL = "https://api.twilio.com"

// Notifier sends emergency SMS messages. An unconfigured or failing notifier
// reports an undelivered dispatch; it never errors in a way that could fail
// the SOS query itself.
type Notifier struct {
	accountSID string
	authToken  string
	from       string
	to         string
	baseURL    string
	client     *http.Client
	logger     *zap.Logger
}

// Config holds the Twilio credentials and routing numbers.
type Config struct {
	AccountSID string
	AuthToken  string
	From       string
	To         string
	// BaseURL overrides the Twilio endpoint (tests).
	BaseURL string
	Timeout time.Duration
	Logger  *zap.Logger
}

// New creates an SMS notifier.
func New(cfg *Config) *Notifier {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		from:       cfg.From,
		to:         cfg.To,
		baseURL:    baseURL,
		client:     &http.Client{Timeout: timeout},
		logger:     cfg.Logger,
	}
}

func (n *Notifier) configured() bool {
	return n.accountSID != "" && n.authToken != "" && n.from != "" && n.to != ""
}

// Dispatch implements domain.Notifier.
func (n *Notifier) Dispatch(
	ctx context.Context, req domain.DispatchRequest,
) (domain.DispatchReport, error) {
	refID := uuid.NewString()

	if !n.configured() {
		n.logger.Warn("SMS dispatch skipped: notifier not configured",
			zap.String("reference_id", refID))
		return domain.DispatchReport{
			Detail:      "sms service not configured",
			ReferenceID: refID,
		}, nil
	}

	form := url.Values{}
	form.Set("To", n.to)
	form.Set("From", n.from)
	form.Set("Body", formatMessage(req))

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", n.baseURL, n.accountSID)
	httpReq, err := http.NewRequestWithContext(
		ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()),
	)
	if err != nil {
		return domain.DispatchReport{Detail: err.Error(), ReferenceID: refID}, nil
	}
	httpReq.SetBasicAuth(n.accountSID, n.authToken)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(httpReq)
	if err != nil {
		n.logger.Error("SMS dispatch request failed",
			zap.String("reference_id", refID), zap.Error(err))
		return domain.DispatchReport{Detail: err.Error(), ReferenceID: refID}, nil
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := fmt.Sprintf("sms gateway returned %d", resp.StatusCode)
		n.logger.Error("SMS dispatch rejected",
			zap.String("reference_id", refID),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body))
		return domain.DispatchReport{Detail: detail, ReferenceID: refID}, nil
	}

	var parsed struct {
		SID string `json:"sid"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.SID != "" {
		refID = parsed.SID
	}

	n.logger.Info("Emergency SMS dispatched",
		zap.String("reference_id", refID),
		zap.String("service", emergencyService(req.IncidentType)))
	return domain.DispatchReport{
		Delivered:   true,
		Detail:      "dispatched to " + emergencyService(req.IncidentType),
		ReferenceID: refID,
	}, nil
}

// emergencyService maps the incident type to the responding service.
func emergencyService(incidentType string) string {
	t := strings.ToLower(incidentType)
	switch {
	case strings.Contains(t, "fire"):
		return "Fire Department"
	case strings.Contains(t, "medical"), strings.Contains(t, "health"):
		return "Emergency Medical Services"
	case strings.Contains(t, "police"), strings.Contains(t, "violence"), strings.Contains(t, "crime"):
		return "Police Department"
	default:
		return "911 Emergency Services"
	}
}

func formatMessage(req domain.DispatchRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "EMERGENCY ALERT\nIncident Type: %s\nSeverity: %d/5\nService Required: %s",
		req.IncidentType, req.Severity, emergencyService(req.IncidentType))
	if req.Location != nil {
		fmt.Fprintf(&b, "\nLocation: %.6f, %.6f", req.Location.Lat, req.Location.Lon)
	}
	if req.Description != "" {
		fmt.Fprintf(&b, "\nInfo: %s", req.Description)
	}
	b.WriteString("\n\nAutomated emergency dispatch from Pulse.")
	return b.String()
}
