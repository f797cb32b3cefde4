// Package webhooks calls the workflow collaborators that own tenant data,
// calendar booking, and post-call follow-up. Each endpoint is optional; an
// unconfigured URL degrades to the documented fallback rather than failing
// the call.
package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"ai-voice-receptionist/internal/models"
	"ai-voice-receptionist/internal/observability/metrics"
	"ai-voice-receptionist/internal/schema"
)

// BookingUnavailableMessage is spoken to the caller when the booking
// collaborator cannot be reached.
const BookingUnavailableMessage = "Booking system temporarily unavailable."

// ErrLookupFailed indicates the tenant lookup did not produce a usable
// configuration. Calls without one are rejected before any media flows.
var ErrLookupFailed = errors.New("tenant lookup failed")

// Per-endpoint timeouts. Lookup gates call setup so it is kept tight;
// booking and post-call run mid-conversation or after hangup and may wait
// on calendar providers.
const (
	lookupTimeout   = 10 * time.Second
	bookingTimeout  = 15 * time.Second
	postCallTimeout = 15 * time.Second
)

// Config holds the collaborator endpoint URLs.
type Config struct {
	LookupURL   string
	BookingURL  string
	PostCallURL string
}

// Client is an HTTP client for the workflow collaborators.
type Client struct {
	http        *http.Client
	lookupURL   string
	bookingURL  string
	postCallURL string
	metrics     *metrics.Metrics
}

// New creates a webhook client. Timeouts are applied per request, so the
// underlying HTTP client carries none of its own.
func New(cfg Config) *Client {
	return &Client{
		http:        &http.Client{},
		lookupURL:   cfg.LookupURL,
		bookingURL:  cfg.BookingURL,
		postCallURL: cfg.PostCallURL,
		metrics:     metrics.DefaultMetrics,
	}
}

type lookupResponse struct {
	Success        bool   `json:"success"`
	CompanyName    string `json:"companyName"`
	CalendarID     string `json:"calendarId"`
	Timezone       string `json:"timezone"`
	SystemPrompt   string `json:"systemPrompt"`
	ClientRecordID string `json:"clientRecordId"`
}

// LookupTenant resolves the tenant configuration for an incoming call. Any
// failure, including a response without success=true, returns ErrLookupFailed
// and the call must be rejected.
func (c *Client) LookupTenant(ctx context.Context, callerPhone, calledNumber, callSid string) (models.TenantConfig, error) {
	if c.lookupURL == "" {
		return models.TenantConfig{}, fmt.Errorf("%w: no lookup URL configured", ErrLookupFailed)
	}

	body := models.LookupRequest{
		CallerPhone:  callerPhone,
		CalledNumber: calledNumber,
		CallSid:      callSid,
	}
	var resp lookupResponse
	if err := c.post(ctx, "lookup", c.lookupURL, lookupTimeout, body, &resp); err != nil {
		return models.TenantConfig{}, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	if !resp.Success {
		return models.TenantConfig{}, fmt.Errorf("%w: collaborator returned success=false", ErrLookupFailed)
	}

	return models.TenantConfig{
		CompanyName:    resp.CompanyName,
		CalendarID:     resp.CalendarID,
		Timezone:       resp.Timezone,
		SystemPrompt:   resp.SystemPrompt,
		ClientRecordID: resp.ClientRecordID,
	}, nil
}

// BookAppointment posts a booking request for the given call. On success the
// session outcome fields are updated. The collaborator's response map is
// returned verbatim so the agent can voice its message either way; booking
// failures never fail the call.
func (c *Client) BookAppointment(ctx context.Context, sess *models.CallSession, args schema.BookingArgs) map[string]any {
	if c.bookingURL == "" {
		log.Warn().Str("callSid", sess.CallSid).Msg("No booking URL configured")
		return schema.FailureResult(BookingUnavailableMessage)
	}

	payload := models.BookingPayload{
		CallerName:      args.CallerName,
		CallerEmail:     args.CallerEmail,
		CallerPhone:     sess.CallerPhone,
		Date:            args.Date,
		Time:            args.Time,
		Reason:          args.Reason,
		DurationMinutes: args.DurationMinutes,
		CalendarID:      sess.Tenant.CalendarID,
		Timezone:        sess.Tenant.Timezone,
		CompanyName:     sess.Tenant.CompanyName,
		ClientRecordID:  sess.Tenant.ClientRecordID,
	}

	var result map[string]any
	if err := c.post(ctx, "booking", c.bookingURL, bookingTimeout, payload, &result); err != nil {
		return schema.FailureResult(BookingUnavailableMessage)
	}
	if result == nil {
		return schema.FailureResult(BookingUnavailableMessage)
	}

	if success, _ := result["success"].(bool); success {
		sess.RecordBooking(args.CallerName, args.CallerEmail, args.AppointmentTime(), args.Reason)
		log.Info().
			Str("callSid", sess.CallSid).
			Str("appointmentTime", args.AppointmentTime()).
			Msg("Appointment booked")
	}
	return result
}

// PostCall delivers the post-call handoff. A missing URL is a no-op; errors
// are returned for the caller to log, the call outcome is already final.
func (c *Client) PostCall(ctx context.Context, callSid string, payload models.HandoffPayload) error {
	if c.postCallURL == "" {
		log.Debug().Str("callSid", callSid).Msg("No post-call URL configured, skipping handoff")
		return nil
	}
	return c.post(ctx, "post_call", c.postCallURL, postCallTimeout, payload, nil)
}

func (c *Client) post(ctx context.Context, endpoint, url string, timeout time.Duration, body, out any) error {
	start := time.Now()
	err := c.doPost(ctx, url, timeout, body, out)
	c.metrics.RecordWebhook(endpoint, err, time.Since(start).Seconds())
	if err != nil {
		log.Error().Err(err).Str("endpoint", endpoint).Msg("Webhook request failed")
	}
	return err
}

func (c *Client) doPost(ctx context.Context, url string, timeout time.Duration, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
