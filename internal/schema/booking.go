// Package schema defines the canonical schedule-appointment argument set and
// validates it at the agent adapter boundary, so untyped argument maps never
// travel further into the relay.
package schema

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ActionBookAppointment is the single action the agent may request.
const ActionBookAppointment = "book_appointment"

// DefaultDurationMinutes is used when the agent omits a duration.
const DefaultDurationMinutes = 60

// ErrInvalidArgs wraps all booking argument validation failures.
var ErrInvalidArgs = errors.New("invalid booking arguments")

// BookingArgs is the canonical argument set for a booking action. Historical
// variants of the tool disagreed on field naming, so ParseBookingArgs accepts
// the legacy short names and canonicalizes them here.
type BookingArgs struct {
	CallerName      string
	CallerEmail     string
	Date            string // YYYY-MM-DD
	Time            string // HH:MM, 24-hour
	Reason          string
	DurationMinutes int
}

// AppointmentTime renders the booked slot as "YYYY-MM-DD HH:MM", the format
// recorded on the call session and handed off after the call.
func (a BookingArgs) AppointmentTime() string {
	return a.Date + " " + a.Time
}

// ParseBookingArgs validates a raw argument map from the agent. callerName
// (alias: name), callerEmail (alias: email), date, time and reason are
// required; durationMinutes is optional and defaults to 60.
func ParseBookingArgs(args map[string]any) (BookingArgs, error) {
	out := BookingArgs{
		CallerName:      stringArg(args, "callerName", "name"),
		CallerEmail:     stringArg(args, "callerEmail", "email"),
		Date:            stringArg(args, "date"),
		Time:            stringArg(args, "time"),
		Reason:          stringArg(args, "reason"),
		DurationMinutes: DefaultDurationMinutes,
	}

	var missing []string
	if out.CallerName == "" {
		missing = append(missing, "callerName")
	}
	if out.CallerEmail == "" {
		missing = append(missing, "callerEmail")
	}
	if out.Date == "" {
		missing = append(missing, "date")
	}
	if out.Time == "" {
		missing = append(missing, "time")
	}
	if out.Reason == "" {
		missing = append(missing, "reason")
	}
	if len(missing) > 0 {
		return BookingArgs{}, fmt.Errorf("%w: missing %s", ErrInvalidArgs, strings.Join(missing, ", "))
	}

	if _, err := time.Parse("2006-01-02", out.Date); err != nil {
		return BookingArgs{}, fmt.Errorf("%w: date %q is not YYYY-MM-DD", ErrInvalidArgs, out.Date)
	}
	if _, err := time.Parse("15:04", out.Time); err != nil {
		return BookingArgs{}, fmt.Errorf("%w: time %q is not HH:MM", ErrInvalidArgs, out.Time)
	}

	if raw, ok := args["durationMinutes"]; ok {
		switch v := raw.(type) {
		case float64: // JSON numbers decode as float64
			out.DurationMinutes = int(v)
		case int:
			out.DurationMinutes = v
		default:
			return BookingArgs{}, fmt.Errorf("%w: durationMinutes has type %T", ErrInvalidArgs, raw)
		}
		if out.DurationMinutes <= 0 {
			out.DurationMinutes = DefaultDurationMinutes
		}
	}

	return out, nil
}

// FailureResult builds the result payload returned to the agent when an
// action cannot be performed, matching the booking collaborator's failure
// shape so the agent can voice it either way.
func FailureResult(message string) map[string]any {
	return map[string]any{"success": false, "message": message}
}

func stringArg(args map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := args[k]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}
