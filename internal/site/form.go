package site

import (
	"strings"
	"time"

	"github.com/wolfman30/clinic-site/internal/catalog"
)

// FormState is the appointment form's display state.
type FormState string

const (
	FormIdle       FormState = "idle"
	FormSubmitting FormState = "submitting"
	FormSuccess    FormState = "success"
)

const (
	submitDelay   = 1500 * time.Millisecond
	successWindow = 5 * time.Second
)

// AppointmentRequest is what the visitor typed into the form.
type AppointmentRequest struct {
	Name   string `json:"name"`
	Phone  string `json:"phone"`
	Reason string `json:"reason"`
	Slot   string `json:"slot"`
	Notes  string `json:"notes,omitempty"`
}

// Normalize trims fields and fills reason and slot with the first offered
// option when left blank, as the page's select boxes do.
func (r AppointmentRequest) Normalize(opts catalog.FormOptions) AppointmentRequest {
	r.Name = strings.TrimSpace(r.Name)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Reason = strings.TrimSpace(r.Reason)
	r.Slot = strings.TrimSpace(r.Slot)
	r.Notes = strings.TrimSpace(r.Notes)
	if r.Reason == "" && len(opts.Reasons) > 0 {
		r.Reason = opts.Reasons[0]
	}
	if r.Slot == "" && len(opts.Slots) > 0 {
		r.Slot = opts.Slots[0]
	}
	return r
}

// Validate checks required fields and that reason and slot are offered options.
func (r AppointmentRequest) Validate(opts catalog.FormOptions) error {
	if r.Name == "" {
		return ErrInvalidName
	}
	if r.Phone == "" {
		return ErrMissingPhone
	}
	if !opts.HasReason(r.Reason) {
		return ErrUnknownReason
	}
	if !opts.HasSlot(r.Slot) {
		return ErrUnknownSlot
	}
	return nil
}

// AppointmentForm moves idle → submitting → success → idle. The state is
// computed from the submit time, so no timer goroutine is needed.
type AppointmentForm struct {
	submittedAt time.Time
	active      bool
	last        AppointmentRequest
}

// State returns the form state at now.
func (f *AppointmentForm) State(now time.Time) FormState {
	if !f.active {
		return FormIdle
	}
	elapsed := now.Sub(f.submittedAt)
	switch {
	case elapsed < submitDelay:
		return FormSubmitting
	case elapsed < submitDelay+successWindow:
		return FormSuccess
	default:
		return FormIdle
	}
}

// Submit accepts req only while idle. req must already be validated.
func (f *AppointmentForm) Submit(now time.Time, req AppointmentRequest) error {
	if f.State(now) != FormIdle {
		return ErrFormBusy
	}
	f.active = true
	f.submittedAt = now
	f.last = req
	return nil
}

// Dismiss returns a successful form to idle right away. It reports whether
// anything changed.
func (f *AppointmentForm) Dismiss(now time.Time) bool {
	if f.State(now) != FormSuccess {
		return false
	}
	f.active = false
	return true
}

// Last returns the most recently accepted request.
func (f *AppointmentForm) Last() AppointmentRequest {
	return f.last
}
