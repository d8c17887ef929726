package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/clinic-site/pkg/logging"
)

// BookAppointmentTool is the tool name the model calls to book a visit.
const BookAppointmentTool = "bookAppointment"

// DefaultStepDelay is the pause between simulated booking side effects.
const DefaultStepDelay = 800 * time.Millisecond

const (
	argPatientName   = "patientName"
	argPhoneNumber   = "phoneNumber"
	argReason        = "reason"
	argPreferredSlot = "preferredSlot"

	recordLabel = "Saving to Notion Database..."
)

// BookingIntent is assembled by the model from the conversation.
type BookingIntent struct {
	PatientName   string `json:"patient_name"`
	PhoneNumber   string `json:"phone_number"`
	Reason        string `json:"reason"`
	PreferredSlot string `json:"preferred_slot"`
}

// Booking is the simulated record produced by one tool invocation.
type Booking struct {
	ID             string        `json:"booking_id"`
	RecordID       string        `json:"notion_entry_id"`
	Status         string        `json:"status"`
	DoctorNotified bool          `json:"doctor_notified"`
	Intent         BookingIntent `json:"intent"`
	CreatedAt      time.Time     `json:"created_at"`
}

// DoctorNotifier delivers the "new appointment" notice to the doctor.
type DoctorNotifier interface {
	NotifyDoctor(ctx context.Context, booking Booking) error
}

// BookingRecorder saves the booking to the practice's records.
type BookingRecorder interface {
	RecordBooking(ctx context.Context, booking Booking) error
}

// BookingToolConfig wires the booking tool.
type BookingToolConfig struct {
	DoctorName string
	// StepDelay defaults to DefaultStepDelay. NoDelay skips the pauses.
	StepDelay time.Duration
	NoDelay   bool
	Notifier  DoctorNotifier
	Recorder  BookingRecorder
	Logger    *logging.Logger
	Now       func() time.Time
}

// BookingTool simulates the side effects of booking an appointment.
type BookingTool struct {
	doctorName string
	stepDelay  time.Duration
	notifier   DoctorNotifier
	recorder   BookingRecorder
	logger     *logging.Logger
	now        func() time.Time
}

// NewBookingTool builds the bookAppointment handler. Missing collaborators
// fall back to the logging simulations.
func NewBookingTool(cfg BookingToolConfig) *BookingTool {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	switch {
	case cfg.NoDelay:
		cfg.StepDelay = 0
	case cfg.StepDelay <= 0:
		cfg.StepDelay = DefaultStepDelay
	}
	if strings.TrimSpace(cfg.DoctorName) == "" {
		cfg.DoctorName = "the doctor"
	}
	if cfg.Notifier == nil {
		cfg.Notifier = NewSimulatedNotifier(cfg.Logger)
	}
	if cfg.Recorder == nil {
		cfg.Recorder = NewSimulatedRecorder(cfg.Logger)
	}
	return &BookingTool{
		doctorName: cfg.DoctorName,
		stepDelay:  cfg.StepDelay,
		notifier:   cfg.Notifier,
		recorder:   cfg.Recorder,
		logger:     cfg.Logger,
		now:        cfg.Now,
	}
}

// Spec declares bookAppointment with its four required string arguments.
func (t *BookingTool) Spec() ToolSpec {
	return ToolSpec{
		Name:        BookAppointmentTool,
		Description: "Book a medical appointment. requires patient name, phone number, reason, and preferred slot.",
		Parameters: []ToolParameter{
			{Name: argPatientName, Description: "The full name of the patient."},
			{Name: argPhoneNumber, Description: "The patient's phone number."},
			{Name: argReason, Description: "Reason for the visit or symptoms."},
			{Name: argPreferredSlot, Description: "Preferred time slot (e.g., Morning, Evening)."},
		},
		Required: []string{argPatientName, argPhoneNumber, argReason, argPreferredSlot},
	}
}

// Invoke notifies the doctor, saves the record and returns the confirmation
// payload sent back to the model.
func (t *BookingTool) Invoke(ctx context.Context, call ToolCall, progress Progress) map[string]any {
	intent, missing := intentFromArgs(call.Args)
	if missing != "" {
		t.logger.Warn("booking: missing argument", "argument", missing, "call_id", call.ID)
		return map[string]any{"error": fmt.Sprintf("missing required argument %q", missing)}
	}

	booking := Booking{
		ID:        NewBookingID(),
		RecordID:  NewRecordID(),
		Status:    "Scheduled",
		Intent:    intent,
		CreatedAt: t.now().UTC(),
	}

	progress(fmt.Sprintf("Notifying %s...", t.doctorName))
	if err := t.notifier.NotifyDoctor(ctx, booking); err != nil {
		t.logger.Warn("booking: doctor notification failed", "booking_id", booking.ID, "error", err)
	} else {
		booking.DoctorNotified = true
	}
	t.pause(ctx)
	progress("")

	progress(recordLabel)
	if err := t.recorder.RecordBooking(ctx, booking); err != nil {
		t.logger.Warn("booking: record save failed", "booking_id", booking.ID, "error", err)
	}
	t.pause(ctx)
	progress("")

	message := "Appointment successfully booked. Doctor notified and Notion database updated."
	if !booking.DoctorNotified {
		message = "Appointment successfully booked and Notion database updated. The doctor will be notified shortly."
	}

	t.logger.Info("booking: appointment confirmed",
		"booking_id", booking.ID,
		"record_id", booking.RecordID,
		"slot", intent.PreferredSlot,
		"doctor_notified", booking.DoctorNotified,
	)

	return map[string]any{
		"status":         "confirmed",
		"bookingId":      booking.ID,
		"notionEntryId":  booking.RecordID,
		"doctorNotified": booking.DoctorNotified,
		"message":        message,
	}
}

func (t *BookingTool) pause(ctx context.Context) {
	if t.stepDelay <= 0 {
		return
	}
	timer := time.NewTimer(t.stepDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func intentFromArgs(args map[string]any) (BookingIntent, string) {
	values := make(map[string]string, 4)
	for _, name := range []string{argPatientName, argPhoneNumber, argReason, argPreferredSlot} {
		v := stringArg(args[name])
		if v == "" {
			return BookingIntent{}, name
		}
		values[name] = v
	}
	return BookingIntent{
		PatientName:   values[argPatientName],
		PhoneNumber:   values[argPhoneNumber],
		Reason:        values[argReason],
		PreferredSlot: values[argPreferredSlot],
	}, ""
}

// stringArg accepts strings and scalar values the model may emit for
// string-typed parameters (a phone number sent as a number, for example).
func stringArg(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strings.TrimSpace(fmt.Sprintf("%.0f", val))
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

// NewBookingID returns a short booking reference such as BK-3F9A0C12D4.
func NewBookingID() string {
	hex := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "BK-" + hex[:10]
}

// NewRecordID returns the identifier of the saved booking record.
func NewRecordID() string {
	return "notion-" + uuid.NewString()
}

// SimulatedNotifier logs the SMS the doctor would receive.
type SimulatedNotifier struct {
	logger *logging.Logger
}

func NewSimulatedNotifier(logger *logging.Logger) *SimulatedNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &SimulatedNotifier{logger: logger}
}

func (n *SimulatedNotifier) NotifyDoctor(_ context.Context, b Booking) error {
	n.logger.Info("notification: sms sent to doctor",
		"booking_id", b.ID,
		"text", fmt.Sprintf("New Appointment: %s for %s", b.Intent.PatientName, b.Intent.PreferredSlot),
	)
	return nil
}

// SimulatedRecorder logs the page that would be created in the clinic database.
type SimulatedRecorder struct {
	logger *logging.Logger
}

func NewSimulatedRecorder(logger *logging.Logger) *SimulatedRecorder {
	if logger == nil {
		logger = logging.Default()
	}
	return &SimulatedRecorder{logger: logger}
}

func (r *SimulatedRecorder) RecordBooking(_ context.Context, b Booking) error {
	r.logger.Info("records: created page",
		"database", "Clinic_Appointments_Master",
		"page_id", b.RecordID,
		"booking_id", b.ID,
		"name", b.Intent.PatientName,
		"phone", b.Intent.PhoneNumber,
		"reason", b.Intent.Reason,
		"slot", b.Intent.PreferredSlot,
		"status", b.Status,
	)
	return nil
}
