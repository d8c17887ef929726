package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/wolfman30/clinic-site/internal/assistant"
	"github.com/wolfman30/clinic-site/pkg/logging"
)

// DoctorEmailNotifier emails the doctor when the assistant books a visit.
type DoctorEmailNotifier struct {
	email       EmailSender
	recipient   string
	doctorName  string
	practiceTag string
	logger      *logging.Logger
}

// DoctorEmailConfig names the recipient of booking notices.
type DoctorEmailConfig struct {
	Recipient  string
	DoctorName string
	Practice   string
}

func NewDoctorEmailNotifier(email EmailSender, cfg DoctorEmailConfig, logger *logging.Logger) (*DoctorEmailNotifier, error) {
	if email == nil {
		return nil, errors.New("notify: email sender is required")
	}
	if strings.TrimSpace(cfg.Recipient) == "" {
		return nil, errors.New("notify: doctor notification recipient is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DoctorEmailNotifier{
		email:       email,
		recipient:   strings.TrimSpace(cfg.Recipient),
		doctorName:  cfg.DoctorName,
		practiceTag: cfg.Practice,
		logger:      logger,
	}, nil
}

// NotifyDoctor sends the new-appointment notice for b.
func (n *DoctorEmailNotifier) NotifyDoctor(ctx context.Context, b assistant.Booking) error {
	msg := BookingEmail(b, n.doctorName, n.practiceTag)
	msg.To = n.recipient
	msg.ToName = n.doctorName

	if err := n.email.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: doctor email: %w", err)
	}
	n.logger.Info("notify: doctor notified of booking", "booking_id", b.ID, "to", n.recipient)
	return nil
}

// BookingEmail renders the plain and HTML bodies of a booking notice.
func BookingEmail(b assistant.Booking, doctorName, practice string) EmailMessage {
	intent := b.Intent
	subject := fmt.Sprintf("New Appointment: %s for %s", intent.PatientName, intent.PreferredSlot)

	greeting := "Hello"
	if doctorName != "" {
		greeting = "Hello " + doctorName
	}
	signature := "Clinic Assistant"
	if practice != "" {
		signature = practice + " Assistant"
	}

	body := fmt.Sprintf(`%s,

A new appointment was booked through the website assistant.

Patient: %s
Phone: %s
Reason: %s
Preferred slot: %s
Booking ID: %s
Record: %s

- %s`, greeting, intent.PatientName, intent.PhoneNumber, intent.Reason, intent.PreferredSlot, b.ID, b.RecordID, signature)

	rows := []struct{ label, value string }{
		{"Patient", intent.PatientName},
		{"Phone", intent.PhoneNumber},
		{"Reason", intent.Reason},
		{"Preferred slot", intent.PreferredSlot},
		{"Booking ID", b.ID},
	}
	var table strings.Builder
	for _, r := range rows {
		fmt.Fprintf(&table, `<tr><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;"><strong>%s:</strong></td><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;">%s</td></tr>`,
			r.label, html.EscapeString(r.value))
		table.WriteString("\n")
	}

	htmlBody := fmt.Sprintf(`<div style="font-family: sans-serif; max-width: 600px;">
<h2 style="color: #0d9488;">New Appointment</h2>
<p>%s, a new appointment was booked through the website assistant.</p>
<table style="border-collapse: collapse; margin: 20px 0;">
%s</table>
<p style="color: #6b7280; font-size: 12px; margin-top: 20px;">- %s</p>
</div>`, html.EscapeString(greeting), table.String(), html.EscapeString(signature))

	return EmailMessage{Subject: subject, Body: body, HTML: htmlBody}
}

var _ assistant.DoctorNotifier = (*DoctorEmailNotifier)(nil)
