package site

import (
	"sync"
	"time"

	"github.com/wolfman30/clinic-site/internal/assistant"
)

// ViewState is the visitor's UI state at one instant.
type ViewState struct {
	VisitorID   string    `json:"visitorId"`
	MenuOpen    bool      `json:"menuOpen"`
	ViewerOpen  bool      `json:"viewerOpen"`
	OpenFAQ     int       `json:"openFaq"`
	Testimonial int       `json:"testimonial"`
	Form        FormState `json:"formState"`
	ChatOpen    bool      `json:"chatOpen"`
	ChatBusy    bool      `json:"chatBusy"`
	ChatStatus  string    `json:"chatStatus,omitempty"`
}

// Visitor is one page view: its presentation state and its chat widget.
type Visitor struct {
	ID     string
	widget *assistant.Widget

	mu         sync.Mutex
	menuOpen   bool
	viewerOpen bool
	faq        Accordion
	carousel   Carousel
	form       AppointmentForm
	lastSeen   time.Time
}

func newVisitor(id string, faqs, testimonials int, now time.Time, widget *assistant.Widget) *Visitor {
	return &Visitor{
		ID:       id,
		widget:   widget,
		faq:      NewAccordion(faqs),
		carousel: NewCarousel(testimonials, now),
		lastSeen: now,
	}
}

// Widget returns the visitor's chat widget.
func (v *Visitor) Widget() *assistant.Widget {
	return v.widget
}

func (v *Visitor) ToggleMenu() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.menuOpen = !v.menuOpen
	return v.menuOpen
}

func (v *Visitor) ToggleViewer() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.viewerOpen = !v.viewerOpen
	return v.viewerOpen
}

// ToggleFAQ toggles item i and returns the open index afterwards.
func (v *Visitor) ToggleFAQ(i int) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.faq.Toggle(i)
	return v.faq.Open()
}

func (v *Visitor) NextTestimonial(now time.Time) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.carousel.Next()
	return v.carousel.Current(now)
}

func (v *Visitor) PrevTestimonial(now time.Time) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.carousel.Prev()
	return v.carousel.Current(now)
}

func (v *Visitor) JumpTestimonial(now time.Time, i int) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.carousel.Jump(now, i)
	return v.carousel.Current(now)
}

// SubmitAppointment records a validated request if the form is idle.
func (v *Visitor) SubmitAppointment(now time.Time, req AppointmentRequest) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.form.Submit(now, req)
}

func (v *Visitor) DismissAppointment(now time.Time) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.form.Dismiss(now)
}

// View snapshots the visitor's state at now.
func (v *Visitor) View(now time.Time) ViewState {
	v.mu.Lock()
	state := ViewState{
		VisitorID:   v.ID,
		MenuOpen:    v.menuOpen,
		ViewerOpen:  v.viewerOpen,
		OpenFAQ:     v.faq.Open(),
		Testimonial: v.carousel.Current(now),
		Form:        v.form.State(now),
	}
	v.mu.Unlock()

	if v.widget != nil {
		state.ChatOpen = v.widget.IsOpen()
		state.ChatBusy = v.widget.Busy()
		state.ChatStatus = v.widget.Status()
	}
	return state
}

func (v *Visitor) touch(now time.Time) {
	v.mu.Lock()
	v.lastSeen = now
	v.mu.Unlock()
}

func (v *Visitor) idleSince(now time.Time) time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	return now.Sub(v.lastSeen)
}

func (v *Visitor) unmount() {
	if v.widget != nil {
		v.widget.Unmount()
	}
}
