package site

import (
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/clinic-site/internal/assistant"
	"github.com/wolfman30/clinic-site/internal/catalog"
	"github.com/wolfman30/clinic-site/internal/observability/metrics"
	"github.com/wolfman30/clinic-site/pkg/logging"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var pageTemplate = template.Must(template.New("site").Funcs(template.FuncMap{
	"stars":   func(n int) []struct{} { return make([]struct{}, max(n, 0)) },
	"initial": initial,
	"add":     func(a, b int) int { return a + b },
}).ParseFS(templateFS, "templates/*.html"))

type navLink struct {
	Name string
	Href string
}

var navLinks = []navLink{
	{"Home", "#home"},
	{"About", "#about"},
	{"Services", "#services"},
	{"Testimonials", "#testimonials"},
	{"Contact", "#contact"},
}

type pageData struct {
	Catalog         *catalog.Catalog
	View            ViewState
	Transcript      []assistant.ChatMessage
	DoctorShortName string
	TelLink         template.URL
	WhatsAppLink    template.URL
	NavLinks        []navLink
	Form            AppointmentRequest
	FormError       string
	ChatUnavailable bool
	Year            int
}

// Handler serves the page and the presentation state transitions.
type Handler struct {
	catalog  *catalog.Catalog
	visitors *Registry
	logger   *logging.Logger
	metrics  *metrics.SiteMetrics
}

func NewHandler(c *catalog.Catalog, visitors *Registry, logger *logging.Logger, m *metrics.SiteMetrics) *Handler {
	if c == nil {
		c = catalog.Default()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{catalog: c, visitors: visitors, logger: logger, metrics: m}
}

// Page renders the site for the request's visitor.
func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	v := h.visitors.Resolve(w, r)
	h.render(w, v, http.StatusOK, AppointmentRequest{}.Normalize(h.catalog.AppointmentForm), "")
}

func (h *Handler) ToggleMenu(w http.ResponseWriter, r *http.Request) {
	v := h.visitors.Resolve(w, r)
	v.ToggleMenu()
	h.respond(w, r, v, "")
}

func (h *Handler) ToggleViewer(w http.ResponseWriter, r *http.Request) {
	v := h.visitors.Resolve(w, r)
	v.ToggleViewer()
	h.respond(w, r, v, "#about")
}

// ToggleFAQ handles POST /ui/faq/{index}/toggle.
func (h *Handler) ToggleFAQ(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		http.Error(w, "invalid faq index", http.StatusBadRequest)
		return
	}
	v := h.visitors.Resolve(w, r)
	v.ToggleFAQ(index)
	h.respond(w, r, v, "#faq")
}

func (h *Handler) NextTestimonial(w http.ResponseWriter, r *http.Request) {
	v := h.visitors.Resolve(w, r)
	v.NextTestimonial(h.visitors.Now())
	h.respond(w, r, v, "#testimonials")
}

func (h *Handler) PrevTestimonial(w http.ResponseWriter, r *http.Request) {
	v := h.visitors.Resolve(w, r)
	v.PrevTestimonial(h.visitors.Now())
	h.respond(w, r, v, "#testimonials")
}

// JumpTestimonial handles POST /ui/testimonials/{index}.
func (h *Handler) JumpTestimonial(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		http.Error(w, "invalid testimonial index", http.StatusBadRequest)
		return
	}
	v := h.visitors.Resolve(w, r)
	v.JumpTestimonial(h.visitors.Now(), index)
	h.respond(w, r, v, "#testimonials")
}

// State returns the visitor's view state as JSON.
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	v := h.visitors.Resolve(w, r)
	writeJSON(w, http.StatusOK, v.View(h.visitors.Now()))
}

// SubmitAppointment handles POST /appointments from the form or as JSON.
func (h *Handler) SubmitAppointment(w http.ResponseWriter, r *http.Request) {
	v := h.visitors.Resolve(w, r)

	req, err := decodeAppointment(r)
	if err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req = req.Normalize(h.catalog.AppointmentForm)

	if err := req.Validate(h.catalog.AppointmentForm); err != nil {
		h.metrics.ObserveFormSubmission("invalid")
		h.logger.Debug("site: appointment request rejected", "visitor_id", v.ID, "error", err)
		if wantsJSON(r) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
			return
		}
		h.render(w, v, http.StatusUnprocessableEntity, req, err.Error())
		return
	}

	if err := v.SubmitAppointment(h.visitors.Now(), req); err != nil {
		if errors.Is(err, ErrFormBusy) {
			h.metrics.ObserveFormSubmission("busy")
			if wantsJSON(r) {
				writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
				return
			}
			h.respond(w, r, v, "#contact")
			return
		}
		h.logger.Error("site: appointment submit failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.metrics.ObserveFormSubmission("accepted")
	h.logger.Info("site: appointment request received",
		"visitor_id", v.ID,
		"name", req.Name,
		"reason", req.Reason,
		"slot", req.Slot,
	)
	if wantsJSON(r) {
		writeJSON(w, http.StatusAccepted, v.View(h.visitors.Now()))
		return
	}
	http.Redirect(w, r, "/#contact", http.StatusSeeOther)
}

func (h *Handler) DismissAppointment(w http.ResponseWriter, r *http.Request) {
	v := h.visitors.Resolve(w, r)
	v.DismissAppointment(h.visitors.Now())
	h.respond(w, r, v, "#contact")
}

// Leave unmounts the visitor and clears its cookie.
func (h *Handler) Leave(w http.ResponseWriter, r *http.Request) {
	if v, ok := h.visitors.Existing(r); ok {
		h.visitors.Leave(v.ID)
	}
	http.SetCookie(w, &http.Cookie{Name: VisitorCookie, Value: "", Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}

// Static serves the embedded stylesheet and images.
func (h *Handler) Static() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, v *Visitor, anchor string) {
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, v.View(h.visitors.Now()))
		return
	}
	http.Redirect(w, r, "/"+anchor, http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, v *Visitor, status int, form AppointmentRequest, formErr string) {
	now := h.visitors.Now()
	data := pageData{
		Catalog:         h.catalog,
		View:            v.View(now),
		DoctorShortName: assistant.DoctorShortName(h.catalog),
		TelLink:         template.URL(h.catalog.TelLink()),
		WhatsAppLink:    template.URL(h.catalog.WhatsAppLink()),
		NavLinks:        navLinks,
		Form:            form,
		FormError:       formErr,
		Year:            now.Year(),
	}
	if widget := v.Widget(); widget != nil {
		data.Transcript = widget.Transcript()
		data.ChatUnavailable = data.View.ChatOpen && !widget.HasSession()
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTemplate.ExecuteTemplate(w, "page", data); err != nil {
		h.logger.Error("site: render failed", "error", err, "visitor_id", v.ID)
	}
}

func decodeAppointment(r *http.Request) (AppointmentRequest, error) {
	var req AppointmentRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		err := json.NewDecoder(r.Body).Decode(&req)
		return req, err
	}
	if err := r.ParseForm(); err != nil {
		return req, err
	}
	req.Name = r.PostForm.Get("name")
	req.Phone = r.PostForm.Get("phone")
	req.Reason = r.PostForm.Get("reason")
	req.Slot = r.PostForm.Get("slot")
	req.Notes = r.PostForm.Get("notes")
	return req, nil
}

// wantsJSON reports whether the caller is the page script rather than a
// plain form post.
func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func initial(name string) string {
	r, _ := utf8.DecodeRuneInString(strings.TrimSpace(name))
	if r == utf8.RuneError {
		return ""
	}
	return string(r)
}
