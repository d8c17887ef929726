package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var embedded []byte

var defaultCatalog = mustParse(embedded)

// Doctor describes the practitioner the site is built around.
type Doctor struct {
	Name           string   `yaml:"name"`
	ShortName      string   `yaml:"short_name"`
	Title          string   `yaml:"title"`
	Qualifications []string `yaml:"qualifications"`
}

// Contact holds the practice's address and outbound contact points.
type Contact struct {
	Address      string `yaml:"address"`
	Region       string `yaml:"region"`
	Phone        string `yaml:"phone"`
	WhatsApp     string `yaml:"whatsapp"`
	Hours        string `yaml:"hours"`
	MapsEmbedURL string `yaml:"maps_embed_url"`
}

// Images are remote image URLs used by the page.
type Images struct {
	Hero      string `yaml:"hero"`
	Profile   string `yaml:"profile"`
	Clinic    string `yaml:"clinic"`
	Emergency string `yaml:"emergency"`
}

// Service is one card in the services section.
type Service struct {
	ID          string   `yaml:"id"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Icon        string   `yaml:"icon"`
	Features    []string `yaml:"features"`
}

// Testimonial is one patient quote in the carousel.
type Testimonial struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Location string `yaml:"location"`
	Text     string `yaml:"text"`
	Rating   int    `yaml:"rating"`
}

// FAQItem is one accordion entry. Its position in the list is its key.
type FAQItem struct {
	Question string `yaml:"question"`
	Answer   string `yaml:"answer"`
}

// FormOptions are the fixed choices offered by the appointment form.
type FormOptions struct {
	Reasons []string `yaml:"reasons"`
	Slots   []string `yaml:"slots"`
}

// Hotspot is an overlay marker on the simulated 360° clinic view.
type Hotspot struct {
	Label string `yaml:"label"`
	Kind  string `yaml:"kind"`
	Top   string `yaml:"top"`
	Left  string `yaml:"left"`
}

// Viewer configures the simulated 360° viewer.
type Viewer struct {
	Hotspots []Hotspot `yaml:"hotspots"`
}

// Catalog is the read-only content of the site.
type Catalog struct {
	Doctor          Doctor        `yaml:"doctor"`
	Contact         Contact       `yaml:"contact"`
	Images          Images        `yaml:"images"`
	Services        []Service     `yaml:"services"`
	Testimonials    []Testimonial `yaml:"testimonials"`
	FAQs            []FAQItem     `yaml:"faqs"`
	AppointmentForm FormOptions   `yaml:"appointment_form"`
	Viewer          Viewer        `yaml:"viewer"`
}

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	return defaultCatalog
}

// Parse decodes and validates a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func mustParse(data []byte) *Catalog {
	c, err := Parse(data)
	if err != nil {
		panic(err)
	}
	return c
}

// Validate checks required fields and key uniqueness.
func (c *Catalog) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Doctor.Name) == "" {
		errs = append(errs, errors.New("doctor name is required"))
	}
	if strings.TrimSpace(c.Contact.Phone) == "" {
		errs = append(errs, errors.New("contact phone is required"))
	}
	if strings.TrimSpace(c.Contact.WhatsApp) == "" {
		errs = append(errs, errors.New("contact whatsapp number is required"))
	}

	serviceIDs := make(map[string]struct{}, len(c.Services))
	for i, s := range c.Services {
		if s.ID == "" || s.Title == "" {
			errs = append(errs, fmt.Errorf("service %d: id and title are required", i))
			continue
		}
		if _, dup := serviceIDs[s.ID]; dup {
			errs = append(errs, fmt.Errorf("service %q: duplicate id", s.ID))
		}
		serviceIDs[s.ID] = struct{}{}
	}

	testimonialIDs := make(map[string]struct{}, len(c.Testimonials))
	for i, t := range c.Testimonials {
		if t.ID == "" {
			errs = append(errs, fmt.Errorf("testimonial %d: id is required", i))
			continue
		}
		if _, dup := testimonialIDs[t.ID]; dup {
			errs = append(errs, fmt.Errorf("testimonial %q: duplicate id", t.ID))
		}
		if t.Rating < 0 || t.Rating > 5 {
			errs = append(errs, fmt.Errorf("testimonial %q: rating %d out of range", t.ID, t.Rating))
		}
		testimonialIDs[t.ID] = struct{}{}
	}

	for i, f := range c.FAQs {
		if f.Question == "" || f.Answer == "" {
			errs = append(errs, fmt.Errorf("faq %d: question and answer are required", i))
		}
	}
	if len(c.AppointmentForm.Reasons) == 0 || len(c.AppointmentForm.Slots) == 0 {
		errs = append(errs, errors.New("appointment form needs reasons and slots"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("catalog: invalid document: %w", errors.Join(errs...))
	}
	return nil
}

// TelLink builds the click-to-call link for the practice phone.
func (c *Catalog) TelLink() string {
	return "tel:" + strings.ReplaceAll(c.Contact.Phone, " ", "")
}

// WhatsAppLink builds the wa.me deep link for the configured number.
func (c *Catalog) WhatsAppLink() string {
	number := strings.TrimPrefix(strings.ReplaceAll(c.Contact.WhatsApp, " ", ""), "+")
	return "https://wa.me/" + url.PathEscape(number)
}

// ServiceTitles lists service titles in display order.
func (c *Catalog) ServiceTitles() []string {
	titles := make([]string, 0, len(c.Services))
	for _, s := range c.Services {
		titles = append(titles, s.Title)
	}
	return titles
}

// HasReason reports whether reason is one of the form's fixed options.
func (o FormOptions) HasReason(reason string) bool {
	return contains(o.Reasons, reason)
}

// HasSlot reports whether slot is one of the form's fixed options.
func (o FormOptions) HasSlot(slot string) bool {
	return contains(o.Slots, slot)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
