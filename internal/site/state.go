package site

import "time"

// TestimonialInterval is how often the carousel advances on its own.
const TestimonialInterval = 4 * time.Second

// Accordion tracks the single open FAQ item.
type Accordion struct {
	size int
	open int
}

// NewAccordion returns an accordion over size items with nothing open.
func NewAccordion(size int) Accordion {
	return Accordion{size: size, open: -1}
}

// Toggle closes i when it is open, otherwise opens i and closes the previous
// item. Indices outside the list are ignored.
func (a *Accordion) Toggle(i int) {
	if i < 0 || i >= a.size {
		return
	}
	if a.open == i {
		a.open = -1
		return
	}
	a.open = i
}

// Open returns the open index, or -1.
func (a Accordion) Open() int {
	return a.open
}

// IsOpen reports whether item i is expanded.
func (a Accordion) IsOpen(i int) bool {
	return a.open >= 0 && a.open == i
}

// Carousel derives the visible testimonial from the time since mount.
// Manual navigation shifts an offset and leaves the tick schedule alone.
type Carousel struct {
	size      int
	mountedAt time.Time
	interval  time.Duration
	offset    int
}

func NewCarousel(size int, mountedAt time.Time) Carousel {
	return Carousel{size: size, mountedAt: mountedAt, interval: TestimonialInterval}
}

// Current returns the index shown at now.
func (c Carousel) Current(now time.Time) int {
	if c.size <= 0 {
		return 0
	}
	return mod(c.offset+c.ticks(now), c.size)
}

func (c *Carousel) Next() {
	if c.size > 0 {
		c.offset = mod(c.offset+1, c.size)
	}
}

func (c *Carousel) Prev() {
	if c.size > 0 {
		c.offset = mod(c.offset-1, c.size)
	}
}

// Jump shows item i at now. The next automatic advance still happens on
// the original schedule.
func (c *Carousel) Jump(now time.Time, i int) {
	if i < 0 || i >= c.size {
		return
	}
	c.offset = mod(c.offset+i-c.Current(now), c.size)
}

func (c Carousel) ticks(now time.Time) int {
	if c.interval <= 0 || !now.After(c.mountedAt) {
		return 0
	}
	return int(now.Sub(c.mountedAt) / c.interval)
}

func mod(a, n int) int {
	r := a % n
	if r < 0 {
		r += n
	}
	return r
}
