package popup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dgellow/popauth/internal/log"
)

// DefaultPollInterval is how often an open popup is checked for closure
const DefaultPollInterval = 100 * time.Millisecond

// Screen describes the area a popup is centered on
type Screen struct {
	AvailWidth       int
	AvailHeight      int
	DevicePixelRatio float64
}

// DefaultScreen is used when the real screen geometry is unknown
var DefaultScreen = Screen{AvailWidth: 1920, AvailHeight: 1080, DevicePixelRatio: 1}

// Features is the geometry a popup window is opened with
type Features struct {
	Width      int
	Height     int
	Top        int
	Left       int
	Scrollbars bool
}

// String renders the features in window.open format
func (f Features) String() string {
	scrollbars := "no"
	if f.Scrollbars {
		scrollbars = "yes"
	}
	return fmt.Sprintf("scrollbars=%s,width=%d,height=%d,top=%d,left=%d",
		scrollbars, f.Width, f.Height, f.Top, f.Left)
}

// Window is a handle on an opened popup
type Window interface {
	Closed() bool
	Focus()
}

// Opener opens popup windows. A nil Window means the popup was refused.
type Opener interface {
	Open(url, title string, features Features) Window
}

// Options describes a popup to open
type Options struct {
	ID     string
	URL    string
	Title  string
	Width  int
	Height int
}

// Controller opens popups and watches them for closure
type Controller struct {
	opener   Opener
	bus      *Bus
	screen   Screen
	interval time.Duration
}

// ControllerOption configures a Controller
type ControllerOption func(*Controller)

// WithInterval sets the closure poll interval
func WithInterval(d time.Duration) ControllerOption {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithScreen sets the screen popups are centered on
func WithScreen(s Screen) ControllerOption {
	return func(c *Controller) {
		c.screen = s
	}
}

// WithBus sets the bus closure messages are published on
func WithBus(b *Bus) ControllerOption {
	return func(c *Controller) {
		if b != nil {
			c.bus = b
		}
	}
}

// NewController creates a popup controller
func NewController(opener Opener, opts ...ControllerOption) *Controller {
	c := &Controller{
		opener:   opener,
		bus:      NewBus(),
		screen:   DefaultScreen,
		interval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Bus returns the bus closure messages are published on
func (c *Controller) Bus() *Bus {
	return c.bus
}

// CenteredFeatures computes a window of the given size centered on screen,
// scaled by the device pixel ratio.
func CenteredFeatures(screen Screen, width, height int) Features {
	dpr := screen.DevicePixelRatio
	if dpr <= 0 {
		dpr = 1
	}
	w := int(float64(width) * dpr)
	h := int(float64(height) * dpr)
	return Features{
		Width:      w,
		Height:     h,
		Top:        (screen.AvailHeight - h) / 2,
		Left:       (screen.AvailWidth - w) / 2,
		Scrollbars: true,
	}
}

// Open opens a centered popup and starts watching it. When the popup is
// refused Open returns nil and nothing else happens. Once closure is
// detected a single close-popup message is published for opts.ID and
// polling stops.
func (c *Controller) Open(ctx context.Context, opts Options) *Subscription {
	features := CenteredFeatures(c.screen, opts.Width, opts.Height)

	win := c.opener.Open(opts.URL, opts.Title, features)
	if win == nil {
		log.LogDebugWithFields("popup", "Popup refused", map[string]any{
			"id": opts.ID,
		})
		return nil
	}
	win.Focus()

	log.LogDebugWithFields("popup", "Popup opened", map[string]any{
		"id":       opts.ID,
		"features": features.String(),
	})

	sub := &Subscription{
		closed: make(chan struct{}),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go c.watch(ctx, opts.ID, win, sub)
	return sub
}

func (c *Controller) watch(ctx context.Context, id string, win Window, sub *Subscription) {
	defer close(sub.done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !win.Closed() {
				continue
			}
			log.LogDebugWithFields("popup", "Popup closed", map[string]any{
				"id": id,
			})
			close(sub.closed)
			c.bus.Publish(Message{ID: id, Action: ActionClosePopup})
			return
		case <-sub.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Subscription tracks a watched popup. The zero value is not usable; a nil
// *Subscription is valid and behaves as a popup that never closes.
type Subscription struct {
	closed   chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// Closed is closed once the popup closure has been detected
func (s *Subscription) Closed() <-chan struct{} {
	if s == nil {
		return nil
	}
	return s.closed
}

// Unsubscribe stops watching the popup and waits for polling to end
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	<-s.done
}
