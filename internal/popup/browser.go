package popup

import (
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/dgellow/popauth/internal/log"
	"github.com/pkg/browser"
)

func init() {
	// stdout carries command results; launcher chatter goes to stderr
	browser.Stdout = os.Stderr
}

var _ Opener = (*BrowserOpener)(nil)

// BrowserOpener opens popups in a browser process.
//
// With no Command the platform launcher is used. The launcher hands the URL
// to an already running browser and exits, so such a window never reports
// closed. With a Command the process itself is the window: it is closed when
// the process exits. Command arguments may contain the placeholders {url},
// {title}, {width}, {height}, {top} and {left}, for example
//
//	chromium --app={url} --window-size={width},{height} --window-position={left},{top}
//
// When no argument contains {url} the URL is appended.
type BrowserOpener struct {
	Command []string

	openURL func(string) error
}

// NewBrowserOpener parses a command line such as the POPAUTH_BROWSER setting
func NewBrowserOpener(command string) *BrowserOpener {
	return &BrowserOpener{Command: strings.Fields(command)}
}

func (b *BrowserOpener) Open(url, title string, features Features) Window {
	if len(b.Command) == 0 {
		return b.launch(url)
	}

	args := expand(b.Command, url, title, features)
	cmd := exec.Command(args[0], args[1:]...)
	if err := cmd.Start(); err != nil {
		log.LogWarnWithFields("popup", "Failed to start browser", map[string]any{
			"command": args[0],
			"error":   err.Error(),
		})
		return nil
	}

	w := &processWindow{}
	go func() {
		_ = cmd.Wait()
		w.closed.Store(true)
	}()
	return w
}

func (b *BrowserOpener) launch(url string) Window {
	openURL := b.openURL
	if openURL == nil {
		openURL = browser.OpenURL
	}
	if err := openURL(url); err != nil {
		log.LogWarnWithFields("popup", "Failed to launch browser", map[string]any{
			"error": err.Error(),
		})
		return nil
	}
	return detachedWindow{}
}

func expand(command []string, url, title string, f Features) []string {
	replacer := strings.NewReplacer(
		"{url}", url,
		"{title}", title,
		"{width}", strconv.Itoa(f.Width),
		"{height}", strconv.Itoa(f.Height),
		"{top}", strconv.Itoa(f.Top),
		"{left}", strconv.Itoa(f.Left),
	)

	args := make([]string, 0, len(command)+1)
	hasURL := false
	for _, arg := range command {
		if strings.Contains(arg, "{url}") {
			hasURL = true
		}
		args = append(args, replacer.Replace(arg))
	}
	if !hasURL {
		args = append(args, url)
	}
	return args
}

type processWindow struct {
	closed atomic.Bool
}

func (w *processWindow) Closed() bool { return w.closed.Load() }

// Focus is up to the window manager once the process is running
func (w *processWindow) Focus() {}

type detachedWindow struct{}

func (detachedWindow) Closed() bool { return false }
func (detachedWindow) Focus()       {}
