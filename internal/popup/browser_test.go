package popup

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpand(t *testing.T) {
	f := Features{Width: 500, Height: 600, Top: 10, Left: 20}

	tests := []struct {
		name    string
		command []string
		want    []string
	}{
		{
			name:    "placeholders",
			command: []string{"chromium", "--app={url}", "--window-size={width},{height}", "--window-position={left},{top}"},
			want:    []string{"chromium", "--app=https://x.test/a", "--window-size=500,600", "--window-position=20,10"},
		},
		{
			name:    "url_appended",
			command: []string{"firefox", "--new-window"},
			want:    []string{"firefox", "--new-window", "https://x.test/a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, expand(tt.command, "https://x.test/a", "Sign in", f))
		})
	}
}

func TestNewBrowserOpener(t *testing.T) {
	assert.Empty(t, NewBrowserOpener("").Command)
	assert.Equal(t, []string{"chromium", "--app={url}"}, NewBrowserOpener("  chromium   --app={url} ").Command)
}

func TestBrowserOpener_MissingCommandIsRefused(t *testing.T) {
	b := &BrowserOpener{Command: []string{"popauth-definitely-not-a-browser"}}
	assert.Nil(t, b.Open("https://x.test", "t", Features{}))
}

func TestBrowserOpener_DefaultLauncher(t *testing.T) {
	t.Run("launched", func(t *testing.T) {
		var opened string
		b := &BrowserOpener{openURL: func(u string) error {
			opened = u
			return nil
		}}
		w := b.Open("https://idp.test/authorize?state=s", "login", Features{})
		if assert.NotNil(t, w) {
			assert.False(t, w.Closed())
		}
		assert.Equal(t, "https://idp.test/authorize?state=s", opened)
	})

	t.Run("launcher_fails", func(t *testing.T) {
		b := &BrowserOpener{openURL: func(string) error { return errors.New("no display") }}
		assert.Nil(t, b.Open("https://idp.test", "login", Features{}))
	})
}
