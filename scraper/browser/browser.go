// Package browser opens isolated, emulated browser sessions for the price
// providers. Every call is fallible and bounded by a timeout; callers treat
// errors as "no data from this session".
package browser

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DefaultUserAgent is sent by every session unless Options overrides it.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

// Options describe the simulated client of one session.
type Options struct {
	Locale    string
	Timezone  string
	UserAgent string

	// Geolocation is only granted and overridden when set.
	Geolocation bool
	Latitude    float64
	Longitude   float64
}

// Session is one isolated browser context.
type Session interface {
	// Navigate loads url and waits for the load event plus the settle delay.
	Navigate(ctx context.Context, url string) error
	// WaitVisible waits until a CSS selector matches a visible element.
	WaitVisible(ctx context.Context, selector string) error
	// Text returns the rendered visible text of the page body.
	Text(ctx context.Context) (string, error)
	// ClickFirst clicks the first CSS selector that matches anything and
	// reports whether a click happened.
	ClickFirst(ctx context.Context, selectors ...string) (bool, error)
	// ClickText clicks the first tag element whose text contains one of
	// texts, tried in order.
	ClickText(ctx context.Context, tag string, texts ...string) (bool, error)
	// Fill clears the element matched by selector and types text into it.
	Fill(ctx context.Context, selector, text string) error
	// Press sends a single key, e.g. "Enter" or "ArrowDown".
	Press(ctx context.Context, key string) error
	// Pause waits for d or until ctx is done.
	Pause(ctx context.Context, d time.Duration) error
	Close() error
}

// Launcher opens sessions.
type Launcher interface {
	Open(ctx context.Context, opts Options) (Session, error)
}

// Keys understood by Session.Press.
const (
	KeyEnter     = "Enter"
	KeyArrowDown = "ArrowDown"
	KeyTab       = "Tab"
)

// ConsentLabels are the cookie banner buttons seen on the monitored sites.
var ConsentLabels = []string{"Aceptar todo", "Accept all", "Aceptar", "Alle akzeptieren"}

// AcceptCookies dismisses a consent banner if one is present. It never
// fails: a missing banner is the common case.
func AcceptCookies(ctx context.Context, s Session, selectors []string, labels []string) bool {
	if len(selectors) > 0 {
		if ok, err := s.ClickFirst(ctx, selectors...); err == nil && ok {
			return true
		}
	}
	ok, err := s.ClickText(ctx, "button", labels...)
	return err == nil && ok
}

// Pause sleeps for d unless ctx ends first.
func Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// textXPath matches tag elements whose normalised text contains text.
func textXPath(tag, text string) string {
	if tag == "" {
		tag = "*"
	}
	return fmt.Sprintf("//%s[contains(normalize-space(.), %s)]", tag, xpathLiteral(text))
}

// xpathLiteral quotes s for XPath 1.0, which has no escape sequences.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, 2*len(parts))
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		quoted = append(quoted, "'"+p+"'")
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}
