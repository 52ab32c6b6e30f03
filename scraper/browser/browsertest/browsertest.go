// Package browsertest provides scripted in-memory browser sessions for tests.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"travel-monitor/scraper/browser"
)

// Session is a fake browser.Session. Pages maps a URL prefix to the body
// text returned after navigating to a matching URL.
type Session struct {
	Pages map[string]string
	// Present lists selectors and button texts that exist on every page.
	Present map[string]bool
	// Fail makes an operation ("navigate", "text", "fill", "press", "wait")
	// return the given error.
	Fail map[string]error

	mu      sync.Mutex
	current string
	calls   []string
	closed  bool
}

// NewSession returns a session serving pages.
func NewSession(pages map[string]string) *Session {
	return &Session{Pages: pages, Present: map[string]bool{}, Fail: map[string]error{}}
}

func (s *Session) record(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, fmt.Sprintf(format, args...))
}

func (s *Session) failure(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Fail[op]
}

// Calls returns the operations performed so far.
func (s *Session) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	s.record("navigate %s", url)
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.failure("navigate"); err != nil {
		return err
	}
	s.mu.Lock()
	s.current = url
	s.mu.Unlock()
	return nil
}

func (s *Session) WaitVisible(ctx context.Context, selector string) error {
	s.record("wait %s", selector)
	return s.failure("wait")
}

func (s *Session) Text(ctx context.Context) (string, error) {
	s.record("text")
	if err := s.failure("text"); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	best := ""
	for prefix := range s.Pages {
		if strings.HasPrefix(s.current, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return "", nil
	}
	return s.Pages[best], nil
}

func (s *Session) ClickFirst(ctx context.Context, selectors ...string) (bool, error) {
	for _, sel := range selectors {
		if s.present(sel) {
			s.record("click %s", sel)
			return true, nil
		}
	}
	return false, nil
}

func (s *Session) ClickText(ctx context.Context, tag string, texts ...string) (bool, error) {
	for _, t := range texts {
		if s.present(t) {
			s.record("click %s:%s", tag, t)
			return true, nil
		}
	}
	return false, nil
}

func (s *Session) present(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Present[key]
}

func (s *Session) Fill(ctx context.Context, selector, text string) error {
	s.record("fill %s=%s", selector, text)
	return s.failure("fill")
}

func (s *Session) Press(ctx context.Context, key string) error {
	s.record("press %s", key)
	return s.failure("press")
}

func (s *Session) Pause(ctx context.Context, d time.Duration) error {
	return ctx.Err()
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Launcher hands out sessions built by New and remembers the options each
// one was opened with.
type Launcher struct {
	New func(opts browser.Options) (*Session, error)

	mu       sync.Mutex
	opened   []browser.Options
	sessions []*Session
}

func (l *Launcher) Open(ctx context.Context, opts browser.Options) (browser.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s, err := l.New(opts)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.opened = append(l.opened, opts)
	l.sessions = append(l.sessions, s)
	l.mu.Unlock()
	return s, nil
}

// Opened returns the options of every session opened so far.
func (l *Launcher) Opened() []browser.Options {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]browser.Options(nil), l.opened...)
}

// Sessions returns every session handed out so far.
func (l *Launcher) Sessions() []*Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Session(nil), l.sessions...)
}
