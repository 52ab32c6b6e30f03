package notify

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// DesktopNotifier raises a local notification for urgent messages:
// osascript on macOS, notify-send elsewhere.
type DesktopNotifier struct {
	title string
	goos  string
	run   func(ctx context.Context, name string, args ...string) error
}

// NewDesktopNotifier builds a notifier whose notifications are titled with
// the company name.
func NewDesktopNotifier(company string) *DesktopNotifier {
	return &DesktopNotifier{
		title: company,
		goos:  runtime.GOOS,
		run: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
	}
}

func (n *DesktopNotifier) Name() string { return "desktop" }

func (n *DesktopNotifier) Notify(ctx context.Context, msg Message) error {
	if !msg.Urgent {
		return nil
	}
	title := msg.Subject
	if n.title != "" {
		title = n.title + " - " + msg.Subject
	}
	body := msg.Short
	if body == "" {
		body = msg.Subject
	}

	if n.goos == "darwin" {
		script := fmt.Sprintf(`display notification "%s" with title "%s" sound name "Glass"`,
			appleScriptEscape(body), appleScriptEscape(title))
		return n.run(ctx, "osascript", "-e", script)
	}
	return n.run(ctx, "notify-send", title, body)
}

func appleScriptEscape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
