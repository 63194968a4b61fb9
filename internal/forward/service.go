// internal/forward/service.go
package forward

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/ubitops/ubmail-minder/internal/browser"
	"github.com/ubitops/ubmail-minder/internal/config"
	"github.com/ubitops/ubmail-minder/internal/retry"
)

// Service forwards every unread message in the inbox to a fixed address and
// marks it read, oldest first.
type Service struct {
	Session browser.Session
	Log     *slog.Logger
	UI      config.Mailbox
	Waits   config.Waits
	Retry   retry.Policy
}

// NewService wires a forwarder; a nil logger falls back to stderr.
func NewService(sess browser.Session, ui config.Mailbox, waits config.Waits, pol retry.Policy, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Service{
		Session: sess,
		Log:     logger,
		UI:      ui,
		Waits:   waits,
		Retry:   pol,
	}
}

// Run applies the unread filter and forwards each unread message to the
// given address. It returns how many messages were fully processed; on
// error the count covers the messages finished before the failure.
func (s *Service) Run(ctx context.Context, to string) (int, error) {
	if err := s.applyUnreadFilter(ctx); err != nil {
		return 0, fmt.Errorf("apply unread filter: %w", err)
	}

	caughtUp, err := s.inboxCaughtUp(ctx)
	if err != nil {
		return 0, fmt.Errorf("probe empty state: %w", err)
	}
	if caughtUp {
		s.Log.InfoContext(ctx, "no unread messages")
		return 0, nil
	}

	entries, err := s.Session.FindAll(ctx, browser.XPath(s.UI.UnreadEntries), s.Waits.Element)
	if err != nil {
		return 0, fmt.Errorf("list unread messages: %w", err)
	}
	total := len(entries)
	s.Log.InfoContext(ctx, "unread messages found", "count", total)

	// The list renders newest first; forward in the order the mail arrived.
	oldestFirst := make([]browser.Element, 0, total)
	for i := total - 1; i >= 0; i-- {
		oldestFirst = append(oldestFirst, entries[i])
	}

	for i, entry := range oldestFirst {
		s.Log.InfoContext(ctx, "forwarding message", "message", i+1, "total", total)
		if err := s.Session.Click(ctx, entry); err != nil {
			return i, fmt.Errorf("open message %d of %d: %w", i+1, total, err)
		}
		if err := s.forwardOpen(ctx, to); err != nil {
			return i, fmt.Errorf("forward message %d of %d: %w", i+1, total, err)
		}
		if err := s.markRead(ctx); err != nil {
			return i, fmt.Errorf("mark message %d of %d read: %w", i+1, total, err)
		}
	}
	return total, nil
}

// applyUnreadFilter opens the filter menu and picks "Unread". The pair
// retries as a unit: once the dropdown closes, the option cannot be clicked
// without reopening it.
func (s *Service) applyUnreadFilter(ctx context.Context) error {
	return retry.Do(ctx, s.Log, s.Retry, "apply unread filter", func(ctx context.Context) error {
		if err := s.click(ctx, browser.XPath(s.UI.FilterButton)); err != nil {
			return err
		}
		return s.click(ctx, browser.XPath(s.UI.UnreadOption))
	})
}

// inboxCaughtUp probes for the provider's "all caught up" splash.
func (s *Service) inboxCaughtUp(ctx context.Context) (bool, error) {
	_, ok, err := s.Session.TryFind(ctx, browser.XPath(s.UI.EmptyMarker), s.Waits.Probe)
	return ok, err
}

// forwardOpen forwards the currently open message. The forward button is the
// least reliable control in this UI, so its retried click gets an outer
// layer too: when the pane never produces a recipient box, re-click Forward
// and type again.
func (s *Service) forwardOpen(ctx context.Context, to string) error {
	err := retry.Do(ctx, s.Log, s.Retry, "open forward pane", func(ctx context.Context) error {
		if err := s.clickWithRetry(ctx, browser.XPath(s.UI.ForwardButton)); err != nil {
			return err
		}
		recipient, err := s.Session.Find(ctx, browser.XPath(s.UI.RecipientField), s.Waits.Element)
		if err != nil {
			return err
		}
		return s.Session.SendKeys(ctx, recipient, to)
	})
	if err != nil {
		return err
	}
	return s.clickWithRetry(ctx, browser.XPath(s.UI.SendButton))
}

// markRead toggles the open message to read so it leaves the unread set.
func (s *Service) markRead(ctx context.Context) error {
	return s.clickWithRetry(ctx, browser.XPath(s.UI.MarkReadButton))
}

// click resolves loc with the short probe wait and clicks it once.
func (s *Service) click(ctx context.Context, loc browser.Locator) error {
	el, err := s.Session.Find(ctx, loc, s.Waits.Probe)
	if err != nil {
		return err
	}
	return s.Session.Click(ctx, el)
}

// clickWithRetry re-resolves loc on every attempt; handles from a failed
// attempt are never reused.
func (s *Service) clickWithRetry(ctx context.Context, loc browser.Locator) error {
	return retry.Do(ctx, s.Log, s.Retry, "click "+loc.String(), func(ctx context.Context) error {
		return s.click(ctx, loc)
	})
}
