package forward_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ubitops/ubmail-minder/internal/browser"
	"github.com/ubitops/ubmail-minder/internal/config"
	"github.com/ubitops/ubmail-minder/internal/forward"
	"github.com/ubitops/ubmail-minder/internal/retry"
)

type fakeElement string

func (f fakeElement) Ref() string { return string(f) }

// fakeSession resolves every locator to an element named after it unless
// listed absent. Click outcomes are scripted per element as a queue of
// results; an exhausted or missing queue means success.
type fakeSession struct {
	absent     map[string]bool
	unread     []browser.Element
	clickQueue map[string][]error
	calls      []string
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		absent:     map[string]bool{},
		clickQueue: map[string][]error{},
	}
}

func (f *fakeSession) Navigate(_ context.Context, url string) error {
	f.calls = append(f.calls, "navigate "+url)
	return nil
}

func (f *fakeSession) Find(_ context.Context, loc browser.Locator, _ time.Duration) (browser.Element, error) {
	f.calls = append(f.calls, "find "+loc.String())
	if f.absent[loc.String()] {
		return nil, &browser.NotFoundError{Locator: loc}
	}
	return fakeElement(loc.String()), nil
}

func (f *fakeSession) TryFind(ctx context.Context, loc browser.Locator, timeout time.Duration) (browser.Element, bool, error) {
	el, err := f.Find(ctx, loc, timeout)
	if err != nil {
		var notFound *browser.NotFoundError
		if errors.As(err, &notFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return el, true, nil
}

func (f *fakeSession) FindAll(_ context.Context, loc browser.Locator, _ time.Duration) ([]browser.Element, error) {
	f.calls = append(f.calls, "findall "+loc.String())
	return f.unread, nil
}

func (f *fakeSession) Click(_ context.Context, el browser.Element) error {
	f.calls = append(f.calls, "click "+el.Ref())
	queue := f.clickQueue[el.Ref()]
	if len(queue) == 0 {
		return nil
	}
	f.clickQueue[el.Ref()] = queue[1:]
	return queue[0]
}

func (f *fakeSession) SendKeys(_ context.Context, el browser.Element, text string) error {
	f.calls = append(f.calls, "type "+el.Ref()+" "+text)
	return nil
}

func (f *fakeSession) Attribute(context.Context, browser.Element, string) (string, error) {
	return "", nil
}

func (f *fakeSession) clicks(ref string) int {
	n := 0
	for _, c := range f.calls {
		if c == "click "+ref {
			n++
		}
	}
	return n
}

var ui = config.Default().Mailbox

func locs() (filter, option, marker, forwardBtn, recipient, send, markRead string) {
	return browser.XPath(ui.FilterButton).String(),
		browser.XPath(ui.UnreadOption).String(),
		browser.XPath(ui.EmptyMarker).String(),
		browser.XPath(ui.ForwardButton).String(),
		browser.XPath(ui.RecipientField).String(),
		browser.XPath(ui.SendButton).String(),
		browser.XPath(ui.MarkReadButton).String()
}

// inboxSession has the unread filter working and the caught-up splash absent.
func inboxSession(unread ...browser.Element) *fakeSession {
	_, _, marker, _, _, _, _ := locs()
	sess := newFakeSession()
	sess.absent[marker] = true
	sess.unread = unread
	return sess
}

func newService(sess browser.Session) *forward.Service {
	cfg := config.Default()
	return forward.NewService(sess, cfg.Mailbox, cfg.Waits, retry.Policy{Attempts: 3}, slog.New(slog.DiscardHandler))
}

func TestRunWithCaughtUpInbox(t *testing.T) {
	_, _, marker, _, _, _, _ := locs()
	sess := inboxSession(fakeElement("msg-stale"))
	delete(sess.absent, marker)

	n, err := newService(sess).Run(context.Background(), "dest@example.com")
	require.NoError(t, err)
	assert.Zero(t, n)

	// The splash short-circuits the run: no snapshot, no message clicks.
	assert.NotContains(t, sess.calls, "findall "+browser.XPath(ui.UnreadEntries).String())
	assert.Zero(t, sess.clicks("msg-stale"))
}

func TestRunWithNoEntriesAndNoSplash(t *testing.T) {
	sess := inboxSession()

	n, err := newService(sess).Run(context.Background(), "dest@example.com")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRunForwardsOldestFirst(t *testing.T) {
	sess := inboxSession(fakeElement("msg-newest"), fakeElement("msg-middle"), fakeElement("msg-oldest"))

	n, err := newService(sess).Run(context.Background(), "dest@example.com")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	var opened []string
	for _, c := range sess.calls {
		switch c {
		case "click msg-newest", "click msg-middle", "click msg-oldest":
			opened = append(opened, c)
		}
	}
	assert.Equal(t, []string{"click msg-oldest", "click msg-middle", "click msg-newest"}, opened)

	_, _, _, forwardBtn, recipient, send, markRead := locs()
	assert.Equal(t, 3, sess.clicks(forwardBtn))
	assert.Equal(t, 3, sess.clicks(send))
	assert.Equal(t, 3, sess.clicks(markRead))

	typed := 0
	for _, c := range sess.calls {
		if c == "type "+recipient+" dest@example.com" {
			typed++
		}
	}
	assert.Equal(t, 3, typed)
}

func TestRunSingleMessageCallOrder(t *testing.T) {
	sess := inboxSession(fakeElement("msg-only"))

	n, err := newService(sess).Run(context.Background(), "dest@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	filter, option, marker, forwardBtn, recipient, send, markRead := locs()
	want := []string{
		"find " + filter,
		"click " + filter,
		"find " + option,
		"click " + option,
		"find " + marker,
		"findall " + browser.XPath(ui.UnreadEntries).String(),
		"click msg-only",
		"find " + forwardBtn,
		"click " + forwardBtn,
		"find " + recipient,
		"type " + recipient + " dest@example.com",
		"find " + send,
		"click " + send,
		"find " + markRead,
		"click " + markRead,
	}
	assert.Equal(t, want, sess.calls)
}

func TestRunRetriesFilterPairAsUnit(t *testing.T) {
	filter, option, _, _, _, _, _ := locs()
	sess := inboxSession()
	sess.clickQueue[option] = []error{errors.New("menu closed")}

	_, err := newService(sess).Run(context.Background(), "dest@example.com")
	require.NoError(t, err)

	// The failed option click forces the menu open again.
	assert.Equal(t, 2, sess.clicks(filter))
	assert.Equal(t, 2, sess.clicks(option))
}

func TestRunRetriesFlakyForwardButton(t *testing.T) {
	_, _, _, forwardBtn, _, _, _ := locs()
	sess := inboxSession(fakeElement("msg-only"))
	sess.clickQueue[forwardBtn] = []error{errors.New("not clickable"), errors.New("not clickable")}

	n, err := newService(sess).Run(context.Background(), "dest@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 3, sess.clicks(forwardBtn))
}

func TestRunReclicksForwardWhenPaneNeverOpens(t *testing.T) {
	_, _, _, forwardBtn, recipient, _, _ := locs()
	sess := inboxSession(fakeElement("msg-only"))
	sess.absent[recipient] = true

	n, err := newService(sess).Run(context.Background(), "dest@example.com")
	require.Error(t, err)
	assert.Zero(t, n)
	assert.ErrorContains(t, err, "forward message 1 of 1")

	var notFound *browser.NotFoundError
	require.ErrorAs(t, err, &notFound)

	// Each outer attempt re-clicked Forward before looking for the box.
	assert.Equal(t, 3, sess.clicks(forwardBtn))
}

func TestRunAbortsMidRunAndReportsProgress(t *testing.T) {
	_, _, _, _, _, send, _ := locs()
	sess := inboxSession(fakeElement("msg-new"), fakeElement("msg-old"))
	boom := errors.New("send rejected")
	sess.clickQueue[send] = []error{nil, boom, boom, boom}

	n, err := newService(sess).Run(context.Background(), "dest@example.com")
	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.ErrorContains(t, err, "forward message 2 of 2")
	assert.Equal(t, boom, errors.Unwrap(err))

	// First message is fully processed, second never marked read.
	assert.Equal(t, 4, sess.clicks(send))
}
