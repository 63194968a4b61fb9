// internal/browser/browser.go
package browser

import (
	"context"
	"fmt"
	"time"
)

// By selects the resolution strategy for a Locator.
type By string

const (
	ByID    By = "id"
	ByXPath By = "xpath"
)

// Locator names one element on the page. Locators are cheap values built at
// the call site; resolution happens inside the Session.
type Locator struct {
	By   By
	Expr string
}

// ID locates an element by its id attribute.
func ID(id string) Locator { return Locator{By: ByID, Expr: id} }

// XPath locates an element by an XPath expression.
func XPath(expr string) Locator { return Locator{By: ByXPath, Expr: expr} }

func (l Locator) String() string { return string(l.By) + "=" + l.Expr }

// Element is a handle to a live DOM node, borrowed from the Session. A handle
// is only as durable as the node behind it; anything retried must re-resolve
// its Locator rather than hold on to an Element.
type Element interface {
	Ref() string
}

// Session is the narrow browser surface required by the login and forward
// flows. Find waits up to timeout for a rendered match. TryFind reports
// absence as a plain false, reserving errors for session-level failures.
// FindAll waits for at least one match but treats none as an empty result.
// A missing attribute reads as "".
type Session interface {
	Navigate(ctx context.Context, url string) error
	Find(ctx context.Context, loc Locator, timeout time.Duration) (Element, error)
	TryFind(ctx context.Context, loc Locator, timeout time.Duration) (Element, bool, error)
	FindAll(ctx context.Context, loc Locator, timeout time.Duration) ([]Element, error)
	Click(ctx context.Context, el Element) error
	SendKeys(ctx context.Context, el Element, text string) error
	Attribute(ctx context.Context, el Element, name string) (string, error)
}

// NotFoundError reports that nothing matched a Locator within its wait.
type NotFoundError struct {
	Locator Locator
	Timeout time.Duration
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no element matching %s after %s", e.Locator, e.Timeout)
}

// MismatchError reports an attribute checkpoint that read back the wrong
// value. It is terminal: the page under the driver is not the page the flow
// expects, and retrying cannot change that.
type MismatchError struct {
	Ref  string
	Attr string
	Want string
	Got  string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("element %s: attribute %q is %q, want %q", e.Ref, e.Attr, e.Got, e.Want)
}
