// internal/chrome/element.go
package chrome

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/ubitops/ubmail-minder/internal/browser"
)

type element struct {
	node *cdp.Node
}

func (e *element) Ref() string {
	name := strings.ToLower(e.node.LocalName)
	if id := e.node.AttributeValue("id"); id != "" {
		return name + "#" + id
	}
	return fmt.Sprintf("%s[node %d]", name, e.node.NodeID)
}

func (s *Session) own(el browser.Element) (*element, error) {
	e, ok := el.(*element)
	if !ok || e.node == nil {
		return nil, fmt.Errorf("element %q was not produced by this session", el.Ref())
	}
	return e, nil
}

// Click dispatches the element's own click() instead of synthetic mouse
// events: the mail UI floats toasts and tooltips over its controls, and a
// coordinate click lands on whatever is on top.
func (s *Session) Click(ctx context.Context, el browser.Element) error {
	e, err := s.own(el)
	if err != nil {
		return err
	}
	return s.run(ctx, s.actTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithNodeID(e.node.NodeID).Do(ctx)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", el.Ref(), err)
		}
		defer releaseObject(ctx, obj.ObjectID)
		_, exc, err := runtime.CallFunctionOn("function() { this.click(); }").
			WithObjectID(obj.ObjectID).
			Do(ctx)
		if err != nil {
			return fmt.Errorf("click %s: %w", el.Ref(), err)
		}
		if exc != nil {
			return fmt.Errorf("click %s: %w", el.Ref(), exc)
		}
		return nil
	}))
}

// SendKeys focuses the element and types text into it key by key.
func (s *Session) SendKeys(ctx context.Context, el browser.Element, text string) error {
	e, err := s.own(el)
	if err != nil {
		return err
	}
	if err := s.run(ctx, s.actTimeout, chromedp.KeyEventNode(e.node, text)); err != nil {
		return fmt.Errorf("send keys to %s: %w", el.Ref(), err)
	}
	return nil
}

// Attribute reads the string property when the element exposes one, falling
// back to the markup attribute. Anchors resolve href this way, which is what
// the landing checkpoint compares against.
func (s *Session) Attribute(ctx context.Context, el browser.Element, name string) (string, error) {
	e, err := s.own(el)
	if err != nil {
		return "", err
	}
	script := fmt.Sprintf(`function() {
		const name = %s;
		const v = this[name];
		if (typeof v === "string") {
			return v;
		}
		const a = this.getAttribute(name);
		return a === null ? "" : a;
	}`, strconv.Quote(name))

	var value string
	err = s.run(ctx, s.actTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithNodeID(e.node.NodeID).Do(ctx)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", el.Ref(), err)
		}
		defer releaseObject(ctx, obj.ObjectID)
		res, exc, err := runtime.CallFunctionOn(script).
			WithObjectID(obj.ObjectID).
			WithReturnByValue(true).
			Do(ctx)
		if err != nil {
			return fmt.Errorf("read %s of %s: %w", name, el.Ref(), err)
		}
		if exc != nil {
			return fmt.Errorf("read %s of %s: %w", name, el.Ref(), exc)
		}
		return json.Unmarshal(res.Value, &value)
	}))
	return value, err
}

func releaseObject(ctx context.Context, id runtime.RemoteObjectID) {
	_ = runtime.ReleaseObject(id).Do(ctx)
}
