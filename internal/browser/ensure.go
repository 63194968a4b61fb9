package browser

import (
	"context"
	"fmt"
)

// Ensure validates that an element attribute reads back exactly want. The
// login chain uses these checkpoints to prove it is typing secrets into the
// page it thinks it is on. A mismatch returns a *MismatchError.
func Ensure(ctx context.Context, s Session, el Element, attr, want string) error {
	got, err := s.Attribute(ctx, el, attr)
	if err != nil {
		return fmt.Errorf("read attribute %q: %w", attr, err)
	}
	if got != want {
		return &MismatchError{Ref: el.Ref(), Attr: attr, Want: want, Got: got}
	}
	return nil
}
