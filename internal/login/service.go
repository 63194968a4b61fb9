// internal/login/service.go
package login

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/ubitops/ubmail-minder/internal/browser"
	"github.com/ubitops/ubmail-minder/internal/config"
	"github.com/ubitops/ubmail-minder/internal/retry"
)

// Service drives the fixed authentication chain: local login form, identity
// provider password, the interstitial prompts, then the inbox landing check.
type Service struct {
	Session browser.Session
	Log     *slog.Logger
	Flow    config.Flow
	Waits   config.Waits
	Retry   retry.Policy
}

// NewService wires a sequencer; a nil logger falls back to stderr.
func NewService(sess browser.Session, flow config.Flow, waits config.Waits, pol retry.Policy, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Service{
		Session: sess,
		Log:     logger,
		Flow:    flow,
		Waits:   waits,
		Retry:   pol,
	}
}

// Run executes the chain. Any stage failure aborts the run. Attribute
// checkpoints are terminal the moment they mismatch; only the landing check
// runs under the retry policy.
func (s *Service) Run(ctx context.Context, creds config.Credentials) error {
	s.Log.InfoContext(ctx, "opening login page", "url", s.Flow.LoginURL)
	if err := s.Session.Navigate(ctx, s.Flow.LoginURL); err != nil {
		return fmt.Errorf("open login page: %w", err)
	}
	if err := s.submitLocalLogin(ctx, creds); err != nil {
		return fmt.Errorf("local login: %w", err)
	}
	if err := s.submitProviderPassword(ctx, creds.Password); err != nil {
		return fmt.Errorf("provider password: %w", err)
	}
	if err := s.confirmContinueIfPrompted(ctx); err != nil {
		return fmt.Errorf("continue prompt: %w", err)
	}
	if err := s.declineRememberBrowser(ctx); err != nil {
		return fmt.Errorf("remember-browser prompt: %w", err)
	}
	if err := s.pickAccountIfPrompted(ctx, creds.Username); err != nil {
		return fmt.Errorf("account picker: %w", err)
	}
	if err := s.confirmLanding(ctx); err != nil {
		return fmt.Errorf("confirm inbox landing: %w", err)
	}
	s.Log.InfoContext(ctx, "signed in", "user", creds.Username)
	return nil
}

// The local page bounces through a redirect before rendering; the submit
// button is the last control to appear, so waiting on it covers the form.
func (s *Service) submitLocalLogin(ctx context.Context, creds config.Credentials) error {
	if _, err := s.Session.Find(ctx, browser.ID(s.Flow.SubmitButtonID), s.Waits.Element); err != nil {
		return err
	}
	user, err := s.Session.Find(ctx, browser.ID(s.Flow.UsernameFieldID), s.Waits.Element)
	if err != nil {
		return err
	}
	if err := s.Session.SendKeys(ctx, user, creds.Username); err != nil {
		return err
	}
	pass, err := s.Session.Find(ctx, browser.ID(s.Flow.PasswordFieldID), s.Waits.Element)
	if err != nil {
		return err
	}
	if err := s.Session.SendKeys(ctx, pass, creds.Password); err != nil {
		return err
	}
	submit, err := s.Session.Find(ctx, browser.ID(s.Flow.SubmitButtonID), s.Waits.Element)
	if err != nil {
		return err
	}
	s.Log.InfoContext(ctx, "submitting local login", "user", creds.Username)
	return s.Session.Click(ctx, submit)
}

func (s *Service) submitProviderPassword(ctx context.Context, password string) error {
	field, err := s.Session.Find(ctx, browser.ID(s.Flow.ProviderPasswordID), s.Waits.Element)
	if err != nil {
		return err
	}
	// Prove this really is the provider's password box before typing a
	// secret into it.
	if err := browser.Ensure(ctx, s.Session, field, "name", s.Flow.ProviderPasswordName); err != nil {
		return err
	}
	if err := browser.Ensure(ctx, s.Session, field, "type", s.Flow.ProviderPasswordType); err != nil {
		return err
	}
	if err := browser.Ensure(ctx, s.Session, field, "placeholder", s.Flow.ProviderPasswordPlaceholder); err != nil {
		return err
	}
	if err := s.Session.SendKeys(ctx, field, password); err != nil {
		return err
	}

	signIn, err := s.Session.Find(ctx, browser.ID(s.Flow.SignInButtonID), s.Waits.Element)
	if err != nil {
		return err
	}
	if err := browser.Ensure(ctx, s.Session, signIn, "type", s.Flow.SignInType); err != nil {
		return err
	}
	if err := browser.Ensure(ctx, s.Session, signIn, "value", s.Flow.SignInValue); err != nil {
		return err
	}
	s.Log.InfoContext(ctx, "submitting provider password")
	return s.Session.Click(ctx, signIn)
}

// Some tenant configurations interpose a confirmation page that reuses the
// sign-in button id with a different value. Probe briefly and click only
// when the value says it is the confirmation.
func (s *Service) confirmContinueIfPrompted(ctx context.Context) error {
	btn, ok, err := s.Session.TryFind(ctx, browser.ID(s.Flow.SignInButtonID), s.Waits.Probe)
	if err != nil || !ok {
		return err
	}
	value, err := s.Session.Attribute(ctx, btn, "value")
	if err != nil {
		return err
	}
	if value != s.Flow.ContinueValue {
		return nil
	}
	s.Log.InfoContext(ctx, "confirming continue prompt")
	return s.Session.Click(ctx, btn)
}

func (s *Service) declineRememberBrowser(ctx context.Context) error {
	decline, err := s.Session.Find(ctx, browser.ID(s.Flow.DeclineButtonID), s.Waits.Element)
	if err != nil {
		return err
	}
	if err := browser.Ensure(ctx, s.Session, decline, "type", s.Flow.DeclineType); err != nil {
		return err
	}
	if err := browser.Ensure(ctx, s.Session, decline, "value", s.Flow.DeclineValue); err != nil {
		return err
	}
	s.Log.InfoContext(ctx, "declining remember-browser prompt")
	return s.Session.Click(ctx, decline)
}

// The account picker only appears when the provider still remembers other
// sessions; probe briefly and move on when it is not there.
func (s *Service) pickAccountIfPrompted(ctx context.Context, username string) error {
	loc := browser.XPath(fmt.Sprintf(s.Flow.AccountTileXPath, username))
	tile, ok, err := s.Session.TryFind(ctx, loc, s.Waits.Probe)
	if err != nil {
		return err
	}
	if !ok {
		s.Log.InfoContext(ctx, "account picker not shown")
		return nil
	}
	s.Log.InfoContext(ctx, "selecting account", "user", username)
	return s.Session.Click(ctx, tile)
}

// The provider can show an interstitial spinner before the mailbox shell
// renders, so the whole find-and-check runs under the retry policy. The logo
// handle is resolved fresh on every attempt.
func (s *Service) confirmLanding(ctx context.Context) error {
	return retry.Do(ctx, s.Log, s.Retry, "confirm inbox landing", func(ctx context.Context) error {
		logo, err := s.Session.Find(ctx, browser.ID(s.Flow.LogoID), s.Waits.Element)
		if err != nil {
			return err
		}
		return browser.Ensure(ctx, s.Session, logo, "href", s.Flow.HomeHref)
	})
}
