package config

import (
	"fmt"
	"net/mail"
	"os"
)

// Environment variables read at startup. Credentials never pass through
// flags or the config file.
const (
	EnvUsername  = "UBIT_USERNAME"
	EnvPassword  = "UBIT_PASSWORD"
	EnvForwardTo = "FORWARD_TO_EMAIL"
)

// MissingCredentialError names the environment variable that was absent or
// empty.
type MissingCredentialError struct {
	Var string
}

func (e *MissingCredentialError) Error() string {
	return "required environment variable " + e.Var + " is not set"
}

// Credentials is everything secret a run needs.
type Credentials struct {
	Username  string
	Password  string
	ForwardTo string
}

// LoadCredentials reads credentials from the environment before any browser
// session exists, so a misconfigured cron job fails in milliseconds.
// ForwardTo is required, and validated, only when the run will forward mail.
func LoadCredentials(forwarding bool) (Credentials, error) {
	creds := Credentials{
		Username: os.Getenv(EnvUsername),
		Password: os.Getenv(EnvPassword),
	}
	if creds.Username == "" {
		return Credentials{}, &MissingCredentialError{Var: EnvUsername}
	}
	if creds.Password == "" {
		return Credentials{}, &MissingCredentialError{Var: EnvPassword}
	}
	if !forwarding {
		return creds, nil
	}

	forwardTo := os.Getenv(EnvForwardTo)
	if forwardTo == "" {
		return Credentials{}, &MissingCredentialError{Var: EnvForwardTo}
	}
	if _, err := mail.ParseAddress(forwardTo); err != nil {
		return Credentials{}, fmt.Errorf("%s is not a valid address: %w", EnvForwardTo, err)
	}
	creds.ForwardTo = forwardTo
	return creds, nil
}
