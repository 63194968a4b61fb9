// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Waits groups the element wait windows. Probe is deliberately short:
// optional UI is detected, not waited for.
type Waits struct {
	Element    time.Duration `mapstructure:"element" yaml:"element"`
	Probe      time.Duration `mapstructure:"probe" yaml:"probe"`
	Navigation time.Duration `mapstructure:"navigation" yaml:"navigation"`
}

// Retry is the shared policy for flaky controls.
type Retry struct {
	Attempts int           `mapstructure:"attempts" yaml:"attempts"`
	Delay    time.Duration `mapstructure:"delay" yaml:"delay"`
}

// Flow holds the element identifiers and expected attribute values for the
// login chain. Defaults describe the current UB deployment; a config file can
// remap any of them when the provider ships a new front end, without a
// rebuild.
type Flow struct {
	LoginURL string `mapstructure:"login_url" yaml:"login_url"`

	UsernameFieldID string `mapstructure:"username_field_id" yaml:"username_field_id"`
	PasswordFieldID string `mapstructure:"password_field_id" yaml:"password_field_id"`
	SubmitButtonID  string `mapstructure:"submit_button_id" yaml:"submit_button_id"`

	ProviderPasswordID          string `mapstructure:"provider_password_id" yaml:"provider_password_id"`
	ProviderPasswordName        string `mapstructure:"provider_password_name" yaml:"provider_password_name"`
	ProviderPasswordType        string `mapstructure:"provider_password_type" yaml:"provider_password_type"`
	ProviderPasswordPlaceholder string `mapstructure:"provider_password_placeholder" yaml:"provider_password_placeholder"`

	SignInButtonID string `mapstructure:"sign_in_button_id" yaml:"sign_in_button_id"`
	SignInType     string `mapstructure:"sign_in_type" yaml:"sign_in_type"`
	SignInValue    string `mapstructure:"sign_in_value" yaml:"sign_in_value"`

	// Some tenants interpose a confirmation page that reuses the sign-in
	// button id with this value.
	ContinueValue string `mapstructure:"continue_value" yaml:"continue_value"`

	DeclineButtonID string `mapstructure:"decline_button_id" yaml:"decline_button_id"`
	DeclineType     string `mapstructure:"decline_type" yaml:"decline_type"`
	DeclineValue    string `mapstructure:"decline_value" yaml:"decline_value"`

	// Printf template; both verbs receive the username.
	AccountTileXPath string `mapstructure:"account_tile_xpath" yaml:"account_tile_xpath"`

	LogoID   string `mapstructure:"logo_id" yaml:"logo_id"`
	HomeHref string `mapstructure:"home_href" yaml:"home_href"`
}

// Mailbox holds the locators for the unread-forwarding pass.
type Mailbox struct {
	FilterButton   string `mapstructure:"filter_button" yaml:"filter_button"`
	UnreadOption   string `mapstructure:"unread_option" yaml:"unread_option"`
	EmptyMarker    string `mapstructure:"empty_marker" yaml:"empty_marker"`
	UnreadEntries  string `mapstructure:"unread_entries" yaml:"unread_entries"`
	ForwardButton  string `mapstructure:"forward_button" yaml:"forward_button"`
	RecipientField string `mapstructure:"recipient_field" yaml:"recipient_field"`
	SendButton     string `mapstructure:"send_button" yaml:"send_button"`
	MarkReadButton string `mapstructure:"mark_read_button" yaml:"mark_read_button"`
}

// Debug controls what happens after a failed run.
type Debug struct {
	HoldOnFailure  time.Duration `mapstructure:"hold_on_failure" yaml:"hold_on_failure"`
	ScreenshotPath string        `mapstructure:"screenshot_path" yaml:"screenshot_path"`
}

// Config is the full runtime configuration minus credentials, which only
// ever come from the environment.
type Config struct {
	Waits   Waits   `mapstructure:"waits" yaml:"waits"`
	Retry   Retry   `mapstructure:"retry" yaml:"retry"`
	Flow    Flow    `mapstructure:"flow" yaml:"flow"`
	Mailbox Mailbox `mapstructure:"mailbox" yaml:"mailbox"`
	Debug   Debug   `mapstructure:"debug" yaml:"debug"`
}

// Default returns the configuration for the reference deployment.
func Default() *Config {
	return &Config{
		Waits: Waits{
			Element:    10 * time.Second,
			Probe:      time.Second,
			Navigation: 60 * time.Second,
		},
		Retry: Retry{
			Attempts: 3,
			Delay:    time.Second,
		},
		Flow: Flow{
			LoginURL: "https://ubmail.buffalo.edu/cgi-bin/login.pl",

			UsernameFieldID: "login",
			PasswordFieldID: "password",
			SubmitButtonID:  "login-button",

			ProviderPasswordID:          "i0118",
			ProviderPasswordName:        "passwd",
			ProviderPasswordType:        "password",
			ProviderPasswordPlaceholder: "Password",

			SignInButtonID: "idSIButton9",
			SignInType:     "submit",
			SignInValue:    "Sign in",

			ContinueValue: "Continue",

			DeclineButtonID: "idBtn_Back",
			DeclineType:     "button",
			DeclineValue:    "No",

			AccountTileXPath: `//div[starts-with(@data-test-id, "%[1]s") and starts-with(@aria-label, "Sign in with %[1]s")]`,

			LogoID:   "O365_MainLink_TenantLogo",
			HomeHref: "http://buffalo.edu/",
		},
		Mailbox: Mailbox{
			FilterButton:   `//button[@id="menurn" or @aria-label="Filter"]`,
			UnreadOption:   `//div[@role="menuitemradio" and @title="Unread"]`,
			EmptyMarker:    `//span[text()="You're on top of everything here."]`,
			UnreadEntries:  `//div[@role="option" and starts-with(@aria-label, "Unread ")]`,
			ForwardButton:  `//button[@aria-label="Forward"]`,
			RecipientField: `//div[@role="textbox" and @aria-label="To"]`,
			SendButton:     `//button[@type="button" and @aria-label="Send"]`,
			MarkReadButton: `//button[@aria-label="Read / Unread"]`,
		},
		Debug: Debug{
			HoldOnFailure: 24 * time.Hour,
		},
	}
}

// Load reads configuration from the given YAML file path using Viper. Values
// present in the file overlay the defaults; everything else keeps its
// default. An empty or missing path yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return Default(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return Default(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}
