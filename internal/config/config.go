package config

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Config holds all runtime configuration for the call server.
// Precedence: CLI flags > env vars > defaults.
type Config struct {
	HTTPPort      int
	DataDir       string
	PublicBaseURL string // base URL for shareable recording links, e.g. "https://calls.example.com"

	TwilioAccountSID string
	TwilioAuthToken  string
	ServiceNumber    string // the service's own number, used as outbound caller ID
	TeamNumbers      string // comma-separated list rung for existing patients
	StaffPIN         string // shared 4-digit staff menu secret
	ChatWebhookURL   string // team chat webhook for voicemail notifications

	OfficeName       string
	Timezone         string
	VoicemailMaxSecs int
	DialTimeoutSecs  int
	Transcribe       bool
	SMSReply         string

	// StaffMenuAfterHours keeps the staff PIN option reachable while closed.
	StaffMenuAfterHours bool
	// RequireSignature enables provider request-signature validation on the
	// webhook surface. Disable only for local testing.
	RequireSignature bool

	LogLevel  string
	LogFormat string // "text" or "json"
}

// defaults
const (
	defaultHTTPPort    = 8080
	defaultDataDir     = "./data"
	defaultOfficeName  = "Align Medicine"
	defaultTimezone    = "America/Los_Angeles"
	defaultVMMaxSecs   = 120
	defaultDialTimeout = 20
	defaultSMSReply    = "Thanks for texting Align Medicine! We received your message and will respond shortly."
	defaultLogLevel    = "info"
	defaultLogFormat   = "text"
)

// envPrefix is the prefix for all call server environment variables.
const envPrefix = "CALLSERVER_"

// Load parses configuration from CLI flags and environment variables.
// Precedence: CLI flags > env vars > defaults.
func Load(args []string) (*Config, error) {
	cfg := &Config{}

	fs := flag.NewFlagSet("callserver", flag.ContinueOnError)

	fs.IntVar(&cfg.HTTPPort, "http-port", defaultHTTPPort, "HTTP server listen port")
	fs.StringVar(&cfg.DataDir, "data-dir", defaultDataDir, "data directory for database and voicemail storage")
	fs.StringVar(&cfg.PublicBaseURL, "public-base-url", "", "public base URL for recording links (e.g. https://calls.example.com)")
	fs.StringVar(&cfg.TwilioAccountSID, "twilio-account-sid", "", "Twilio account SID")
	fs.StringVar(&cfg.TwilioAuthToken, "twilio-auth-token", "", "Twilio auth token")
	fs.StringVar(&cfg.ServiceNumber, "service-number", "", "the service's own Twilio number in E.164 form")
	fs.StringVar(&cfg.TeamNumbers, "team-numbers", "", "comma-separated team numbers rung for existing patients")
	fs.StringVar(&cfg.StaffPIN, "staff-pin", "", "4-digit shared staff menu PIN")
	fs.StringVar(&cfg.ChatWebhookURL, "chat-webhook-url", "", "team chat webhook URL for voicemail notifications")
	fs.StringVar(&cfg.OfficeName, "office-name", defaultOfficeName, "office name spoken in greetings")
	fs.StringVar(&cfg.Timezone, "timezone", defaultTimezone, "civil time zone for business hours")
	fs.IntVar(&cfg.VoicemailMaxSecs, "voicemail-max-secs", defaultVMMaxSecs, "maximum voicemail recording length in seconds")
	fs.IntVar(&cfg.DialTimeoutSecs, "dial-timeout-secs", defaultDialTimeout, "outbound dial ring timeout in seconds")
	fs.BoolVar(&cfg.Transcribe, "transcribe", true, "request provider transcription of voicemails")
	fs.StringVar(&cfg.SMSReply, "sms-reply", defaultSMSReply, "auto-reply text for inbound SMS")
	fs.BoolVar(&cfg.StaffMenuAfterHours, "staff-menu-after-hours", true, "keep the staff PIN option reachable while the office is closed")
	fs.BoolVar(&cfg.RequireSignature, "require-signature", true, "validate provider request signatures on webhook callbacks")
	fs.StringVar(&cfg.LogLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", defaultLogFormat, "log output format (text, json)")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	applyEnvOverrides(fs)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides checks environment variables for any flag that was not
// explicitly provided on the command line. This preserves the precedence:
// CLI flags > env vars > defaults.
func applyEnvOverrides(fs *flag.FlagSet) {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})

	envName := func(flagName string) string {
		return envPrefix + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
	}

	fs.VisitAll(func(f *flag.Flag) {
		if set[f.Name] {
			return
		}
		val, ok := os.LookupEnv(envName(f.Name))
		if !ok || val == "" {
			return
		}
		if err := fs.Set(f.Name, val); err != nil {
			slog.Warn("ignoring invalid environment override",
				"var", envName(f.Name),
				"value", val,
				"error", err,
			)
		}
	})
}

// validate checks that the config values are sane and that everything the
// webhook surface depends on is present. Missing required configuration is
// fatal at startup rather than running degraded.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("http-port must be between 1 and 65535, got %d", c.HTTPPort)
	}

	if c.TwilioAccountSID == "" {
		return fmt.Errorf("twilio-account-sid is required")
	}
	if c.TwilioAuthToken == "" {
		return fmt.Errorf("twilio-auth-token is required")
	}
	if c.ServiceNumber == "" {
		return fmt.Errorf("service-number is required")
	}
	if len(c.TeamNumberList()) == 0 {
		return fmt.Errorf("team-numbers must list at least one number")
	}
	if len(c.StaffPIN) != 4 {
		return fmt.Errorf("staff-pin must be exactly 4 digits")
	}
	for _, r := range c.StaffPIN {
		if r < '0' || r > '9' {
			return fmt.Errorf("staff-pin must be exactly 4 digits")
		}
	}
	if c.PublicBaseURL == "" {
		return fmt.Errorf("public-base-url is required")
	}
	c.PublicBaseURL = strings.TrimRight(c.PublicBaseURL, "/")

	if c.VoicemailMaxSecs < 1 || c.VoicemailMaxSecs > 600 {
		return fmt.Errorf("voicemail-max-secs must be between 1 and 600, got %d", c.VoicemailMaxSecs)
	}
	if c.DialTimeoutSecs < 1 || c.DialTimeoutSecs > 120 {
		return fmt.Errorf("dial-timeout-secs must be between 1 and 120, got %d", c.DialTimeoutSecs)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log-level must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	c.LogLevel = strings.ToLower(c.LogLevel)

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.LogFormat)] {
		return fmt.Errorf("log-format must be one of text, json; got %q", c.LogFormat)
	}
	c.LogFormat = strings.ToLower(c.LogFormat)

	return nil
}

// TeamNumberList returns the parsed team numbers with whitespace and empty
// entries removed.
func (c *Config) TeamNumberList() []string {
	var out []string
	for _, n := range strings.Split(c.TeamNumbers, ",") {
		n = strings.TrimSpace(n)
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}

// SlogHandler returns a slog.Handler configured with the appropriate format
// (text or json) and log level.
func (c *Config) SlogHandler(w *os.File) slog.Handler {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.LogFormat == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// SlogLevel returns the slog.Level corresponding to the configured log level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.HTTPPort)
}
