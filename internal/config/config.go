// Package config builds the run configuration once at startup.
//
// Precedence, lowest first: defaults, YAML file, .env file (skipped when
// IN_DOCKER=true), process environment. Command-line flags are applied by
// the caller on top of the result.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every snapup-specific environment variable.
const EnvPrefix = "SNAPUP_"

// Config is the complete run configuration.
type Config struct {
	Program  string        `yaml:"program_name"`
	InDocker bool          `yaml:"in_docker"`
	Notify   NotifyConfig  `yaml:"notify"`
	Actions  ActionsConfig `yaml:"actions"`
	Browser  BrowserConfig `yaml:"browser"`
	Run      RunConfig     `yaml:"run"`
	Log      LogConfig     `yaml:"log"`
}

type NotifyConfig struct {
	Token    string `yaml:"token"`
	Endpoint string `yaml:"endpoint"`
}

type ActionsConfig struct {
	Path   string `yaml:"path"`
	Format string `yaml:"format"` // json | yaml | side; empty picks by extension
}

// BrowserConfig controls the Chrome process.
type BrowserConfig struct {
	Headless    bool   `yaml:"headless"`
	NoSandbox   bool   `yaml:"no_sandbox"`
	Remote      string `yaml:"remote"`
	Bin         string `yaml:"bin"`
	ProfileDir  string `yaml:"profile_dir"`
	Stealth     bool   `yaml:"stealth"`
	Xvfb        bool   `yaml:"xvfb"`
	XvfbDisplay string `yaml:"xvfb_display"`
	Width       int    `yaml:"width"`
	Height      int    `yaml:"height"`
}

// RunConfig controls how a batch is executed.
type RunConfig struct {
	Policy            string        `yaml:"policy"`     // fail-fast | fail-soft
	Resilience        string        `yaml:"resilience"` // lenient | strict
	Timeout           time.Duration `yaml:"timeout"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	JitterMin         time.Duration `yaml:"jitter_min"`
	JitterMax         time.Duration `yaml:"jitter_max"`
	Record            string        `yaml:"record"`
	RecordFPS         int           `yaml:"record_fps"`
	FailureScreenshot string        `yaml:"failure_screenshot"`
}

type LogConfig struct {
	Level       string   `yaml:"level"`  // debug | info | warn | error
	Format      string   `yaml:"format"` // json | console
	OutputPaths []string `yaml:"output_paths"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Program: "snapup",
		Actions: ActionsConfig{Path: "actions.json"},
		Browser: BrowserConfig{
			NoSandbox:   true,
			XvfbDisplay: ":99",
			Width:       1024,
			Height:      768,
		},
		Run: RunConfig{
			Policy:            "fail-fast",
			Resilience:        "lenient",
			Timeout:           10 * time.Second,
			PollInterval:      250 * time.Millisecond,
			JitterMin:         time.Second,
			JitterMax:         3 * time.Second,
			RecordFPS:         2,
			FailureScreenshot: "failure.png",
		},
		Log: LogConfig{
			Level:       "info",
			Format:      "console",
			OutputPaths: []string{"stderr"},
		},
	}
}

// Loader assembles a Config from its sources.
type Loader struct {
	configPath string
	envFile    string
}

func NewLoader() *Loader {
	return &Loader{envFile: ".env"}
}

// WithConfigPath sets an optional YAML file.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvFile sets the dotenv file. Empty disables it.
func (l *Loader) WithEnvFile(path string) *Loader {
	l.envFile = path
	return l
}

// Load builds the configuration.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	if l.configPath != "" {
		data, err := os.ReadFile(l.configPath)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", l.configPath, err)
		}
	}

	if l.envFile != "" && !inDocker() {
		// godotenv never overrides variables already set in the process.
		if err := godotenv.Load(l.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", l.envFile, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func inDocker() bool {
	return strings.EqualFold(os.Getenv("IN_DOCKER"), "true")
}

func (c *Config) applyEnv() error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	var errs []error
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("PROGRAM_NAME", &c.Program)
	str("LINE_TOKEN", &c.Notify.Token)
	if inDocker() {
		c.InDocker = true
		c.Browser.Headless = true
	}

	p := EnvPrefix
	str(p+"NOTIFY_ENDPOINT", &c.Notify.Endpoint)
	str(p+"ACTIONS", &c.Actions.Path)
	str(p+"FORMAT", &c.Actions.Format)
	boolean(p+"HEADLESS", &c.Browser.Headless)
	boolean(p+"NO_SANDBOX", &c.Browser.NoSandbox)
	str(p+"REMOTE", &c.Browser.Remote)
	str(p+"CHROME_BIN", &c.Browser.Bin)
	str(p+"PROFILE_DIR", &c.Browser.ProfileDir)
	boolean(p+"STEALTH", &c.Browser.Stealth)
	boolean(p+"XVFB", &c.Browser.Xvfb)
	str(p+"XVFB_DISPLAY", &c.Browser.XvfbDisplay)
	integer(p+"WIDTH", &c.Browser.Width)
	integer(p+"HEIGHT", &c.Browser.Height)
	str(p+"POLICY", &c.Run.Policy)
	str(p+"RESILIENCE", &c.Run.Resilience)
	duration(p+"TIMEOUT", &c.Run.Timeout)
	duration(p+"POLL_INTERVAL", &c.Run.PollInterval)
	duration(p+"JITTER_MIN", &c.Run.JitterMin)
	duration(p+"JITTER_MAX", &c.Run.JitterMax)
	str(p+"RECORD", &c.Run.Record)
	str(p+"FAILURE_SCREENSHOT", &c.Run.FailureScreenshot)
	str(p+"LOG_LEVEL", &c.Log.Level)
	str(p+"LOG_FORMAT", &c.Log.Format)

	return errors.Join(errs...)
}

// Validate rejects values the run cannot act on.
func (c *Config) Validate() error {
	var errs []error
	if !oneOf(c.Run.Policy, "fail-fast", "fail-soft") {
		errs = append(errs, fmt.Errorf("run.policy: unknown value %q", c.Run.Policy))
	}
	if !oneOf(c.Run.Resilience, "lenient", "strict") {
		errs = append(errs, fmt.Errorf("run.resilience: unknown value %q", c.Run.Resilience))
	}
	if !oneOf(c.Actions.Format, "", "json", "yaml", "side") {
		errs = append(errs, fmt.Errorf("actions.format: unknown value %q", c.Actions.Format))
	}
	if !oneOf(c.Log.Level, "debug", "info", "warn", "error") {
		errs = append(errs, fmt.Errorf("log.level: unknown value %q", c.Log.Level))
	}
	if !oneOf(c.Log.Format, "json", "console") {
		errs = append(errs, fmt.Errorf("log.format: unknown value %q", c.Log.Format))
	}
	if c.Run.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("run.timeout must be positive"))
	}
	if c.Run.JitterMin < 0 || c.Run.JitterMax < c.Run.JitterMin {
		errs = append(errs, fmt.Errorf("run.jitter: invalid range %s..%s", c.Run.JitterMin, c.Run.JitterMax))
	}
	if c.Browser.Width <= 0 || c.Browser.Height <= 0 {
		errs = append(errs, fmt.Errorf("browser: invalid window size %dx%d", c.Browser.Width, c.Browser.Height))
	}
	return errors.Join(errs...)
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
