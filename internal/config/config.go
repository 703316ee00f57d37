// Package config resolves the program's settings from flags and the environment.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// AppName is the application directory name.
	AppName = "taskboard"

	// DefaultAPIURL is the backend root used when nothing else is configured.
	DefaultAPIURL = "http://localhost:8081/api"

	// DefaultTimeout bounds each backend request.
	DefaultTimeout = 10 * time.Second

	// LogFile is the log filename inside the data directory.
	LogFile = "taskboard.log"
)

// ErrVersion is returned by Parse when --version was given.
var ErrVersion = errors.New("version requested")

// Config holds the resolved settings.
type Config struct {
	// APIURL is the backend root, e.g. http://localhost:8081/api.
	APIURL string

	// DataDir holds the local database and the log file.
	DataDir string

	// Timeout bounds each backend request.
	Timeout time.Duration

	// Debug enables debug logging.
	Debug bool
}

// Parse builds a Config from args (without the program name). Flags win over
// the environment, read through getenv.
func Parse(args []string, getenv func(string) string, errOut io.Writer) (*Config, error) {
	cfg := &Config{
		APIURL:  DefaultAPIURL,
		DataDir: DefaultDataDir(getenv),
		Timeout: DefaultTimeout,
	}
	if v := getenv("TASKBOARD_API_URL"); v != "" {
		cfg.APIURL = v
	}
	if v := getenv("TASKBOARD_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("TASKBOARD_TIMEOUT: %w", err)
		}
		cfg.Timeout = d
	}

	fs := flag.NewFlagSet(AppName, flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.StringVar(&cfg.APIURL, "api", cfg.APIURL, "backend API root `url`")
	fs.StringVar(&cfg.DataDir, "data", cfg.DataDir, "data `dir` for the local database and log")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "per-request timeout")
	fs.BoolVar(&cfg.Debug, "debug", false, "enable debug logging")
	version := fs.Bool("version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *version {
		return nil, ErrVersion
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	if !strings.HasPrefix(cfg.APIURL, "http://") && !strings.HasPrefix(cfg.APIURL, "https://") {
		return nil, fmt.Errorf("api url must start with http:// or https://: %q", cfg.APIURL)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %s", cfg.Timeout)
	}
	return cfg, nil
}

// DefaultDataDir returns the default data directory.
// Uses XDG_DATA_HOME if set, otherwise $HOME/.local/share.
func DefaultDataDir(getenv func(string) string) string {
	if xdg := getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home can't be determined
		return AppName
	}
	return filepath.Join(home, ".local", "share", AppName)
}

// LogPath returns the path of the log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.DataDir, LogFile)
}

// EnsureDir creates the data directory if it doesn't exist.
// Directory is created with mode 0700.
func (c *Config) EnsureDir() error {
	return os.MkdirAll(c.DataDir, 0700)
}
