package config

import (
	_ "embed"
	"errors"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

var (
	//go:embed default/config.yaml
	defaultConfigData []byte
)

const (
	ConfigurationName = "config.yaml"
	DefaultHistory    = "history"
	DefaultEventLog   = "events.log"
)

const (
	ColorAlways = "always"
	ColorAuto   = "auto"
	ColorNever  = "never"
)

type Configuration struct {
	configFs afero.Fs

	// Prompt is shown before each line is read.
	Prompt string `json:"prompt"`
	// HistoryFile is relative to the configuration directory, empty disables
	// history.
	HistoryFile string `json:"history_file"`
	// EventLog is relative to the configuration directory, empty disables
	// the event log.
	EventLog string `json:"event_log"`
	// Color controls colored diagnostics.
	Color string `json:"color" validate:"required,oneof=always auto never"`

	// StrictRedirects aborts a pipeline whose redirect can't be opened.
	StrictRedirects bool `json:"strict_redirects"`
	// AbortOnSpawnError skips the remaining stages once process creation
	// fails.
	AbortOnSpawnError bool `json:"abort_on_spawn_error"`

	// Path overrides $PATH for program lookup.
	Path string `json:"path"`
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})

	return validate.Struct(c)
}

// ErrNoDirectory is returned for files of a configuration that wasn't
// loaded from a directory.
var ErrNoDirectory = errors.New("configuration has no directory")

func (c *Configuration) fs() (afero.Fs, error) {
	if c.configFs == nil {
		return nil, ErrNoDirectory
	}
	return c.configFs, nil
}

// HistoryPath returns the absolute history file path, or "" if history is
// disabled or the configuration isn't backed by the OS filesystem.
func (c *Configuration) HistoryPath() string {
	if c.HistoryFile == "" {
		return ""
	}
	base, ok := c.configFs.(*afero.BasePathFs)
	if !ok {
		return ""
	}
	path, err := base.RealPath(c.HistoryFile)
	if err != nil {
		return ""
	}
	return path
}

// OpenEventLog opens the event log in an append only state.
func (c *Configuration) OpenEventLog() (afero.File, error) {
	configFs, err := c.fs()
	if err != nil {
		return nil, err
	}
	return configFs.OpenFile(c.EventLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
}

// ReadEventLog opens the event log for reading.
func (c *Configuration) ReadEventLog() (afero.File, error) {
	configFs, err := c.fs()
	if err != nil {
		return nil, err
	}
	return configFs.OpenFile(c.EventLog, os.O_RDONLY, 0600)
}

// Default returns the built-in configuration, not backed by any directory.
func Default() *Configuration {
	var out Configuration
	if err := yaml.UnmarshalStrict(defaultConfigData, &out); err != nil {
		panic(err)
	}
	return &out
}
