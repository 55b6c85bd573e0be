package logger

import (
	"io"
	"sync"
)

// Config defines the logging configuration for the context it is attached to.
type Config struct {
	Main               *systemConfig
	IncludedSubSystems map[string]bool          // If true, log in main log
	SubSystems         map[string]*systemConfig // SubSystem specific loggers

	mutex sync.Mutex
}

// NewConfig creates a config backed by a single system config. isDevelopment lowers the minimum
// level to verbose; isText switches the output from JSON lines to tab delimited text. An empty
// filePath logs to stderr.
func NewConfig(isDevelopment, isText bool, filePath string) *Config {
	main, err := newSystemConfig(isDevelopment, isText, filePath)
	if err != nil {
		panic(err)
	}

	return &Config{
		Main:               &main,
		IncludedSubSystems: make(map[string]bool),
		SubSystems:         make(map[string]*systemConfig),
	}
}

// NewConfigFromWriter creates a config that writes to w. Tests capture log output this way.
func NewConfigFromWriter(isDevelopment, isText bool, w io.Writer) *Config {
	main := newSystemConfigWriter(isDevelopment, isText, w)

	return &Config{
		Main:               &main,
		IncludedSubSystems: make(map[string]bool),
		SubSystems:         make(map[string]*systemConfig),
	}
}

// NewProductionConfig creates a new config with default production values.
//   Logs info level and above to stderr.
func NewProductionConfig() *Config {
	return NewConfig(false, false, "")
}

// NewProductionTextConfig creates a new config with default production values.
//   Logs info level and above to stderr.
func NewProductionTextConfig() *Config {
	return NewConfig(false, true, "")
}

// NewDevelopmentConfig creates a new config with default development values.
//   Logs verbose level and above to stderr.
func NewDevelopmentConfig() *Config {
	return NewConfig(true, false, "")
}

// NewDevelopmentTextConfig creates a new config with default development values.
//   Logs verbose level and above to stderr.
func NewDevelopmentTextConfig() *Config {
	return NewConfig(true, true, "")
}

// NewEmptyConfig creates a new config that doesn't log.
func NewEmptyConfig() *Config {
	empty, _ := newEmptySystemConfig()
	return &Config{
		Main:               &empty,
		IncludedSubSystems: make(map[string]bool),
		SubSystems:         make(map[string]*systemConfig),
	}
}

// EnableSubSystem enables a subsystem to log to the main log, creating a dedicated system config
// for it (copied from Main) so per-subsystem fields, like its name, don't bleed into other logs.
func (config *Config) EnableSubSystem(subsystem string) {
	config.IncludedSubSystems[subsystem] = true

	if _, exists := config.SubSystems[subsystem]; exists {
		return
	}

	sub := config.Main.Copy()
	sub.addSubSystem(subsystem)
	config.SubSystems[subsystem] = &sub
}

var emptyConfig = func() Config {
	empty, _ := newEmptySystemConfig()
	return Config{
		Main:               &empty,
		IncludedSubSystems: make(map[string]bool),
		SubSystems:         make(map[string]*systemConfig),
	}
}()

// DefaultConfig is used whenever a context has no logging config attached.
var DefaultConfig = *NewProductionConfig()
