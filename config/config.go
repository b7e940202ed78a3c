package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/One-com/gone/jconf"
)

type ConfigError error

func WrapError(wrapped error) ConfigError {
	return ConfigError(errors.Wrap(wrapped, "Config error"))
}

// Defaults applied to unset server settings.
const (
	DefaultPort         = 8888
	DefaultURLBase      = "/api/"
	DefaultServicesHome = "services"
)

// ServerConfig defines the JSON to configure the HTTP server.
type ServerConfig struct {
	Address string
	Port    int

	// URL prefix of all service namespaces
	URLBase string

	// Directory holding the service directories
	ServicesHome string

	Debug bool

	// a , separated string of return code specs: "2XX,412,5XX,404,size"
	Metrics string `json:",omitempty"`

	DisableKeepAlives bool

	ReadHeaderTimeout jconf.Duration
	IdleTimeout       jconf.Duration
	ReadTimeout       jconf.Duration
	WriteTimeout      jconf.Duration

	// close connections after this amount of time without traffic.
	IOActivityTimeout jconf.Duration `json:",omitempty"`
}

// MetricsConfig is the global configuration for a statsd server.
type MetricsConfig struct {
	Address     string
	Interval    jconf.Duration
	Prefix      string
	Application string
	Ident       string
}

type LogConfig struct {
	AccessLog string
}

// Config defines JSON for the top level server config
type Config struct {
	Server   *ServerConfig          `json:",omitempty"`
	Log      *LogConfig             `json:",omitempty"`
	Metrics  *MetricsConfig         `json:",omitempty"`
	Settings map[string]interface{} `json:",omitempty"`
}

// ApplyDefaults fills in unset server values.
func (cfg *Config) ApplyDefaults() {
	if cfg.Server == nil {
		cfg.Server = &ServerConfig{}
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Server.URLBase == "" {
		cfg.Server.URLBase = DefaultURLBase
	}
	if cfg.Server.ServicesHome == "" {
		cfg.Server.ServicesHome = DefaultServicesHome
	}
}

// Validate checks the configuration for values which can't be served.
func (cfg *Config) Validate() error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return WrapError(fmt.Errorf("invalid server port: %d", cfg.Server.Port))
	}
	return nil
}

// Dump serialized the JSON config as configured to standard output
func (cfg *Config) Dump(dest io.Writer) {

	var out bytes.Buffer
	b, err := json.Marshal(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}

	err = json.Indent(&out, b, "", "    ")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	_, err = out.Write([]byte("\n"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	out.WriteTo(dest)
}

// ParseConfigFromFile returns a pointer to a new Config object
// after parsing config file content.
func ParseConfigFromFile(filename string) (*Config, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return parseConfig(file)
}

// ParseConfigFromReadSeeker returns a pointer to a new Config object.
// The config is read from a in memory buffer.
func ParseConfigFromReadSeeker(data io.ReadSeeker) (*Config, error) {
	data.Seek(0, io.SeekStart)
	return parseConfig(data)
}

// ParseConfig Read config from the supplied io.Reader and parse it
func parseConfig(stream io.Reader) (*Config, error) {
	var config *Config
	err := jconf.ParseInto(stream, &config)
	if err != nil {
		return nil, WrapError(err)
	}
	if config == nil {
		config = &Config{}
	}
	config.ApplyDefaults()
	if err = config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}
