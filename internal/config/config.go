package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/a8m/envsubst"
	"github.com/goccy/go-yaml"

	"github.com/sznuper/agentprobe/internal/probe"
)

type Config struct {
	Hostname  string             `yaml:"hostname"`
	Options   Options            `yaml:"options"`
	Schedule  Schedule           `yaml:"schedule"`
	Probe     probe.Payload      `yaml:"probe"`
	Mail      Mail               `yaml:"mail"`
	Services  map[string]Service `yaml:"services" validate:"dive"`
	Endpoints []Endpoint         `yaml:"endpoints" validate:"required,min=1,unique=Name,dive"`
}

// Options tune probing and logging. Durations are kept as strings so they can
// be overridden from flags; use the accessor methods to read them.
type Options struct {
	LogsDir         string `yaml:"logs_dir"`
	LogLevel        string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	ConnectTimeout  string `yaml:"connect_timeout" validate:"omitempty,duration"`
	ResponseTimeout string `yaml:"response_timeout" validate:"omitempty,duration"`
	HTTPTimeout     string `yaml:"http_timeout" validate:"omitempty,duration"`
	Grace           string `yaml:"grace" validate:"omitempty,duration"`
	SlowThreshold   string `yaml:"slow_threshold" validate:"omitempty,duration"`
	MaxResponse     string `yaml:"max_response" validate:"omitempty,duration"`
	Marker          string `yaml:"marker"`
	Parallel        bool   `yaml:"parallel"`
	Concurrency     int    `yaml:"concurrency" validate:"gte=0"`
}

type Schedule struct {
	Interval string `yaml:"interval" validate:"omitempty,duration,excluded_with=Cron"`
	Cron     string `yaml:"cron" validate:"omitempty,cronspec"`
}

type Mail struct {
	Host          string   `yaml:"host" validate:"omitempty,hostname_rfc1123|ip"`
	Port          Port     `yaml:"port" validate:"gte=0,lte=65535"`
	Username      string   `yaml:"username"`
	Password      string   `yaml:"password"`
	From          string   `yaml:"from" validate:"omitempty,email"`
	To            []string `yaml:"to" validate:"dive,email"`
	CC            []string `yaml:"cc" validate:"dive,email"`
	SubjectPrefix string   `yaml:"subject_prefix"`
	Template      string   `yaml:"template"`
}

// Enabled reports whether mail alerts can be sent at all. Missing
// credentials disable mail rather than failing the run.
func (m Mail) Enabled() bool {
	return m.Username != "" && m.Password != "" && len(m.To)+len(m.CC) > 0
}

// Service is an additional notification target given as a shoutrrr URL.
type Service struct {
	URL      string            `yaml:"url" validate:"required"`
	Template string            `yaml:"template"`
	Params   map[string]string `yaml:"params"`
}

type Endpoint struct {
	Name    string         `yaml:"name" validate:"required"`
	Address string         `yaml:"address" validate:"required,url"`
	Kind    probe.Kind     `yaml:"kind" validate:"omitempty,oneof=http stream"`
	Payload *probe.Payload `yaml:"payload"`
}

// Port accepts both `587` and `"587"`, since env substitution often yields
// the quoted form.
type Port int

func (p *Port) UnmarshalYAML(unmarshal func(any) error) error {
	var n int
	if err := unmarshal(&n); err == nil {
		*p = Port(n)
		return nil
	}

	var str string
	if err := unmarshal(&str); err != nil {
		return fmt.Errorf("port: must be a number")
	}
	if str == "" {
		*p = 0
		return nil
	}
	n, err := strconv.Atoi(str)
	if err != nil {
		return fmt.Errorf("port: %q is not a number", str)
	}
	*p = Port(n)
	return nil
}

func (o Options) ConnectTimeoutDuration() time.Duration {
	return parseDuration(o.ConnectTimeout, probe.DefaultConnectTimeout)
}

func (o Options) ResponseTimeoutDuration() time.Duration {
	return parseDuration(o.ResponseTimeout, probe.DefaultResponseTimeout)
}

func (o Options) HTTPTimeoutDuration() time.Duration {
	return parseDuration(o.HTTPTimeout, probe.DefaultHTTPTimeout)
}

func (o Options) GraceDuration() time.Duration {
	return parseDuration(o.Grace, probe.DefaultGrace)
}

func (o Options) SlowThresholdDuration() time.Duration {
	return parseDuration(o.SlowThreshold, DefaultSlowThreshold)
}

// MaxResponseDuration is the slowest a healthy probe may be before it
// counts as failed.
func (o Options) MaxResponseDuration() time.Duration {
	return parseDuration(o.MaxResponse, DefaultMaxResponse)
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// Load reads, expands and parses a config file, then applies defaults. It
// does not validate; call Validate for that.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse is Load for config bytes already in memory.
func Parse(data []byte) (*Config, error) {
	data, err := envsubst.Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("expanding env vars: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}
