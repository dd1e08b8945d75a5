// Package config resolves the evaluation settings (concurrency, depth
// cap, timeouts, sink selection) by layering four sources in order of
// precedence: CLI flag, environment variable, an optional YAML file,
// and a built-in default.
package config

import (
	"bytes"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wxpath/wxpath/internal/env"
)

// File is the optional YAML override document, one field per setting
// a deployment might want to pin without touching the environment.
type File struct {
	MaxDepth           *int    `yaml:"max_depth"`
	Concurrency        *int    `yaml:"concurrency"`
	ConcurrencyPerHost *int    `yaml:"concurrency_per_host"`
	UserAgent          *string `yaml:"user_agent"`
	RequestTimeoutSec  *int    `yaml:"request_timeout_seconds"`
	Sink               *string `yaml:"sink"`
	Out                *string `yaml:"out"`
}

// Config is the fully-resolved set of settings an evaluation runs with.
type Config struct {
	MaxDepth           int
	Concurrency        int
	ConcurrencyPerHost int
	UserAgent          string
	RequestTimeout     time.Duration
	Sink               string
	Out                string
	Debug              bool
	Verbose            bool
}

// defaults: max depth effectively unbounded unless the caller asks for
// one, and a conservative concurrency so a first run against an
// unfamiliar host behaves politely.
func defaults() Config {
	return Config{
		MaxDepth:           9999,
		Concurrency:        8,
		ConcurrencyPerHost: 2,
		UserAgent:          "wxpath/1.0",
		RequestTimeout:     10 * time.Second,
		Sink:               "ndjson",
		Out:                "-",
	}
}

// LoadFile parses a YAML override document. A missing path is not an
// error — Resolve treats a nil *File as "no override layer".
func LoadFile(path string) (*File, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f File
	d := yaml.NewDecoder(bytes.NewReader(data))
	d.KnownFields(true)
	if err := d.Decode(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

// FlagOverrides carries the subset of settings the CLI parsed from
// explicit flags; a nil pointer means "the flag was not passed",
// distinguishing it from the flag's zero value.
type FlagOverrides struct {
	MaxDepth           *int
	Concurrency        *int
	ConcurrencyPerHost *int
	Sink               *string
	Out                *string
	Debug              *bool
	Verbose            *bool
}

// Resolve layers flags over environment variables over an optional
// YAML file over built-in defaults.
func Resolve(flags FlagOverrides, file *File) Config {
	c := defaults()

	if file != nil {
		if file.MaxDepth != nil {
			c.MaxDepth = *file.MaxDepth
		}
		if file.Concurrency != nil {
			c.Concurrency = *file.Concurrency
		}
		if file.ConcurrencyPerHost != nil {
			c.ConcurrencyPerHost = *file.ConcurrencyPerHost
		}
		if file.UserAgent != nil {
			c.UserAgent = *file.UserAgent
		}
		if file.RequestTimeoutSec != nil {
			c.RequestTimeout = time.Duration(*file.RequestTimeoutSec) * time.Second
		}
		if file.Sink != nil {
			c.Sink = *file.Sink
		}
		if file.Out != nil {
			c.Out = *file.Out
		}
	}

	c.MaxDepth = env.Int("WXPATH_MAX_DEPTH", c.MaxDepth)
	c.Concurrency = env.Int("WXPATH_CONCURRENCY", c.Concurrency)
	c.ConcurrencyPerHost = env.Int("WXPATH_CONCURRENCY_PER_HOST", c.ConcurrencyPerHost)
	c.UserAgent = env.String("WXPATH_USER_AGENT", c.UserAgent)
	c.RequestTimeout = env.Duration("WXPATH_REQUEST_TIMEOUT", c.RequestTimeout)
	c.Sink = env.String("WXPATH_SINK", c.Sink)
	c.Out = env.String("WXPATH_OUT", c.Out)
	c.Debug = env.Bool("WXPATH_DEBUG", c.Debug)
	c.Verbose = env.Bool("WXPATH_VERBOSE", c.Verbose)

	if flags.MaxDepth != nil {
		c.MaxDepth = *flags.MaxDepth
	}
	if flags.Concurrency != nil {
		c.Concurrency = *flags.Concurrency
	}
	if flags.ConcurrencyPerHost != nil {
		c.ConcurrencyPerHost = *flags.ConcurrencyPerHost
	}
	if flags.Sink != nil {
		c.Sink = *flags.Sink
	}
	if flags.Out != nil {
		c.Out = *flags.Out
	}
	if flags.Debug != nil {
		c.Debug = *flags.Debug
	}
	if flags.Verbose != nil {
		c.Verbose = *flags.Verbose
	}

	return c
}
