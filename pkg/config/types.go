package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent eventsource configuration stored as
// config.toml in the .eventsource/ directory. The TOML layout uses sections
// for logical grouping.
type Config struct {
	Version   int             `toml:"version"`
	Stream    StreamConfig    `toml:"stream"`
	Relay     RelayConfig     `toml:"relay"`
	Publisher PublisherConfig `toml:"publisher"`
	Kafka     KafkaConfig     `toml:"kafka"`
	Log       LogConfig       `toml:"log"`
}

// StreamConfig holds settings for "eventsource tail".
type StreamConfig struct {
	URL          string `toml:"url,omitempty"`
	Method       string `toml:"method,omitempty"`
	MaxFragments uint   `toml:"max_fragments,omitempty"`
}

// RelayConfig holds relay server settings.
type RelayConfig struct {
	Upstream string `toml:"upstream,omitempty"`
	Listen   string `toml:"listen,omitempty"`
}

// PublisherConfig selects where parsed fragments are published.
// Provider is "nop" or "kafka".
type PublisherConfig struct {
	Provider string `toml:"provider,omitempty"`
}

// KafkaConfig holds the Kafka publisher settings. Brokers is a
// comma-separated list of host:port addresses.
type KafkaConfig struct {
	Brokers string `toml:"brokers,omitempty"`
	Topic   string `toml:"topic,omitempty"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	JSON bool   `toml:"json,omitempty"`
	File string `toml:"file,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"stream.url": {
		get: func(c *Config) string { return c.Stream.URL },
		set: func(c *Config, v string) error { c.Stream.URL = v; return nil },
	},
	"stream.method": {
		get: func(c *Config) string { return c.Stream.Method },
		set: func(c *Config, v string) error { c.Stream.Method = v; return nil },
	},
	"stream.max_fragments": {
		get: func(c *Config) string {
			if c.Stream.MaxFragments == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Stream.MaxFragments), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for stream.max_fragments: %w", err)
			}
			c.Stream.MaxFragments = uint(n)
			return nil
		},
	},
	"relay.upstream": {
		get: func(c *Config) string { return c.Relay.Upstream },
		set: func(c *Config, v string) error { c.Relay.Upstream = v; return nil },
	},
	"relay.listen": {
		get: func(c *Config) string { return c.Relay.Listen },
		set: func(c *Config, v string) error { c.Relay.Listen = v; return nil },
	},
	"publisher.provider": {
		get: func(c *Config) string { return c.Publisher.Provider },
		set: func(c *Config, v string) error {
			switch v {
			case PublisherNop, PublisherKafka:
				c.Publisher.Provider = v
				return nil
			default:
				return fmt.Errorf("invalid value for publisher.provider: %q (available: %s, %s)", v, PublisherNop, PublisherKafka)
			}
		},
	},
	"kafka.brokers": {
		get: func(c *Config) string { return c.Kafka.Brokers },
		set: func(c *Config, v string) error { c.Kafka.Brokers = v; return nil },
	},
	"kafka.topic": {
		get: func(c *Config) string { return c.Kafka.Topic },
		set: func(c *Config, v string) error { c.Kafka.Topic = v; return nil },
	},
	"log.json": {
		get: func(c *Config) string { return strconv.FormatBool(c.Log.JSON) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for log.json: %w", err)
			}
			c.Log.JSON = b
			return nil
		},
	},
	"log.file": {
		get: func(c *Config) string { return c.Log.File },
		set: func(c *Config, v string) error { c.Log.File = v; return nil },
	},
}
