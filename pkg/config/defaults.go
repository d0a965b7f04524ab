package config

// Publisher providers.
const (
	PublisherNop   = "nop"
	PublisherKafka = "kafka"
)

const (
	defaultStreamURL    = "http://localhost:8080/events"
	defaultStreamMethod = "GET"

	defaultRelayUpstream = "http://localhost:8080"
	defaultRelayListen   = ":8090"

	defaultKafkaBrokers = "localhost:9092"
	defaultKafkaTopic   = "eventsource.fragments"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Stream: StreamConfig{
			URL:    defaultStreamURL,
			Method: defaultStreamMethod,
		},
		Relay: RelayConfig{
			Upstream: defaultRelayUpstream,
			Listen:   defaultRelayListen,
		},
		Publisher: PublisherConfig{
			Provider: PublisherNop,
		},
		Kafka: KafkaConfig{
			Brokers: defaultKafkaBrokers,
			Topic:   defaultKafkaTopic,
		},
	}
}
