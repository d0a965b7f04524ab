// Package publisherutils is the fragment publisher utility package
package publisherutils

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/papercomputeco/eventsource/pkg/config"
	"github.com/papercomputeco/eventsource/pkg/eventstream"
	"github.com/papercomputeco/eventsource/pkg/eventstream/kafka"
	"github.com/papercomputeco/eventsource/pkg/eventstream/nop"
)

type NewPublisherOpts struct {
	ProviderType string
	KafkaBrokers string
	KafkaTopic   string
	Logger       *zap.Logger
}

func NewPublisher(o *NewPublisherOpts) (eventstream.Publisher, error) {
	switch o.ProviderType {
	case "", config.PublisherNop:
		return nop.NewPublisher(), nil
	case config.PublisherKafka:
		return kafka.NewPublisher(kafka.Config{
			Brokers: o.KafkaBrokers,
			Topic:   o.KafkaTopic,
			Logger:  o.Logger,
		})
	default:
		return nil, fmt.Errorf("unsupported publisher provider: %s", o.ProviderType)
	}
}
