package notify

import (
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	rstream "github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// StreamSettings selects the event-bus backend. When Enabled is false the
// bus is an in-process gochannel; when true, Redis Streams at Addr.
type StreamSettings struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Group    string `yaml:"group"`
	Consumer string `yaml:"consumer"`
}

// BuildPubSub constructs the publisher/subscriber pair for the event bus.
func BuildPubSub(s StreamSettings, logger zerolog.Logger) (message.Publisher, message.Subscriber, error) {
	wlog := NewWatermillLogger(logger)
	if !s.Enabled {
		ch := gochannel.NewGoChannel(gochannel.Config{}, wlog)
		return ch, ch, nil
	}

	client := redis.NewClient(&redis.Options{Addr: s.Addr})
	marshaler := rstream.DefaultMarshallerUnmarshaller{}

	pub, err := rstream.NewPublisher(rstream.PublisherConfig{
		Client:     client,
		Marshaller: marshaler,
	}, wlog)
	if err != nil {
		return nil, nil, err
	}

	sub, err := rstream.NewSubscriber(rstream.SubscriberConfig{
		Client:        client,
		Unmarshaller:  marshaler,
		ConsumerGroup: s.Group,
		Consumer:      s.Consumer,
	}, wlog)
	if err != nil {
		return nil, nil, err
	}

	return pub, sub, nil
}

// envelope is the wire shape of a published event.
type envelope struct {
	Kind  string `json:"kind"`
	Event Event  `json:"event"`
}

// WatermillSink publishes every event as JSON onto one topic.
type WatermillSink struct {
	pub   message.Publisher
	topic string
	log   zerolog.Logger
}

func NewWatermillSink(pub message.Publisher, topic string, logger zerolog.Logger) *WatermillSink {
	return &WatermillSink{pub: pub, topic: topic, log: logger}
}

func (s *WatermillSink) Publish(ev Event) {
	b, err := json.Marshal(envelope{Kind: ev.NotifyKind(), Event: ev})
	if err != nil {
		s.log.Warn().Err(err).Str("kind", ev.NotifyKind()).Msg("failed to encode notify event")
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), b)
	if err := s.pub.Publish(s.topic, msg); err != nil {
		s.log.Warn().Err(err).Str("topic", s.topic).Msg("failed to publish notify event")
	}
}

// watermillLogger adapts zerolog to watermill's LoggerAdapter.
type watermillLogger struct {
	log zerolog.Logger
}

func NewWatermillLogger(l zerolog.Logger) watermill.LoggerAdapter {
	return &watermillLogger{log: l}
}

func (w *watermillLogger) withFields(ev *zerolog.Event, fields watermill.LogFields) *zerolog.Event {
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	return ev
}

func (w *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	w.withFields(w.log.Error().Err(err), fields).Msg(msg)
}

func (w *watermillLogger) Info(msg string, fields watermill.LogFields) {
	w.withFields(w.log.Info(), fields).Msg(msg)
}

func (w *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	w.withFields(w.log.Debug(), fields).Msg(msg)
}

func (w *watermillLogger) Trace(msg string, fields watermill.LogFields) {
	w.withFields(w.log.Trace(), fields).Msg(msg)
}

func (w *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	l := w.log.With()
	for k, v := range fields {
		l = l.Interface(k, v)
	}
	return &watermillLogger{log: l.Logger()}
}
