package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// JetStreamConfig holds the connection, stream and consumer settings.
type JetStreamConfig struct {
	URL             string
	StreamName      string
	EventPrefix     string
	CommandPrefix   string
	ConsumerName    string
	MaxReconnects   int
	ReconnectWait   time.Duration
	MaxAge          time.Duration
	MaxMsgs         int64
	Replicas        int
	DuplicateWindow time.Duration
	MaxDeliver      int
	AckWait         time.Duration
	MaxAckPending   int
	PublishTimeout  time.Duration
}

func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:             nats.DefaultURL,
		StreamName:      "FOP",
		EventPrefix:     "fop.events",
		CommandPrefix:   "fop.commands",
		ConsumerName:    "fop-commands",
		MaxReconnects:   -1,
		ReconnectWait:   2 * time.Second,
		MaxAge:          24 * time.Hour,
		MaxMsgs:         -1,
		Replicas:        1,
		DuplicateWindow: 2 * time.Minute,
		MaxDeliver:      5,
		AckWait:         30 * time.Second,
		MaxAckPending:   100,
		PublishTimeout:  5 * time.Second,
	}
}

// Publisher sends one notification to the message broker.
type Publisher interface {
	Publish(ctx context.Context, subject, msgID string, header map[string]string, data []byte) error
}

// JetStream is the NATS JetStream side of the relay: it owns the stream,
// publishes notifications and reads commands.
type JetStream struct {
	nc       *nats.Conn
	js       jetstream.JetStream
	consumer jetstream.Consumer
	config   JetStreamConfig
}

// NewJetStream connects to NATS and makes sure the stream and the command
// consumer exist.
func NewJetStream(ctx context.Context, cfg JetStreamConfig) (*JetStream, error) {
	opts := []nats.Option{
		nats.Name("fieldofplay"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	j := &JetStream{nc: nc, js: js, config: cfg}
	if err := j.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}
	if err := j.ensureConsumer(ctx); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure consumer: %w", err)
	}
	return j, nil
}

func (j *JetStream) streamConfig() jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:        j.config.StreamName,
		Description: "Field of play notifications and remote commands",
		Subjects: []string{
			j.config.EventPrefix + ".>",
			j.config.CommandPrefix + ".>",
		},
		Retention:  jetstream.LimitsPolicy,
		MaxAge:     j.config.MaxAge,
		MaxMsgs:    j.config.MaxMsgs,
		Storage:    jetstream.FileStorage,
		Replicas:   j.config.Replicas,
		Duplicates: j.config.DuplicateWindow,
	}
}

func (j *JetStream) ensureStream(ctx context.Context) error {
	sc := j.streamConfig()

	stream, err := j.js.Stream(ctx, j.config.StreamName)
	if err != nil {
		if _, err = j.js.CreateStream(ctx, sc); err != nil {
			return fmt.Errorf("create stream: %w", err)
		}
		log.Info().
			Str("stream", j.config.StreamName).
			Msg("created JetStream stream")
		return nil
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return fmt.Errorf("get stream info: %w", err)
	}
	if !isStreamConfigEqual(info.Config, sc) {
		if _, err = j.js.UpdateStream(ctx, sc); err != nil {
			return fmt.Errorf("update stream: %w", err)
		}
		log.Info().
			Str("stream", j.config.StreamName).
			Msg("updated JetStream stream")
	}
	return nil
}

func (j *JetStream) ensureConsumer(ctx context.Context) error {
	stream, err := j.js.Stream(ctx, j.config.StreamName)
	if err != nil {
		return fmt.Errorf("get stream: %w", err)
	}

	// Commands published while no server was running are stale.
	consumerConfig := jetstream.ConsumerConfig{
		Name:          j.config.ConsumerName,
		Durable:       j.config.ConsumerName,
		Description:   "Field of play remote commands",
		FilterSubject: j.config.CommandPrefix + ".>",
		DeliverPolicy: jetstream.DeliverNewPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    j.config.MaxDeliver,
		AckWait:       j.config.AckWait,
		MaxAckPending: j.config.MaxAckPending,
		ReplayPolicy:  jetstream.ReplayInstantPolicy,
	}

	consumer, err := stream.Consumer(ctx, j.config.ConsumerName)
	if err != nil {
		consumer, err = stream.CreateConsumer(ctx, consumerConfig)
		if err != nil {
			return fmt.Errorf("create consumer: %w", err)
		}
		log.Info().
			Str("consumer", j.config.ConsumerName).
			Str("stream", j.config.StreamName).
			Msg("created JetStream consumer")
	} else {
		log.Info().
			Str("consumer", j.config.ConsumerName).
			Str("stream", j.config.StreamName).
			Msg("using existing JetStream consumer")
	}
	j.consumer = consumer
	return nil
}

// Publish implements Publisher.
func (j *JetStream) Publish(ctx context.Context, subject, msgID string, header map[string]string, data []byte) error {
	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header:  nats.Header{},
	}
	for k, v := range header {
		msg.Header.Set(k, v)
	}

	ack, err := j.js.PublishMsg(ctx, msg,
		jetstream.WithMsgID(msgID),
		jetstream.WithExpectStream(j.config.StreamName),
	)
	if err != nil {
		return fmt.Errorf("publish to JetStream: %w", err)
	}

	log.Debug().
		Str("subject", subject).
		Str("msg_id", msgID).
		Uint64("sequence", ack.Sequence).
		Str("stream", ack.Stream).
		Msg("published to JetStream")
	return nil
}

// ConsumeCommands hands every command message to handle until ctx is
// cancelled. A nil error acks the message, a retryable error naks it and
// any other error terminates it.
func (j *JetStream) ConsumeCommands(ctx context.Context, handle func(ctx context.Context, subject string, data []byte) error) error {
	messageCh := make(chan jetstream.Msg, 100)

	consumeCtx, err := j.consumer.Consume(func(msg jetstream.Msg) {
		select {
		case messageCh <- msg:
		case <-ctx.Done():
			msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer consumeCtx.Stop()

	log.Info().
		Str("consumer", j.config.ConsumerName).
		Str("stream", j.config.StreamName).
		Msg("consuming remote commands")

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-messageCh:
			err := handle(ctx, msg.Subject(), msg.Data())
			switch {
			case err == nil:
				if ackErr := msg.Ack(); ackErr != nil {
					log.Error().Err(ackErr).Msg("failed to ACK message")
				}
			case IsRetryable(err):
				log.Warn().Err(err).Str("subject", msg.Subject()).Msg("command not delivered, will retry")
				if nakErr := msg.Nak(); nakErr != nil {
					log.Error().Err(nakErr).Msg("failed to NAK message")
				}
			default:
				log.Error().Err(err).Str("subject", msg.Subject()).Msg("dropping command message")
				if termErr := msg.Term(); termErr != nil {
					log.Error().Err(termErr).Msg("failed to TERM message")
				}
			}
		}
	}
}

// Close drains the connection.
func (j *JetStream) Close() error {
	if j.nc != nil {
		return j.nc.Drain()
	}
	return nil
}

func isStreamConfigEqual(a, b jetstream.StreamConfig) bool {
	if len(a.Subjects) != len(b.Subjects) {
		return false
	}
	for i := range a.Subjects {
		if a.Subjects[i] != b.Subjects[i] {
			return false
		}
	}
	return a.Name == b.Name &&
		a.MaxAge == b.MaxAge &&
		a.MaxMsgs == b.MaxMsgs &&
		a.Replicas == b.Replicas &&
		a.Duplicates == b.Duplicates
}
