package core

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	wmamqp "github.com/ThreeDotsLabs/watermill-amqp/pkg/amqp"
	wmhttp "github.com/ThreeDotsLabs/watermill-http/v2/pkg/http"
	wmkafka "github.com/ThreeDotsLabs/watermill-kafka/pkg/kafka"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/pkg/nats"
	wmsql "github.com/ThreeDotsLabs/watermill-sql/pkg/sql"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	stan "github.com/nats-io/stan.go"
)

// OutcomePublisher emits dispatch records for downstream observability.
type OutcomePublisher interface {
	// Publish sends a dispatch record to the configured topic.
	Publish(ctx context.Context, record DispatchRecord) error
	// Close gracefully closes the publisher and its underlying connections.
	Close() error
}

// PublisherFactory creates a watermill publisher for a custom driver.
// The returned close function is called when the outcome publisher closes.
type PublisherFactory func(cfg TelemetryConfig, logger watermill.LoggerAdapter) (message.Publisher, func() error, error)

var publisherFactories = map[string]PublisherFactory{}

// RegisterPublisherDriver registers a new publisher driver.
func RegisterPublisherDriver(name string, factory PublisherFactory) {
	if name == "" || factory == nil {
		return
	}
	publisherFactories[strings.ToLower(name)] = factory
}

// NewOutcomePublisher builds a publisher for every configured driver. It returns
// nil without error when telemetry is disabled.
func NewOutcomePublisher(cfg TelemetryConfig) (OutcomePublisher, error) {
	drivers := cfg.ActiveDrivers()
	if len(drivers) == 0 {
		return nil, nil
	}
	logger := watermill.NewStdLogger(false, false)
	topic := strings.TrimSpace(cfg.Topic)
	if topic == "" {
		topic = DefaultTelemetryTopic
	}

	mux := &publisherMux{topic: topic, publishers: make(map[string]closablePublisher, len(drivers))}
	for _, driver := range drivers {
		pub, closeFn, err := newSinglePublisher(cfg, driver, logger)
		if err != nil {
			_ = mux.Close()
			return nil, fmt.Errorf("telemetry driver %s: %w", driver, err)
		}
		mux.publishers[driver] = closablePublisher{Publisher: pub, closeFn: closeFn}
		mux.order = append(mux.order, driver)
	}
	return mux, nil
}

// ValidatePublisherConfig validates driver config without connecting to brokers.
func ValidatePublisherConfig(cfg TelemetryConfig) error {
	for _, driver := range cfg.ActiveDrivers() {
		if err := validatePublisherDriver(cfg, driver); err != nil {
			return err
		}
	}
	return nil
}

func validatePublisherDriver(cfg TelemetryConfig, driver string) error {
	switch driver {
	case "gochannel":
		return nil
	case "amqp":
		if cfg.AMQP.URL == "" {
			return errors.New("amqp url is required")
		}
		_, err := amqpPublisherConfigFromMode(cfg.AMQP.URL, cfg.AMQP.Mode)
		return err
	case "nats":
		if cfg.NATS.ClusterID == "" || cfg.NATS.ClientID == "" {
			return errors.New("nats cluster_id and client_id are required")
		}
		return nil
	case "kafka":
		if len(cfg.Kafka.Brokers) == 0 {
			return errors.New("kafka brokers are required")
		}
		return nil
	case "sql":
		if cfg.SQL.Driver == "" || cfg.SQL.DSN == "" {
			return errors.New("sql driver and dsn are required")
		}
		_, err := sqlSchemaAdapter(cfg.SQL.Dialect)
		return err
	case "http":
		if strings.TrimSpace(cfg.HTTP.Endpoint) == "" {
			return errors.New("http endpoint is required")
		}
		return nil
	default:
		if _, ok := publisherFactories[driver]; ok {
			return nil
		}
		return fmt.Errorf("unsupported telemetry driver: %s", driver)
	}
}

func newSinglePublisher(cfg TelemetryConfig, driver string, logger watermill.LoggerAdapter) (message.Publisher, func() error, error) {
	if err := validatePublisherDriver(cfg, driver); err != nil {
		return nil, nil, err
	}
	switch driver {
	case "gochannel":
		pub := gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: cfg.GoChannel.OutputChannelBuffer,
			Persistent:          cfg.GoChannel.Persistent,
		}, logger)
		return pub, nil, nil
	case "amqp":
		amqpCfg, err := amqpPublisherConfigFromMode(cfg.AMQP.URL, cfg.AMQP.Mode)
		if err != nil {
			return nil, nil, err
		}
		pub, err := wmamqp.NewPublisher(amqpCfg, logger)
		return pub, nil, err
	case "nats":
		natsCfg := wmnats.StreamingPublisherConfig{
			ClusterID: cfg.NATS.ClusterID,
			ClientID:  cfg.NATS.ClientID,
			Marshaler: wmnats.GobMarshaler{},
		}
		if cfg.NATS.URL != "" {
			natsCfg.StanOptions = append(natsCfg.StanOptions, stan.NatsURL(cfg.NATS.URL))
		}
		pub, err := wmnats.NewStreamingPublisher(natsCfg, logger)
		return pub, nil, err
	case "kafka":
		pub, err := wmkafka.NewPublisher(cfg.Kafka.Brokers, wmkafka.DefaultMarshaler{}, nil, logger)
		return pub, nil, err
	case "sql":
		schema, err := sqlSchemaAdapter(cfg.SQL.Dialect)
		if err != nil {
			return nil, nil, err
		}
		db, err := sql.Open(cfg.SQL.Driver, cfg.SQL.DSN)
		if err != nil {
			return nil, nil, err
		}
		pub, err := wmsql.NewPublisher(db, wmsql.PublisherConfig{
			SchemaAdapter:        schema,
			AutoInitializeSchema: cfg.SQL.AutoInitializeSchema,
		}, logger)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return pub, db.Close, nil
	case "http":
		endpoint := strings.TrimSpace(cfg.HTTP.Endpoint)
		pub, err := wmhttp.NewPublisher(wmhttp.PublisherConfig{
			MarshalMessageFunc: func(_ string, msg *message.Message) (*http.Request, error) {
				return wmhttp.DefaultMarshalMessageFunc(endpoint, msg)
			},
		}, logger)
		return pub, nil, err
	default:
		return publisherFactories[driver](cfg, logger)
	}
}

func amqpPublisherConfigFromMode(url, mode string) (wmamqp.Config, error) {
	switch strings.ToLower(mode) {
	case "", "durable_pubsub":
		return wmamqp.NewDurablePubSubConfig(url, nil), nil
	case "nondurable_pubsub":
		return wmamqp.NewNonDurablePubSubConfig(url, nil), nil
	case "durable_queue":
		return wmamqp.NewDurableQueueConfig(url), nil
	case "nondurable_queue":
		return wmamqp.NewNonDurableQueueConfig(url), nil
	default:
		return wmamqp.Config{}, fmt.Errorf("unsupported amqp mode: %s", mode)
	}
}

func sqlSchemaAdapter(dialect string) (wmsql.SchemaAdapter, error) {
	switch strings.ToLower(dialect) {
	case "postgres", "postgresql":
		return wmsql.DefaultPostgreSQLSchema{}, nil
	case "mysql":
		return wmsql.DefaultMySQLSchema{}, nil
	default:
		return nil, fmt.Errorf("unsupported sql dialect: %s", dialect)
	}
}

type closablePublisher struct {
	message.Publisher
	closeFn func() error
}

func (c closablePublisher) Close() error {
	err := c.Publisher.Close()
	if c.closeFn != nil {
		err = errors.Join(err, c.closeFn())
	}
	return err
}

// publisherMux fans a record out to every configured driver.
type publisherMux struct {
	topic      string
	order      []string
	publishers map[string]closablePublisher
}

// Publish encodes the record once and sends it to all drivers, joining errors.
func (m *publisherMux) Publish(ctx context.Context, record DispatchRecord) error {
	msg, err := newRecordMessage(record)
	if err != nil {
		return err
	}
	var errs error
	for _, driver := range m.order {
		out := msg.Copy()
		out.SetContext(ctx)
		if publishErr := m.publishers[driver].Publish(m.topic, out); publishErr != nil {
			errs = errors.Join(errs, fmt.Errorf("%s: %w", driver, publishErr))
		}
	}
	return errs
}

// Close closes all underlying publishers.
func (m *publisherMux) Close() error {
	var err error
	for _, driver := range m.order {
		err = errors.Join(err, m.publishers[driver].Close())
	}
	return err
}

func newRecordMessage(record DispatchRecord) (*message.Message, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encode dispatch record: %w", err)
	}
	id := strings.TrimSpace(record.ID)
	if id == "" {
		id = watermill.NewUUID()
	}
	msg := message.NewMessage(id, payload)
	msg.Metadata.Set("content_type", "application/json")
	msg.Metadata.Set("event", string(record.EventName))
	if record.RequestID != "" {
		msg.Metadata.Set("request_id", record.RequestID)
	}
	return msg, nil
}
