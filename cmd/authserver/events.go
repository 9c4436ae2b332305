package main

import (
	"errors"

	config "github.com/NordCoder/AuthServer/internal/config/authserver"
	"github.com/NordCoder/AuthServer/internal/domain/account"
	"github.com/NordCoder/AuthServer/internal/obs/retry"
	"github.com/NordCoder/AuthServer/internal/outbox"
	"github.com/NordCoder/AuthServer/internal/repository/kafka"
	pg "github.com/NordCoder/AuthServer/internal/repository/postgres"
	"go.uber.org/zap"
)

// events holds the optional account event pipeline. With events disabled
// every field is nil.
type events struct {
	producer *kafka.Producer
	runner   *outbox.Runner
	sink     account.Events
	tx       account.Transactor
}

func initEvents(cfg *config.Config, logger *zap.Logger, st *store) (*events, error) {
	if !cfg.Events.Enable {
		return &events{}, nil
	}
	if st.pg == nil {
		return nil, errors.New("events require the postgres store")
	}

	producer := kafka.NewProducer(cfg.Events.Brokers, cfg.Events.Topic).WithLogger(logger)
	pub := kafka.NewAccountEventsKafka(producer)

	outboxRepo := pg.NewOutboxRepo(st.pg)
	dispatch := outbox.MakeGlobalOutboxHandler(pub, retry.PublishPolicy("outbox_account_registered", logger))
	runner := outbox.NewOutboxRunner(
		logger.Named("outbox"),
		outboxRepo,
		dispatch,
		cfg.Events.Workers,
		cfg.Events.BatchSize,
		cfg.Events.WaitTime,
		cfg.Events.InProgressTTL,
	)

	logger.Info("account events enabled",
		zap.Strings("brokers", cfg.Events.Brokers),
		zap.String("topic", cfg.Events.Topic),
		zap.Int("workers", cfg.Events.Workers),
	)

	return &events{
		producer: producer,
		runner:   runner,
		sink:     outbox.NewAccountEvents(outboxRepo),
		tx:       pg.NewTransactor(st.pg, logger),
	}, nil
}

func (e *events) Close() {
	if e.producer != nil {
		_ = e.producer.Close()
	}
}
