package main

import (
	"context"
	"encoding/json"
	"os/signal"
	"syscall"

	"github.com/NordCoder/AuthServer/internal/domain/account"
	"github.com/NordCoder/AuthServer/internal/obs"
	"github.com/NordCoder/AuthServer/internal/repository/kafka"
	"github.com/spf13/cobra"
)

type tailConfig struct {
	group         string
	fromBeginning bool
}

func newTailEventsCmd() *cobra.Command {
	cfg := &tailConfig{}

	cmd := &cobra.Command{
		Use:   "tail-events",
		Short: "Print account events from the broker until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTailEvents(cmd, cfg)
		},
	}
	cmd.Flags().StringVar(&cfg.group, "group", "authctl-tail", "consumer group id")
	cmd.Flags().BoolVar(&cfg.fromBeginning, "from-beginning", false, "start at the oldest retained event")

	return cmd
}

func runTailEvents(cmd *cobra.Command, cfg *tailConfig) error {
	appCfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := obs.NewLogger(appCfg.LoggerConfig())
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer := kafka.BootstrapConsumer(ctx, kafka.ConsumerConfig{
		Brokers:       appCfg.Events.Brokers,
		GroupID:       cfg.group,
		Topic:         appCfg.Events.Topic,
		Partitions:    appCfg.Events.Partitions,
		FromBeginning: cfg.fromBeginning,
		Logger:        logger,
	})
	defer func() { _ = consumer.Close() }()

	err = consumer.Consume(ctx, printRegistered(cmd))
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func printRegistered(cmd *cobra.Command) kafka.Handler {
	return kafka.JSONHandler(func(_ context.Context, key []byte, ev account.Registered) error {
		line, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		cmd.Printf("%s %s\n", key, line)
		return nil
	})
}
