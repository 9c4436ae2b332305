package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	config "github.com/NordCoder/AuthServer/internal/config/authserver"
	"github.com/NordCoder/AuthServer/internal/obs"
	"github.com/NordCoder/AuthServer/internal/repository/kafka"
	"go.uber.org/zap"
)

func main() {
	cfgPath := flag.String("config", "config/authserver.yaml", "path to the YAML config")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := obs.NewLogger(cfg.LoggerConfig())
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	brokers := cfg.Events.Brokers
	if v := os.Getenv("KAFKA_BROKER"); v != "" {
		brokers = strings.Split(v, ",")
	}
	topics := []string{cfg.Events.Topic}
	if v := os.Getenv("KAFKA_TOPICS"); v != "" {
		topics = strings.Split(v, ",")
	}
	partitions := envInt("KAFKA_PARTITIONS", cfg.Events.Partitions)
	rf := envInt("KAFKA_RF", 1)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	for _, t := range topics {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		err := kafka.EnsureTopic(ctx, brokers, kafka.TopicSpec{
			Name:              t,
			NumPartitions:     partitions,
			ReplicationFactor: rf,
			MaxWait:           30 * time.Second,
		}, logger)
		if err != nil {
			logger.Fatal("ensure topic", zap.String("topic", t), zap.Error(err))
		}
	}
	logger.Info("kafka-init ok", zap.Strings("topics", topics))
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, _ := strconv.Atoi(v); n > 0 {
			return n
		}
	}
	return def
}
