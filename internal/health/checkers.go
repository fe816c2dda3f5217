package health

import (
	"context"
	"database/sql"
	"time"

	"github.com/IBM/sarama"
	"github.com/redis/go-redis/v9"
)

const probeTimeout = 2 * time.Second

// NewDatabaseChecker проверяет доступность PostgreSQL через ping.
func NewDatabaseChecker(db *sql.DB) *SimpleChecker {
	return NewSimpleChecker("postgres", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
		defer cancel()
		return db.PingContext(ctx)
	})
}

// NewRedisChecker проверяет доступность Redis.
func NewRedisChecker(client *redis.Client) *SimpleChecker {
	return NewSimpleChecker("redis", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
		defer cancel()
		return client.Ping(ctx).Err()
	})
}

// NewKafkaChecker проверяет доступность брокеров Kafka. Клиент создаётся
// на время проверки и закрывается сразу после неё.
func NewKafkaChecker(brokers []string) *SimpleChecker {
	return NewSimpleChecker("kafka", func() error {
		cfg := sarama.NewConfig()
		cfg.Net.DialTimeout = probeTimeout
		client, err := sarama.NewClient(brokers, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		return client.RefreshMetadata()
	})
}
