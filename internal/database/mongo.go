// internal/database/mongo.go
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/javajoker/nearby-market/internal/config"
)

const mongoConnectTimeout = 10 * time.Second

// ConnectMongo opens a client against cfg.MongoURI and pings the primary.
func ConnectMongo(ctx context.Context, cfg config.DatabaseConfig, log logrus.FieldLogger) (*mongo.Client, error) {
	connectCtx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(cfg.MongoURI).
		SetMaxPoolSize(uint64(max(cfg.MaxOpenConns, 1))).
		SetMaxConnIdleTime(time.Duration(cfg.MaxLifetime) * time.Second)

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer disconnectCancel()
		_ = client.Disconnect(disconnectCtx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	log.WithField("database", cfg.Database).Info("mongodb connection established")
	return client, nil
}
