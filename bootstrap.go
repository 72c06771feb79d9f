package main

import (
	"context"
	"fmt"

	"vibin_notifier/config"
	"vibin_notifier/services"

	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func buildStore(ctx context.Context, cfg config.Config) (services.LikeStore, *services.NameBook, error) {
	switch cfg.StoreBackend {
	case "memory":
		return services.NewMemoryLikeStore(), services.NewNameBook(nil), nil
	case "dynamo":
	default:
		return nil, nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	awsCfg, err := services.LoadAWSConfig(ctx, cfg.AWSRegion)
	if err != nil {
		return nil, nil, err
	}
	dynamo := &services.DynamoService{Client: services.InitializeDynamoDBClient(awsCfg)}

	var stream *services.StreamSubscriber
	if cfg.LikesStreamARN != "" {
		stream = services.NewStreamSubscriber(dynamodbstreams.NewFromConfig(awsCfg), cfg.LikesStreamARN, cfg.StreamPollInterval)
	} else {
		logrus.Warn("⚠️ LIKES_STREAM_ARN is empty, sessions cannot subscribe to likes")
	}

	store := services.NewDynamoLikeStore(dynamo, cfg.LikesTable, stream)
	names := services.NewNameBook(&services.DynamoProfileDirectory{
		Dynamo: dynamo,
		Table:  services.ProfilesTableOrDefault(cfg.ProfilesTable),
	})
	logrus.Info("✅ DynamoDB client initialized.")
	return store, names, nil
}

func buildDedup(ctx context.Context, cfg config.Config) (func(string) services.DedupCache, func(), error) {
	switch cfg.DedupBackend {
	case "memory":
		return func(string) services.DedupCache {
			return services.NewMemoryDedupCache(cfg.DedupMaxEntries, cfg.DedupTTL)
		}, func() {}, nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.RedisAddr, err)
		}
		newDedup := func(owner string) services.DedupCache {
			return services.NewRedisDedupCache(rdb, owner, cfg.DedupTTL)
		}
		closeRedis := func() {
			if err := rdb.Close(); err != nil {
				logrus.WithError(err).Warn("⚠️ Redis did not close cleanly")
			}
		}
		return newDedup, closeRedis, nil
	}
	return nil, nil, fmt.Errorf("unknown DEDUP_BACKEND %q", cfg.DedupBackend)
}

func buildPushTransport(ctx context.Context, cfg config.Config, receiver services.PushReceiver) (services.PushTransport, error) {
	switch cfg.PushBackend {
	case "loopback":
		return &services.LoopbackPushTransport{Receiver: receiver}, nil
	case "fcm":
		return services.NewFCMPushTransport(ctx, cfg.FirebaseCredsPath)
	}
	return nil, fmt.Errorf("unknown PUSH_BACKEND %q", cfg.PushBackend)
}
