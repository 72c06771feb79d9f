package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"vibin_notifier/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	streamav "github.com/aws/aws-sdk-go-v2/feature/dynamodbstreams/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams"
	streamtypes "github.com/aws/aws-sdk-go-v2/service/dynamodbstreams/types"
	"github.com/sirupsen/logrus"
)

const shardRefreshEvery = 30

// StreamsAPI is the part of the DynamoDB Streams client the subscriber uses.
type StreamsAPI interface {
	DescribeStream(ctx context.Context, params *dynamodbstreams.DescribeStreamInput, optFns ...func(*dynamodbstreams.Options)) (*dynamodbstreams.DescribeStreamOutput, error)
	GetShardIterator(ctx context.Context, params *dynamodbstreams.GetShardIteratorInput, optFns ...func(*dynamodbstreams.Options)) (*dynamodbstreams.GetShardIteratorOutput, error)
	GetRecords(ctx context.Context, params *dynamodbstreams.GetRecordsInput, optFns ...func(*dynamodbstreams.Options)) (*dynamodbstreams.GetRecordsOutput, error)
}

var _ StreamsAPI = (*dynamodbstreams.Client)(nil)

// StreamSubscriber turns the like table's stream into per-subscription change callbacks.
// Every subscription polls the open shards on its own, the way each screen held its own listener.
type StreamSubscriber struct {
	Client       StreamsAPI
	StreamARN    string
	PollInterval time.Duration
}

func NewStreamSubscriber(client StreamsAPI, streamARN string, pollInterval time.Duration) *StreamSubscriber {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &StreamSubscriber{Client: client, StreamARN: streamARN, PollInterval: pollInterval}
}

type shardCursor struct {
	iterators map[string]string
	known     map[string]bool
}

// Subscribe opens iterators at the stream tip and polls until the returned disposer runs
// or ctx ends.
func (s *StreamSubscriber) Subscribe(ctx context.Context, match func(models.LikeRecord) bool, onChange func(models.LikeRecord)) (Unsubscribe, error) {
	if s.StreamARN == "" {
		return nil, &StoreError{Kind: KindInvariant, Op: "subscribe", Err: errors.New("stream ARN is empty")}
	}

	cursor := &shardCursor{iterators: map[string]string{}, known: map[string]bool{}}
	if err := s.discoverShards(ctx, cursor, streamtypes.ShardIteratorTypeLatest); err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.poll(subCtx, cursor, match, onChange)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}

func (s *StreamSubscriber) poll(ctx context.Context, cursor *shardCursor, match func(models.LikeRecord) bool, onChange func(models.LikeRecord)) {
	ticker := time.NewTicker(s.PollInterval)
	defer ticker.Stop()

	for tick := 1; ; tick++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		shardClosed := false
		for shardID, iterator := range cursor.iterators {
			next, err := s.readShard(ctx, iterator, match, onChange)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				var expired *streamtypes.ExpiredIteratorException
				if errors.As(err, &expired) {
					delete(cursor.known, shardID)
					delete(cursor.iterators, shardID)
					shardClosed = true
					continue
				}
				logrus.WithError(err).WithField("shardId", shardID).Warn("⚠️ Failed to read stream shard")
				continue
			}
			if next == "" {
				delete(cursor.iterators, shardID)
				shardClosed = true
				continue
			}
			cursor.iterators[shardID] = next
		}

		if shardClosed || tick%shardRefreshEvery == 0 {
			if err := s.discoverShards(ctx, cursor, streamtypes.ShardIteratorTypeTrimHorizon); err != nil && ctx.Err() == nil {
				logrus.WithError(err).Warn("⚠️ Failed to refresh stream shards")
			}
		}
	}
}

func (s *StreamSubscriber) readShard(ctx context.Context, iterator string, match func(models.LikeRecord) bool, onChange func(models.LikeRecord)) (string, error) {
	out, err := s.Client.GetRecords(ctx, &dynamodbstreams.GetRecordsInput{ShardIterator: aws.String(iterator)})
	if err != nil {
		return iterator, err
	}

	for _, record := range out.Records {
		if record.Dynamodb == nil || len(record.Dynamodb.NewImage) == 0 {
			continue
		}
		var like models.LikeRecord
		if err := streamav.UnmarshalMap(record.Dynamodb.NewImage, &like); err != nil {
			logrus.WithError(err).Warn("⚠️ Dropping undecodable stream image")
			continue
		}
		if match == nil || match(like) {
			onChange(like)
		}
	}
	return aws.ToString(out.NextShardIterator), nil
}

// discoverShards opens iterators for shards not seen before. New child shards start
// at TRIM_HORIZON so nothing written after a split is skipped.
func (s *StreamSubscriber) discoverShards(ctx context.Context, cursor *shardCursor, iteratorType streamtypes.ShardIteratorType) error {
	var startAfter *string
	for {
		out, err := s.Client.DescribeStream(ctx, &dynamodbstreams.DescribeStreamInput{
			StreamArn:             aws.String(s.StreamARN),
			ExclusiveStartShardId: startAfter,
		})
		if err != nil {
			return storeError("DescribeStream", err)
		}
		if out.StreamDescription == nil {
			return &StoreError{Kind: KindInvariant, Op: "DescribeStream", Err: fmt.Errorf("stream %s has no description", s.StreamARN)}
		}

		for _, shard := range out.StreamDescription.Shards {
			shardID := aws.ToString(shard.ShardId)
			if shardID == "" || cursor.known[shardID] {
				continue
			}
			if shard.SequenceNumberRange != nil && shard.SequenceNumberRange.EndingSequenceNumber != nil && iteratorType == streamtypes.ShardIteratorTypeLatest {
				// closed shards hold only history
				cursor.known[shardID] = true
				continue
			}
			it, err := s.Client.GetShardIterator(ctx, &dynamodbstreams.GetShardIteratorInput{
				StreamArn:         aws.String(s.StreamARN),
				ShardId:           aws.String(shardID),
				ShardIteratorType: iteratorType,
			})
			if err != nil {
				return storeError("GetShardIterator", err)
			}
			cursor.known[shardID] = true
			if iterator := aws.ToString(it.ShardIterator); iterator != "" {
				cursor.iterators[shardID] = iterator
			}
		}

		startAfter = out.StreamDescription.LastEvaluatedShardId
		if startAfter == nil {
			return nil
		}
	}
}
