package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"vibin_notifier/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	streamav "github.com/aws/aws-sdk-go-v2/feature/dynamodbstreams/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams"
	streamtypes "github.com/aws/aws-sdk-go-v2/service/dynamodbstreams/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStreams struct {
	mu        sync.Mutex
	images    []map[string]streamtypes.AttributeValue
	delivered bool
	iterTypes []streamtypes.ShardIteratorType
}

func (f *fakeStreams) DescribeStream(ctx context.Context, in *dynamodbstreams.DescribeStreamInput, _ ...func(*dynamodbstreams.Options)) (*dynamodbstreams.DescribeStreamOutput, error) {
	return &dynamodbstreams.DescribeStreamOutput{
		StreamDescription: &streamtypes.StreamDescription{
			StreamArn: in.StreamArn,
			Shards: []streamtypes.Shard{
				{
					ShardId: aws.String("shard-closed"),
					SequenceNumberRange: &streamtypes.SequenceNumberRange{
						StartingSequenceNumber: aws.String("1"),
						EndingSequenceNumber:   aws.String("9"),
					},
				},
				{
					ShardId:             aws.String("shard-open"),
					SequenceNumberRange: &streamtypes.SequenceNumberRange{StartingSequenceNumber: aws.String("10")},
				},
			},
		},
	}, nil
}

func (f *fakeStreams) GetShardIterator(ctx context.Context, in *dynamodbstreams.GetShardIteratorInput, _ ...func(*dynamodbstreams.Options)) (*dynamodbstreams.GetShardIteratorOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.iterTypes = append(f.iterTypes, in.ShardIteratorType)
	return &dynamodbstreams.GetShardIteratorOutput{ShardIterator: aws.String(aws.ToString(in.ShardId) + "-it")}, nil
}

func (f *fakeStreams) GetRecords(ctx context.Context, in *dynamodbstreams.GetRecordsInput, _ ...func(*dynamodbstreams.Options)) (*dynamodbstreams.GetRecordsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &dynamodbstreams.GetRecordsOutput{NextShardIterator: in.ShardIterator}
	if f.delivered {
		return out, nil
	}
	f.delivered = true
	for _, image := range f.images {
		out.Records = append(out.Records, streamtypes.Record{
			EventName: streamtypes.OperationTypeModify,
			Dynamodb:  &streamtypes.StreamRecord{NewImage: image},
		})
	}
	out.Records = append(out.Records, streamtypes.Record{EventName: streamtypes.OperationTypeRemove, Dynamodb: &streamtypes.StreamRecord{}})
	return out, nil
}

func TestStreamSubscriberDeliversMatchingImages(t *testing.T) {
	toBob := models.NewLikeRecord("e1", "alice", "bob", time.Now())
	toCarol := models.NewLikeRecord("e1", "alice", "carol", time.Now())

	fake := &fakeStreams{}
	for _, like := range []models.LikeRecord{toBob, toCarol} {
		image, err := streamav.MarshalMap(like)
		require.NoError(t, err)
		fake.images = append(fake.images, image)
	}

	subscriber := NewStreamSubscriber(fake, "arn:aws:dynamodb:local:table/Likes/stream/1", 5*time.Millisecond)
	changes := make(chan models.LikeRecord, 4)
	dispose, err := subscriber.Subscribe(context.Background(), LikeFilter{LikedID: "bob"}.Matches, func(l models.LikeRecord) {
		changes <- l
	})
	require.NoError(t, err)
	defer dispose()

	select {
	case got := <-changes:
		assert.Equal(t, toBob.ID, got.ID)
	case <-time.After(time.Second):
		t.Fatal("expected the like to bob from the stream")
	}
	select {
	case got := <-changes:
		t.Fatalf("unexpected change %s", got.ID)
	case <-time.After(30 * time.Millisecond):
	}

	fake.mu.Lock()
	assert.Equal(t, []streamtypes.ShardIteratorType{streamtypes.ShardIteratorTypeLatest}, fake.iterTypes)
	fake.mu.Unlock()
}

func TestStreamSubscriberNeedsARN(t *testing.T) {
	subscriber := NewStreamSubscriber(&fakeStreams{}, "", 0)
	_, err := subscriber.Subscribe(context.Background(), nil, func(models.LikeRecord) {})
	assert.ErrorIs(t, err, ErrInvariant)
}

func TestStreamSubscriberDisposeStopsPolling(t *testing.T) {
	subscriber := NewStreamSubscriber(&fakeStreams{}, "arn:stream", time.Millisecond)
	dispose, err := subscriber.Subscribe(context.Background(), nil, func(models.LikeRecord) {})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		dispose()
		dispose()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispose did not return")
	}
}
