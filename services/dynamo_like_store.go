package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"vibin_notifier/models"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoLikeStore keeps like records in a single DynamoDB table keyed by event.
// Live subscriptions come from the table's stream.
type DynamoLikeStore struct {
	Dynamo *DynamoService
	Table  string
	Stream *StreamSubscriber
}

var _ LikeStore = (*DynamoLikeStore)(nil)

func NewDynamoLikeStore(dynamo *DynamoService, table string, stream *StreamSubscriber) *DynamoLikeStore {
	if table == "" {
		table = models.LikesTable
	}
	return &DynamoLikeStore{Dynamo: dynamo, Table: table, Stream: stream}
}

func likeKey(id string) (map[string]types.AttributeValue, error) {
	eventID, likerID, likedID, err := models.ParseLikeID(id)
	if err != nil {
		return nil, &StoreError{Kind: KindInvariant, Op: "key", Err: err}
	}
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: models.EventPartitionKey(eventID)},
		"SK": &types.AttributeValueMemberS{Value: models.LikeSortKey(likerID, likedID)},
	}, nil
}

func (s *DynamoLikeStore) Get(ctx context.Context, id string) (*models.LikeRecord, error) {
	key, err := likeKey(id)
	if err != nil {
		return nil, err
	}
	item, err := s.Dynamo.GetItem(ctx, s.Table, key)
	if err != nil {
		return nil, err
	}

	var like models.LikeRecord
	if err := attributevalue.UnmarshalMap(item, &like); err != nil {
		return nil, &StoreError{Kind: KindInvariant, Op: "unmarshal like", Err: err}
	}
	return &like, nil
}

func (s *DynamoLikeStore) Create(ctx context.Context, like models.LikeRecord) (bool, error) {
	if err := like.Validate(); err != nil {
		return false, &StoreError{Kind: KindInvariant, Op: "create", Err: err}
	}
	return s.Dynamo.PutItemIfAbsent(ctx, s.Table, like, "SK")
}

// Filter uses the cheapest access path the filter allows: a key lookup,
// a partition query, or one of the participant indexes.
func (s *DynamoLikeStore) Filter(ctx context.Context, filter LikeFilter) ([]models.LikeRecord, error) {
	if filter.EventID != "" && filter.LikerID != "" && filter.LikedID != "" {
		like, err := s.Get(ctx, models.LikeID(filter.EventID, filter.LikerID, filter.LikedID))
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return []models.LikeRecord{*like}, nil
	}

	names := map[string]string{}
	values := map[string]types.AttributeValue{}
	var (
		index     string
		keyCond   string
		filterExp []string
	)

	switch {
	case filter.EventID != "":
		names["#pk"] = "PK"
		values[":pk"] = &types.AttributeValueMemberS{Value: models.EventPartitionKey(filter.EventID)}
		keyCond = "#pk = :pk"
		if filter.LikerID != "" {
			names["#liker"] = "likerId"
			values[":liker"] = &types.AttributeValueMemberS{Value: filter.LikerID}
			filterExp = append(filterExp, "#liker = :liker")
		}
		if filter.LikedID != "" {
			names["#liked"] = "likedId"
			values[":liked"] = &types.AttributeValueMemberS{Value: filter.LikedID}
			filterExp = append(filterExp, "#liked = :liked")
		}
	case filter.LikerID != "":
		index = models.LikerIDIndex
		names["#liker"] = "likerId"
		values[":liker"] = &types.AttributeValueMemberS{Value: filter.LikerID}
		keyCond = "#liker = :liker"
		if filter.LikedID != "" {
			names["#liked"] = "likedId"
			values[":liked"] = &types.AttributeValueMemberS{Value: filter.LikedID}
			filterExp = append(filterExp, "#liked = :liked")
		}
	case filter.LikedID != "":
		index = models.LikedIDIndex
		names["#liked"] = "likedId"
		values[":liked"] = &types.AttributeValueMemberS{Value: filter.LikedID}
		keyCond = "#liked = :liked"
	default:
		return nil, &StoreError{Kind: KindInvariant, Op: "filter", Err: fmt.Errorf("filter needs an event or a participant")}
	}

	items, err := s.Dynamo.QueryItems(ctx, s.Table, index, keyCond, strings.Join(filterExp, " AND "), names, values)
	if err != nil {
		return nil, err
	}

	var likes []models.LikeRecord
	if err := attributevalue.UnmarshalListOfMaps(items, &likes); err != nil {
		return nil, &StoreError{Kind: KindInvariant, Op: "unmarshal likes", Err: err}
	}
	sort.Slice(likes, func(i, j int) bool { return likes[i].ID < likes[j].ID })
	return likes, nil
}

func (s *DynamoLikeStore) Update(ctx context.Context, id string, patch LikePatch, cond *Condition) (UpdateResult, error) {
	if len(patch) == 0 {
		return UpdateNoop, &StoreError{Kind: KindInvariant, Op: "update", Err: fmt.Errorf("empty patch for %s", id)}
	}
	key, err := likeKey(id)
	if err != nil {
		return UpdateNoop, err
	}

	names := map[string]string{"#sk": "SK"}
	values := map[string]types.AttributeValue{}

	fields := make([]string, 0, len(patch))
	for field := range patch {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	sets := make([]string, 0, len(fields))
	for i, field := range fields {
		if !patch[field] {
			return UpdateNoop, &StoreError{Kind: KindInvariant, Op: "update", Err: fmt.Errorf("flag %q cannot be cleared", field)}
		}
		name := fmt.Sprintf("#f%d", i)
		value := fmt.Sprintf(":v%d", i)
		names[name] = field
		values[value] = &types.AttributeValueMemberBOOL{Value: true}
		sets = append(sets, name+" = "+value)
	}

	condition := "attribute_exists(#sk)"
	if cond != nil {
		names["#c"] = cond.Field
		values[":c"] = &types.AttributeValueMemberBOOL{Value: cond.Equals}
		condition += " AND #c = :c"
	}

	return s.Dynamo.UpdateItemIf(ctx, s.Table, key, "SET "+strings.Join(sets, ", "), condition, names, values)
}

func (s *DynamoLikeStore) Subscribe(ctx context.Context, filter LikeFilter, onChange func(models.LikeRecord)) (Unsubscribe, error) {
	if s.Stream == nil {
		return nil, &StoreError{Kind: KindInvariant, Op: "subscribe", Err: fmt.Errorf("no stream configured for table %s", s.Table)}
	}
	return s.Stream.Subscribe(ctx, filter.Matches, onChange)
}
