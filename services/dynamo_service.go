package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sirupsen/logrus"
)

// DynamoAPI is the part of the DynamoDB client the services use.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

var _ DynamoAPI = (*dynamodb.Client)(nil)

type DynamoService struct {
	Client DynamoAPI
}

// LoadAWSConfig loads the shared AWS configuration for the given region
func LoadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}

// InitializeDynamoDBClient initializes the DynamoDB client
func InitializeDynamoDBClient(cfg aws.Config) *dynamodb.Client {
	return dynamodb.NewFromConfig(cfg)
}

// GetItem retrieves an item with a strongly consistent read
func (ds *DynamoService) GetItem(ctx context.Context, tableName string, key map[string]types.AttributeValue) (map[string]types.AttributeValue, error) {
	output, err := ds.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(tableName),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, storeError("GetItem "+tableName, err)
	}

	if output.Item == nil {
		return nil, ErrNotFound
	}

	return output.Item, nil
}

// PutItemIfAbsent writes item unless an item with the same key already exists.
// It reports false, without error, when the item was already there.
func (ds *DynamoService) PutItemIfAbsent(ctx context.Context, tableName string, item interface{}, keyAttr string) (bool, error) {
	marshaledItem, err := attributevalue.MarshalMap(item)
	if err != nil {
		return false, &StoreError{Kind: KindInvariant, Op: "PutItem " + tableName, Err: err}
	}

	_, err = ds.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(tableName),
		Item:                     marshaledItem,
		ConditionExpression:      aws.String("attribute_not_exists(#k)"),
		ExpressionAttributeNames: map[string]string{"#k": keyAttr},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			logrus.Debugf("ℹ️ Item already present in '%s', skipping put", tableName)
			return false, nil
		}
		return false, storeError("PutItem "+tableName, err)
	}
	return true, nil
}

// UpdateItemIf applies updateExpression only when conditionExpression holds.
// A failed condition on an existing item is a noop; on a missing item it is ErrNotFound.
func (ds *DynamoService) UpdateItemIf(
	ctx context.Context,
	tableName string,
	key map[string]types.AttributeValue,
	updateExpression string,
	conditionExpression string,
	expressionAttributeNames map[string]string,
	expressionAttributeValues map[string]types.AttributeValue,
) (UpdateResult, error) {
	if len(key) == 0 {
		return UpdateNoop, &StoreError{Kind: KindInvariant, Op: "UpdateItem " + tableName, Err: errors.New("key cannot be empty")}
	}
	if updateExpression == "" {
		return UpdateNoop, &StoreError{Kind: KindInvariant, Op: "UpdateItem " + tableName, Err: errors.New("updateExpression cannot be empty")}
	}

	logrus.WithFields(logrus.Fields{
		"table":     tableName,
		"update":    updateExpression,
		"condition": conditionExpression,
	}).Debug("🔄 Conditional UpdateItem")

	input := &dynamodb.UpdateItemInput{
		TableName:                           aws.String(tableName),
		Key:                                 key,
		UpdateExpression:                    aws.String(updateExpression),
		ExpressionAttributeNames:            expressionAttributeNames,
		ExpressionAttributeValues:           expressionAttributeValues,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	}
	if conditionExpression != "" {
		input.ConditionExpression = aws.String(conditionExpression)
	}

	_, err := ds.Client.UpdateItem(ctx, input)
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			if ccf.Item == nil {
				return UpdateNoop, ErrNotFound
			}
			return UpdateNoop, nil
		}
		return UpdateNoop, storeError("UpdateItem "+tableName, err)
	}
	return UpdateApplied, nil
}

// QueryItems runs a query, following pagination until the result set is exhausted
func (ds *DynamoService) QueryItems(
	ctx context.Context,
	tableName string,
	indexName string,
	keyConditionExpression string,
	filterExpression string,
	expressionAttributeNames map[string]string,
	expressionAttributeValues map[string]types.AttributeValue,
) ([]map[string]types.AttributeValue, error) {
	input := &dynamodb.QueryInput{
		TableName:                 aws.String(tableName),
		KeyConditionExpression:    aws.String(keyConditionExpression),
		ExpressionAttributeNames:  expressionAttributeNames,
		ExpressionAttributeValues: expressionAttributeValues,
	}
	if indexName != "" {
		input.IndexName = aws.String(indexName)
	}
	if filterExpression != "" {
		input.FilterExpression = aws.String(filterExpression)
	}

	var items []map[string]types.AttributeValue
	for {
		output, err := ds.Client.Query(ctx, input)
		if err != nil {
			return nil, storeError("Query "+tableName, err)
		}
		items = append(items, output.Items...)
		if len(output.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = output.LastEvaluatedKey
	}
	return items, nil
}
