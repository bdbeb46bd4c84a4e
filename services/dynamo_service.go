package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ErrConditionFailed is returned by conditional writes when the condition
// did not hold against the latest committed item. Callers translate it into
// their own error kind (duplicate create, failed precondition, terminal
// state) depending on the guard they asked for.
var ErrConditionFailed = errors.New("conditional check failed")

// DocumentStore is the persistence boundary the domain services talk to:
// key-addressed documents, conditional writes, ordered sub-collection
// queries. DynamoService implements it against DynamoDB; tests swap in an
// in-memory fake.
type DocumentStore interface {
	// GetItem returns the item, or (nil, nil) when absent.
	GetItem(ctx context.Context, tableName string, key map[string]types.AttributeValue) (map[string]types.AttributeValue, error)

	PutItem(ctx context.Context, tableName string, item interface{}) error

	// PutItemIfAbsent writes the item only when no item with the same value
	// for keyAttribute exists. Returns false (and no error) when the item
	// was already there.
	PutItemIfAbsent(ctx context.Context, tableName string, item interface{}, keyAttribute string) (bool, error)

	// UpdateItem applies updateExpression and returns the full updated
	// item. A non-empty conditionExpression guards the write;
	// ErrConditionFailed is returned when it does not hold.
	UpdateItem(
		ctx context.Context,
		tableName string,
		updateExpression string,
		conditionExpression string,
		key map[string]types.AttributeValue,
		expressionAttributeValues map[string]types.AttributeValue,
		expressionAttributeNames map[string]string,
	) (map[string]types.AttributeValue, error)

	// QueryItems queries by key condition, sorted by the range key.
	QueryItems(
		ctx context.Context,
		tableName string,
		keyConditionExpression string,
		expressionAttributeValues map[string]types.AttributeValue,
		expressionAttributeNames map[string]string,
		limit int32,
		ascending bool,
	) ([]map[string]types.AttributeValue, error)

	// QueryItemsWithIndex queries one page of a GSI, with an optional filter
	// expression. limit bounds the items read before the filter runs, so a
	// page can come back empty while the partition still holds matches; a
	// non-nil lastEvaluatedKey means more pages remain and is fed back as
	// exclusiveStartKey to continue.
	QueryItemsWithIndex(
		ctx context.Context,
		tableName string,
		indexName string,
		keyConditionExpression string,
		expressionAttributeValues map[string]types.AttributeValue,
		expressionAttributeNames map[string]string,
		filterExpression string,
		limit int32,
		exclusiveStartKey map[string]types.AttributeValue,
	) ([]map[string]types.AttributeValue, map[string]types.AttributeValue, error)

	DeleteItem(ctx context.Context, tableName string, key map[string]types.AttributeValue) error
}

// DynamoService implements DocumentStore on DynamoDB.
type DynamoService struct {
	Client *dynamodb.Client
}

var _ DocumentStore = (*DynamoService)(nil)

// InitializeDynamoDBClient initializes the DynamoDB client
func InitializeDynamoDBClient() *dynamodb.Client {
	cfg, err := config.LoadDefaultConfig(context.TODO(), config.WithRegion(os.Getenv("AWS_REGION")))
	if err != nil {
		log.Fatalf("Failed to load AWS config: %v", err)
	}
	return dynamodb.NewFromConfig(cfg)
}

// GetItem retrieves an item from DynamoDB. Absence is not an error here;
// the caller decides whether missing means not-found.
func (ds *DynamoService) GetItem(ctx context.Context, tableName string, key map[string]types.AttributeValue) (map[string]types.AttributeValue, error) {
	output, err := ds.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &tableName,
		Key:       key,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get item from table '%s': %w", tableName, err)
	}
	return output.Item, nil
}

func (ds *DynamoService) PutItem(ctx context.Context, tableName string, item interface{}) error {
	marshaledItem, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}

	_, err = ds.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &tableName,
		Item:      marshaledItem,
	})
	if err != nil {
		return fmt.Errorf("failed to put item in table '%s': %w", tableName, err)
	}
	return nil
}

// PutItemIfAbsent is the compare-and-create primitive behind idempotent
// session creation: the second concurrent writer loses and reads back the
// winner's document.
func (ds *DynamoService) PutItemIfAbsent(ctx context.Context, tableName string, item interface{}, keyAttribute string) (bool, error) {
	marshaledItem, err := attributevalue.MarshalMap(item)
	if err != nil {
		return false, fmt.Errorf("failed to marshal item: %w", err)
	}

	condition := fmt.Sprintf("attribute_not_exists(%s)", keyAttribute)
	_, err = ds.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &tableName,
		Item:                marshaledItem,
		ConditionExpression: &condition,
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return false, nil
		}
		return false, fmt.Errorf("failed to put item in table '%s': %w", tableName, err)
	}
	return true, nil
}

func (ds *DynamoService) UpdateItem(
	ctx context.Context,
	tableName string,
	updateExpression string,
	conditionExpression string,
	key map[string]types.AttributeValue,
	expressionAttributeValues map[string]types.AttributeValue,
	expressionAttributeNames map[string]string,
) (map[string]types.AttributeValue, error) {
	if len(key) == 0 {
		return nil, errors.New("update failed: key cannot be empty")
	}
	if updateExpression == "" {
		return nil, errors.New("update failed: updateExpression cannot be empty")
	}

	// REMOVE-only expressions carry no values; DynamoDB rejects an empty map.
	var expAttrValues map[string]types.AttributeValue
	if len(expressionAttributeValues) > 0 {
		expAttrValues = expressionAttributeValues
	}

	updateInput := &dynamodb.UpdateItemInput{
		TableName:                 &tableName,
		Key:                       key,
		UpdateExpression:          &updateExpression,
		ExpressionAttributeValues: expAttrValues,
		ExpressionAttributeNames:  expressionAttributeNames,
		ReturnValues:              types.ReturnValueAllNew,
	}
	if conditionExpression != "" {
		updateInput.ConditionExpression = &conditionExpression
	}

	output, err := ds.Client.UpdateItem(ctx, updateInput)
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return nil, ErrConditionFailed
		}
		return nil, fmt.Errorf("failed to update item in table '%s': %w", tableName, err)
	}

	if output.Attributes == nil {
		return map[string]types.AttributeValue{}, nil
	}
	return output.Attributes, nil
}

// QueryItems queries items from DynamoDB using a KeyConditionExpression,
// sorted by the range key in the requested direction.
func (ds *DynamoService) QueryItems(
	ctx context.Context,
	tableName string,
	keyConditionExpression string,
	expressionAttributeValues map[string]types.AttributeValue,
	expressionAttributeNames map[string]string,
	limit int32,
	ascending bool,
) ([]map[string]types.AttributeValue, error) {
	scanIndexForward := ascending

	output, err := ds.Client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 &tableName,
		KeyConditionExpression:    &keyConditionExpression,
		ExpressionAttributeValues: expressionAttributeValues,
		ExpressionAttributeNames:  expressionAttributeNames,
		Limit:                     &limit,
		ScanIndexForward:          &scanIndexForward,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query items from table '%s': %w", tableName, err)
	}

	return output.Items, nil
}

// QueryItemsWithIndex queries one page of a Global Secondary Index (GSI),
// optionally narrowed by a filter expression. DynamoDB applies Limit to the
// items it reads, not to the filtered result, so callers page with the
// returned LastEvaluatedKey instead of trusting a single query.
func (ds *DynamoService) QueryItemsWithIndex(
	ctx context.Context,
	tableName string,
	indexName string,
	keyConditionExpression string,
	expressionAttributeValues map[string]types.AttributeValue,
	expressionAttributeNames map[string]string,
	filterExpression string,
	limit int32,
	exclusiveStartKey map[string]types.AttributeValue,
) ([]map[string]types.AttributeValue, map[string]types.AttributeValue, error) {
	input := &dynamodb.QueryInput{
		TableName:                 &tableName,
		IndexName:                 &indexName,
		KeyConditionExpression:    &keyConditionExpression,
		ExpressionAttributeValues: expressionAttributeValues,
		Limit:                     &limit,
	}
	if len(expressionAttributeNames) > 0 {
		input.ExpressionAttributeNames = expressionAttributeNames
	}
	if filterExpression != "" {
		input.FilterExpression = aws.String(filterExpression)
	}
	if len(exclusiveStartKey) > 0 {
		input.ExclusiveStartKey = exclusiveStartKey
	}

	output, err := ds.Client.Query(ctx, input)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query GSI '%s': %w", indexName, err)
	}
	return output.Items, output.LastEvaluatedKey, nil
}

// DeleteItem removes an item from DynamoDB
func (ds *DynamoService) DeleteItem(ctx context.Context, tableName string, key map[string]types.AttributeValue) error {
	_, err := ds.Client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &tableName,
		Key:       key,
	})
	if err != nil {
		return fmt.Errorf("failed to delete item from table '%s': %w", tableName, err)
	}
	return nil
}
