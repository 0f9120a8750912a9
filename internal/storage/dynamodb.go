package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

const (
	skPrimary         = "REC#0000"
	skPrefix          = "REC#"
	maxUpdateAttempts = 5
)

// dynamodbAPI is the subset of *dynamodb.Client used by DynamoStore.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoStore keeps associations in a single DynamoDB table keyed by
// PK (association) and SK (record). Put and Update address the primary
// record; Append writes time-ordered records after it.
//
// Update is a compare-and-swap on the "version" attribute and retries
// when a concurrent writer wins, so mutators must be free of side effects.
type DynamoStore struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

func NewDynamoStore(api dynamodbAPI, tableName string) (*DynamoStore, error) {
	if api == nil {
		return nil, errors.New("storage: dynamodb api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("storage: dynamodb table name must not be empty")
	}
	return &DynamoStore{api: api, tableName: tableName, now: time.Now}, nil
}

func (s *DynamoStore) Read(ctx context.Context, a Association) ([]byte, error) {
	out, err := s.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: a.String()},
			":prefix": &types.AttributeValueMemberS{Value: skPrefix},
		},
		ConsistentRead: aws.Bool(true),
		Limit:          aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", a, err)
	}
	if out == nil || len(out.Items) == 0 {
		return nil, nil
	}
	data, err := strAttr(out.Items[0], "data")
	if err != nil {
		return nil, err
	}
	return []byte(data), nil
}

func (s *DynamoStore) ReadAll(ctx context.Context, a Association) ([][]byte, error) {
	items, err := s.query(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("storage: read all %s: %w", a, err)
	}
	out := make([][]byte, 0, len(items))
	for _, item := range items {
		data, err := strAttr(item, "data")
		if err != nil {
			return nil, err
		}
		out = append(out, []byte(data))
	}
	return out, nil
}

func (s *DynamoStore) Put(ctx context.Context, a Association, data []byte) error {
	items, err := s.query(ctx, a)
	if err != nil {
		return fmt.Errorf("storage: put %s: %w", a, err)
	}
	version := 0
	for _, item := range items {
		sk, _ := strAttr(item, "SK")
		if sk == skPrimary {
			version, _ = intAttr(item, "version")
			continue
		}
		if err := s.deleteRecord(ctx, a, sk); err != nil {
			return fmt.Errorf("storage: put %s: %w", a, err)
		}
	}
	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      recordItem(a, skPrimary, data, version+1),
	})
	if err != nil {
		return fmt.Errorf("storage: put %s: %w", a, err)
	}
	return nil
}

func (s *DynamoStore) Append(ctx context.Context, a Association, data []byte) error {
	sk := skPrefix + s.now().UTC().Format(time.RFC3339Nano) + "#" + uuid.NewString()
	_, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                recordItem(a, sk, data, 1),
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("storage: append %s: %w", a, err)
	}
	return nil
}

func (s *DynamoStore) Remove(ctx context.Context, a Association) error {
	items, err := s.query(ctx, a)
	if err != nil {
		return fmt.Errorf("storage: remove %s: %w", a, err)
	}
	for _, item := range items {
		sk, err := strAttr(item, "SK")
		if err != nil {
			return err
		}
		if err := s.deleteRecord(ctx, a, sk); err != nil {
			return fmt.Errorf("storage: remove %s: %w", a, err)
		}
	}
	return nil
}

func (s *DynamoStore) Update(ctx context.Context, a Association, fn Mutator) error {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
			TableName:      aws.String(s.tableName),
			Key:            recordKey(a, skPrimary),
			ConsistentRead: aws.Bool(true),
		})
		if err != nil {
			return fmt.Errorf("storage: update %s: get: %w", a, err)
		}

		var (
			cur     []byte
			version int
		)
		if out != nil && len(out.Item) > 0 {
			data, err := strAttr(out.Item, "data")
			if err != nil {
				return err
			}
			cur = []byte(data)
			if version, err = intAttr(out.Item, "version"); err != nil {
				return err
			}
		}

		next, err := fn(cur)
		if err != nil {
			return err
		}

		switch {
		case next == nil && cur == nil:
			return nil
		case next == nil:
			_, err = s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
				TableName:                 aws.String(s.tableName),
				Key:                       recordKey(a, skPrimary),
				ConditionExpression:       aws.String("version = :v"),
				ExpressionAttributeValues: map[string]types.AttributeValue{":v": numAttr(version)},
			})
		case cur == nil:
			_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
				TableName:           aws.String(s.tableName),
				Item:                recordItem(a, skPrimary, next, 1),
				ConditionExpression: aws.String("attribute_not_exists(PK)"),
			})
		default:
			_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
				TableName:                 aws.String(s.tableName),
				Item:                      recordItem(a, skPrimary, next, version+1),
				ConditionExpression:       aws.String("version = :v"),
				ExpressionAttributeValues: map[string]types.AttributeValue{":v": numAttr(version)},
			})
		}
		if err == nil {
			return nil
		}
		var ccf *types.ConditionalCheckFailedException
		if !errors.As(err, &ccf) {
			return fmt.Errorf("storage: update %s: write: %w", a, err)
		}
	}
	return fmt.Errorf("storage: update %s: %w", a, ErrConflict)
}

func (s *DynamoStore) query(ctx context.Context, a Association) ([]map[string]types.AttributeValue, error) {
	var (
		items []map[string]types.AttributeValue
		start map[string]types.AttributeValue
	)
	for {
		out, err := s.api.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.tableName),
			KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk":     &types.AttributeValueMemberS{Value: a.String()},
				":prefix": &types.AttributeValueMemberS{Value: skPrefix},
			},
			ConsistentRead:    aws.Bool(true),
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, err
		}
		if out == nil {
			return items, nil
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		start = out.LastEvaluatedKey
	}
}

func (s *DynamoStore) deleteRecord(ctx context.Context, a Association, sk string) error {
	_, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       recordKey(a, sk),
	})
	return err
}

func recordKey(a Association, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: a.String()},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

func recordItem(a Association, sk string, data []byte, version int) map[string]types.AttributeValue {
	item := recordKey(a, sk)
	item["data"] = &types.AttributeValueMemberS{Value: string(data)}
	item["version"] = numAttr(version)
	return item
}

func numAttr(n int) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.Itoa(n)}
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("storage: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("storage: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("storage: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("storage: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("storage: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
