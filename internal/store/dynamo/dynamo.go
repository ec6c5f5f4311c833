// Package dynamo implements store.Table on a DynamoDB table.
//
// The table has a string partition key "pk", a string sort key "sk", and one
// global secondary index (named by config, "GSI1" by default) keyed on
// "gsi1pk"/"gsi1sk".
//
// Expressions are built with feature/dynamodb/expression rather than by hand:
// the builder allocates the #name/:value placeholders and splits dotted
// paths into nested document paths, which is exactly what Update needs.
package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/sakif/recruiting-portal/internal/store"
)

// compile-time check that *Table implements store.Table
var _ store.Table = (*Table)(nil)

// API is the subset of *dynamodb.Client the store calls. Tests substitute a
// fake.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Table is a store.Table backed by one DynamoDB table.
type Table struct {
	client    API
	name      string
	indexName string
}

// New returns a Table for the named DynamoDB table and email index.
func New(client API, tableName, indexName string) *Table {
	return &Table{client: client, name: tableName, indexName: indexName}
}

func (t *Table) key(k store.Key) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		store.AttrPK: &types.AttributeValueMemberS{Value: k.PK},
		store.AttrSK: &types.AttributeValueMemberS{Value: k.SK},
	}
}

// Get returns the item, or nil when it does not exist.
func (t *Table) Get(ctx context.Context, key store.Key) (store.Item, error) {
	out, err := t.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(t.name),
		Key:       t.key(key),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamo: getting %s/%s: %w", key.PK, key.SK, err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	return decode(out.Item)
}

// Put overwrites the item.
func (t *Table) Put(ctx context.Context, item store.Item) error {
	key := item.Key()
	av, err := encode(item)
	if err != nil {
		return fmt.Errorf("dynamo: encoding %s/%s: %w", key.PK, key.SK, err)
	}

	_, err = t.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(t.name),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("dynamo: putting %s/%s: %w", key.PK, key.SK, err)
	}
	return nil
}

// PutIfAbsent writes the item guarded by attribute_not_exists(pk).
// A failed condition is the "someone else already has it" answer, not an error.
func (t *Table) PutIfAbsent(ctx context.Context, item store.Item) (bool, error) {
	key := item.Key()
	av, err := encode(item)
	if err != nil {
		return false, fmt.Errorf("dynamo: encoding %s/%s: %w", key.PK, key.SK, err)
	}

	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name(store.AttrPK))).
		Build()
	if err != nil {
		return false, fmt.Errorf("dynamo: building condition: %w", err)
	}

	_, err = t.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(t.name),
		Item:                      av,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return false, nil
		}
		return false, fmt.Errorf("dynamo: conditional put %s/%s: %w", key.PK, key.SK, err)
	}
	return true, nil
}

// Update issues one UpdateItem with a SET clause per path.
//
// DOTTED PATHS:
// expression.Name("userData.events") becomes "#0.#1", so DynamoDB replaces
// only the events map inside userData. The parent map must already exist;
// users are created with userData populated for that reason.
func (t *Table) Update(ctx context.Context, key store.Key, sets map[string]any) error {
	if len(sets) == 0 {
		return nil
	}

	var update expression.UpdateBuilder
	for path, value := range sets {
		v, err := store.Normalize(value)
		if err != nil {
			return fmt.Errorf("dynamo: encoding %q: %w", path, err)
		}
		update = update.Set(expression.Name(path), expression.Value(v))
	}

	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return fmt.Errorf("dynamo: building update for %s/%s: %w", key.PK, key.SK, err)
	}

	_, err = t.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(t.name),
		Key:                       t.key(key),
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return fmt.Errorf("dynamo: updating %s/%s: %w", key.PK, key.SK, err)
	}
	return nil
}

// Add uses "ADD attr :delta", which DynamoDB applies atomically and treats a
// missing attribute (or item) as zero.
func (t *Table) Add(ctx context.Context, key store.Key, attr string, delta int64) (int64, error) {
	expr, err := expression.NewBuilder().
		WithUpdate(expression.Add(expression.Name(attr), expression.Value(delta))).
		Build()
	if err != nil {
		return 0, fmt.Errorf("dynamo: building add: %w", err)
	}

	out, err := t.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(t.name),
		Key:                       t.key(key),
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, fmt.Errorf("dynamo: adding to %s/%s.%s: %w", key.PK, key.SK, attr, err)
	}

	var value int64
	if err := attributevalue.Unmarshal(out.Attributes[attr], &value); err != nil {
		return 0, fmt.Errorf("dynamo: decoding %s: %w", attr, err)
	}
	return value, nil
}

// Delete removes the item.
func (t *Table) Delete(ctx context.Context, key store.Key) error {
	_, err := t.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(t.name),
		Key:       t.key(key),
	})
	if err != nil {
		return fmt.Errorf("dynamo: deleting %s/%s: %w", key.PK, key.SK, err)
	}
	return nil
}

// QueryIndex queries the secondary index, following LastEvaluatedKey until
// the partition is exhausted or the limit is reached.
func (t *Table) QueryIndex(ctx context.Context, q store.IndexQuery) ([]store.Item, error) {
	keyCond := expression.Key(store.AttrGSI1PK).Equal(expression.Value(q.PartitionValue))
	if q.SortValue != "" {
		keyCond = keyCond.And(expression.Key(store.AttrGSI1SK).Equal(expression.Value(q.SortValue)))
	}
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("dynamo: building key condition: %w", err)
	}

	in := &dynamodb.QueryInput{
		TableName:                 aws.String(t.name),
		IndexName:                 aws.String(t.indexName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}
	if q.Limit > 0 {
		in.Limit = aws.Int32(int32(q.Limit))
	}

	items := []store.Item{}
	for {
		out, err := t.client.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("dynamo: querying %s: %w", t.indexName, err)
		}
		for _, raw := range out.Items {
			item, err := decode(raw)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
			if q.Limit > 0 && len(items) >= q.Limit {
				return items, nil
			}
		}
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func encode(item store.Item) (map[string]types.AttributeValue, error) {
	v, err := store.Normalize(map[string]any(item))
	if err != nil {
		return nil, err
	}
	return attributevalue.MarshalMap(v)
}

func decode(raw map[string]types.AttributeValue) (store.Item, error) {
	var item store.Item
	if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
		return nil, fmt.Errorf("dynamo: decoding item: %w", err)
	}
	return item, nil
}
