package dynamo

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/recruiting-portal/internal/store"
)

// fakeAPI records the last input of each call and returns canned outputs.
type fakeAPI struct {
	getOut    *dynamodb.GetItemOutput
	putErr    error
	updateOut *dynamodb.UpdateItemOutput
	queryOuts []*dynamodb.QueryOutput

	lastPut    *dynamodb.PutItemInput
	lastUpdate *dynamodb.UpdateItemInput
	queries    []*dynamodb.QueryInput
}

func (f *fakeAPI) GetItem(_ context.Context, _ *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.getOut == nil {
		return &dynamodb.GetItemOutput{}, nil
	}
	return f.getOut, nil
}

func (f *fakeAPI) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastPut = in
	return &dynamodb.PutItemOutput{}, f.putErr
}

func (f *fakeAPI) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.lastUpdate = in
	if f.updateOut == nil {
		return &dynamodb.UpdateItemOutput{}, nil
	}
	return f.updateOut, nil
}

func (f *fakeAPI) DeleteItem(_ context.Context, _ *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeAPI) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	copied := *in
	f.queries = append(f.queries, &copied)
	out := f.queryOuts[0]
	f.queryOuts = f.queryOuts[1:]
	return out, nil
}

func TestGet_MissingReturnsNil(t *testing.T) {
	tbl := New(&fakeAPI{}, "portal", "GSI1")

	item, err := tbl.Get(context.Background(), store.Key{PK: "USER#x", SK: "PROFILE"})
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestGet_DecodesNumbersAsFloat(t *testing.T) {
	api := &fakeAPI{getOut: &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
		"pk":        &types.AttributeValueMemberS{Value: "USER#1"},
		"sk":        &types.AttributeValueMemberS{Value: "PROFILE"},
		"createdAt": &types.AttributeValueMemberN{Value: "1700000000000"},
	}}}
	tbl := New(api, "portal", "GSI1")

	item, err := tbl.Get(context.Background(), store.Key{PK: "USER#1", SK: "PROFILE"})
	require.NoError(t, err)
	assert.Equal(t, float64(1700000000000), item["createdAt"])
}

func TestPutIfAbsent_ConditionFailureMeansLost(t *testing.T) {
	api := &fakeAPI{putErr: &types.ConditionalCheckFailedException{Message: aws.String("exists")}}
	tbl := New(api, "portal", "GSI1")

	won, err := tbl.PutIfAbsent(context.Background(), store.Item{"pk": "PNM_EMAIL#a@mit.edu", "sk": "CLAIM"})
	require.NoError(t, err)
	assert.False(t, won)

	require.NotNil(t, api.lastPut.ConditionExpression)
	assert.Contains(t, *api.lastPut.ConditionExpression, "attribute_not_exists")
}

func TestPutIfAbsent_OtherErrorsPropagate(t *testing.T) {
	api := &fakeAPI{putErr: errors.New("throttled")}
	tbl := New(api, "portal", "GSI1")

	_, err := tbl.PutIfAbsent(context.Background(), store.Item{"pk": "PNM_EMAIL#a@mit.edu", "sk": "CLAIM"})
	assert.Error(t, err)
}

func TestUpdate_DottedPathBecomesNestedNames(t *testing.T) {
	api := &fakeAPI{}
	tbl := New(api, "portal", "GSI1")

	err := tbl.Update(context.Background(), store.Key{PK: "USER#1", SK: "PROFILE"}, map[string]any{
		"userData.events": map[string]bool{"hellomcg": true},
	})
	require.NoError(t, err)

	in := api.lastUpdate
	require.NotNil(t, in)
	assert.True(t, strings.HasPrefix(*in.UpdateExpression, "SET "))

	names := make([]string, 0, len(in.ExpressionAttributeNames))
	for _, n := range in.ExpressionAttributeNames {
		names = append(names, n)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"events", "userData"}, names, "the path is split into two names, not one attribute called \"userData.events\"")
}

func TestUpdate_EmptyMakesNoCall(t *testing.T) {
	api := &fakeAPI{}
	tbl := New(api, "portal", "GSI1")

	require.NoError(t, tbl.Update(context.Background(), store.Key{PK: "USER#1", SK: "PROFILE"}, map[string]any{}))
	assert.Nil(t, api.lastUpdate)
}

func TestAdd_ReturnsUpdatedValue(t *testing.T) {
	api := &fakeAPI{updateOut: &dynamodb.UpdateItemOutput{Attributes: map[string]types.AttributeValue{
		"value": &types.AttributeValueMemberN{Value: "42"},
	}}}
	tbl := New(api, "portal", "GSI1")

	v, err := tbl.Add(context.Background(), store.Key{PK: "COUNTER#PNM_ID", SK: "GLOBAL"}, "value", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)
	assert.Equal(t, types.ReturnValueUpdatedNew, api.lastUpdate.ReturnValues)
	assert.True(t, strings.HasPrefix(*api.lastUpdate.UpdateExpression, "ADD "))
}

func TestQueryIndex_FollowsPages(t *testing.T) {
	page := func(email string, more bool) *dynamodb.QueryOutput {
		out := &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{{
			"pk":    &types.AttributeValueMemberS{Value: "USER#" + email},
			"email": &types.AttributeValueMemberS{Value: email},
		}}}
		if more {
			out.LastEvaluatedKey = map[string]types.AttributeValue{"pk": &types.AttributeValueMemberS{Value: "USER#" + email}}
		}
		return out
	}
	api := &fakeAPI{queryOuts: []*dynamodb.QueryOutput{page("a@mit.edu", true), page("b@mit.edu", false)}}
	tbl := New(api, "portal", "GSI1")

	items, err := tbl.QueryIndex(context.Background(), store.IndexQuery{PartitionValue: "USER#EMAIL"})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "b@mit.edu", items[1]["email"])

	require.Len(t, api.queries, 2)
	assert.Equal(t, "GSI1", *api.queries[0].IndexName)
	assert.NotNil(t, api.queries[1].ExclusiveStartKey)
}
