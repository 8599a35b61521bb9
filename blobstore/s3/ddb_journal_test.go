package s3

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/chunkcanvas/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockDDBClient is an in-memory DynamoDB mock for testing.
type mockDDBClient struct {
	mu    sync.RWMutex
	items map[string]map[string]types.AttributeValue // key -> item

	// conflicts makes the next n PutItem calls fail their condition.
	conflicts int
}

func newMockDDBClient() *mockDDBClient {
	return &mockDDBClient{
		items: make(map[string]map[string]types.AttributeValue),
	}
}

func (m *mockDDBClient) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	index := params.Item["index"].(*types.AttributeValueMemberS).Value
	version := params.Item["version"].(*types.AttributeValueMemberN).Value
	key := index + ":" + version

	if m.conflicts > 0 {
		m.conflicts--
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("condition failed")}
	}

	// Check conditional expression
	if params.ConditionExpression != nil && *params.ConditionExpression == "attribute_not_exists(version)" {
		if _, exists := m.items[key]; exists {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("condition failed")}
		}
	}

	m.items[key] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockDDBClient) Query(_ context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	index := params.ExpressionAttributeValues[":idx"].(*types.AttributeValueMemberS).Value

	var items []map[string]types.AttributeValue
	for _, item := range m.items {
		if item["index"].(*types.AttributeValueMemberS).Value == index {
			items = append(items, item)
		}
	}

	version := func(item map[string]types.AttributeValue) int64 {
		v, _ := strconv.ParseInt(item["version"].(*types.AttributeValueMemberN).Value, 10, 64)
		return v
	}
	sort.Slice(items, func(i, j int) bool { return version(items[i]) > version(items[j]) })

	if params.Limit != nil && int(*params.Limit) < len(items) {
		items = items[:*params.Limit]
	}
	return &dynamodb.QueryOutput{Items: items}, nil
}

func TestDDBJournal(t *testing.T) {
	ctx := context.Background()
	j := NewDDBJournal(newMockDDBClient(), "commits")

	_, ok, err := j.Latest(ctx, "docs")
	require.NoError(t, err)
	assert.False(t, ok)

	for i := 1; i <= 3; i++ {
		v, err := j.Append(ctx, blobstore.Commit{
			Index:     "docs",
			IndexKey:  "docs.faiss",
			MetaKey:   "docs.meta.json",
			Total:     i * 10,
			Dimension: 4,
			Metric:    "cosine",
		})
		require.NoError(t, err)
		assert.Equal(t, uint64(i), v)
	}

	latest, ok, err := j.Latest(ctx, "docs")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(3), latest.Version)
	assert.Equal(t, 30, latest.Total)
	assert.Equal(t, 4, latest.Dimension)
	assert.Equal(t, "cosine", latest.Metric)
	assert.Equal(t, "docs.meta.json", latest.MetaKey)
	assert.False(t, latest.Time.IsZero())

	v, err := j.Append(ctx, blobstore.Commit{Index: "other"})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)
}

func TestDDBJournal_Conflicts(t *testing.T) {
	ctx := context.Background()

	t.Run("RetriesLostRace", func(t *testing.T) {
		client := newMockDDBClient()
		client.conflicts = 2
		j := NewDDBJournal(client, "commits")

		v, err := j.Append(ctx, blobstore.Commit{Index: "docs"})
		require.NoError(t, err)
		assert.Equal(t, uint64(1), v)
	})

	t.Run("GivesUp", func(t *testing.T) {
		client := newMockDDBClient()
		client.conflicts = 10
		j := NewDDBJournal(client, "commits")

		_, err := j.Append(ctx, blobstore.Commit{Index: "docs"})
		assert.ErrorIs(t, err, blobstore.ErrConcurrentModification)
	})
}

type failingDDB struct{ mockDDBClient }

func (f *failingDDB) Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	return nil, errors.New("throttled")
}

func TestDDBJournal_QueryError(t *testing.T) {
	j := NewDDBJournal(&failingDDB{}, "commits")
	_, err := j.Append(context.Background(), blobstore.Commit{Index: "docs"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}
