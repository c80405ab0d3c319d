package s3

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/tindex/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockDDBClient is an in-memory DynamoDB mock for testing.
type mockDDBClient struct {
	mu    sync.RWMutex
	items map[string]map[string]types.AttributeValue
}

func newMockDDBClient() *mockDDBClient {
	return &mockDDBClient{items: make(map[string]map[string]types.AttributeValue)}
}

func versionOf(item map[string]types.AttributeValue) uint64 {
	v, _ := strconv.ParseUint(item["version"].(*types.AttributeValueMemberN).Value, 10, 64)
	return v
}

func (m *mockDDBClient) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	baseURI := params.Item["base_uri"].(*types.AttributeValueMemberS).Value
	version := params.Item["version"].(*types.AttributeValueMemberN).Value
	key := baseURI + ":" + version

	if aws.ToString(params.ConditionExpression) == "attribute_not_exists(version)" {
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

	baseURI := params.ExpressionAttributeValues[":uri"].(*types.AttributeValueMemberS).Value

	var items []map[string]types.AttributeValue
	for _, item := range m.items {
		if item["base_uri"].(*types.AttributeValueMemberS).Value == baseURI {
			items = append(items, item)
		}
	}
	slices.SortFunc(items, func(a, b map[string]types.AttributeValue) int {
		return int(versionOf(b)) - int(versionOf(a))
	})
	if params.Limit != nil && int(*params.Limit) < len(items) {
		items = items[:*params.Limit]
	}
	return &dynamodb.QueryOutput{Items: items}, nil
}

func readCurrent(t *testing.T, store blobstore.Store) string {
	t.Helper()
	data, err := blobstore.ReadAll(context.Background(), store, blobstore.CurrentName)
	require.NoError(t, err)
	return string(data)
}

func TestDDBCommitStore_Commits(t *testing.T) {
	ctx := context.Background()
	store := NewDDBCommitStore(blobstore.NewMemoryStore(), newMockDDBClient(), "tindex-commits", "s3://bucket/test/")

	_, err := store.Open(ctx, blobstore.CurrentName)
	require.ErrorIs(t, err, blobstore.ErrNotFound)

	for i := 1; i <= 12; i++ {
		require.NoError(t, store.Put(ctx, blobstore.CurrentName, []byte(fmt.Sprintf("backup-%02d", i))))
	}
	assert.Equal(t, "backup-12", readCurrent(t, store))

	// Other blobs pass through to the object store.
	require.NoError(t, store.Put(ctx, "backup-12/manifest.json", []byte("{}")))
	names, err := store.List(ctx, "backup-12/")
	require.NoError(t, err)
	assert.Equal(t, []string{"backup-12/manifest.json"}, names)

	require.NoError(t, store.Delete(ctx, blobstore.CurrentName))
	assert.Equal(t, "backup-12", readCurrent(t, store))

	_, err = store.Create(ctx, blobstore.CurrentName)
	assert.Error(t, err)
}

func TestDDBCommitStore_ConcurrentCommits(t *testing.T) {
	ctx := context.Background()
	store := NewDDBCommitStore(blobstore.NewMemoryStore(), newMockDDBClient(), "tindex-commits", "s3://bucket/test/")
	require.NoError(t, store.Put(ctx, blobstore.CurrentName, []byte("backup-1")))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			err := store.Put(ctx, blobstore.CurrentName, []byte(fmt.Sprintf("backup-%d", id+2)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrConcurrentModification):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	assert.Greater(t, successes, 0, "at least one writer should succeed")
}

func TestDDBCommitStore_IsolatedNamespaces(t *testing.T) {
	ctx := context.Background()
	ddb := newMockDDBClient()
	store1 := NewDDBCommitStore(blobstore.NewMemoryStore(), ddb, "t", "s3://bucket-a/path/")
	store2 := NewDDBCommitStore(blobstore.NewMemoryStore(), ddb, "t", "s3://bucket-b/path/")

	require.NoError(t, store1.Put(ctx, blobstore.CurrentName, []byte("A")))
	require.NoError(t, store2.Put(ctx, blobstore.CurrentName, []byte("B")))

	assert.Equal(t, "A", readCurrent(t, store1))
	assert.Equal(t, "B", readCurrent(t, store2))
}
