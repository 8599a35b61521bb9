package s3

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/chunkcanvas/blobstore"
)

// DDBJournal implements blobstore.Journal on DynamoDB.
//
// Each mirrored commit becomes one item. A conditional write on the version
// attribute gives the compare-and-swap that S3 lacks, so concurrent mirrors
// of the same index never share a version.
//
// Table schema:
//   - Partition key: index (string) - the index name
//   - Sort key: version (number) - monotonically increasing version
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name chunkcanvas-commits \
//	  --attribute-definitions AttributeName=index,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=index,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type DDBJournal struct {
	client     DDBClient
	tableName  string
	maxRetries int
}

// DDBClient is the interface for DynamoDB operations.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// NewDDBJournal creates a journal writing to tableName.
func NewDDBJournal(client DDBClient, tableName string) *DDBJournal {
	return &DDBJournal{client: client, tableName: tableName, maxRetries: 3}
}

// Append claims the next version of c.Index. A lost race is retried a few
// times before ErrConcurrentModification is returned.
func (j *DDBJournal) Append(ctx context.Context, c blobstore.Commit) (uint64, error) {
	for attempt := 0; ; attempt++ {
		latest, _, err := j.Latest(ctx, c.Index)
		if err != nil {
			return 0, err
		}
		c.Version = latest.Version + 1

		err = j.put(ctx, c)
		if err == nil {
			return c.Version, nil
		}
		if !errors.Is(err, blobstore.ErrConcurrentModification) || attempt+1 >= j.maxRetries {
			return 0, err
		}
	}
}

func (j *DDBJournal) put(ctx context.Context, c blobstore.Commit) error {
	if c.Time.IsZero() {
		c.Time = time.Now()
	}
	_, err := j.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(j.tableName),
		Item: map[string]types.AttributeValue{
			"index":      &types.AttributeValueMemberS{Value: c.Index},
			"version":    &types.AttributeValueMemberN{Value: strconv.FormatUint(c.Version, 10)},
			"index_key":  &types.AttributeValueMemberS{Value: c.IndexKey},
			"meta_key":   &types.AttributeValueMemberS{Value: c.MetaKey},
			"total":      &types.AttributeValueMemberN{Value: strconv.Itoa(c.Total)},
			"dimension":  &types.AttributeValueMemberN{Value: strconv.Itoa(c.Dimension)},
			"metric":     &types.AttributeValueMemberS{Value: c.Metric},
			"created_at": &types.AttributeValueMemberS{Value: c.Time.UTC().Format(time.RFC3339Nano)},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return blobstore.ErrConcurrentModification
		}
		return fmt.Errorf("failed to commit version to DynamoDB: %w", err)
	}
	return nil
}

// Latest queries DynamoDB for the newest commit of index.
func (j *DDBJournal) Latest(ctx context.Context, index string) (blobstore.Commit, bool, error) {
	resp, err := j.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(j.tableName),
		KeyConditionExpression: aws.String("#idx = :idx"),
		ExpressionAttributeNames: map[string]string{
			"#idx": "index",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":idx": &types.AttributeValueMemberS{Value: index},
		},
		ScanIndexForward: aws.Bool(false), // Descending order
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return blobstore.Commit{}, false, fmt.Errorf("failed to query DynamoDB: %w", err)
	}
	if len(resp.Items) == 0 {
		return blobstore.Commit{}, false, nil
	}

	c, err := decodeCommit(resp.Items[0])
	if err != nil {
		return blobstore.Commit{}, false, err
	}
	return c, true, nil
}

func decodeCommit(item map[string]types.AttributeValue) (blobstore.Commit, error) {
	var c blobstore.Commit

	str := func(name string) string {
		if v, ok := item[name].(*types.AttributeValueMemberS); ok {
			return v.Value
		}
		return ""
	}
	num := func(name string) (int64, error) {
		v, ok := item[name].(*types.AttributeValueMemberN)
		if !ok {
			return 0, fmt.Errorf("invalid %s attribute in DynamoDB", name)
		}
		return strconv.ParseInt(v.Value, 10, 64)
	}

	version, err := num("version")
	if err != nil {
		return c, err
	}
	c.Version = uint64(version)
	c.Index = str("index")
	c.IndexKey = str("index_key")
	c.MetaKey = str("meta_key")
	c.Metric = str("metric")
	if total, err := num("total"); err == nil {
		c.Total = int(total)
	}
	if dim, err := num("dimension"); err == nil {
		c.Dimension = int(dim)
	}
	if ts := str("created_at"); ts != "" {
		c.Time, _ = time.Parse(time.RFC3339Nano, ts)
	}
	return c, nil
}

var _ blobstore.Journal = (*DDBJournal)(nil)
