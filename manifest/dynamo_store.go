package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DDBClient is the subset of the DynamoDB API used by DynamoStore.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// headerShard is the sort key of the item carrying run metadata.
const headerShard = -1

// DynamoStore keeps one item per shard record, so concurrent workers never
// rewrite each other's outcome.
//
// Table schema:
//   - Partition key: run_id (string)
//   - Sort key: shard (number); -1 holds the run header
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name coverid-runs \
//	  --attribute-definitions AttributeName=run_id,AttributeType=S AttributeName=shard,AttributeType=N \
//	  --key-schema AttributeName=run_id,KeyType=HASH AttributeName=shard,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type DynamoStore struct {
	client DDBClient
	table  string
}

// NewDynamoStore creates a DynamoDB backed manifest store.
func NewDynamoStore(client DDBClient, table string) *DynamoStore {
	return &DynamoStore{client: client, table: table}
}

var _ ShardStore = (*DynamoStore)(nil)

// Save writes the run header and every shard record of m.
func (s *DynamoStore) Save(ctx context.Context, m *Manifest) error {
	if err := s.SaveHeader(ctx, m); err != nil {
		return err
	}

	for _, r := range m.Shards() {
		if err := s.SaveShard(ctx, m.RunID, r); err != nil {
			return err
		}
	}
	return nil
}

// SaveHeader writes the run metadata item of m.
func (s *DynamoStore) SaveHeader(ctx context.Context, m *Manifest) error {
	return s.put(ctx, map[string]types.AttributeValue{
		"run_id":     &types.AttributeValueMemberS{Value: m.RunID},
		"shard":      &types.AttributeValueMemberN{Value: strconv.Itoa(headerShard)},
		"version":    &types.AttributeValueMemberN{Value: strconv.Itoa(m.Version)},
		"created_at": &types.AttributeValueMemberS{Value: m.CreatedAt.Format(time.RFC3339Nano)},
	})
}

// SaveShard writes a single shard record of runID.
func (s *DynamoStore) SaveShard(ctx context.Context, runID string, r ShardRecord) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return s.put(ctx, map[string]types.AttributeValue{
		"run_id": &types.AttributeValueMemberS{Value: runID},
		"shard":  &types.AttributeValueMemberN{Value: strconv.Itoa(r.Index)},
		"status": &types.AttributeValueMemberS{Value: string(r.Status)},
		"record": &types.AttributeValueMemberS{Value: string(data)},
	})
}

func (s *DynamoStore) put(ctx context.Context, item map[string]types.AttributeValue) error {
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to write manifest item to DynamoDB: %w", err)
	}
	return nil
}

// Load queries every item of runID and rebuilds the manifest.
func (s *DynamoStore) Load(ctx context.Context, runID string) (*Manifest, error) {
	var (
		m         *Manifest
		records   []ShardRecord
		startKey  map[string]types.AttributeValue
		seenItems int
	)

	for {
		resp, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.table),
			KeyConditionExpression: aws.String("run_id = :run"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":run": &types.AttributeValueMemberS{Value: runID},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query DynamoDB: %w", err)
		}

		for _, item := range resp.Items {
			seenItems++
			shardAttr, ok := item["shard"].(*types.AttributeValueMemberN)
			if !ok {
				return nil, fmt.Errorf("manifest %s: invalid shard attribute", runID)
			}
			shard, err := strconv.Atoi(shardAttr.Value)
			if err != nil {
				return nil, fmt.Errorf("manifest %s: %w", runID, err)
			}

			if shard == headerShard {
				m, err = headerFromItem(runID, item)
				if err != nil {
					return nil, err
				}
				continue
			}

			recAttr, ok := item["record"].(*types.AttributeValueMemberS)
			if !ok {
				return nil, fmt.Errorf("manifest %s: shard %d has no record", runID, shard)
			}
			var r ShardRecord
			if err := json.Unmarshal([]byte(recAttr.Value), &r); err != nil {
				return nil, fmt.Errorf("manifest %s: shard %d: %w", runID, shard, err)
			}
			records = append(records, r)
		}

		if len(resp.LastEvaluatedKey) == 0 {
			break
		}
		startKey = resp.LastEvaluatedKey
	}

	if seenItems == 0 {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, runID)
	}
	if m == nil {
		m = newManifest(runID, time.Time{})
	}
	for _, r := range records {
		m.Record(r)
	}
	return m, nil
}

func headerFromItem(runID string, item map[string]types.AttributeValue) (*Manifest, error) {
	m := newManifest(runID, time.Time{})
	if v, ok := item["version"].(*types.AttributeValueMemberN); ok {
		n, err := strconv.Atoi(v.Value)
		if err != nil {
			return nil, fmt.Errorf("manifest %s: version: %w", runID, err)
		}
		m.Version = n
	}
	if v, ok := item["created_at"].(*types.AttributeValueMemberS); ok {
		t, err := time.Parse(time.RFC3339Nano, v.Value)
		if err != nil {
			return nil, fmt.Errorf("manifest %s: created_at: %w", runID, err)
		}
		m.CreatedAt = t
	}
	return m, nil
}
