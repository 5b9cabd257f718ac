package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	apperrors "github.com/rapid-data/rapid/internal/errors"
	"github.com/rapid-data/rapid/pkg/types"
)

// DynamoDBCatalog implements Catalog on a DynamoDB table keyed by
// (dataset identity, version).
type DynamoDBCatalog struct {
	client *dynamodb.Client
	table  string
	log    *zap.Logger
}

// schemaRecord is the stored item. The full schema definition is kept as a
// JSON blob; the filterable metadata fields are duplicated as attributes.
type schemaRecord struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	Layer      string `dynamodbav:"layer"`
	Domain     string `dynamodbav:"domain"`
	Dataset    string `dynamodbav:"dataset"`
	Version    int    `dynamodbav:"version"`
	IsLatest   bool   `dynamodbav:"is_latest"`
	Definition []byte `dynamodbav:"definition"`
}

// NewDynamoDBCatalog creates a schema catalog backed by the given table.
func NewDynamoDBCatalog(client *dynamodb.Client, table string, log *zap.Logger) *DynamoDBCatalog {
	return &DynamoDBCatalog{client: client, table: table, log: log.Named("schema-catalog")}
}

func schemaPartitionKey(layer types.Layer, domain, dataset string) string {
	return fmt.Sprintf("SCHEMA#%s/%s/%s", strings.ToLower(string(layer)), domain, dataset)
}

func schemaSortKey(version int) string {
	return fmt.Sprintf("VERSION#%06d", version)
}

func (c *DynamoDBCatalog) GetSchema(ctx context.Context, m types.SchemaMetadata) (*types.Schema, error) {
	out, err := c.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.table),
		Key: map[string]ddbtypes.AttributeValue{
			"PK": &ddbtypes.AttributeValueMemberS{Value: schemaPartitionKey(m.Layer, m.Domain, m.Dataset)},
			"SK": &ddbtypes.AttributeValueMemberS{Value: schemaSortKey(m.Version)},
		},
	})
	if err != nil {
		return nil, apperrors.NewAWSServiceError("failed to read schema", err)
	}
	if out.Item == nil {
		return nil, nil
	}
	return decodeSchemaItem(out.Item)
}

func (c *DynamoDBCatalog) GetLatestSchema(ctx context.Context, layer types.Layer, domain, dataset string) (*types.Schema, error) {
	out, err := c.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(c.table),
		KeyConditionExpression: aws.String("PK = :pk"),
		FilterExpression:       aws.String("is_latest = :latest"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":pk":     &ddbtypes.AttributeValueMemberS{Value: schemaPartitionKey(layer, domain, dataset)},
			":latest": &ddbtypes.AttributeValueMemberBOOL{Value: true},
		},
	})
	if err != nil {
		return nil, apperrors.NewAWSServiceError("failed to query latest schema", err)
	}
	if len(out.Items) == 0 {
		return nil, nil
	}
	return decodeSchemaItem(out.Items[0])
}

func (c *DynamoDBCatalog) StoreSchema(ctx context.Context, s *types.Schema) error {
	definition, err := json.Marshal(s)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCategoryService, apperrors.CodeAWSFailure, "failed to encode schema", err)
	}
	record := schemaRecord{
		PK:         schemaPartitionKey(s.Metadata.Layer, s.Metadata.Domain, s.Metadata.Dataset),
		SK:         schemaSortKey(s.Metadata.Version),
		Layer:      string(s.Metadata.Layer),
		Domain:     s.Metadata.Domain,
		Dataset:    s.Metadata.Dataset,
		Version:    s.Metadata.Version,
		IsLatest:   s.Metadata.IsLatestVersion,
		Definition: definition,
	}
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCategoryService, apperrors.CodeAWSFailure, "failed to marshal schema item", err)
	}
	if _, err := c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.table),
		Item:      item,
	}); err != nil {
		return apperrors.NewAWSServiceError("failed to store schema", err)
	}
	c.log.Info("schema stored", zap.String("dataset", s.Metadata.String()))
	return nil
}

func (c *DynamoDBCatalog) DeprecateSchema(ctx context.Context, m types.SchemaMetadata) error {
	if _, err := c.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(c.table),
		Key: map[string]ddbtypes.AttributeValue{
			"PK": &ddbtypes.AttributeValueMemberS{Value: schemaPartitionKey(m.Layer, m.Domain, m.Dataset)},
			"SK": &ddbtypes.AttributeValueMemberS{Value: schemaSortKey(m.Version)},
		},
		UpdateExpression: aws.String("SET is_latest = :latest"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":latest": &ddbtypes.AttributeValueMemberBOOL{Value: false},
		},
	}); err != nil {
		return apperrors.NewAWSServiceError("failed to deprecate schema", err)
	}
	return nil
}

func (c *DynamoDBCatalog) GetSchemaMetadatas(ctx context.Context, filters types.DatasetFilters) ([]types.SchemaMetadata, error) {
	var out []types.SchemaMetadata
	paginator := dynamodb.NewScanPaginator(c.client, &dynamodb.ScanInput{
		TableName: aws.String(c.table),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, apperrors.NewAWSServiceError("failed to scan schemas", err)
		}
		for _, item := range page.Items {
			s, err := decodeSchemaItem(item)
			if err != nil {
				return nil, err
			}
			if filters.Matches(s.Metadata) {
				out = append(out, s.Metadata)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

func (c *DynamoDBCatalog) DeleteSchema(ctx context.Context, m types.SchemaMetadata) error {
	if _, err := c.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(c.table),
		Key: map[string]ddbtypes.AttributeValue{
			"PK": &ddbtypes.AttributeValueMemberS{Value: schemaPartitionKey(m.Layer, m.Domain, m.Dataset)},
			"SK": &ddbtypes.AttributeValueMemberS{Value: schemaSortKey(m.Version)},
		},
	}); err != nil {
		return apperrors.NewAWSServiceError("failed to delete schema", err)
	}
	c.log.Info("schema deleted", zap.String("dataset", m.String()))
	return nil
}

func decodeSchemaItem(item map[string]ddbtypes.AttributeValue) (*types.Schema, error) {
	var record schemaRecord
	if err := attributevalue.UnmarshalMap(item, &record); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCategoryService, apperrors.CodeAWSFailure, "failed to unmarshal schema item", err)
	}
	var s types.Schema
	if err := json.Unmarshal(record.Definition, &s); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCategoryService, apperrors.CodeAWSFailure, "failed to decode schema definition", err)
	}
	return &s, nil
}
