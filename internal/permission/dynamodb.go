package permission

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	apperrors "github.com/rapid-data/rapid/internal/errors"
	"github.com/rapid-data/rapid/pkg/types"
)

// DynamoDBStore implements Store on a single DynamoDB table holding both
// permission items and subject permission lists, distinguished by key prefix.
type DynamoDBStore struct {
	client *dynamodb.Client
	table  string
	log    *zap.Logger
}

type permissionRecord struct {
	PK          string `dynamodbav:"PK"`
	Type        string `dynamodbav:"type"`
	Layer       string `dynamodbav:"layer,omitempty"`
	Sensitivity string `dynamodbav:"sensitivity,omitempty"`
	Domain      string `dynamodbav:"domain,omitempty"`
}

type subjectRecord struct {
	PK          string   `dynamodbav:"PK"`
	SubjectID   string   `dynamodbav:"subject_id"`
	Permissions []string `dynamodbav:"permissions"`
}

const (
	permissionKeyPrefix = "PERMISSION#"
	subjectKeyPrefix    = "SUBJECT#"
)

// NewDynamoDBStore creates a permission store backed by the given table.
func NewDynamoDBStore(client *dynamodb.Client, table string, log *zap.Logger) *DynamoDBStore {
	return &DynamoDBStore{client: client, table: table, log: log.Named("permission-store")}
}

func (s *DynamoDBStore) GetPermissionsForSubject(ctx context.Context, subjectID string) ([]string, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]ddbtypes.AttributeValue{
			"PK": &ddbtypes.AttributeValueMemberS{Value: subjectKeyPrefix + subjectID},
		},
	})
	if err != nil {
		return nil, apperrors.NewAWSServiceError("failed to read subject permissions", err)
	}
	if out.Item == nil {
		return nil, apperrors.NewNotFoundError(apperrors.CodeSubjectNotFound,
			fmt.Sprintf("subject [%s] not found", subjectID))
	}
	var record subjectRecord
	if err := attributevalue.UnmarshalMap(out.Item, &record); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCategoryService, apperrors.CodeAWSFailure, "failed to unmarshal subject item", err)
	}
	return record.Permissions, nil
}

func (s *DynamoDBStore) GetAllProtectedPermissions(ctx context.Context) ([]types.PermissionItem, error) {
	var out []types.PermissionItem
	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:        aws.String(s.table),
		FilterExpression: aws.String("sensitivity = :protected"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":protected": &ddbtypes.AttributeValueMemberS{Value: string(types.SensitivityProtected)},
		},
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, apperrors.NewAWSServiceError("failed to scan protected permissions", err)
		}
		for _, item := range page.Items {
			var record permissionRecord
			if err := attributevalue.UnmarshalMap(item, &record); err != nil {
				return nil, apperrors.Wrap(apperrors.ErrCategoryService, apperrors.CodeAWSFailure, "failed to unmarshal permission item", err)
			}
			out = append(out, types.PermissionItem{
				ID:          strings.TrimPrefix(record.PK, permissionKeyPrefix),
				Type:        types.Action(record.Type),
				Layer:       types.Layer(record.Layer),
				Sensitivity: types.Sensitivity(record.Sensitivity),
				Domain:      record.Domain,
			})
		}
	}
	return out, nil
}

func (s *DynamoDBStore) StoreProtectedPermissions(ctx context.Context, items []types.PermissionItem, domain string) error {
	for _, item := range items {
		record := permissionRecord{
			PK:          permissionKeyPrefix + item.ID,
			Type:        string(item.Type),
			Layer:       string(item.Layer),
			Sensitivity: string(item.Sensitivity),
			Domain:      item.Domain,
		}
		av, err := attributevalue.MarshalMap(record)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrCategoryService, apperrors.CodeAWSFailure, "failed to marshal permission item", err)
		}
		if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(s.table),
			Item:      av,
		}); err != nil {
			return apperrors.NewAWSServiceError("failed to store permission item", err)
		}
	}
	s.log.Info("protected permissions stored", zap.String("domain", domain), zap.Int("count", len(items)))
	return nil
}

func (s *DynamoDBStore) DeletePermission(ctx context.Context, id string) error {
	if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key: map[string]ddbtypes.AttributeValue{
			"PK": &ddbtypes.AttributeValueMemberS{Value: permissionKeyPrefix + id},
		},
	}); err != nil {
		return apperrors.NewAWSServiceError("failed to delete permission item", err)
	}
	return nil
}

func (s *DynamoDBStore) GetAllSubjectPermissions(ctx context.Context) ([]types.SubjectPermissions, error) {
	var out []types.SubjectPermissions
	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:        aws.String(s.table),
		FilterExpression: aws.String("begins_with(PK, :prefix)"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":prefix": &ddbtypes.AttributeValueMemberS{Value: subjectKeyPrefix},
		},
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, apperrors.NewAWSServiceError("failed to scan subjects", err)
		}
		for _, item := range page.Items {
			var record subjectRecord
			if err := attributevalue.UnmarshalMap(item, &record); err != nil {
				return nil, apperrors.Wrap(apperrors.ErrCategoryService, apperrors.CodeAWSFailure, "failed to unmarshal subject item", err)
			}
			out = append(out, types.SubjectPermissions{
				SubjectID:   record.SubjectID,
				Permissions: record.Permissions,
			})
		}
	}
	return out, nil
}

func (s *DynamoDBStore) UpdateSubjectPermissions(ctx context.Context, sp types.SubjectPermissions) error {
	record := subjectRecord{
		PK:          subjectKeyPrefix + sp.SubjectID,
		SubjectID:   sp.SubjectID,
		Permissions: sp.Permissions,
	}
	av, err := attributevalue.MarshalMap(record)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCategoryService, apperrors.CodeAWSFailure, "failed to marshal subject item", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	}); err != nil {
		return apperrors.NewAWSServiceError("failed to update subject permissions", err)
	}
	return nil
}

func (s *DynamoDBStore) ValidatePermissions(ctx context.Context, ids []string) error {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return apperrors.NewUserError(apperrors.CodeInvalidPermission,
				fmt.Sprintf("duplicate permission id [%s]", id))
		}
		seen[id] = true
		out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: aws.String(s.table),
			Key: map[string]ddbtypes.AttributeValue{
				"PK": &ddbtypes.AttributeValueMemberS{Value: permissionKeyPrefix + id},
			},
		})
		if err != nil {
			return apperrors.NewAWSServiceError("failed to read permission item", err)
		}
		if out.Item == nil {
			return apperrors.NewUserError(apperrors.CodeInvalidPermission,
				fmt.Sprintf("unknown permission id [%s]", id))
		}
	}
	return nil
}
