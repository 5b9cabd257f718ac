package job

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	apperrors "github.com/rapid-data/rapid/internal/errors"
)

// DynamoDBStore implements Store on a DynamoDB table with a TTL attribute,
// so finished job records expire instead of being actively deleted.
type DynamoDBStore struct {
	client *dynamodb.Client
	table  string
}

type jobRecord struct {
	JobID     string `dynamodbav:"job_id"`
	SubjectID string `dynamodbav:"subject_id"`
	TTL       int64  `dynamodbav:"ttl"`
	Record    []byte `dynamodbav:"record"`
}

// NewDynamoDBStore creates a job store backed by the given table.
func NewDynamoDBStore(client *dynamodb.Client, table string) *DynamoDBStore {
	return &DynamoDBStore{client: client, table: table}
}

func (s *DynamoDBStore) Put(ctx context.Context, j *Job) error {
	body, err := json.Marshal(j)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCategoryService, apperrors.CodeAWSFailure, "failed to encode job", err)
	}
	item, err := attributevalue.MarshalMap(jobRecord{
		JobID:     j.ID,
		SubjectID: j.SubjectID,
		TTL:       j.ExpiresAt,
		Record:    body,
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCategoryService, apperrors.CodeAWSFailure, "failed to marshal job item", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	}); err != nil {
		return apperrors.NewAWSServiceError("failed to write job", err)
	}
	return nil
}

func (s *DynamoDBStore) Get(ctx context.Context, id string) (*Job, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]ddbtypes.AttributeValue{
			"job_id": &ddbtypes.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, apperrors.NewAWSServiceError("failed to read job", err)
	}
	if out.Item == nil {
		return nil, nil
	}
	return decodeJobItem(out.Item)
}

func (s *DynamoDBStore) ListForSubject(ctx context.Context, subjectID string) ([]*Job, error) {
	var out []*Job
	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:        aws.String(s.table),
		FilterExpression: aws.String("subject_id = :subject"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":subject": &ddbtypes.AttributeValueMemberS{Value: subjectID},
		},
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, apperrors.NewAWSServiceError("failed to scan jobs", err)
		}
		for _, item := range page.Items {
			j, err := decodeJobItem(item)
			if err != nil {
				return nil, err
			}
			out = append(out, j)
		}
	}
	return out, nil
}

func decodeJobItem(item map[string]ddbtypes.AttributeValue) (*Job, error) {
	var record jobRecord
	if err := attributevalue.UnmarshalMap(item, &record); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCategoryService, apperrors.CodeAWSFailure, "failed to unmarshal job item", err)
	}
	var j Job
	if err := json.Unmarshal(record.Record, &j); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCategoryService, apperrors.CodeAWSFailure, "failed to decode job record", err)
	}
	return &j, nil
}
