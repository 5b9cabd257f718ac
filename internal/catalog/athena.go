package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	athenatypes "github.com/aws/aws-sdk-go-v2/service/athena/types"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	apperrors "github.com/rapid-data/rapid/internal/errors"
	"github.com/rapid-data/rapid/pkg/types"
)

// AthenaConfig holds configuration for query execution.
type AthenaConfig struct {
	// Database is the Glue database queries run against.
	Database string
	// Workgroup is the Athena workgroup.
	Workgroup string
	// OutputLocation is the s3:// URI Athena writes result files to.
	OutputLocation string
	// QueryTimeout bounds how long to wait for an execution.
	QueryTimeout time.Duration
}

// AthenaEngine implements QueryEngine with AWS Athena.
type AthenaEngine struct {
	client *athena.Client
	config AthenaConfig
	log    *zap.Logger
}

// NewAthenaEngine creates an Athena-backed query engine.
func NewAthenaEngine(client *athena.Client, cfg AthenaConfig, log *zap.Logger) *AthenaEngine {
	if cfg.QueryTimeout == 0 {
		cfg.QueryTimeout = 5 * time.Minute
	}
	return &AthenaEngine{client: client, config: cfg, log: log}
}

func (a *AthenaEngine) Query(ctx context.Context, sql string) (*types.Table, error) {
	executionID, err := a.QueryAsync(ctx, sql)
	if err != nil {
		return nil, err
	}
	if err := a.WaitForCompletion(ctx, executionID); err != nil {
		return nil, err
	}
	return a.Results(ctx, executionID)
}

func (a *AthenaEngine) QueryAsync(ctx context.Context, sql string) (string, error) {
	input := &athena.StartQueryExecutionInput{
		QueryString: aws.String(sql),
		QueryExecutionContext: &athenatypes.QueryExecutionContext{
			Database: aws.String(a.config.Database),
		},
		ResultConfiguration: &athenatypes.ResultConfiguration{
			OutputLocation: aws.String(a.config.OutputLocation),
		},
	}
	if a.config.Workgroup != "" {
		input.WorkGroup = aws.String(a.config.Workgroup)
	}

	resp, err := a.client.StartQueryExecution(ctx, input)
	if err != nil {
		return "", apperrors.NewAWSServiceError("failed to start query execution", err)
	}

	executionID := aws.ToString(resp.QueryExecutionId)
	a.log.Info("query submitted", zap.String("execution_id", executionID))
	return executionID, nil
}

// queryPollInterval is the fixed delay between execution status checks.
const queryPollInterval = 2 * time.Second

// WaitForCompletion polls the execution state at a fixed interval until the
// configured timeout. A failed or cancelled execution surfaces its state
// change reason.
func (a *AthenaEngine) WaitForCompletion(ctx context.Context, executionID string) error {
	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(queryPollInterval),
		pollCount(a.config.QueryTimeout, queryPollInterval))

	operation := func() error {
		resp, err := a.client.GetQueryExecution(ctx, &athena.GetQueryExecutionInput{
			QueryExecutionId: aws.String(executionID),
		})
		if err != nil {
			return backoff.Permanent(apperrors.NewAWSServiceError("failed to get query execution", err))
		}

		status := resp.QueryExecution.Status
		switch status.State {
		case athenatypes.QueryExecutionStateSucceeded:
			return nil
		case athenatypes.QueryExecutionStateFailed, athenatypes.QueryExecutionStateCancelled:
			reason := aws.ToString(status.StateChangeReason)
			return backoff.Permanent(apperrors.NewQueryExecutionError(
				fmt.Sprintf("query execution [%s] finished in state %s: %s", executionID, status.State, reason), nil))
		default:
			return fmt.Errorf("query execution [%s] still in state %s", executionID, status.State)
		}
	}

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return err
	}
	return nil
}

// Results pages through the execution's result set and decodes it. The first
// row Athena returns is the header row and is skipped.
func (a *AthenaEngine) Results(ctx context.Context, executionID string) (*types.Table, error) {
	table := types.NewTable()
	var columns []athenatypes.ColumnInfo
	var values [][]interface{}

	paginator := athena.NewGetQueryResultsPaginator(a.client, &athena.GetQueryResultsInput{
		QueryExecutionId: aws.String(executionID),
	})

	first := true
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, apperrors.NewAWSServiceError("failed to fetch query results", err)
		}

		rows := page.ResultSet.Rows
		if first {
			columns = page.ResultSet.ResultSetMetadata.ColumnInfo
			values = make([][]interface{}, len(columns))
			if len(rows) > 0 {
				rows = rows[1:]
			}
			first = false
		}

		for _, row := range rows {
			for i := range columns {
				var datum *string
				if i < len(row.Data) {
					datum = row.Data[i].VarCharValue
				}
				values[i] = append(values[i], decodeAthenaValue(columns[i], datum))
			}
		}
	}

	for i, info := range columns {
		table.AddSeries(aws.ToString(info.Name), values[i])
	}
	return table, nil
}

// ResultsLocation returns the bucket-relative key of the result file.
func (a *AthenaEngine) ResultsLocation(ctx context.Context, executionID string) (string, error) {
	resp, err := a.client.GetQueryExecution(ctx, &athena.GetQueryExecutionInput{
		QueryExecutionId: aws.String(executionID),
	})
	if err != nil {
		return "", apperrors.NewAWSServiceError("failed to get query execution", err)
	}

	location := aws.ToString(resp.QueryExecution.ResultConfiguration.OutputLocation)
	trimmed := strings.TrimPrefix(location, "s3://")
	if idx := strings.IndexByte(trimmed, '/'); idx >= 0 {
		return trimmed[idx+1:], nil
	}
	return trimmed, nil
}

// decodeAthenaValue converts the string-typed wire value into a native Go
// value using the column's declared type. Missing values decode to nil.
func decodeAthenaValue(info athenatypes.ColumnInfo, datum *string) interface{} {
	if datum == nil {
		return nil
	}
	raw := *datum

	switch strings.ToLower(aws.ToString(info.Type)) {
	case "tinyint", "smallint", "integer", "int", "bigint":
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return v
		}
	case "float", "real", "double", "decimal":
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
	case "boolean":
		if v, err := strconv.ParseBool(raw); err == nil {
			return v
		}
	}
	return raw
}
