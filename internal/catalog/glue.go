package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	gluetypes "github.com/aws/aws-sdk-go-v2/service/glue/types"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	apperrors "github.com/rapid-data/rapid/internal/errors"
	"github.com/rapid-data/rapid/pkg/types"
)

const (
	parquetInputFormat  = "org.apache.hadoop.hive.ql.io.parquet.MapredParquetInputFormat"
	parquetOutputFormat = "org.apache.hadoop.hive.ql.io.parquet.MapredParquetOutputFormat"
	parquetSerde        = "org.apache.hadoop.hive.ql.io.parquet.serde.ParquetHiveSerDe"
)

// GlueConfig holds configuration for the Glue table catalogue.
type GlueConfig struct {
	// Database is the Glue database holding all dataset tables.
	Database string
	// Bucket is the S3 bucket the tables point at.
	Bucket string
	// CrawlerPrefix namespaces the per-dataset crawlers.
	CrawlerPrefix string
	// CrawlerTimeout bounds how long to wait for a crawler run.
	CrawlerTimeout time.Duration
}

// GlueCatalog implements TableCatalog with AWS Glue.
type GlueCatalog struct {
	client *glue.Client
	config GlueConfig
	log    *zap.Logger
}

// NewGlueCatalog creates a Glue-backed table catalogue.
func NewGlueCatalog(client *glue.Client, cfg GlueConfig, log *zap.Logger) *GlueCatalog {
	if cfg.CrawlerTimeout == 0 {
		cfg.CrawlerTimeout = 10 * time.Minute
	}
	return &GlueCatalog{client: client, config: cfg, log: log}
}

func (g *GlueCatalog) CreateTable(ctx context.Context, sc *types.Schema) error {
	input := &glue.CreateTableInput{
		DatabaseName: aws.String(g.config.Database),
		TableInput:   g.tableInput(sc),
	}
	if _, err := g.client.CreateTable(ctx, input); err != nil {
		var exists *gluetypes.AlreadyExistsException
		if errors.As(err, &exists) {
			return g.UpdateTableConfig(ctx, sc)
		}
		return apperrors.NewAWSServiceError(fmt.Sprintf("failed to create table [%s]", sc.Metadata.TableName()), err)
	}
	return nil
}

func (g *GlueCatalog) UpdateTableConfig(ctx context.Context, sc *types.Schema) error {
	input := &glue.UpdateTableInput{
		DatabaseName: aws.String(g.config.Database),
		TableInput:   g.tableInput(sc),
	}
	if _, err := g.client.UpdateTable(ctx, input); err != nil {
		return apperrors.NewAWSServiceError(fmt.Sprintf("failed to update table [%s]", sc.Metadata.TableName()), err)
	}
	return nil
}

func (g *GlueCatalog) DeleteTable(ctx context.Context, m types.SchemaMetadata) error {
	_, err := g.client.DeleteTable(ctx, &glue.DeleteTableInput{
		DatabaseName: aws.String(g.config.Database),
		Name:         aws.String(m.TableName()),
	})
	if err != nil {
		var notFound *gluetypes.EntityNotFoundException
		if errors.As(err, &notFound) {
			return nil
		}
		return apperrors.NewAWSServiceError(fmt.Sprintf("failed to delete table [%s]", m.TableName()), err)
	}
	return nil
}

func (g *GlueCatalog) StartCrawler(ctx context.Context, m types.SchemaMetadata) error {
	name := g.crawlerName(m)
	if _, err := g.client.StartCrawler(ctx, &glue.StartCrawlerInput{Name: aws.String(name)}); err != nil {
		var running *gluetypes.CrawlerRunningException
		if errors.As(err, &running) {
			g.log.Info("crawler already running", zap.String("crawler", name))
			return nil
		}
		return apperrors.NewAWSServiceError(fmt.Sprintf("failed to start crawler [%s]", name), err)
	}
	return nil
}

// crawlerPollInterval is the fixed delay between crawler state checks.
const crawlerPollInterval = 10 * time.Second

// WaitForCrawlerCompletion polls the crawler state at a fixed interval until
// it returns to READY or the configured timeout passes.
func (g *GlueCatalog) WaitForCrawlerCompletion(ctx context.Context, m types.SchemaMetadata) error {
	name := g.crawlerName(m)

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(crawlerPollInterval),
		pollCount(g.config.CrawlerTimeout, crawlerPollInterval))

	operation := func() error {
		resp, err := g.client.GetCrawler(ctx, &glue.GetCrawlerInput{Name: aws.String(name)})
		if err != nil {
			return backoff.Permanent(apperrors.NewAWSServiceError(fmt.Sprintf("failed to get crawler [%s]", name), err))
		}
		if resp.Crawler.State != gluetypes.CrawlerStateReady {
			return apperrors.NewCrawlerNotReadyError(fmt.Sprintf("crawler [%s] is still running", name))
		}
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return err
	}
	return nil
}

func (g *GlueCatalog) crawlerName(m types.SchemaMetadata) string {
	return fmt.Sprintf("%s/%s/%s/%s", g.config.CrawlerPrefix, m.Layer, m.Domain, m.Dataset)
}

func (g *GlueCatalog) tableInput(sc *types.Schema) *gluetypes.TableInput {
	partitions := sc.PartitionColumns()

	columns := make([]gluetypes.Column, 0, len(sc.Columns)-len(partitions))
	for _, col := range sc.ValueColumns() {
		columns = append(columns, gluetypes.Column{
			Name: aws.String(col.Name),
			Type: aws.String(glueType(col.DataType)),
		})
	}

	partitionKeys := make([]gluetypes.Column, 0, len(partitions))
	for _, col := range partitions {
		partitionKeys = append(partitionKeys, gluetypes.Column{
			Name: aws.String(col.Name),
			Type: aws.String(glueType(col.DataType)),
		})
	}

	return &gluetypes.TableInput{
		Name:          aws.String(sc.Metadata.TableName()),
		TableType:     aws.String("EXTERNAL_TABLE"),
		PartitionKeys: partitionKeys,
		Parameters: map[string]string{
			"classification": "parquet",
		},
		StorageDescriptor: &gluetypes.StorageDescriptor{
			Columns:      columns,
			Location:     aws.String(fmt.Sprintf("s3://%s/%s", g.config.Bucket, sc.Metadata.DatasetLocation())),
			InputFormat:  aws.String(parquetInputFormat),
			OutputFormat: aws.String(parquetOutputFormat),
			SerdeInfo: &gluetypes.SerDeInfo{
				SerializationLibrary: aws.String(parquetSerde),
			},
		},
	}
}

// glueType maps a schema data type to its Glue column type. Dates are stored
// as ISO strings in the parquet files, so they surface as strings here.
func glueType(dt types.DataType) string {
	switch dt {
	case types.DataTypeInt:
		return "int"
	case types.DataTypeBigInt:
		return "bigint"
	case types.DataTypeDouble:
		return "double"
	case types.DataTypeBoolean:
		return "boolean"
	default:
		return "string"
	}
}
