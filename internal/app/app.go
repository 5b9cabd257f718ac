// Package app wires the service's components together and manages their
// lifecycle.
package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	httpapi "github.com/rapid-data/rapid/internal/api/http"
	"github.com/rapid-data/rapid/internal/catalog"
	"github.com/rapid-data/rapid/internal/config"
	"github.com/rapid-data/rapid/internal/job"
	"github.com/rapid-data/rapid/internal/observability"
	"github.com/rapid-data/rapid/internal/permission"
	"github.com/rapid-data/rapid/internal/query"
	"github.com/rapid-data/rapid/internal/schema"
	"github.com/rapid-data/rapid/internal/storage"
	"github.com/rapid-data/rapid/internal/upload"
)

// App holds the assembled service.
type App struct {
	cfg *config.Config
	log *zap.Logger

	server  *http.Server
	uploads *upload.Processor
	queries *query.Service

	mu      sync.Mutex
	running bool
}

// New assembles the service from its configuration. With storage type
// "local" every backing service runs in memory, which is the development
// mode; "s3" wires the AWS stack.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	var (
		store         storage.ObjectStorage
		schemaCatalog schema.Catalog
		permStore     permission.Store
		jobStore      job.Store
		tables        catalog.TableCatalog
		engine        catalog.QueryEngine
	)

	switch cfg.Storage.Type {
	case "s3":
		awsCfg, err := loadAWSConfig(ctx, cfg.AWS)
		if err != nil {
			return nil, err
		}

		s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.UsePathStyle = cfg.AWS.UsePathStyle
		})
		store = storage.NewS3StorageWithClient(s3Client, cfg.Storage.Bucket, storage.S3Config{
			Region:       cfg.AWS.Region,
			Endpoint:     cfg.AWS.Endpoint,
			UsePathStyle: cfg.AWS.UsePathStyle,
		})

		dynamoClient := dynamodb.NewFromConfig(awsCfg)
		schemaCatalog = schema.NewDynamoDBCatalog(dynamoClient, cfg.DynamoDB.SchemaTable, log)
		permStore = permission.NewDynamoDBStore(dynamoClient, cfg.DynamoDB.PermissionTable, log)
		jobStore = job.NewDynamoDBStore(dynamoClient, cfg.DynamoDB.JobTable)

		tables = catalog.NewGlueCatalog(glue.NewFromConfig(awsCfg), catalog.GlueConfig{
			Database:       cfg.Glue.Database,
			Bucket:         cfg.Storage.Bucket,
			CrawlerPrefix:  cfg.Glue.CrawlerPrefix,
			CrawlerTimeout: cfg.Glue.CrawlerTimeout,
		}, log)
		engine = catalog.NewAthenaEngine(athena.NewFromConfig(awsCfg), catalog.AthenaConfig{
			Database:       cfg.Glue.Database,
			Workgroup:      cfg.Athena.Workgroup,
			OutputLocation: cfg.Athena.OutputLocation,
			QueryTimeout:   cfg.Athena.QueryTimeout,
		}, log)

	case "local":
		local, err := storage.NewLocalStorage(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		store = local
		schemaCatalog = schema.NewMemoryCatalog()
		permStore = permission.NewMemoryStore()
		jobStore = job.NewMemoryStore()
		tables = catalog.NewMemoryTableCatalog()
		engine = &catalog.MemoryQueryEngine{}

	default:
		return nil, fmt.Errorf("unsupported storage type %q", cfg.Storage.Type)
	}

	schemas := schema.NewService(schemaCatalog, store, tables, log)
	evaluator := permission.NewEvaluator(permStore, schemaCatalog, log)
	domains := permission.NewDomainService(permStore, schemaCatalog, log)
	jobs := job.NewService(jobStore, cfg.Job.TTL, log)

	uploads := upload.NewProcessor(jobs, store, tables, upload.Config{
		MaxConcurrentUploads: cfg.Upload.MaxConcurrent,
		ChunkRows:            cfg.Upload.ChunkRows,
	}, log)
	stats := observability.NewQueryStats(24 * time.Hour)
	queries := query.NewService(schemas, engine, store, jobs, stats, log)

	api := httpapi.New(schemas, evaluator, domains, permStore, uploads, queries, jobs, httpapi.Config{
		UploadDir:      cfg.Service.UploadDir,
		MaxUploadBytes: cfg.Service.MaxUploadBytes,
	}, log)

	server := &http.Server{
		Addr:         cfg.Service.Addr,
		Handler:      api.Routes(),
		ReadTimeout:  cfg.Service.ReadTimeout,
		WriteTimeout: cfg.Service.WriteTimeout,
		IdleTimeout:  cfg.Service.IdleTimeout,
	}

	return &App{
		cfg:     cfg,
		log:     log,
		server:  server,
		uploads: uploads,
		queries: queries,
	}, nil
}

func loadAWSConfig(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, awsconfig.WithBaseEndpoint(cfg.Endpoint))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return awsCfg, nil
}

// Start serves HTTP until the listener fails or Stop is called.
func (a *App) Start() error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app is already running")
	}
	a.running = true
	a.mu.Unlock()

	a.log.Info("service listening", zap.String("addr", a.cfg.Service.Addr))
	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts the server down gracefully and drains in-flight background
// work.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.running {
		return nil
	}
	a.running = false

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	a.uploads.Wait()
	a.queries.Wait()
	a.log.Info("service stopped")
	return nil
}
