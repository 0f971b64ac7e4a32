package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/dittovault/internal/logger"
	"github.com/marmos91/dittovault/pkg/store/content"
	contentfs "github.com/marmos91/dittovault/pkg/store/content/fs"
	contentmemory "github.com/marmos91/dittovault/pkg/store/content/memory"
	"github.com/marmos91/dittovault/pkg/store/content/s3"
	"github.com/marmos91/dittovault/pkg/store/metadata"
	"github.com/marmos91/dittovault/pkg/store/metadata/badger"
	"github.com/marmos91/dittovault/pkg/store/metadata/cache"
	metadatamemory "github.com/marmos91/dittovault/pkg/store/metadata/memory"
	"github.com/marmos91/dittovault/pkg/store/metadata/postgres"
	"github.com/mitchellh/mapstructure"
)

// decode maps a store-specific section onto its config struct. Durations may
// be given as strings ("30s") and scalars as their string form, since
// environment overrides arrive as strings.
func decode(options map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	return decoder.Decode(options)
}

// s3StoreConfig is the content.s3 section.
type s3StoreConfig struct {
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
	PartSize        int64  `mapstructure:"part_size"`
	MaxRetries      int    `mapstructure:"max_retries"`
}

// CreateContentStore creates the binary store selected by cfg.Type.
//
// s3Metrics may be nil.
func CreateContentStore(ctx context.Context, cfg *ContentConfig, s3Metrics s3.S3Metrics) (content.BinaryStore, error) {
	switch cfg.Type {
	case "filesystem":
		return createFilesystemContentStore(ctx, cfg.Filesystem)
	case "memory":
		store, err := contentmemory.NewMemoryContentStore(ctx)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "s3":
		return createS3ContentStore(ctx, cfg.S3, s3Metrics)
	default:
		return nil, fmt.Errorf("unknown content store type: %q", cfg.Type)
	}
}

func createFilesystemContentStore(ctx context.Context, options map[string]any) (content.BinaryStore, error) {
	var fsCfg struct {
		Path     string `mapstructure:"path"`
		Compress bool   `mapstructure:"compress"`
	}
	if err := decode(options, &fsCfg); err != nil {
		return nil, fmt.Errorf("invalid filesystem config: %w", err)
	}
	if fsCfg.Path == "" {
		return nil, fmt.Errorf("filesystem content store: path is required")
	}

	store, err := contentfs.NewFSContentStore(ctx, contentfs.FSContentStoreConfig{
		BasePath: fsCfg.Path,
		Compress: fsCfg.Compress,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem content store: %w", err)
	}

	logger.Info("Filesystem content store initialized: path=%s compress=%v", fsCfg.Path, fsCfg.Compress)
	return store, nil
}

func createS3ContentStore(ctx context.Context, options map[string]any, m s3.S3Metrics) (content.BinaryStore, error) {
	var storeCfg s3StoreConfig
	if err := decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("invalid S3 config: %w", err)
	}

	client, err := newS3Client(ctx, storeCfg)
	if err != nil {
		return nil, err
	}

	store, err := s3.NewS3ContentStore(ctx, s3.S3ContentStoreConfig{
		Client:    client,
		Bucket:    storeCfg.Bucket,
		KeyPrefix: storeCfg.KeyPrefix,
		PartSize:  storeCfg.PartSize,
		Metrics:   m,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 content store: %w", err)
	}

	logger.Info("S3 content store initialized: bucket=%s, region=%s, prefix=%s",
		storeCfg.Bucket, storeCfg.Region, storeCfg.KeyPrefix)

	return store, nil
}

// newS3Client builds an S3 client from the content.s3 section.
func newS3Client(ctx context.Context, storeCfg s3StoreConfig) (*awss3.Client, error) {
	if storeCfg.Bucket == "" {
		return nil, fmt.Errorf("S3 content store: bucket is required")
	}
	if storeCfg.Region == "" {
		return nil, fmt.Errorf("S3 content store: region is required")
	}

	configOptions := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(storeCfg.Region),
	}

	// Static credentials when given, otherwise the default chain
	if storeCfg.AccessKeyID != "" && storeCfg.SecretAccessKey != "" {
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(storeCfg.AccessKeyID, storeCfg.SecretAccessKey, ""),
		))
	}

	maxRetries := storeCfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if storeCfg.Endpoint != "" {
			// MinIO, Localstack
			o.BaseEndpoint = aws.String(storeCfg.Endpoint)
			o.UsePathStyle = true
		}
		if storeCfg.ForcePathStyle {
			o.UsePathStyle = true
		}
	}), nil
}

// CreateMetadataStore creates the index selected by cfg.Type, wrapped in the
// record cache when cfg.Cache.Enabled. cacheMetrics may be nil.
func CreateMetadataStore(ctx context.Context, cfg *MetadataConfig, cacheMetrics cache.Metrics) (metadata.Index, error) {
	index, err := createIndex(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if !cfg.Cache.Enabled {
		return index, nil
	}
	if cfg.Type == "memory" {
		logger.Debug("Metadata cache skipped for the memory index")
		return index, nil
	}

	cached, err := cache.New(index, cache.Config{
		Size:    cfg.Cache.Size,
		TTL:     cfg.Cache.TTL,
		Metrics: cacheMetrics,
	})
	if err != nil {
		_ = index.Close()
		return nil, err
	}

	logger.Info("Metadata cache enabled: size=%d ttl=%s", cfg.Cache.Size, cfg.Cache.TTL)
	return cached, nil
}

func createIndex(ctx context.Context, cfg *MetadataConfig) (metadata.Index, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case "memory":
		return metadatamemory.NewMemoryMetadataStore(), nil

	case "badger":
		var badgerCfg badger.BadgerMetadataStoreConfig
		if err := decode(cfg.Badger, &badgerCfg); err != nil {
			return nil, fmt.Errorf("invalid badger config: %w", err)
		}
		store, err := badger.NewBadgerMetadataStore(ctx, badgerCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open badger database: %w", err)
		}
		logger.Info("Badger metadata index opened: path=%s", badgerCfg.DBPath)
		return store, nil

	case "postgres":
		var pgCfg postgres.PostgresMetadataStoreConfig
		if err := decode(cfg.Postgres, &pgCfg); err != nil {
			return nil, fmt.Errorf("invalid postgres config: %w", err)
		}
		if err := validate.Struct(pgCfg); err != nil {
			return nil, fmt.Errorf("metadata.postgres: %w", formatValidationError(err))
		}
		store, err := postgres.NewPostgresMetadataStore(ctx, pgCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		logger.Info("Postgres metadata index connected (auto_migrate=%v)", pgCfg.AutoMigrate)
		return store, nil

	default:
		return nil, fmt.Errorf("unknown metadata store type: %q (supported: memory, badger, postgres)", cfg.Type)
	}
}
