package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hupe1980/pointgrid"
	"github.com/hupe1980/pointgrid/blobstore"
	pgminio "github.com/hupe1980/pointgrid/blobstore/minio"
	pgs3 "github.com/hupe1980/pointgrid/blobstore/s3"
	"github.com/hupe1980/pointgrid/codec"
	"github.com/hupe1980/pointgrid/resource"
	"github.com/hupe1980/pointgrid/tablestore"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/viper"
)

// Config is the CLI configuration.
type Config struct {
	Store       StoreConfig `mapstructure:"store"`
	Compression string      `mapstructure:"compression"`
	Codec       string      `mapstructure:"codec"`
	Workers     int         `mapstructure:"workers"`
	Grain       int         `mapstructure:"grain"`
	MemoryLimit int64       `mapstructure:"memory_limit"`
	IOLimit     int64       `mapstructure:"io_limit"`
	Log         LogConfig   `mapstructure:"log"`
}

// StoreConfig selects where snapshots live.
type StoreConfig struct {
	Kind   string      `mapstructure:"kind"` // local, minio or s3
	Path   string      `mapstructure:"path"`
	Bucket string      `mapstructure:"bucket"`
	Prefix string      `mapstructure:"prefix"`
	MinIO  MinIOConfig `mapstructure:"minio"`
	Region string      `mapstructure:"region"`
}

// MinIOConfig holds MinIO connection settings.
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Secure    bool   `mapstructure:"secure"`

	StorageClass string `mapstructure:"storage_class"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}

func loadConfig(v *viper.Viper, configFile string) (*Config, error) {
	v.SetDefault("store.kind", "local")
	v.SetDefault("store.path", "./tables")
	v.SetDefault("compression", "zstd")
	v.SetDefault("codec", codec.Default.Name())
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("pointgrid")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.pointgrid")
		}
	}

	v.SetEnvPrefix("POINTGRID")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) logger() (*pointgrid.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	switch c.Log.Format {
	case "json":
		return pointgrid.NewJSONLogger(level), nil
	case "text", "":
		return pointgrid.NewTextLogger(level), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", c.Log.Format)
	}
}

func (c *Config) resources() *resource.Controller {
	return resource.NewController(resource.Config{
		MemoryLimitBytes:   c.MemoryLimit,
		IOLimitBytesPerSec: c.IOLimit,
	})
}

// options returns the library options shared by every command.
func (c *Config) options(logger *pointgrid.Logger, rc *resource.Controller) []pointgrid.Option {
	return []pointgrid.Option{
		pointgrid.WithLogger(logger),
		pointgrid.WithResourceController(rc),
		pointgrid.WithWorkers(c.Workers),
		pointgrid.WithGrainSize(c.Grain),
	}
}

func (c *Config) blobStore(ctx context.Context) (blobstore.BlobStore, error) {
	switch c.Store.Kind {
	case "local":
		if err := os.MkdirAll(c.Store.Path, 0o755); err != nil {
			return nil, err
		}
		return blobstore.NewLocalStore(c.Store.Path), nil
	case "minio":
		if c.Store.Bucket == "" {
			return nil, errors.New("store.bucket is required for minio")
		}
		client, err := minio.New(c.Store.MinIO.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(c.Store.MinIO.AccessKey, c.Store.MinIO.SecretKey, ""),
			Secure: c.Store.MinIO.Secure,
		})
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
		var opts []pgminio.Option
		if c.Store.MinIO.StorageClass != "" {
			opts = append(opts, pgminio.WithStorageClass(c.Store.MinIO.StorageClass))
		}
		return pgminio.NewStore(client, c.Store.Bucket, c.Store.Prefix, opts...), nil
	case "s3":
		if c.Store.Bucket == "" {
			return nil, errors.New("store.bucket is required for s3")
		}
		var opts []func(*awsconfig.LoadOptions) error
		if c.Store.Region != "" {
			opts = append(opts, awsconfig.WithRegion(c.Store.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("aws config: %w", err)
		}
		return pgs3.NewStore(awss3.NewFromConfig(awsCfg), c.Store.Bucket, c.Store.Prefix), nil
	default:
		return nil, fmt.Errorf("unknown store kind %q (want local, minio or s3)", c.Store.Kind)
	}
}

func (c *Config) tableStore(ctx context.Context, logger *pointgrid.Logger, rc *resource.Controller) (*tablestore.Store, error) {
	blobs, err := c.blobStore(ctx)
	if err != nil {
		return nil, err
	}
	comp, err := pointgrid.ParseCompression(c.Compression)
	if err != nil {
		return nil, err
	}
	cdc, err := codec.ByName(c.Codec)
	if err != nil {
		return nil, err
	}
	return tablestore.New(blobs,
		tablestore.WithCompression(comp),
		tablestore.WithCodec(cdc),
		tablestore.WithResourceController(rc),
		tablestore.WithLogger(logger),
	), nil
}
