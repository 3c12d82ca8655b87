// Package objstore wraps the S3 SDK behind a small interface with a typed
// error taxonomy, deterministic key derivation, and Glacier restore-status
// parsing. Each caller that needs an independent handle constructs its own
// Client; Clients share no mutable state.
package objstore

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Store is the object-storage surface the pipeline depends on. *Client is
// the production implementation; tests substitute fakes.
type Store interface {
	// Upload stores a local file under key in the configured bucket.
	Upload(ctx context.Context, localPath, key string) error

	// Restore requests an asynchronous thaw of an archived object.
	// Returns ErrAlreadyInProgress when a thaw is already running.
	Restore(ctx context.Context, loc Locator, days int32, tier string) error

	// HeadRestore reports the current thaw state of an object.
	HeadRestore(ctx context.Context, loc Locator) (RestoreStatus, error)

	// Download fetches an object into a local file.
	Download(ctx context.Context, loc Locator, localPath string) error
}

// Options carries the settings a Client needs. BaseEndpoint is optional and
// selects a VPC or S3-compatible endpoint; empty credentials fall back to
// the default AWS chain.
type Options struct {
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
	Bucket       string
	StorageClass types.StorageClass
}

// Hooks for tests, mirroring how the AWS wiring is injected elsewhere in
// this codebase.
var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

type Client struct {
	s3           *s3.Client
	uploader     *manager.Uploader
	downloader   *manager.Downloader
	bucket       string
	storageClass types.StorageClass
}

var _ Store = (*Client)(nil)

// New builds a Client from Options. Initialization failure is fatal to a
// run, so errors here are returned unclassified.
func New(ctx context.Context, opts Options) (*Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}

	cfg, err := loadDefaultAWSConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if opts.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(opts.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return &Client{
		s3:           client,
		uploader:     manager.NewUploader(client),
		downloader:   manager.NewDownloader(client),
		bucket:       opts.Bucket,
		storageClass: opts.StorageClass,
	}, nil
}

func (c *Client) Upload(ctx context.Context, localPath, key string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return classify(err)
	}
	defer file.Close()

	_, err = c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(c.bucket),
		Key:          aws.String(key),
		Body:         file,
		StorageClass: c.storageClass,
	})
	return classify(err)
}

func (c *Client) Restore(ctx context.Context, loc Locator, days int32, tier string) error {
	_, err := c.s3.RestoreObject(ctx, &s3.RestoreObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
		RestoreRequest: &types.RestoreRequest{
			Days: aws.Int32(days),
			GlacierJobParameters: &types.GlacierJobParameters{
				Tier: types.Tier(tier),
			},
		},
	})
	return classify(err)
}

func (c *Client) HeadRestore(ctx context.Context, loc Locator) (RestoreStatus, error) {
	out, err := c.s3.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		return RestoreStatus{}, classify(err)
	}
	return parseRestoreHeader(out.Restore), nil
}

func (c *Client) Download(ctx context.Context, loc Locator, localPath string) error {
	file, err := os.Create(localPath)
	if err != nil {
		return classify(err)
	}
	defer file.Close()

	_, err = c.downloader.Download(ctx, file, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	return classify(err)
}

// NormalizeStorageClass maps configured storage-class names onto SDK values.
// GLACIER_DEEP_ARCHIVE is a legacy alias seen in old config files; unknown
// names degrade to STANDARD rather than failing the run.
func NormalizeStorageClass(name string) types.StorageClass {
	switch name {
	case "GLACIER_DEEP_ARCHIVE":
		return types.StorageClassDeepArchive
	case "STANDARD", "STANDARD_IA", "GLACIER", "DEEP_ARCHIVE":
		return types.StorageClass(name)
	default:
		return types.StorageClassStandard
	}
}
