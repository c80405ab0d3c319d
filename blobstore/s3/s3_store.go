package s3

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/hupe1980/tindex/blobstore"
)

// ErrConflict is returned by PutIfNotExists when the object already exists.
var ErrConflict = errors.New("object already exists")

// Store implements blobstore.Store for S3.
type Store struct {
	client   Client
	bucket   string
	prefix   string
	upload   UploadConfig
	uploader *manager.Uploader
}

var _ blobstore.Store = (*Store)(nil)

type settings struct {
	prefix  string
	region  string
	upload  UploadConfig
	loadOpt []func(*config.LoadOptions) error
}

// Option configures a Store.
type Option func(*settings)

// WithPrefix sets the key prefix prepended to every blob name.
func WithPrefix(prefix string) Option {
	return func(s *settings) { s.prefix = prefix }
}

// WithRegion sets the AWS region used by New.
func WithRegion(region string) Option {
	return func(s *settings) { s.region = region }
}

// WithUploadConfig overrides the multipart upload settings.
func WithUploadConfig(cfg UploadConfig) Option {
	return func(s *settings) { s.upload = cfg }
}

// WithLoadOptions passes extra options to config.LoadDefaultConfig.
func WithLoadOptions(opts ...func(*config.LoadOptions) error) Option {
	return func(s *settings) { s.loadOpt = append(s.loadOpt, opts...) }
}

// New creates a store for bucket using the default AWS credential chain.
func New(ctx context.Context, bucket string, opts ...Option) (*Store, error) {
	st := settings{upload: DefaultUploadConfig()}
	for _, o := range opts {
		o(&st)
	}
	cfg, err := st.load(ctx)
	if err != nil {
		return nil, err
	}
	return newStore(s3.NewFromConfig(cfg), bucket, st), nil
}

// NewCommitStore creates a store for bucket whose CURRENT pointer lives in
// the DynamoDB table. Both clients share the default AWS credential chain.
func NewCommitStore(ctx context.Context, bucket, table string, opts ...Option) (*DDBCommitStore, error) {
	if table == "" {
		return nil, errors.New("s3: commit table is required")
	}
	st := settings{upload: DefaultUploadConfig()}
	for _, o := range opts {
		o(&st)
	}
	cfg, err := st.load(ctx)
	if err != nil {
		return nil, err
	}
	store := newStore(s3.NewFromConfig(cfg), bucket, st)
	baseURI := "s3://" + bucket
	if store.prefix != "" {
		baseURI += "/" + store.prefix
	}
	return NewDDBCommitStore(store, dynamodb.NewFromConfig(cfg), table, baseURI), nil
}

func (st settings) load(ctx context.Context) (aws.Config, error) {
	loadOpts := st.loadOpt
	if st.region != "" {
		loadOpts = append(loadOpts, config.WithRegion(st.region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("s3: load aws config: %w", err)
	}
	return cfg, nil
}

// NewStore creates a store on an existing client.
// rootPrefix is prepended to all keys (e.g. "backups/").
func NewStore(client Client, bucket, rootPrefix string, opts ...Option) *Store {
	st := settings{prefix: rootPrefix, upload: DefaultUploadConfig()}
	for _, o := range opts {
		o(&st)
	}
	return newStore(client, bucket, st)
}

func newStore(client Client, bucket string, st settings) *Store {
	return &Store{
		client:   client,
		bucket:   bucket,
		prefix:   strings.Trim(st.prefix, "/"),
		upload:   st.upload,
		uploader: newUploader(client, st.upload),
	}
}

func (s *Store) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// Open opens a blob for reading.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	return openBlob(ctx, s.client, s.bucket, s.key(name))
}

// Create starts a streaming multipart upload.
func (s *Store) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return newStreamingWritableBlob(ctx, s.uploader, s.bucket, s.key(name), s.upload.EnableChecksum), nil
}

// Put writes a blob in one request.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	return putObject(ctx, s.client, s.bucket, s.key(name), data, s.upload.EnableChecksum, false)
}

// PutIfNotExists writes a blob only if it does not exist yet.
// Returns ErrConflict if the key already exists.
func (s *Store) PutIfNotExists(ctx context.Context, name string, data []byte) error {
	err := putObject(ctx, s.client, s.bucket, s.key(name), data, s.upload.EnableChecksum, true)
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case "PreconditionFailed", "ConditionalRequestConflict":
				return ErrConflict
			}
		}
		return err
	}
	return nil
}

// Delete removes a blob.
func (s *Store) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil && isNotFound(err) {
		return nil
	}
	return err
}

// List returns all blob names with the given prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	full := prefix
	if s.prefix != "" {
		full = s.prefix + "/" + prefix
	}
	return listObjects(ctx, s.client, s.bucket, full, s.prefix)
}
