package adapters

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"

	"autobuild/internal/ports"
	"autobuild/internal/types"
)

const (
	uploaderLoginKey = "Uploader-Login"
	uploaderTypeKey  = "Uploader-Type"
	amzMetaPrefix    = "X-Amz-Meta-"
	defaultS3Region  = "us-east-1"
)

type S3StoreOptions struct {
	Endpoint       string
	Region         string
	AccessKey      string
	SecretKey      string
	Bucket         string
	UseSSL         bool
	Identity       types.Identity
	Trusted        types.Identity
	PublishEnabled bool
}

// S3StoreAdapter keeps artifacts as objects keyed <channel>/<name> in one
// bucket. The uploading identity travels in the object's user metadata so
// listings can be checked the same way as release assets.
type S3StoreAdapter struct {
	client         *minio.Client
	bucket         string
	region         string
	identity       types.Identity
	trusted        types.Identity
	publishEnabled bool
	initOnce       sync.Once
	initErr        error
}

func NewS3StoreAdapter(opts S3StoreOptions) (*S3StoreAdapter, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("s3 endpoint is required")
	}
	access := strings.TrimSpace(opts.AccessKey)
	secret := strings.TrimSpace(opts.SecretKey)
	if access == "" || secret == "" {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(opts.Bucket)
	if bucket == "" {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("s3 bucket is required")
	}
	region := strings.TrimSpace(opts.Region)
	if region == "" {
		region = defaultS3Region
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: opts.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to init s3 client").
			WithCause(err)
	}
	trusted := opts.Trusted
	if trusted.Login == "" && trusted.Type == "" {
		trusted = DefaultTrustedIdentity
	}
	identity := opts.Identity
	if identity.Login == "" && identity.Type == "" {
		identity = trusted
	}
	return &S3StoreAdapter{
		client:         client,
		bucket:         bucket,
		region:         region,
		identity:       identity,
		trusted:        trusted,
		publishEnabled: opts.PublishEnabled,
	}, nil
}

func (s *S3StoreAdapter) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
	})
	if s.initErr != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to ensure bucket %s", s.bucket)).
			WithCause(s.initErr)
	}
	return nil
}

func (s *S3StoreAdapter) List(ctx context.Context, channel types.Channel) ([]types.Asset, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	prefix := string(channel) + "/"
	var assets []types.Asset
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:       prefix,
		Recursive:    true,
		WithMetadata: true,
	}) {
		if obj.Err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg(fmt.Sprintf("failed to list %s", channel)).
				WithCause(obj.Err)
		}
		if obj.Key == "" || strings.HasSuffix(obj.Key, "/") {
			continue
		}
		metadata := map[string]string(obj.UserMetadata)
		if metaValue(metadata, uploaderLoginKey) == "" {
			stat, err := s.client.StatObject(ctx, s.bucket, obj.Key, minio.StatObjectOptions{})
			if err != nil {
				return nil, errbuilder.New().
					WithCode(errbuilder.CodeInternal).
					WithMsg(fmt.Sprintf("failed to stat %s", obj.Key)).
					WithCause(err)
			}
			metadata = map[string]string(stat.UserMetadata)
		}
		asset := types.Asset{
			ID:          obj.Key,
			Name:        strings.TrimPrefix(obj.Key, prefix),
			Size:        obj.Size,
			Channel:     channel,
			Uploader:    types.Identity{Login: metaValue(metadata, uploaderLoginKey), Type: metaValue(metadata, uploaderTypeKey)},
			DownloadURL: fmt.Sprintf("s3://%s/%s", s.bucket, obj.Key),
			CreatedAt:   obj.LastModified.UTC(),
			UpdatedAt:   obj.LastModified.UTC(),
		}
		if !asset.Uploader.Equal(s.trusted) {
			return nil, untrustedAssetError(asset, s.trusted)
		}
		assets = append(assets, asset)
	}
	log.Ctx(ctx).Debug().Str("channel", string(channel)).Int("assets", len(assets)).Msg("bucket objects listed")
	return assets, nil
}

func (s *S3StoreAdapter) Download(ctx context.Context, asset types.Asset, destPath string) error {
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, s.key(asset), minio.GetObjectOptions{})
	if err != nil {
		return s.objectError(err, asset.Name)
	}
	defer obj.Close()
	if _, err := obj.Stat(); err != nil {
		return s.objectError(err, asset.Name)
	}
	return writeStream(destPath, obj)
}

func (s *S3StoreAdapter) Upload(ctx context.Context, channel types.Channel, filePath string, replace bool) error {
	name := filepath.Base(filePath)
	if !s.publishEnabled {
		log.Ctx(ctx).Warn().Str("asset", name).Str("channel", string(channel)).Msg("upload skipped, publishing is disabled")
		return nil
	}
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}
	key := path.Join(string(channel), name)
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	switch {
	case err == nil && !replace:
		return errbuilder.New().
			WithCode(errbuilder.CodeAlreadyExists).
			WithMsg(fmt.Sprintf("asset %s already exists in %s", name, channel))
	case err == nil:
		if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
			return s.objectError(err, name)
		}
	case minio.ToErrorResponse(err).Code != "NoSuchKey":
		return s.objectError(err, name)
	}
	_, err = s.client.FPutObject(ctx, s.bucket, key, filePath, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
		UserMetadata: map[string]string{
			uploaderLoginKey: s.identity.Login,
			uploaderTypeKey:  s.identity.Type,
		},
	})
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to upload %s", name)).
			WithCause(err)
	}
	log.Ctx(ctx).Info().Str("asset", name).Str("channel", string(channel)).Msg("asset uploaded")
	return nil
}

func (s *S3StoreAdapter) Delete(ctx context.Context, asset types.Asset) error {
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, s.key(asset), minio.RemoveObjectOptions{}); err != nil {
		return s.objectError(err, asset.Name)
	}
	log.Ctx(ctx).Info().Str("asset", asset.Name).Msg("asset deleted")
	return nil
}

func (s *S3StoreAdapter) Trigger(context.Context, string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg("the s3 store backend cannot trigger builds")
}

func (s *S3StoreAdapter) key(asset types.Asset) string {
	if asset.ID != "" {
		return asset.ID
	}
	return path.Join(string(asset.Channel), asset.Name)
}

func (s *S3StoreAdapter) objectError(err error, name string) error {
	code := errbuilder.CodeInternal
	if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
		code = errbuilder.CodeNotFound
	}
	return errbuilder.New().
		WithCode(code).
		WithMsg(fmt.Sprintf("object request for %s failed", name)).
		WithCause(err)
}

// metaValue looks up user metadata regardless of header casing and of
// whether the server kept the amz prefix.
func metaValue(metadata map[string]string, key string) string {
	for candidate, value := range metadata {
		trimmed := candidate
		if len(trimmed) > len(amzMetaPrefix) && strings.EqualFold(trimmed[:len(amzMetaPrefix)], amzMetaPrefix) {
			trimmed = trimmed[len(amzMetaPrefix):]
		}
		if strings.EqualFold(trimmed, key) {
			return value
		}
	}
	return ""
}

var _ ports.ArtifactStorePort = (*S3StoreAdapter)(nil)
