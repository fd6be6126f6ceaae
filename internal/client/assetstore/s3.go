package assetstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/offlinesync/internal/client/models"
	"github.com/dmitrijs2005/offlinesync/internal/common"
)

type S3Config struct {
	Bucket       string
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
}

const (
	metaSourceURL = "source-url"
	metaFetchedAt = "fetched-at"
)

var (
	loadDefaultAWSConfig  = config.LoadDefaultConfig
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// S3Store keeps assets as objects named by the sha256 of their url.
type S3Store struct {
	client *s3.Client
	bucket string
}

func NewS3Store(ctx context.Context, c S3Config) (*S3Store, error) {
	if c.Bucket == "" {
		return nil, errors.New("s3 asset store needs a bucket")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(c.Region)}
	if c.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, ""),
		))
	}
	cfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if c.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(c.BaseEndpoint)
			o.UsePathStyle = true
			// S3-compatible servers often reject flexible checksums
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
			o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		}
	})
	return &S3Store{client: client, bucket: c.Bucket}, nil
}

func objectKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return "assets/" + hex.EncodeToString(sum[:])
}

func (s *S3Store) Put(ctx context.Context, a *models.Asset) error {
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(a.URL)),
		Body:   bytes.NewReader(a.Body),
		Metadata: map[string]string{
			metaSourceURL: a.URL,
			metaFetchedAt: strconv.FormatInt(a.FetchedAt.UnixMilli(), 10),
		},
	}
	if a.ContentType != "" {
		in.ContentType = aws.String(a.ContentType)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return fmt.Errorf("failed to put asset %s: %w", a.URL, err)
	}
	return nil
}

func (s *S3Store) Get(ctx context.Context, url string) (*models.Asset, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(url)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to get asset %s: %w", url, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read asset %s: %w", url, err)
	}

	a := &models.Asset{URL: url, Body: body, ContentType: aws.ToString(out.ContentType)}
	if ms, err := strconv.ParseInt(out.Metadata[metaFetchedAt], 10, 64); err == nil {
		a.FetchedAt = time.UnixMilli(ms).UTC()
	}
	return a, nil
}

func (s *S3Store) Has(ctx context.Context, url string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(url)),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check asset %s: %w", url, err)
	}
	return true, nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}
