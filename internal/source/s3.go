package source

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Source lists and fetches state extracts dropped into an S3 bucket.
// Keys under processed/ are skipped; states publish extracts at the prefix
// and an operator moves them after a successful import.
type S3Source struct {
	client *s3.Client
	bucket string
	prefix string
}

// S3Config holds the bucket settings for an extract drop zone.
type S3Config struct {
	Bucket     string
	Region     string
	Prefix     string
	AWSProfile string
}

// NewS3Source builds an extract source over an S3 bucket.
func NewS3Source(ctx context.Context, cfg S3Config) (*S3Source, error) {
	var awsCfg aws.Config
	var err error
	if cfg.AWSProfile != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Region),
			awsconfig.WithSharedConfigProfile(cfg.AWSProfile),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &S3Source{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// List returns the keys of pending extract files in the drop zone.
func (s *S3Source) List(ctx context.Context) ([]string, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})

	var keys []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list extracts: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if obj.Size == nil || *obj.Size == 0 {
				continue
			}
			if strings.HasPrefix(key, "processed/") {
				continue
			}
			lower := strings.ToLower(key)
			if !strings.HasSuffix(lower, ".csv") && !strings.HasSuffix(lower, ".txt") {
				continue
			}
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Fetch opens one extract for streaming. The caller closes the body.
func (s *S3Source) Fetch(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("fetch extract %s: %w", key, err)
	}
	return out.Body, nil
}
