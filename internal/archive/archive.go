// Package archive writes produced envelopes to S3-compatible storage for
// audit. Like the cache, it is best-effort: a missing or failing archive
// never affects the pipeline result.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"brand-video-analyzer/internal"
	"brand-video-analyzer/internal/cache"
	"brand-video-analyzer/internal/logging"
	"brand-video-analyzer/internal/model"
)

type Archive struct {
	bucket string
	prefix string
	upl    *manager.Uploader
	log    *logging.Logger
}

func New(cfg internal.Config, log *logging.Logger) (*Archive, error) {
	endpoint := cfg.S3Endpoint
	forcePathStyle := !strings.Contains(endpoint, "amazonaws.com")

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")),
	)
	if err != nil {
		return nil, err
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		o.UsePathStyle = forcePathStyle
		o.BaseEndpoint = &endpoint
	})

	return &Archive{
		bucket: cfg.S3Bucket,
		prefix: cfg.ArchivePrefix,
		upl:    manager.NewUploader(client),
		log:    log,
	}, nil
}

// Put stores the envelope under {prefix}{source}/{brand_norm}.json.
func (a *Archive) Put(ctx context.Context, sourceID, brand string, env *model.Envelope) {
	if a == nil {
		return
	}
	b, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		a.log.Warnf("archive: marshal envelope: %v", err)
		return
	}
	key := a.prefix + sourceID + "/" + cache.NormalizeBrand(brand) + ".json"
	contentType := "application/json"
	_, err = a.upl.Upload(ctx, &awss3.PutObjectInput{
		Bucket:      &a.bucket,
		Key:         &key,
		Body:        bytes.NewReader(b),
		ContentType: &contentType,
	})
	if err != nil {
		a.log.Warnf("archive: put %s: %v", key, err)
		return
	}
	a.log.Infof("archive: stored %s", key)
}
