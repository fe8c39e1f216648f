package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/routine/internal/apperr"
	"github.com/Nixie-Tech-LLC/routine/internal/model"
)

// version metadata, sent as x-amz-meta-version
const versionMetaKey = "Version"

// SpacesSource reads routine documents from a DigitalOcean Spaces (S3
// compatible) bucket.
type SpacesSource struct {
	client s3iface.S3API
	bucket string
}

func NewSpacesSource(endpoint, region, bucket, accessKey, secretKey string) (*SpacesSource, error) {
	config := &aws.Config{
		Credentials:      credentials.NewStaticCredentials(accessKey, secretKey, ""),
		Endpoint:         aws.String(endpoint),
		Region:           aws.String(region),
		S3ForcePathStyle: aws.Bool(false),
	}

	sess, err := session.NewSession(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &SpacesSource{client: s3.New(sess), bucket: bucket}, nil
}

func classifyS3(op string, err error) error {
	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) && reqErr.StatusCode() == http.StatusNotFound {
		return apperr.Wrap(apperr.DataNotFound, op, err)
	}
	var awsErr awserr.Error
	if errors.As(err, &awsErr) {
		switch awsErr.Code() {
		case s3.ErrCodeNoSuchKey, s3.ErrCodeNoSuchBucket, "NotFound":
			return apperr.Wrap(apperr.DataNotFound, op, err)
		}
	}
	return apperr.Wrap(apperr.Network, op, err)
}

func (ss *SpacesSource) get(ctx context.Context, op, key string) ([]byte, error) {
	out, err := ss.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(ss.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classifyS3(op, err)
	}
	defer func() { _ = out.Body.Close() }()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, apperr.Wrap(apperr.Network, op, err)
	}
	return body, nil
}

func (ss *SpacesSource) put(ctx context.Context, key string, v any, metadata map[string]*string) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	_, err = ss.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(ss.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		ACL:         aws.String("private"),
		Metadata:    metadata,
	})
	return err
}

// FetchVersion reads the version from object metadata and falls back to
// decoding the document when the metadata is absent.
func (ss *SpacesSource) FetchVersion(ctx context.Context, department string) (model.VersionInfo, error) {
	const op = "storage.spaces.FetchVersion"
	key := documentKey(department)

	head, err := ss.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(ss.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return model.VersionInfo{}, classifyS3(op, err)
	}

	if raw := aws.StringValue(head.Metadata[versionMetaKey]); raw != "" {
		version, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return model.VersionInfo{}, apperr.Wrap(apperr.DataParsing, op, err)
		}
		info := model.VersionInfo{Department: department, Version: version}
		if head.LastModified != nil {
			info.UpdatedAt = head.LastModified.UnixMilli()
		}
		return info, nil
	}

	log.Debug().Str("key", key).Msg("no version metadata, reading document")
	body, err := ss.get(ctx, op, key)
	if err != nil {
		return model.VersionInfo{}, err
	}
	return decodeVersion(op, department, body)
}

func (ss *SpacesSource) FetchDocument(ctx context.Context, department string) (*model.RemoteDocument, error) {
	const op = "storage.spaces.FetchDocument"
	body, err := ss.get(ctx, op, documentKey(department))
	if err != nil {
		return nil, err
	}
	return decodeDocument(op, body)
}

func (ss *SpacesSource) FetchCourseNames(ctx context.Context, department string) (map[string]string, error) {
	const op = "storage.spaces.FetchCourseNames"
	body, err := ss.get(ctx, op, coursesKey(department))
	if err != nil {
		return nil, err
	}
	return decodeCourses(op, body)
}

func (ss *SpacesSource) Publish(ctx context.Context, doc model.RemoteDocument) error {
	key := documentKey(doc.Department)
	meta := map[string]*string{versionMetaKey: aws.String(strconv.FormatInt(doc.Version, 10))}
	if err := ss.put(ctx, key, doc, meta); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to upload routine to Spaces")
		return classifyS3("storage.spaces.Publish", err)
	}
	return nil
}

func (ss *SpacesSource) SaveCourseNames(ctx context.Context, department string, names map[string]string) error {
	if err := ss.put(ctx, coursesKey(department), names, nil); err != nil {
		return classifyS3("storage.spaces.SaveCourseNames", err)
	}
	return nil
}
