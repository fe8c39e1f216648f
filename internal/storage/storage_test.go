package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/routine/internal/apperr"
	"github.com/Nixie-Tech-LLC/routine/internal/model"
)

func sampleDoc(version int64) model.RemoteDocument {
	return model.RemoteDocument{
		ID:         "cse-fall-25",
		Semester:   "Fall 2025",
		Department: "CSE",
		Version:    version,
		UpdatedAt:  version,
		Schedule: []model.RemoteEntry{
			{Day: "Sunday", Time: "08:00 AM - 09:15 AM", Room: "601", CourseCode: "CSE101", Batch: "50", Section: "A"},
		},
	}
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "CSE", normalizeName("CSE"))
	assert.Equal(t, "Civil_Eng", normalizeName(" Civil Eng "))
	assert.Equal(t, "EEE", normalizeName("../EEE"))
	assert.Equal(t, "department", normalizeName("//"))
	assert.Equal(t, "routines/CSE.courses.json", coursesKey("CSE"))
}

func TestLocalSource(t *testing.T) {
	dir := t.TempDir()
	src := NewLocalSource(dir)
	ctx := context.Background()

	_, err := src.FetchDocument(ctx, "CSE")
	assert.Equal(t, apperr.DataNotFound, apperr.KindOf(err))
	_, err = src.FetchVersion(ctx, "CSE")
	assert.Equal(t, apperr.DataNotFound, apperr.KindOf(err))

	doc := sampleDoc(100)
	require.NoError(t, src.Publish(ctx, doc))

	info, err := src.FetchVersion(ctx, "CSE")
	require.NoError(t, err)
	assert.Equal(t, int64(100), info.Version)
	assert.Equal(t, "CSE", info.Department)

	got, err := src.FetchDocument(ctx, "CSE")
	require.NoError(t, err)
	assert.Equal(t, doc, *got)

	require.NoError(t, src.SaveCourseNames(ctx, "CSE", map[string]string{"CSE101": "Structured Programming"}))
	names, err := src.FetchCourseNames(ctx, "CSE")
	require.NoError(t, err)
	assert.Equal(t, "Structured Programming", names["CSE101"])

	// no temp files are left behind
	files, err := os.ReadDir(filepath.Join(dir, "routines"))
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestLocalSourceMalformedDocument(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "routines"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "routines", "CSE.json"), []byte(`{"version": "soon"`), 0644))

	_, err := NewLocalSource(dir).FetchDocument(context.Background(), "CSE")
	assert.Equal(t, apperr.DataParsing, apperr.KindOf(err))
}

type fakeS3 struct {
	s3iface.S3API
	objects  map[string][]byte
	metadata map[string]map[string]*string
	failWith error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, metadata: map[string]map[string]*string{}}
}

func notFound() error {
	return awserr.NewRequestFailure(awserr.New("NotFound", "not found", nil), 404, "req-1")
}

func (f *fakeS3) HeadObjectWithContext(_ aws.Context, in *s3.HeadObjectInput, _ ...request.Option) (*s3.HeadObjectOutput, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	if _, ok := f.objects[*in.Key]; !ok {
		return nil, notFound()
	}
	return &s3.HeadObjectOutput{Metadata: f.metadata[*in.Key]}, nil
}

func (f *fakeS3) GetObjectWithContext(_ aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	body, ok := f.objects[*in.Key]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "no such key", nil)
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func (f *fakeS3) PutObjectWithContext(_ aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Key] = body
	f.metadata[*in.Key] = in.Metadata
	return &s3.PutObjectOutput{}, nil
}

func TestSpacesSource(t *testing.T) {
	fake := newFakeS3()
	src := &SpacesSource{client: fake, bucket: "campus"}
	ctx := context.Background()

	_, err := src.FetchVersion(ctx, "CSE")
	assert.Equal(t, apperr.DataNotFound, apperr.KindOf(err))
	_, err = src.FetchDocument(ctx, "CSE")
	assert.Equal(t, apperr.DataNotFound, apperr.KindOf(err))

	doc := sampleDoc(200)
	require.NoError(t, src.Publish(ctx, doc))
	assert.Equal(t, "200", aws.StringValue(fake.metadata["routines/CSE.json"][versionMetaKey]))

	info, err := src.FetchVersion(ctx, "CSE")
	require.NoError(t, err)
	assert.Equal(t, int64(200), info.Version)

	got, err := src.FetchDocument(ctx, "CSE")
	require.NoError(t, err)
	assert.Equal(t, doc, *got)
}

func TestSpacesSourceVersionFallsBackToBody(t *testing.T) {
	fake := newFakeS3()
	fake.objects["routines/EEE.json"] = []byte(`{"department":"EEE","version":42,"updatedAt":7,"schedule":[]}`)
	src := &SpacesSource{client: fake, bucket: "campus"}

	info, err := src.FetchVersion(context.Background(), "EEE")
	require.NoError(t, err)
	assert.Equal(t, int64(42), info.Version)
	assert.Equal(t, int64(7), info.UpdatedAt)
}

func TestSpacesSourceNetworkError(t *testing.T) {
	fake := newFakeS3()
	fake.failWith = awserr.New("RequestError", "send request failed", nil)
	src := &SpacesSource{client: fake, bucket: "campus"}

	_, err := src.FetchDocument(context.Background(), "CSE")
	assert.Equal(t, apperr.Network, apperr.KindOf(err))
	assert.Equal(t, apperr.Network, apperr.KindOf(src.Publish(context.Background(), sampleDoc(1))))
}
