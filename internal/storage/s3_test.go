package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeS3 is an in-memory s3API.
type fakeS3 struct {
	objects     map[string][]byte
	contentType map[string]string
	getErr      error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, contentType: map[string]string{}}
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	b, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{Message: aws.String("The specified key does not exist.")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	k := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.objects[k] = b
	f.contentType[k] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func TestS3_PutThenFetch(t *testing.T) {
	fake := newFakeS3()
	st := NewS3(fake, "vizor-client")
	ctx := context.Background()

	if err := st.Put(ctx, "acme/2025-03-04/m.json", []byte("{}")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if ct := fake.contentType["vizor-client/acme/2025-03-04/m.json"]; ct != "application/json" {
		t.Errorf("content type = %q, want application/json", ct)
	}
	got, err := st.Fetch(ctx, "acme/2025-03-04/m.json")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(got) != "{}" {
		t.Errorf("Fetch = %s", got)
	}
}

func TestS3_NoSuchKeyIsNotFound(t *testing.T) {
	st := NewS3(newFakeS3(), "b")
	_, err := st.Fetch(context.Background(), "missing.csv")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestS3_OtherErrorsWrapped(t *testing.T) {
	fake := newFakeS3()
	boom := errors.New("access denied")
	fake.getErr = boom
	_, err := NewS3(fake, "b").Fetch(context.Background(), "k")
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapping %v", err, boom)
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("access error must not be reported as not found")
	}
}

func TestNewS3FromEnv_RequiresBucket(t *testing.T) {
	if _, err := NewS3FromEnv(context.Background(), "", "us-east-1", ""); err == nil {
		t.Error("expected error for empty bucket")
	}
}
