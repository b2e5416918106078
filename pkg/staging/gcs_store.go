package staging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/shouni/go-remote-io/pkg/remoteio"
	"github.com/shouni/tryon-kit/pkg/domain"
)

// GCSStore は Cloud Storage のバケットにステージングします。
// オブジェクトは Writer の Close 完了時点で初めて可視になるため、書き込み途中の内容は読まれません。
type GCSStore struct {
	client *storage.Client
	reader remoteio.InputReader
	bucket string
	prefix string
}

// NewGCSStore は依存関係を注入して GCSStore を初期化します。
func NewGCSStore(client *storage.Client, bucket, prefix string) (*GCSStore, error) {
	if client == nil {
		return nil, fmt.Errorf("client (storage.Client) is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	return &GCSStore{
		client: client,
		reader: remoteio.NewUniversalInputReader(client, nil),
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

// Stage はオブジェクトを新規作成します。同名オブジェクトが既にあれば失敗させます。
// 事前条件を付けるため、書き込みは storage の Writer を直接使います。
func (s *GCSStore) Stage(ctx context.Context, data []byte, ext string) (string, error) {
	name, err := objectName(ext)
	if err != nil {
		return "", err
	}
	key := path.Join(s.prefix, name)
	e, _ := domain.ParseExtension(ext)

	obj := s.client.Bucket(s.bucket).Object(key).If(storage.Conditions{DoesNotExist: true})
	w := obj.NewWriter(ctx)
	w.ContentType = e.MimeType()
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", ioFailure("stage", err)
	}
	if err := w.Close(); err != nil {
		return "", ioFailure("stage", err)
	}
	return "gs://" + s.bucket + "/" + key, nil
}

// Open はオブジェクトの Reader を返します。
func (s *GCSStore) Open(ctx context.Context, handle string) (io.ReadCloser, error) {
	if _, err := s.objectKey(handle); err != nil {
		return nil, err
	}
	rc, err := s.reader.Open(ctx, handle)
	if err != nil {
		return nil, ioFailure("open", err)
	}
	return rc, nil
}

// Remove はオブジェクトを削除します。
func (s *GCSStore) Remove(ctx context.Context, handle string) error {
	key, err := s.objectKey(handle)
	if err != nil {
		return err
	}
	if err := s.client.Bucket(s.bucket).Object(key).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return ioFailure("remove", err)
	}
	return nil
}

func (s *GCSStore) objectKey(handle string) (string, error) {
	bucket, key, err := parseGCSHandle(handle)
	if err != nil {
		return "", ioFailure("resolve", err)
	}
	if bucket != s.bucket {
		return "", ioFailure("resolve", fmt.Errorf("handle %q belongs to bucket %q", handle, bucket))
	}
	return key, nil
}

// parseGCSHandle は "gs://bucket/key" をバケットとキーに分解します。キーのないハンドルは拒否します。
func parseGCSHandle(handle string) (bucket, key string, err error) {
	bucket, key, err = remoteio.ParseGCSURI(handle)
	if err != nil {
		return "", "", err
	}
	if key == "" {
		return "", "", fmt.Errorf("malformed gs:// handle: %q", handle)
	}
	return bucket, key, nil
}
