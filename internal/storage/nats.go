package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSStore implements Store using a NATS JetStream object store bucket.
type NATSStore struct {
	conn  *nats.Conn
	store jetstream.ObjectStore
}

var _ Store = (*NATSStore)(nil)

// NewNATSStore connects to natsURL and opens bucket, creating it if missing.
func NewNATSStore(ctx context.Context, natsURL, bucket string) (*NATSStore, error) {
	conn, err := nats.Connect(natsURL, nats.Name("taskboard"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	store, err := js.ObjectStore(ctx, bucket)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		store, err = js.CreateObjectStore(ctx, jetstream.ObjectStoreConfig{
			Bucket:      bucket,
			Description: "Task attachments",
			Storage:     jetstream.FileStorage,
		})
	}
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open object store bucket: %w", err)
	}

	return &NATSStore{conn: conn, store: store}, nil
}

func contentTypeHeader(headers nats.Header, key string) string {
	if headers != nil {
		if ct := headers.Get("Content-Type"); ct != "" {
			return ct
		}
	}
	return ContentTypeFor(key)
}

func (s *NATSStore) Put(ctx context.Context, key string, r io.Reader, _ int64, contentType string) (*Object, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	meta := jetstream.ObjectMeta{
		Name: key,
		Headers: nats.Header{
			"Content-Type": []string{contentType},
		},
	}

	info, err := s.store.Put(ctx, meta, r)
	if err != nil {
		return nil, fmt.Errorf("failed to store object: %w", err)
	}

	return &Object{
		Key:         info.Name,
		Size:        int64(info.Size),
		ContentType: contentType,
		ModTime:     info.ModTime,
	}, nil
}

func (s *NATSStore) Get(ctx context.Context, key string) (io.ReadCloser, *Object, error) {
	if err := ValidateKey(key); err != nil {
		return nil, nil, err
	}
	result, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrObjectNotFound) {
			return nil, nil, ErrObjectNotFound
		}
		return nil, nil, fmt.Errorf("failed to get object: %w", err)
	}

	info, err := result.Info()
	if err != nil {
		result.Close()
		return nil, nil, fmt.Errorf("failed to get object info: %w", err)
	}

	return result, &Object{
		Key:         info.Name,
		Size:        int64(info.Size),
		ContentType: contentTypeHeader(info.Headers, key),
		ModTime:     info.ModTime,
	}, nil
}

func (s *NATSStore) Delete(ctx context.Context, key string) error {
	if err := s.store.Delete(ctx, key); err != nil {
		if errors.Is(err, jetstream.ErrObjectNotFound) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// Close closes the NATS connection.
func (s *NATSStore) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	return nil
}
