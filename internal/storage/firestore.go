package storage

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/dgellow/popauth/internal/log"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var _ Backend = (*FirestoreBackend)(nil)

// FirestoreBackend stores key/value pairs as documents in a Firestore
// collection, one document per key. It lets several machines share the
// same persisted login state.
type FirestoreBackend struct {
	client     *firestore.Client
	projectID  string
	collection string
}

// kvDoc represents a stored entry in Firestore
type kvDoc struct {
	Key       string    `firestore:"key"`
	Value     string    `firestore:"value"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

// NewFirestoreBackend creates a new Firestore backend
func NewFirestoreBackend(ctx context.Context, projectID, database, collection string) (*FirestoreBackend, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required")
	}
	if collection == "" {
		return nil, fmt.Errorf("collection is required")
	}

	var client *firestore.Client
	var err error

	if database != "" && database != "(default)" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, database)
	} else {
		client, err = firestore.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	log.LogInfoWithFields("storage", "Using Firestore backend", map[string]any{
		"project":    projectID,
		"database":   database,
		"collection": collection,
	})

	return &FirestoreBackend{
		client:     client,
		projectID:  projectID,
		collection: collection,
	}, nil
}

// docID maps an arbitrary key to a valid document ID. Keys may contain "/".
func docID(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

func (f *FirestoreBackend) Get(ctx context.Context, key string) (string, error) {
	doc, err := f.client.Collection(f.collection).Doc(docID(key)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get key from Firestore: %w", err)
	}

	var entry kvDoc
	if err := doc.DataTo(&entry); err != nil {
		return "", fmt.Errorf("failed to unmarshal entry: %w", err)
	}
	return entry.Value, nil
}

func (f *FirestoreBackend) Set(ctx context.Context, key, value string) error {
	entry := kvDoc{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	if _, err := f.client.Collection(f.collection).Doc(docID(key)).Set(ctx, entry); err != nil {
		return fmt.Errorf("failed to store key in Firestore: %w", err)
	}
	return nil
}

func (f *FirestoreBackend) Delete(ctx context.Context, key string) error {
	_, err := f.client.Collection(f.collection).Doc(docID(key)).Delete(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("failed to delete key from Firestore: %w", err)
	}
	return nil
}

func (f *FirestoreBackend) Keys(ctx context.Context) ([]string, error) {
	iter := f.client.Collection(f.collection).Documents(ctx)
	defer iter.Stop()

	var keys []string
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating Firestore documents: %w", err)
		}

		var entry kvDoc
		if err := doc.DataTo(&entry); err != nil {
			log.LogError("Failed to unmarshal entry from Firestore (doc_id: %s): %v", doc.Ref.ID, err)
			continue
		}
		keys = append(keys, entry.Key)
	}
	return keys, nil
}

// Close closes the Firestore client
func (f *FirestoreBackend) Close() error {
	return f.client.Close()
}
