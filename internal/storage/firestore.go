package storage

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/dgellow/cpa-front/internal/log"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var _ Store = (*FirestoreStore)(nil)

// FirestoreStore keeps one document per namespace in a Firestore collection, with
// the session values held in a "values" map field. Values are expected to arrive
// already encrypted (see Open), since the database lives outside the user's machine.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
	namespace  string
}

// FirestoreOptions configures NewFirestoreStore
type FirestoreOptions struct {
	ProjectID       string
	Database        string
	Collection      string
	Namespace       string
	CredentialsFile string
}

type sessionDoc struct {
	Values    map[string]string `firestore:"values"`
	UpdatedAt time.Time         `firestore:"updated_at"`
}

// NewFirestoreStore creates the Firestore client. FIRESTORE_EMULATOR_HOST is honoured
// by the client library.
func NewFirestoreStore(ctx context.Context, opts FirestoreOptions) (*FirestoreStore, error) {
	if opts.ProjectID == "" {
		return nil, fmt.Errorf("projectID is required")
	}
	if opts.Collection == "" {
		return nil, fmt.Errorf("collection is required")
	}
	if opts.Namespace == "" {
		opts.Namespace = DefaultNamespace
	}

	var clientOpts []option.ClientOption
	if opts.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}

	var client *firestore.Client
	var err error
	if opts.Database != "" && opts.Database != "(default)" {
		client, err = firestore.NewClientWithDatabase(ctx, opts.ProjectID, opts.Database, clientOpts...)
	} else {
		client, err = firestore.NewClient(ctx, opts.ProjectID, clientOpts...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	log.LogInfoWithFields("storage", "Connected to Firestore session store", map[string]any{
		"project":    opts.ProjectID,
		"database":   opts.Database,
		"collection": opts.Collection,
		"namespace":  opts.Namespace,
	})

	return &FirestoreStore{client: client, collection: opts.Collection, namespace: opts.Namespace}, nil
}

func (s *FirestoreStore) doc() *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(s.namespace)
}

func (s *FirestoreStore) Get(ctx context.Context, key string) (string, error) {
	snap, err := s.doc().Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get session from Firestore: %w", err)
	}

	var d sessionDoc
	if err := snap.DataTo(&d); err != nil {
		return "", fmt.Errorf("failed to unmarshal session document: %w", err)
	}
	v, ok := d.Values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *FirestoreStore) Set(ctx context.Context, key, value string) error {
	_, err := s.doc().Set(ctx, map[string]any{
		"values":     map[string]any{key: value},
		"updated_at": time.Now().UTC(),
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to store %s in Firestore: %w", key, err)
	}
	return nil
}

func (s *FirestoreStore) Delete(ctx context.Context, key string) error {
	_, err := s.doc().Update(ctx, []firestore.Update{
		{FieldPath: firestore.FieldPath{"values", key}, Value: firestore.Delete},
		{Path: "updated_at", Value: time.Now().UTC()},
	})
	if err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("failed to delete %s from Firestore: %w", key, err)
	}
	return nil
}

// Namespaces lists the session documents in the collection
func (s *FirestoreStore) Namespaces(ctx context.Context) ([]string, error) {
	iter := s.client.Collection(s.collection).Documents(ctx)
	defer iter.Stop()

	var out []string
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating Firestore documents: %w", err)
		}
		out = append(out, snap.Ref.ID)
	}
	return out, nil
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}
