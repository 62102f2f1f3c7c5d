package store

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"shopee-deal-bot/internal/models"
)

const (
	configCollection = "config"
	configDoc        = "affiliate"
	postedCollection = "posted"
)

// postedEntry is one history document. The document id doubles as the
// product id so Create gives exact-once append semantics.
type postedEntry struct {
	ProductID string    `firestore:"productId"`
	PostedAt  time.Time `firestore:"postedAt"`
}

// FirestoreStore persists state in Firestore: a single config document plus
// one document per posted product id.
type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(ctx context.Context, projectID string) (*FirestoreStore, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore.NewClient: %w", err)
	}
	return &FirestoreStore{client: client}, nil
}

var _ Store = (*FirestoreStore)(nil)

func (s *FirestoreStore) LoadConfig(ctx context.Context) (*models.AffiliateConfig, error) {
	doc, err := s.client.Collection(configCollection).Doc(configDoc).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load affiliate config: %w", err)
	}

	var cfg models.AffiliateConfig
	if err := doc.DataTo(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal affiliate config: %w", err)
	}
	return &cfg, nil
}

func (s *FirestoreStore) SaveConfig(ctx context.Context, cfg *models.AffiliateConfig) error {
	_, err := s.client.Collection(configCollection).Doc(configDoc).Set(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to save affiliate config: %w", err)
	}
	return nil
}

func (s *FirestoreStore) History(ctx context.Context) ([]string, error) {
	iter := s.client.Collection(postedCollection).
		OrderBy("postedAt", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var ids []string
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate posted history: %w", err)
		}
		ids = append(ids, doc.Ref.ID)
	}
	return ids, nil
}

func (s *FirestoreStore) AppendPosted(ctx context.Context, id string) error {
	entry := postedEntry{ProductID: id, PostedAt: time.Now().UTC()}
	// Create fails if the document already exists.
	_, err := s.client.Collection(postedCollection).Doc(id).Create(ctx, entry)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return fmt.Errorf("%w: %s", models.ErrAlreadyPosted, id)
		}
		return fmt.Errorf("failed to append posted id %s: %w", id, err)
	}
	return nil
}

func (s *FirestoreStore) IsPosted(ctx context.Context, id string) (bool, error) {
	_, err := s.client.Collection(postedCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, fmt.Errorf("failed to check posted id %s: %w", id, err)
	}
	return true, nil
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}
