package firestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tinywideclouds/go-interest-registry/pkg/registry"
)

const interestsCollection = "interests"

// FirestoreStore implements registry.Repository using Google Cloud Firestore.
// Store and Forget run in transactions, so concurrent writers are retried
// by Firestore rather than overwriting each other.
type FirestoreStore struct {
	client *firestore.Client
	logger *slog.Logger
}

var _ registry.Repository = (*FirestoreStore)(nil)

func NewFirestoreStore(client *firestore.Client, logger *slog.Logger) *FirestoreStore {
	return &FirestoreStore{
		client: client,
		logger: logger.With("component", "FirestoreStore"),
	}
}

// interestRecord is the internal DB representation.
// It can hold EITHER a single legacy token OR a list of tokens.
type interestRecord struct {
	Interest  string    `firestore:"interest"`
	Token     string    `firestore:"token,omitempty"`
	Tokens    []string  `firestore:"tokens"`
	Single    bool      `firestore:"single"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

func (rec interestRecord) value() registry.Tokens {
	if rec.Single {
		return registry.Single(rec.Token)
	}
	return registry.Many(rec.Tokens...)
}

func newRecord(interest string, value registry.Tokens) interestRecord {
	rec := interestRecord{Interest: interest, UpdatedAt: time.Now()}
	if value.IsSingle() {
		rec.Single = true
		rec.Token = value.List()[0]
		return rec
	}
	rec.Tokens = value.List()
	return rec
}

func (s *FirestoreStore) Store(ctx context.Context, interest, token string) (bool, error) {
	ref := s.interestRef(interest)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		current, _, err := s.read(tx.Get(ref))
		if err != nil {
			return err
		}
		return tx.Set(ref, newRecord(interest, current.With(token)))
	})
	if err != nil {
		return false, fmt.Errorf("firestore store failed: %w", err)
	}
	return true, nil
}

func (s *FirestoreStore) Retrieve(ctx context.Context, interest string) (registry.Tokens, bool, error) {
	return s.read(s.interestRef(interest).Get(ctx))
}

func (s *FirestoreStore) Forget(ctx context.Context, interest, token string) (bool, error) {
	ref := s.interestRef(interest)
	var forgotten bool

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		current, found, err := s.read(tx.Get(ref))
		if err != nil {
			return err
		}

		var next registry.Tokens
		var change registry.Change
		next, change, forgotten = registry.PlanForget(current, found, token)

		switch change {
		case registry.Replace:
			return tx.Set(ref, newRecord(interest, next))
		case registry.Delete:
			if !found {
				return nil
			}
			return tx.Delete(ref)
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("firestore forget failed: %w", err)
	}
	return forgotten, nil
}

// --- Helpers ---

// read decodes a snapshot; a NotFound error is the absent signal.
func (s *FirestoreStore) read(doc *firestore.DocumentSnapshot, err error) (registry.Tokens, bool, error) {
	if status.Code(err) == codes.NotFound {
		return registry.Tokens{}, false, nil
	}
	if err != nil {
		return registry.Tokens{}, false, fmt.Errorf("firestore get failed: %w", err)
	}

	var rec interestRecord
	if err := doc.DataTo(&rec); err != nil {
		s.logger.Error("Interest document is not decodable", "doc", doc.Ref.ID, "err", err)
		return registry.Tokens{}, false, fmt.Errorf("%w: document %s: %v", registry.ErrCorruptStore, doc.Ref.ID, err)
	}
	return rec.value(), true, nil
}

// interestRef: interests/{interestHash}
func (s *FirestoreStore) interestRef(interest string) *firestore.DocumentRef {
	return s.client.Collection(interestsCollection).Doc(hashInterest(interest))
}

// Interest strings may contain '/', which Firestore does not allow in IDs.
func hashInterest(interest string) string {
	sum := sha256.Sum256([]byte(interest))
	return hex.EncodeToString(sum[:])
}
