package memory

import (
	"context"
	"sort"
	"sync"

	"billdesk/terminal/internal/domain"
	"billdesk/terminal/internal/store"
)

type Store struct {
	mu   sync.RWMutex
	docs map[string]domain.ConfirmedDocument
}

func New() *Store {
	return &Store{docs: map[string]domain.ConfirmedDocument{}}
}

func key(variant domain.Variant, number string) string {
	return string(variant) + "|" + number
}

func (s *Store) SaveDocument(_ context.Context, doc domain.ConfirmedDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(doc.Variant, doc.DocumentNumber)
	if _, exists := s.docs[k]; exists {
		return store.ErrDuplicate
	}
	s.docs[k] = doc
	return nil
}

func (s *Store) FindDocument(_ context.Context, variant domain.Variant, number string) (*domain.ConfirmedDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[key(variant, number)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &doc, nil
}

func (s *Store) ListDocuments(_ context.Context, filter store.ListFilter) ([]domain.ConfirmedDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ConfirmedDocument, 0, len(s.docs))
	for _, doc := range s.docs {
		if filter.Variant != "" && doc.Variant != filter.Variant {
			continue
		}
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].DocumentNumber > out[j].DocumentNumber
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit := store.NormalizeLimit(filter.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
