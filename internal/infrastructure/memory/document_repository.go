package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/jhoicas/hacienda-api/internal/domain"
	"github.com/jhoicas/hacienda-api/internal/domain/entity"
	"github.com/jhoicas/hacienda-api/internal/domain/repository"
)

var _ repository.DocumentRepository = (*DocumentRepo)(nil)

// DocumentRepo comprobantes y eventos en memoria.
type DocumentRepo struct{ s *Store }

func (r *DocumentRepo) Create(ctx context.Context, d *entity.Document) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.documents {
		if existing.DocumentKey == d.DocumentKey && existing.Status != entity.DocumentStatusError {
			return fmt.Errorf("clave %s: %w", d.DocumentKey, domain.ErrDuplicate)
		}
	}
	r.s.documents[d.ID] = copyDocument(d)
	return nil
}

func (r *DocumentRepo) GetByKey(ctx context.Context, key string) (*entity.Document, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var latest *entity.Document
	for _, d := range r.s.documents {
		if d.DocumentKey != key {
			continue
		}
		if latest == nil || d.CreatedAt.After(latest.CreatedAt) ||
			(d.CreatedAt.Equal(latest.CreatedAt) && d.ResubmissionOf == latest.ID) {
			latest = d
		}
	}
	if latest == nil {
		return nil, nil
	}
	return copyDocument(latest), nil
}

func (r *DocumentRepo) GetByID(ctx context.Context, id string) (*entity.Document, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if d, ok := r.s.documents[id]; ok {
		return copyDocument(d), nil
	}
	return nil, nil
}

func (r *DocumentRepo) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*entity.Document, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var list []*entity.Document
	for _, d := range r.s.documents {
		if d.OwnerID == ownerID {
			list = append(list, copyDocument(d))
		}
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	if offset >= len(list) {
		return nil, nil
	}
	list = list[offset:]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list, nil
}

func (r *DocumentRepo) UpdateLifecycle(ctx context.Context, d *entity.Document, expectedStatus string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.documents[d.ID]
	if !ok || current.Status != expectedStatus {
		return false, nil
	}
	current.Status = d.Status
	current.SignedXML = d.SignedXML
	current.SubmittedAt = d.SubmittedAt
	current.RespondedAt = d.RespondedAt
	current.Response = append([]byte(nil), d.Response...)
	current.RemoteStatus = d.RemoteStatus
	current.LastPolledAt = d.LastPolledAt
	current.PollResponse = append([]byte(nil), d.PollResponse...)
	current.UpdatedAt = d.UpdatedAt
	return true, nil
}

func (r *DocumentRepo) AppendEvent(ctx context.Context, ev *entity.DocumentEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *ev
	cp.Detail = append([]byte(nil), ev.Detail...)
	r.s.events = append(r.s.events, &cp)
	return nil
}

func (r *DocumentRepo) ListEvents(ctx context.Context, key string) ([]*entity.DocumentEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var list []*entity.DocumentEvent
	for _, ev := range r.s.events {
		if ev.DocumentKey == key {
			cp := *ev
			list = append(list, &cp)
		}
	}
	return list, nil
}

func copyDocument(d *entity.Document) *entity.Document {
	cp := *d
	cp.Payload = append([]byte(nil), d.Payload...)
	cp.Response = append([]byte(nil), d.Response...)
	cp.PollResponse = append([]byte(nil), d.PollResponse...)
	return &cp
}
