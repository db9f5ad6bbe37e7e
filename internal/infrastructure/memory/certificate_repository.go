package memory

import (
	"context"
	"sort"

	"github.com/jhoicas/hacienda-api/internal/domain"
	"github.com/jhoicas/hacienda-api/internal/domain/entity"
	"github.com/jhoicas/hacienda-api/internal/domain/repository"
)

var _ repository.CertificateRepository = (*CertificateRepo)(nil)

// CertificateRepo certificados en memoria.
type CertificateRepo struct{ s *Store }

func (r *CertificateRepo) Create(ctx context.Context, c *entity.Certificate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.certificates[c.ID]; ok {
		return domain.ErrDuplicate
	}
	r.s.certificates[c.ID] = copyCertificate(c)
	return nil
}

func (r *CertificateRepo) GetByID(ctx context.Context, id string) (*entity.Certificate, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if c, ok := r.s.certificates[id]; ok {
		return copyCertificate(c), nil
	}
	return nil, nil
}

func (r *CertificateRepo) ListByOwner(ctx context.Context, ownerID string) ([]*entity.Certificate, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.byOwner(ownerID, false), nil
}

func (r *CertificateRepo) GetActiveByOwner(ctx context.Context, ownerID string) (*entity.Certificate, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if list := r.byOwner(ownerID, true); len(list) > 0 {
		return list[0], nil
	}
	return nil, nil
}

func (r *CertificateRepo) Update(ctx context.Context, c *entity.Certificate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.certificates[c.ID]
	if !ok {
		return domain.ErrNotFound
	}
	cur.Name = c.Name
	cur.IsActive = c.IsActive
	cur.UpdatedAt = c.UpdatedAt
	return nil
}

func (r *CertificateRepo) DeactivateOthers(ctx context.Context, ownerID, keepID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, c := range r.s.certificates {
		if c.OwnerID == ownerID && id != keepID {
			c.IsActive = false
		}
	}
	return nil
}

func (r *CertificateRepo) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.certificates[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.s.certificates, id)
	return nil
}

// byOwner requiere el lock tomado. Más reciente primero.
func (r *CertificateRepo) byOwner(ownerID string, onlyActive bool) []*entity.Certificate {
	var list []*entity.Certificate
	for _, c := range r.s.certificates {
		if c.OwnerID != ownerID || (onlyActive && !c.IsActive) {
			continue
		}
		list = append(list, copyCertificate(c))
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list
}

func copyCertificate(c *entity.Certificate) *entity.Certificate {
	cp := *c
	cp.KeyUsage = append([]string(nil), c.KeyUsage...)
	cp.EncryptedP12 = append([]byte(nil), c.EncryptedP12...)
	cp.EncryptedPassword = append([]byte(nil), c.EncryptedPassword...)
	return &cp
}
