package memory

import (
	"context"
	"sort"
	"time"

	"github.com/jhoicas/hacienda-api/internal/domain/repository"
)

var _ repository.AnalyticsRepository = (*AnalyticsRepo)(nil)

// AnalyticsRepo conteos sobre los comprobantes en memoria.
type AnalyticsRepo struct{ s *Store }

func (r *AnalyticsRepo) CountDocuments(ctx context.Context, ownerID string, from, to time.Time) ([]repository.DocumentCount, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	type group struct{ status, docType string }
	counts := make(map[group]int)
	for _, d := range r.s.documents {
		if d.OwnerID != ownerID || d.IssuedAt.Before(from) || d.IssuedAt.After(to) {
			continue
		}
		counts[group{d.Status, d.DocumentType}]++
	}

	out := make([]repository.DocumentCount, 0, len(counts))
	for g, n := range counts {
		out = append(out, repository.DocumentCount{Status: g.status, DocumentType: g.docType, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DocumentType != out[j].DocumentType {
			return out[i].DocumentType < out[j].DocumentType
		}
		return out[i].Status < out[j].Status
	})
	return out, nil
}
