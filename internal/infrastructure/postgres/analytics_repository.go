package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/hacienda-api/internal/domain/repository"
)

var _ repository.AnalyticsRepository = (*AnalyticsRepo)(nil)

// AnalyticsRepo consultas de solo lectura sobre documents.
type AnalyticsRepo struct {
	db Querier
}

// NewAnalyticsRepository construye el adaptador de analítica.
func NewAnalyticsRepository(db Querier) *AnalyticsRepo {
	return &AnalyticsRepo{db: db}
}

// CountDocuments cuenta registros por estado y tipo. Los registros reemplazados por un
// reenvío se cuentan en su estado final (error).
func (r *AnalyticsRepo) CountDocuments(ctx context.Context, ownerID string, from, to time.Time) ([]repository.DocumentCount, error) {
	const query = `
	SELECT status, document_type, COUNT(*)
	FROM documents
	WHERE owner_id = $1
	  AND issued_at BETWEEN $2 AND $3
	GROUP BY status, document_type
	ORDER BY document_type, status`

	rows, err := r.db.Query(ctx, query, ownerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("analytics.CountDocuments: %w", err)
	}
	defer rows.Close()

	var results []repository.DocumentCount
	for rows.Next() {
		var row repository.DocumentCount
		if err := rows.Scan(&row.Status, &row.DocumentType, &row.Count); err != nil {
			return nil, fmt.Errorf("analytics.CountDocuments scan: %w", err)
		}
		results = append(results, row)
	}
	return results, rows.Err()
}
