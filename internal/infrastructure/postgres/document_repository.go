package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/hacienda-api/internal/domain"
	"github.com/jhoicas/hacienda-api/internal/domain/entity"
	"github.com/jhoicas/hacienda-api/internal/domain/repository"
)

var _ repository.DocumentRepository = (*DocumentRepo)(nil)

const documentColumns = `id, document_key, document_type, consecutive_number, owner_id, certificate_id,
	status, payload, xml, signed_xml, issued_at, submitted_at, responded_at, response,
	remote_status, last_polled_at, poll_response, resubmission_of, created_at, updated_at`

// DocumentRepo implementación de DocumentRepository sobre PostgreSQL.
// Funciona igual sobre el pool o dentro de una transacción (ver TxRunner).
type DocumentRepo struct {
	db Querier
}

// NewDocumentRepository construye el repositorio.
func NewDocumentRepository(db Querier) *DocumentRepo {
	return &DocumentRepo{db: db}
}

// Create inserta el registro. El índice único parcial sobre document_key rechaza una
// segunda clave viva (estado distinto de error).
func (r *DocumentRepo) Create(ctx context.Context, d *entity.Document) error {
	query := `INSERT INTO documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`
	_, err := r.db.Exec(ctx, query,
		d.ID, d.DocumentKey, d.DocumentType, d.ConsecutiveNumber, d.OwnerID, nullIfEmpty(d.CertificateID),
		d.Status, []byte(d.Payload), d.XML, d.SignedXML, d.IssuedAt, d.SubmittedAt, d.RespondedAt, jsonOrNull(d.Response),
		d.RemoteStatus, d.LastPolledAt, jsonOrNull(d.PollResponse), nullIfEmpty(d.ResubmissionOf), d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("clave %s: %w", d.DocumentKey, domain.ErrDuplicate)
		}
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// GetByKey devuelve el registro más reciente con la clave; (nil, nil) si no existe.
func (r *DocumentRepo) GetByKey(ctx context.Context, key string) (*entity.Document, error) {
	d, err := scanDocument(r.db.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE document_key = $1 ORDER BY created_at DESC LIMIT 1`, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document by key: %w", err)
	}
	return d, nil
}

// GetByID obtiene un registro; (nil, nil) si no existe.
func (r *DocumentRepo) GetByID(ctx context.Context, id string) (*entity.Document, error) {
	d, err := scanDocument(r.db.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

// ListByOwner lista comprobantes del usuario con paginación, el más reciente primero.
func (r *DocumentRepo) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*entity.Document, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE owner_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()
	var list []*entity.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		list = append(list, d)
	}
	return list, rows.Err()
}

// UpdateLifecycle UPDATE condicional sobre el estado esperado: de dos procesos que
// intentan la misma transición solo uno afecta la fila.
func (r *DocumentRepo) UpdateLifecycle(ctx context.Context, d *entity.Document, expectedStatus string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE documents SET
			status = $3, signed_xml = $4, submitted_at = $5, responded_at = $6, response = $7,
			remote_status = $8, last_polled_at = $9, poll_response = $10, updated_at = $11
		WHERE id = $1 AND status = $2`,
		d.ID, expectedStatus,
		d.Status, d.SignedXML, d.SubmittedAt, d.RespondedAt, jsonOrNull(d.Response),
		d.RemoteStatus, d.LastPolledAt, jsonOrNull(d.PollResponse), d.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("update document lifecycle: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// AppendEvent agrega una entrada al historial.
func (r *DocumentRepo) AppendEvent(ctx context.Context, ev *entity.DocumentEvent) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO document_events (id, document_id, document_key, kind, from_status, to_status, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ev.ID, ev.DocumentID, ev.DocumentKey, ev.Kind, ev.FromStatus, ev.ToStatus, jsonOrNull(ev.Detail), ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document event: %w", err)
	}
	return nil
}

// ListEvents historial de la clave (incluye registros reenviados) en orden cronológico.
func (r *DocumentRepo) ListEvents(ctx context.Context, key string) ([]*entity.DocumentEvent, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, document_id, document_key, kind, from_status, to_status, detail, created_at
		FROM document_events WHERE document_key = $1 ORDER BY created_at, id`, key)
	if err != nil {
		return nil, fmt.Errorf("list document events: %w", err)
	}
	defer rows.Close()
	var list []*entity.DocumentEvent
	for rows.Next() {
		var ev entity.DocumentEvent
		var detail []byte
		if err := rows.Scan(&ev.ID, &ev.DocumentID, &ev.DocumentKey, &ev.Kind, &ev.FromStatus, &ev.ToStatus, &detail, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document event: %w", err)
		}
		ev.Detail = detail
		list = append(list, &ev)
	}
	return list, rows.Err()
}

func scanDocument(row pgx.Row) (*entity.Document, error) {
	var d entity.Document
	var certificateID, resubmissionOf *string
	var payload, response, pollResponse []byte
	err := row.Scan(
		&d.ID, &d.DocumentKey, &d.DocumentType, &d.ConsecutiveNumber, &d.OwnerID, &certificateID,
		&d.Status, &payload, &d.XML, &d.SignedXML, &d.IssuedAt, &d.SubmittedAt, &d.RespondedAt, &response,
		&d.RemoteStatus, &d.LastPolledAt, &pollResponse, &resubmissionOf, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.CertificateID = derefString(certificateID)
	d.ResubmissionOf = derefString(resubmissionOf)
	d.Payload, d.Response, d.PollResponse = payload, response, pollResponse
	return &d, nil
}
