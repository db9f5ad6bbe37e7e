package repository

import (
	"context"

	"github.com/jhoicas/hacienda-api/internal/domain/entity"
)

// DocumentRepository define el puerto de persistencia para comprobantes y su historial.
type DocumentRepository interface {
	// Create inserta un registro nuevo. Clave repetida entre registros que no están en error → domain.ErrDuplicate.
	Create(ctx context.Context, doc *entity.Document) error
	// GetByKey devuelve el registro más reciente con esa clave; (nil, nil) si no existe.
	GetByKey(ctx context.Context, key string) (*entity.Document, error)
	GetByID(ctx context.Context, id string) (*entity.Document, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*entity.Document, error)
	// UpdateLifecycle persiste estado y campos de ciclo de vida solo si el estado actual
	// sigue siendo expectedStatus (compare-and-set). Retorna false si otro proceso ganó.
	UpdateLifecycle(ctx context.Context, doc *entity.Document, expectedStatus string) (bool, error)
	AppendEvent(ctx context.Context, ev *entity.DocumentEvent) error
	// ListEvents historial de todos los registros con esa clave, en orden cronológico.
	ListEvents(ctx context.Context, key string) ([]*entity.DocumentEvent, error)
}
