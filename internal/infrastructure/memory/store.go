// Package memory almacenamiento en proceso para STORAGE=memory (desarrollo, CLI y pruebas).
// Replica las garantías de PostgreSQL que el núcleo necesita: clave viva única y
// transición de estado compare-and-set.
package memory

import (
	"context"
	"sync"

	"github.com/jhoicas/hacienda-api/internal/domain/entity"
	"github.com/jhoicas/hacienda-api/internal/domain/repository"
)

// Store guarda usuarios, certificados, comprobantes y eventos en mapas protegidos por un mutex.
// Cada puerto se expone como una vista (Users, Certificates, Documents, Analytics).
type Store struct {
	mu           sync.RWMutex
	users        map[string]*entity.User
	certificates map[string]*entity.Certificate
	documents    map[string]*entity.Document
	events       []*entity.DocumentEvent
	txMu         sync.Mutex
}

// NewStore crea un almacén vacío.
func NewStore() *Store {
	return &Store{
		users:        make(map[string]*entity.User),
		certificates: make(map[string]*entity.Certificate),
		documents:    make(map[string]*entity.Document),
	}
}

// Users vista UserRepository.
func (s *Store) Users() *UserRepo { return &UserRepo{s: s} }

// Certificates vista CertificateRepository.
func (s *Store) Certificates() *CertificateRepo { return &CertificateRepo{s: s} }

// Documents vista DocumentRepository.
func (s *Store) Documents() *DocumentRepo { return &DocumentRepo{s: s} }

// Analytics vista AnalyticsRepository.
func (s *Store) Analytics() *AnalyticsRepo { return &AnalyticsRepo{s: s} }

// RunDocuments serializa las "transacciones" en memoria. No hay rollback: fn opera
// directamente sobre el almacén.
func (s *Store) RunDocuments(ctx context.Context, fn func(docs repository.DocumentRepository) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(s.Documents())
}
