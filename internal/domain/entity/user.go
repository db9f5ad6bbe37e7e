package entity

import "time"

// Roles válidos para User.
const (
	RoleAdmin  = "admin"
	RoleEmisor = "emisor"
)

// Estados de usuario.
const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
)

// User representa una cuenta que emite comprobantes.
type User struct {
	ID           string
	Email        string
	PasswordHash string // bcrypt hash, nunca plano en dominio después de persistir
	Name         string
	Role         string // admin, emisor
	Status       string // active, inactive
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
