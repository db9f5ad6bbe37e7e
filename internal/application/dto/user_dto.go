package dto

import "time"

// RegisterRequest alta de un emisor. El rol siempre es "emisor"; los administradores se crean por base de datos.
type RegisterRequest struct {
	Email    string `json:"email" example:"facturacion@empresa.cr"`
	Password string `json:"password" example:"cambiar-esta-clave"`
	Name     string `json:"name,omitempty" example:"Empresa S.A."`
}

type LoginRequest struct {
	Email    string `json:"email" example:"facturacion@empresa.cr"`
	Password string `json:"password"`
}

// UserResponse nunca incluye el hash de la contraseña.
type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LoginResponse token de servicio (no es el token de Hacienda) y el usuario autenticado.
type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}
