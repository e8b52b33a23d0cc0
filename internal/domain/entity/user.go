package entity

import "time"

// Roles válidos para User.
const (
	RoleAdmin     = "admin"
	RoleOptometra = "optometra"
	RoleRecepcion = "recepcion"
)

// User representa un usuario del sistema (pertenece a un Tenant).
type User struct {
	ID           string
	TenantID     string
	Email        string
	PasswordHash string // bcrypt, nunca plano en dominio después de persistir
	Name         string
	Role         string // admin, optometra, recepcion
	Status       string // active, inactive, suspended
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
