package entity

import "time"

// Tenant representa una óptica (organización del sistema multi-tenant).
type Tenant struct {
	ID        string
	Name      string
	TaxID     string
	Email     string
	Phone     string
	Currency  string // moneda por defecto para facturas nuevas (ISO 4217)
	Status    string // active, suspended, inactive
	CreatedAt time.Time
	UpdatedAt time.Time
}
