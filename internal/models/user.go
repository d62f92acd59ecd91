package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin     UserRole = "admin"
	RoleOfficer   UserRole = "officer"
	RoleDriver    UserRole = "driver"
	RoleConductor UserRole = "conductor"
)

// CanResolveClearance reports whether the role may approve or reject requests.
func (r UserRole) CanResolveClearance() bool {
	return r == RoleOfficer || r == RoleAdmin
}

// User is the directory projection of an account.
type User struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Role      UserRole  `db:"role" json:"role"`
	IsActive  bool      `db:"is_active" json:"isActive"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Bus is the fleet projection needed to reference a vehicle.
type Bus struct {
	ID       string `db:"id" json:"id"`
	Number   string `db:"number" json:"number"`
	Status   string `db:"status" json:"status"`
	IsActive bool   `db:"is_active" json:"isActive"`
}
