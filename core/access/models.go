package access

import (
	"sort"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/spadesk/core"
)

type Permission string

// Permissions
const (
	ClientsRead       Permission = "clients:read"
	ClientsWrite      Permission = "clients:write"
	EmployeesRead     Permission = "employees:read"
	EmployeesWrite    Permission = "employees:write"
	ServicesRead      Permission = "services:read"
	ServicesWrite     Permission = "services:write"
	AppointmentsRead  Permission = "appointments:read"
	AppointmentsWrite Permission = "appointments:write"
	SchedulesRead     Permission = "schedules:read"
	SchedulesWrite    Permission = "schedules:write"
	QuotationsRead    Permission = "quotations:read"
	QuotationsWrite   Permission = "quotations:write"
	SalesRead         Permission = "sales:read"
	SalesWrite        Permission = "sales:write"
	ReportsRead       Permission = "reports:read"
	UsersRead         Permission = "users:read"
	UsersWrite        Permission = "users:write"
	RolesRead         Permission = "roles:read"
	RolesWrite        Permission = "roles:write"
)

// RoleAdmin is the system role holding every permission.
const RoleAdmin = "admin"

var AllPermissions = []Permission{
	ClientsRead, ClientsWrite,
	EmployeesRead, EmployeesWrite,
	ServicesRead, ServicesWrite,
	AppointmentsRead, AppointmentsWrite,
	SchedulesRead, SchedulesWrite,
	QuotationsRead, QuotationsWrite,
	SalesRead, SalesWrite,
	ReportsRead,
	UsersRead, UsersWrite,
	RolesRead, RolesWrite,
}

func IsKnownPermission(p Permission) bool {
	for _, known := range AllPermissions {
		if p == known {
			return true
		}
	}
	return false
}

// PermissionSet is the union of the permissions granted by a set of roles.
type PermissionSet map[Permission]struct{}

func NewPermissionSet(perms ...Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Covers reports whether s holds every permission of other.
func (s PermissionSet) Covers(other PermissionSet) bool {
	for p := range other {
		if !s.Has(p) {
			return false
		}
	}
	return true
}

func (s PermissionSet) Add(perms ...Permission) {
	for _, p := range perms {
		s[p] = struct{}{}
	}
}

// Slice returns the sorted permissions.
func (s PermissionSet) Slice() []Permission {
	perms := make([]Permission, 0, len(s))
	for p := range s {
		perms = append(perms, p)
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i] < perms[j] })
	return perms
}

type Role struct {
	Slug        string       `json:"slug"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Permissions []Permission `json:"permissions"`
	IsSystem    bool         `json:"is_system"`
	CreatedAt   time.Time    `json:"created_at"` // UTC
	UpdatedAt   time.Time    `json:"updated_at"` // UTC
}

// Grants returns the permissions held by the role. The admin role always holds all of them.
func (r Role) Grants() PermissionSet {
	if r.Slug == RoleAdmin {
		return NewPermissionSet(AllPermissions...)
	}
	return NewPermissionSet(r.Permissions...)
}

// NewRole contains information needed to create a new Role.
type NewRole struct {
	Slug        string       `json:"slug" validate:"required,max=50,alphanum_"`
	Name        string       `json:"name" validate:"required,max=100"`
	Description string       `json:"description" validate:"max=500"`
	Permissions []Permission `json:"permissions" validate:"dive,permission"`
}

func (nr *NewRole) Validate(validate *validator.Validate) error {
	nr.Slug = core.CleanString(nr.Slug, true /* lower */)
	nr.Name = core.CleanString(nr.Name)
	nr.Description = core.CleanString(nr.Description)
	return validate.Struct(nr)
}

// UpdateRole defines what information may be provided to modify an existing Role.
type UpdateRole struct {
	Name        string        `json:"name" validate:"required,max=100"`
	Description string        `json:"description" validate:"max=500"`
	Permissions *[]Permission `json:"permissions" validate:"omitempty,dive,permission"`
}

func (ur *UpdateRole) Validate(validate *validator.Validate) error {
	ur.Name = core.CleanString(ur.Name)
	ur.Description = core.CleanString(ur.Description)
	return validate.Struct(ur)
}
