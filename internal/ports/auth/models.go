package auth

// Role es el rol operativo del usuario dentro de la clínica.
type Role string

const (
	RoleReception Role = "RECEPTION"
	RoleDoctor    Role = "DOCTOR"
	RoleLab       Role = "LAB"
	RolePharmacy  Role = "PHARMACY"
	RoleAdmin     Role = "ADMIN"
)

// Claims representa la información extraída del token.
type Claims struct {
	UserID   string
	Email    string
	Role     Role
	TenantID string
}

// HasRole devuelve true si el claim tiene alguno de los roles indicados.
// ADMIN pasa siempre (bypass operativo).
func (c Claims) HasRole(roles ...Role) bool {
	if c.Role == RoleAdmin {
		return true
	}
	for _, r := range roles {
		if c.Role == r {
			return true
		}
	}
	return false
}
