package auth

// Role clasifica al usuario autenticado frente a los workflows.
// Los managers (tienda / centro de adopción) aprueban y mueven estados
// operativos; el resto solo actúa sobre sus propios trámites.
type Role string

const (
	RoleUser    Role = "user"
	RoleManager Role = "manager"
)

// Claims representa la información extraída del token.
type Claims struct {
	UserID string
	Email  string
	Role   Role
}

// IsManager evita repetir la comparación en cada handler.
func (c Claims) IsManager() bool {
	return c.Role == RoleManager
}
