package edgecase

// Papéis administrativos, em hierarquia estrita.
type Role string

const (
	RoleSupport    Role = "support"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

var roleRank = map[Role]int{
	RoleSupport:    1,
	RoleAdmin:      2,
	RoleSuperAdmin: 3,
}

// AtLeast verifica a hierarquia; papel desconhecido nunca passa.
func (r Role) AtLeast(min Role) bool {
	rr, ok := roleRank[r]
	mr, mok := roleRank[min]
	return ok && mok && rr >= mr
}
