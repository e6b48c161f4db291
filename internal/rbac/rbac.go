package rbac

// Party roles
const (
	RoleBuyer       = "buyer"
	RoleSeller      = "seller"
	RoleBuyerAgent  = "buyer_agent"
	RoleSellerAgent = "seller_agent"
	RoleTitle       = "title"
	RoleLender      = "lender"
)

// signingRoles hold signing authority unless the invite says otherwise.
var signingRoles = map[string]bool{
	RoleBuyer:  true,
	RoleSeller: true,
	RoleTitle:  true,
}

// KnownRoles lists the roles the UI offers. The set is open: any other
// non-empty role is stored as given.
var KnownRoles = []string{RoleBuyer, RoleSeller, RoleBuyerAgent, RoleSellerAgent, RoleTitle, RoleLender}

// DefaultSigningAuthority reports whether a role signs by default.
func DefaultSigningAuthority(role string) bool {
	return signingRoles[role]
}

// SigningAuthority resolves the effective flag for an invite.
func SigningAuthority(role string, override *bool) bool {
	if override != nil {
		return *override
	}
	return DefaultSigningAuthority(role)
}

func IsKnownRole(role string) bool {
	for _, r := range KnownRoles {
		if r == role {
			return true
		}
	}
	return false
}
