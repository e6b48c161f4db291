package rbac

import "testing"

func TestSigningAuthority(t *testing.T) {
	yes, no := true, false
	tests := []struct {
		role     string
		override *bool
		expected bool
	}{
		{RoleBuyer, nil, true},
		{RoleSeller, nil, true},
		{RoleTitle, nil, true},
		{RoleBuyerAgent, nil, false},
		{RoleLender, nil, false},
		{"inspector", nil, false},
		{RoleBuyer, &no, false},
		{RoleLender, &yes, true},
	}

	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			if got := SigningAuthority(tt.role, tt.override); got != tt.expected {
				t.Errorf("SigningAuthority(%q) = %v, want %v", tt.role, got, tt.expected)
			}
		})
	}
}

func TestIsKnownRole(t *testing.T) {
	if !IsKnownRole(RoleSellerAgent) {
		t.Error("seller_agent should be known")
	}
	if IsKnownRole("inspector") {
		t.Error("inspector is not a built-in role")
	}
}
