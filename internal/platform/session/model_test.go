package session

import "testing"

func TestSession_RoleHelpers(t *testing.T) {
	tests := []struct {
		role                         Role
		admin, medical, staff, patnt bool
	}{
		{RoleAdmin, true, true, true, false},
		{RoleRadiologist, false, true, true, false},
		{RoleSecretary, false, false, true, false},
		{RoleTechnician, false, false, true, false},
		{RolePatient, false, false, false, true},
	}
	for _, tt := range tests {
		s := &Session{User: User{Role: tt.role}}
		if s.IsAdmin() != tt.admin || s.IsMedicalStaff() != tt.medical || s.IsStaff() != tt.staff || s.IsPatient() != tt.patnt {
			t.Errorf("%s: unexpected helpers admin=%v medical=%v staff=%v patient=%v",
				tt.role, s.IsAdmin(), s.IsMedicalStaff(), s.IsStaff(), s.IsPatient())
		}
	}
	var none *Session
	if none.HasRole(RoleAdmin) {
		t.Error("expected nil session to hold no role")
	}
}

func TestRole_WireAndLabel(t *testing.T) {
	if got := RoleTechnician.Wire(); got != "tecnico" {
		t.Errorf("expected tecnico, got %s", got)
	}
	if got := RoleRadiologist.Label(); got != "Radiólogo" {
		t.Errorf("expected Radiólogo, got %s", got)
	}
	if got := Role("auditor").Label(); got != "auditor" {
		t.Errorf("expected unknown role echoed, got %s", got)
	}
}
