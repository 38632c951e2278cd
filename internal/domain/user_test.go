package domain

import "testing"

func TestUserStruct_DefaultZeroValues(t *testing.T) {
	var u User

	if u.Role != "" {
		t.Fatalf("expected empty role")
	}
	if u.IsActive {
		t.Fatalf("expected IsActive=false")
	}
	if u.HasPassword() {
		t.Fatalf("expected no password")
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  A@X.Com "); got != "a@x.com" {
		t.Fatalf("unexpected normalized email: %q", got)
	}
}

func TestUserPatch_Apply(t *testing.T) {
	name := "New Name"
	active := false
	role := RoleMentor

	u := User{ID: "u1", FullName: "Old", Role: RoleStudent, IsActive: true}
	p := UserPatch{FullName: &name, IsActive: &active, Role: &role}

	if p.Empty() {
		t.Fatalf("expected non-empty patch")
	}

	got := p.Apply(u)
	if got.FullName != name || got.IsActive || got.Role != RoleMentor {
		t.Fatalf("unexpected patched user: %+v", got)
	}
	if u.FullName != "Old" {
		t.Fatalf("apply must not mutate the input")
	}
}

func TestUserPatch_Empty(t *testing.T) {
	if !(UserPatch{}).Empty() {
		t.Fatalf("zero patch should be empty")
	}
}

func TestStringPtr(t *testing.T) {
	if StringPtr("") != nil {
		t.Fatalf("expected nil for empty string")
	}
	if p := StringPtr("x"); p == nil || *p != "x" {
		t.Fatalf("unexpected pointer")
	}
}
