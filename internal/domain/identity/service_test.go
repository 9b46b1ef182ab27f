package identity

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinica/clinica/internal/platform/apperr"
	"github.com/clinica/clinica/internal/platform/auth"
)

// -- mocks --

type mockUserRepo struct {
	users map[uuid.UUID]*User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[uuid.UUID]*User)}
}

func (m *mockUserRepo) Create(ctx context.Context, u *User) error {
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	m.users[u.ID] = u
	return nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, apperr.NotFoundf("user not found")
	}
	return u, nil
}

func (m *mockUserRepo) GetByUsername(ctx context.Context, username string) (*User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, apperr.NotFoundf("user not found")
}

func (m *mockUserRepo) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	var all []*User
	for _, u := range m.users {
		all = append(all, u)
	}
	return all, len(all), nil
}

func (m *mockUserRepo) UpdateLoginSuccess(ctx context.Context, id uuid.UUID, at time.Time) error {
	u := m.users[id]
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	u.LastLogin = &at
	return nil
}

func (m *mockUserRepo) UpdateLoginFailure(ctx context.Context, id uuid.UUID, attempts int, lockedUntil *time.Time) error {
	u := m.users[id]
	u.FailedLoginAttempts = attempts
	u.LockedUntil = lockedUntil
	return nil
}

func (m *mockUserRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	u, ok := m.users[id]
	if !ok {
		return apperr.NotFoundf("user not found")
	}
	u.IsActive = active
	return nil
}

func (m *mockUserRepo) UpdatePassword(ctx context.Context, id uuid.UUID, hashed string) error {
	u, ok := m.users[id]
	if !ok {
		return apperr.NotFoundf("user not found")
	}
	u.HashedPassword = hashed
	return nil
}

type mockRoleRepo struct {
	roles       map[uuid.UUID]*Role
	perms       map[uuid.UUID]*Permission
	grants      map[uuid.UUID][]uuid.UUID // role -> permission ids
	assignments []*UserRole
}

func newMockRoleRepo() *mockRoleRepo {
	return &mockRoleRepo{
		roles:  make(map[uuid.UUID]*Role),
		perms:  make(map[uuid.UUID]*Permission),
		grants: make(map[uuid.UUID][]uuid.UUID),
	}
}

func (m *mockRoleRepo) CreateRole(ctx context.Context, r *Role) error {
	r.ID = uuid.New()
	m.roles[r.ID] = r
	return nil
}

func (m *mockRoleRepo) GetRoleByName(ctx context.Context, name string) (*Role, error) {
	for _, r := range m.roles {
		if r.Name == name {
			return r, nil
		}
	}
	return nil, apperr.NotFoundf("role %q not found", name)
}

func (m *mockRoleRepo) ListRoles(ctx context.Context) ([]*Role, error) {
	var all []*Role
	for _, r := range m.roles {
		all = append(all, r)
	}
	return all, nil
}

func (m *mockRoleRepo) CreatePermission(ctx context.Context, p *Permission) error {
	p.ID = uuid.New()
	m.perms[p.ID] = p
	return nil
}

func (m *mockRoleRepo) ListPermissions(ctx context.Context) ([]*Permission, error) {
	var all []*Permission
	for _, p := range m.perms {
		all = append(all, p)
	}
	return all, nil
}

func (m *mockRoleRepo) GrantPermission(ctx context.Context, roleID, permissionID uuid.UUID) error {
	m.grants[roleID] = append(m.grants[roleID], permissionID)
	return nil
}

func (m *mockRoleRepo) AssignRole(ctx context.Context, ur *UserRole) error {
	ur.AssignedAt = time.Now()
	m.assignments = append(m.assignments, ur)
	return nil
}

func (m *mockRoleRepo) RevokeRole(ctx context.Context, userID, roleID uuid.UUID) error {
	for i, ur := range m.assignments {
		if ur.UserID == userID && ur.RoleID == roleID {
			m.assignments = append(m.assignments[:i], m.assignments[i+1:]...)
			return nil
		}
	}
	return apperr.NotFoundf("role assignment not found")
}

func (m *mockRoleRepo) ListUserRoles(ctx context.Context, userID uuid.UUID) ([]*UserRole, error) {
	var out []*UserRole
	for _, ur := range m.assignments {
		if ur.UserID == userID {
			out = append(out, ur)
		}
	}
	return out, nil
}

func (m *mockRoleRepo) ActiveRoleNames(ctx context.Context, userID uuid.UUID, now time.Time) ([]string, error) {
	var names []string
	for _, ur := range m.assignments {
		if ur.UserID == userID && ur.Active(now) {
			names = append(names, m.roles[ur.RoleID].Name)
		}
	}
	return names, nil
}

func (m *mockRoleRepo) ResolvePermissions(ctx context.Context, userID uuid.UUID, now time.Time) ([]string, error) {
	seen := make(map[string]bool)
	var perms []string
	for _, ur := range m.assignments {
		if ur.UserID != userID || !ur.Active(now) {
			continue
		}
		for _, pid := range m.grants[ur.RoleID] {
			name := m.perms[pid].Name()
			if !seen[name] {
				seen[name] = true
				perms = append(perms, name)
			}
		}
	}
	return perms, nil
}

// -- fixtures --

type fixture struct {
	svc   *Service
	users *mockUserRepo
	roles *mockRoleRepo
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	users := newMockUserRepo()
	roles := newMockRoleRepo()
	issuer := auth.NewIssuer("test-secret", 15*time.Minute, 24*time.Hour)
	svc := NewService(users, roles, issuer, LockoutPolicy{
		MaxFailedLogins: 3,
		LockoutDuration: 15 * time.Minute,
	}, zerolog.Nop())

	f := &fixture{svc: svc, users: users, roles: roles, now: time.Now()}
	svc.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) addUser(t *testing.T, username, password string, super bool) *User {
	t.Helper()
	hashed, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := &User{Username: username, Email: username + "@clinica.test", HashedPassword: hashed, IsActive: true, IsSuperuser: super}
	if err := f.users.Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func (f *fixture) addRole(t *testing.T, name string, perms ...string) *Role {
	t.Helper()
	r := &Role{Name: name}
	if err := f.roles.CreateRole(context.Background(), r); err != nil {
		t.Fatalf("create role: %v", err)
	}
	for _, pn := range perms {
		dot := strings.IndexByte(pn, '.')
		p := &Permission{ResourceType: pn[:dot], Action: pn[dot+1:]}
		if err := f.roles.CreatePermission(context.Background(), p); err != nil {
			t.Fatalf("create permission: %v", err)
		}
		if err := f.roles.GrantPermission(context.Background(), r.ID, p.ID); err != nil {
			t.Fatalf("grant: %v", err)
		}
	}
	return r
}

// -- tests --

func TestLoginSuccess(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "ana", "s3cret-pass", false)
	r := f.addRole(t, "practitioner")
	f.roles.AssignRole(context.Background(), &UserRole{UserID: u.ID, RoleID: r.ID})

	pair, err := f.svc.Login(context.Background(), LoginRequest{Username: "ana", Password: "s3cret-pass"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if pair.AccessToken == "" {
		t.Fatal("expected access token")
	}
	if u.LastLogin == nil {
		t.Error("expected last_login to be recorded")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "ana", "s3cret-pass", false)

	_, err := f.svc.Login(context.Background(), LoginRequest{Username: "ana", Password: "wrong"})
	if !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if u.FailedLoginAttempts != 1 {
		t.Errorf("failed attempts = %d, want 1", u.FailedLoginAttempts)
	}
}

func TestLoginUnknownUserSameError(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Login(context.Background(), LoginRequest{Username: "ghost", Password: "whatever"})
	if !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for unknown user, got %v", err)
	}
}

func TestLoginLockout(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "ana", "s3cret-pass", false)

	for i := 0; i < 3; i++ {
		f.svc.Login(context.Background(), LoginRequest{Username: "ana", Password: "wrong"})
	}
	if u.LockedUntil == nil {
		t.Fatal("expected account to be locked after 3 failures")
	}

	// Correct password is refused while locked.
	_, err := f.svc.Login(context.Background(), LoginRequest{Username: "ana", Password: "s3cret-pass"})
	if !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected locked account to refuse login, got %v", err)
	}

	// After the lock expires the correct password works and counters reset.
	f.now = f.now.Add(16 * time.Minute)
	if _, err := f.svc.Login(context.Background(), LoginRequest{Username: "ana", Password: "s3cret-pass"}); err != nil {
		t.Fatalf("login after lock expiry: %v", err)
	}
	if u.FailedLoginAttempts != 0 || u.LockedUntil != nil {
		t.Error("expected counters to reset on successful login")
	}
}

func TestLoginInactiveUser(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "ana", "s3cret-pass", false)
	u.IsActive = false

	_, err := f.svc.Login(context.Background(), LoginRequest{Username: "ana", Password: "s3cret-pass"})
	if !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected deactivated account to refuse login, got %v", err)
	}
}

func TestRefreshRotatesPair(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "ana", "s3cret-pass", false)
	r := f.addRole(t, "practitioner")
	f.roles.AssignRole(context.Background(), &UserRole{UserID: u.ID, RoleID: r.ID})

	pair, err := f.svc.Login(context.Background(), LoginRequest{Username: "ana", Password: "s3cret-pass"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	rotated, err := f.svc.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if rotated.AccessToken == "" || rotated.RefreshToken == "" {
		t.Fatal("expected a full rotated pair")
	}

	// Access tokens cannot be used to refresh.
	if _, err := f.svc.Refresh(context.Background(), pair.AccessToken); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("expected access token to be rejected for refresh, got %v", err)
	}
}

func TestResolvePermissionsUnionsRoles(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "ana", "s3cret-pass", false)
	r1 := f.addRole(t, "practitioner", "Patient.read", "Encounter.create")
	r2 := f.addRole(t, "admission", "Admission.create")
	f.roles.AssignRole(context.Background(), &UserRole{UserID: u.ID, RoleID: r1.ID})
	f.roles.AssignRole(context.Background(), &UserRole{UserID: u.ID, RoleID: r2.ID})

	perms, err := f.svc.ResolvePermissions(context.Background(), u.ID.String())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	want := map[string]bool{"Patient.read": true, "Encounter.create": true, "Admission.create": true}
	if len(perms) != len(want) {
		t.Fatalf("perms = %v, want 3 entries", perms)
	}
	for _, p := range perms {
		if !want[p] {
			t.Errorf("unexpected permission %q", p)
		}
	}
}

// An expired role assignment grants nothing even though the row still exists.
func TestResolvePermissionsIgnoresExpiredAssignment(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "ana", "s3cret-pass", false)
	r := f.addRole(t, "admission", "Admission.create")

	expired := f.now.Add(-time.Hour)
	f.roles.AssignRole(context.Background(), &UserRole{UserID: u.ID, RoleID: r.ID, ExpiresAt: &expired})

	perms, err := f.svc.ResolvePermissions(context.Background(), u.ID.String())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(perms) != 0 {
		t.Errorf("expected no permissions from expired assignment, got %v", perms)
	}

	// The same assignment with a future expiry grants the permission.
	future := f.now.Add(time.Hour)
	f.roles.assignments[0].ExpiresAt = &future
	perms, _ = f.svc.ResolvePermissions(context.Background(), u.ID.String())
	if len(perms) != 1 || perms[0] != "Admission.create" {
		t.Errorf("expected active assignment to grant, got %v", perms)
	}
}

func TestResolvePermissionsSuperuser(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "root", "s3cret-pass", true)
	f.addRole(t, "practitioner", "Patient.read")

	perms, err := f.svc.ResolvePermissions(context.Background(), u.ID.String())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(perms) != 1 || perms[0] != "Patient.read" {
		t.Errorf("expected superuser to hold full catalog, got %v", perms)
	}
}

func TestCreateUserValidation(t *testing.T) {
	f := newFixture(t)
	cases := []CreateUserRequest{
		{Username: "", Email: "a@b.c", Password: "long-enough"},
		{Username: "ana", Email: "not-an-email", Password: "long-enough"},
		{Username: "ana", Email: "a@b.c", Password: "short"},
	}
	for _, req := range cases {
		if _, err := f.svc.CreateUser(context.Background(), req, nil); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("expected validation error for %+v, got %v", req, err)
		}
	}
}

func TestAssignRolePastExpiry(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "ana", "s3cret-pass", false)
	f.addRole(t, "viewer")

	past := f.now.Add(-time.Minute)
	err := f.svc.AssignRole(context.Background(), u.ID, AssignRoleRequest{RoleName: "viewer", ExpiresAt: &past}, nil)
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for past expiry, got %v", err)
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 2; i++ {
		if err := f.svc.Seed(context.Background(), "admin", "admin@clinica.test", "admin-pass-123"); err != nil {
			t.Fatalf("seed run %d: %v", i+1, err)
		}
	}

	admin, err := f.users.GetByUsername(context.Background(), "admin")
	if err != nil {
		t.Fatalf("admin user missing: %v", err)
	}
	if !admin.IsSuperuser {
		t.Error("expected seeded admin to be superuser")
	}

	count := 0
	for _, u := range f.users.users {
		if u.Username == "admin" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("admin user count = %d, want 1", count)
	}
}
