package identity

import (
	"context"
	"fmt"

	"github.com/clinica/clinica/internal/platform/apperr"
	"github.com/clinica/clinica/internal/platform/auth"
)

// seedRoles are the reference roles created at setup time.
var seedRoles = []Role{
	{Name: "admin", Description: "Full administrative access"},
	{Name: "practitioner", Description: "Clinical staff: encounters, observations, conditions"},
	{Name: "patient", Description: "Self-service access to own record and appointments"},
	{Name: "admission", Description: "Admission desk: intake, triage queue, transitions"},
	{Name: "viewer", Description: "Read-only access for audit review"},
}

// seedPermissions is the permission catalog, one row per resource+action.
var seedPermissions = []Permission{
	{ResourceType: "Patient", Action: "read"},
	{ResourceType: "Patient", Action: "create"},
	{ResourceType: "Patient", Action: "update"},
	{ResourceType: "Encounter", Action: "read"},
	{ResourceType: "Encounter", Action: "create"},
	{ResourceType: "Encounter", Action: "update"},
	{ResourceType: "Observation", Action: "read"},
	{ResourceType: "Observation", Action: "create"},
	{ResourceType: "Condition", Action: "read"},
	{ResourceType: "Condition", Action: "create"},
	{ResourceType: "Admission", Action: "read"},
	{ResourceType: "Admission", Action: "create"},
	{ResourceType: "Admission", Action: "admit"},
	{ResourceType: "Admission", Action: "discharge"},
	{ResourceType: "Admission", Action: "refer"},
	{ResourceType: "Appointment", Action: "read"},
	{ResourceType: "Appointment", Action: "create"},
	{ResourceType: "Appointment", Action: "cancel"},
	{ResourceType: "AuditLog", Action: "read"},
	{ResourceType: "User", Action: "read"},
	{ResourceType: "User", Action: "create"},
	{ResourceType: "User", Action: "update"},
}

// seedGrants maps role name to granted permission names.
var seedGrants = map[string][]string{
	"practitioner": {
		"Patient.read", "Patient.update",
		"Encounter.read", "Encounter.create", "Encounter.update",
		"Observation.read", "Observation.create",
		"Condition.read", "Condition.create",
		"Admission.read", "Admission.admit", "Admission.discharge", "Admission.refer",
		"Appointment.read",
	},
	"admission": {
		"Patient.read", "Patient.create",
		"Admission.read", "Admission.create", "Admission.admit",
		"Admission.discharge", "Admission.refer",
		"Appointment.read",
	},
	"patient": {
		"Patient.read",
		"Appointment.read", "Appointment.create", "Appointment.cancel",
	},
	"viewer": {
		"Patient.read", "Encounter.read", "Observation.read", "Condition.read",
		"Admission.read", "Appointment.read", "AuditLog.read",
	},
}

// Seed creates the reference roles, the permission catalog, role-permission
// grants and an initial admin account. Idempotent; safe to run repeatedly.
func (s *Service) Seed(ctx context.Context, adminUsername, adminEmail, adminPassword string) error {
	for i := range seedRoles {
		role := seedRoles[i]
		if err := s.roles.CreateRole(ctx, &role); err != nil {
			return fmt.Errorf("seed role %s: %w", role.Name, err)
		}
	}

	permsByName := make(map[string]*Permission, len(seedPermissions))
	for i := range seedPermissions {
		perm := seedPermissions[i]
		if err := s.roles.CreatePermission(ctx, &perm); err != nil {
			return fmt.Errorf("seed permission %s: %w", perm.Name(), err)
		}
	}
	// Re-read: inserts with ON CONFLICT DO NOTHING keep pre-existing IDs.
	existing, err := s.roles.ListPermissions(ctx)
	if err != nil {
		return err
	}
	for _, p := range existing {
		permsByName[p.Name()] = p
	}

	for roleName, grants := range seedGrants {
		role, err := s.roles.GetRoleByName(ctx, roleName)
		if err != nil {
			return err
		}
		for _, permName := range grants {
			perm, ok := permsByName[permName]
			if !ok {
				return fmt.Errorf("seed grant %s -> %s: permission missing", roleName, permName)
			}
			if err := s.roles.GrantPermission(ctx, role.ID, perm.ID); err != nil {
				return err
			}
		}
	}

	if adminUsername == "" {
		return nil
	}
	if _, err := s.users.GetByUsername(ctx, adminUsername); err == nil {
		return nil // admin already present
	}
	hashed, err := auth.HashPassword(adminPassword)
	if err != nil {
		return apperr.Validationf("admin password: %v", err)
	}
	admin := &User{
		Username:       adminUsername,
		Email:          adminEmail,
		HashedPassword: hashed,
		IsActive:       true,
		IsSuperuser:    true,
	}
	if err := s.users.Create(ctx, admin); err != nil {
		return err
	}
	adminRole, err := s.roles.GetRoleByName(ctx, "admin")
	if err != nil {
		return err
	}
	return s.roles.AssignRole(ctx, &UserRole{UserID: admin.ID, RoleID: adminRole.ID})
}
