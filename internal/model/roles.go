package model

// Role is the closed role taxonomy stored on the user row. Every
// route-level authorization decision in the system is built from the
// predicates below; business packages must not compare raw values.
type Role int16

const (
	RolePatient      Role = 0
	RoleAdmin        Role = 1
	RoleManager      Role = 2
	RoleDoctor       Role = 3
	RoleReceptionist Role = 4
)

func (r Role) IsValid() bool {
	switch r {
	case RolePatient, RoleAdmin, RoleManager, RoleDoctor, RoleReceptionist:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	switch r {
	case RolePatient:
		return "patient"
	case RoleAdmin:
		return "admin"
	case RoleManager:
		return "manager"
	case RoleDoctor:
		return "doctor"
	case RoleReceptionist:
		return "receptionist"
	default:
		return "unknown"
	}
}

func (r Role) IsPatient() bool      { return r == RolePatient }
func (r Role) IsAdmin() bool        { return r == RoleAdmin }
func (r Role) IsManager() bool      { return r == RoleManager }
func (r Role) IsDoctor() bool       { return r == RoleDoctor }
func (r Role) IsReceptionist() bool { return r == RoleReceptionist }

// CanManageUsers gates account provisioning and enable/disable.
func (r Role) CanManageUsers() bool {
	return r == RoleAdmin
}

// CanResetPasswords gates administrative password resets.
func (r Role) CanResetPasswords() bool {
	return r == RoleAdmin || r == RoleManager
}

// CanInspectAnySession allows reading and extending sessions owned by
// other users.
func (r Role) CanInspectAnySession() bool {
	return r == RoleAdmin || r == RoleManager
}

// CanManageScheduling covers appointment and resource management routes.
func (r Role) CanManageScheduling() bool {
	return r == RoleAdmin || r == RoleManager || r == RoleReceptionist
}

// CanAccessPatientChart covers clinical record routes.
func (r Role) CanAccessPatientChart() bool {
	return r == RoleAdmin || r == RoleManager || r == RoleDoctor
}
