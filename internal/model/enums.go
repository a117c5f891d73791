package model

// SessionType records which login surface created a session.
type SessionType int16

const (
	SessionTypeUndefined     SessionType = 0
	SessionTypeStaffPortal   SessionType = 1
	SessionTypePatientPortal SessionType = 2
	SessionTypeInternal      SessionType = 3
)

func (t SessionType) IsValid() bool {
	switch t {
	case SessionTypeUndefined, SessionTypeStaffPortal, SessionTypePatientPortal, SessionTypeInternal:
		return true
	default:
		return false
	}
}

func (t SessionType) String() string {
	switch t {
	case SessionTypeUndefined:
		return "undefined"
	case SessionTypeStaffPortal:
		return "staff_portal"
	case SessionTypePatientPortal:
		return "patient_portal"
	case SessionTypeInternal:
		return "internal"
	default:
		return "unknown"
	}
}
