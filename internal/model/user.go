package model

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `db:"user_id" json:"userId"`
	Username     string    `db:"username" json:"username"`
	DisplayName  string    `db:"display_name" json:"displayName"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         Role      `db:"role" json:"role"`
	IsActive     bool      `db:"is_active" json:"isActive"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

type CreateUserParams struct {
	Username     string
	DisplayName  string
	PasswordHash string
	Role         Role
}

type UpdateUserParams struct {
	DisplayName *string
	Role        *Role
}

// Profile is the user shape returned to clients. It never carries
// credential fields.
type Profile struct {
	UserID      uuid.UUID `json:"userId"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	Role        Role      `json:"role"`
	RoleName    string    `json:"roleName"`
	IsActive    bool      `json:"isActive"`
}

func (u *User) Profile() Profile {
	return Profile{
		UserID:      u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		RoleName:    u.Role.String(),
		IsActive:    u.IsActive,
	}
}
