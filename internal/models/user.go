package models

import "time"

// NGO roles
const (
	RoleAdmin      = "admin"
	RoleAccountant = "accountant"
	RoleManager    = "manager"
	RoleStaff      = "staff"
	RoleVolunteer  = "volunteer"
	RoleMember     = "member"
)

type User struct {
	ID          int        `json:"id" example:"1"`                      // User ID
	Username    string     `json:"username" example:"asha"`             // Unique username
	Email       string     `json:"email" example:"user@example.com"`    // User email
	FirstName   string     `json:"FirstName" example:"Asha"`            // User first name
	LastName    string     `json:"LastName" example:"Mushi"`            // User last name
	PhoneNumber string     `json:"PhoneNumber" example:"+255712345678"` // User phone number
	Role        string     `json:"role" example:"member"`               // NGO role
	IsSuperuser bool       `json:"is_superuser"`
	LastLogin   *time.Time `json:"last_login,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// DisplayName returns the username, falling back to email.
func (u *User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}
