package identity

import "github.com/etribe/portal/internal/domain/shared"

// LoginForm is submitted to the login endpoint
type LoginForm struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Validate checks the form
func (f LoginForm) Validate() error { return shared.Validate(f) }

// RegisterForm is submitted to the register endpoint
type RegisterForm struct {
	Name            string `json:"name" validate:"required,max=100"`
	Email           string `json:"email" validate:"required,email"`
	Mobile          string `json:"mobile" validate:"required,min=7,max=15,numeric"`
	Company         string `json:"company,omitempty" validate:"max=150"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

// Validate checks the form
func (f RegisterForm) Validate() error { return shared.Validate(f) }

// ChangePasswordForm is submitted to the change_password endpoint
type ChangePasswordForm struct {
	OldPassword     string `json:"old_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6,nefield=OldPassword"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}

// Validate checks the form
func (f ChangePasswordForm) Validate() error { return shared.Validate(f) }

// Profile is the signed-in user as returned by the login endpoint
type Profile struct {
	ID     shared.FlexString `json:"id"`
	Name   string            `json:"name"`
	Email  string            `json:"email"`
	Mobile string            `json:"mobile"`
	Role   Role              `json:"role"`
	RoleID shared.FlexString `json:"role_id"`
}
