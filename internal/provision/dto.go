package provision

import (
	internal "github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/core/common/validation"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/user"
)

type CreateUserDTO struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	CompanyID string `json:"company_id"`
	Position  string `json:"position"`
}

func (dto CreateUserDTO) Validate() *internal.AppError {
	roles := make([]string, 0, len(user.Roles()))
	for _, r := range user.Roles() {
		roles = append(roles, string(r))
	}

	v := validation.NewValidator()
	v.Field("email", dto.Email).Required().Email()
	v.Field("password", dto.Password).Required().MinLength(8).MaxLength(72)
	v.Field("name", dto.Name).Required().MaxLength(200)
	v.Field("role", dto.Role).OneOf(roles...)
	return v.Validate()
}

type CreateCompanyDTO struct {
	Name          string `json:"name"`
	AdminEmail    string `json:"admin_email"`
	AdminPassword string `json:"admin_password"`
	AdminName     string `json:"admin_name"`
}

func (dto CreateCompanyDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("name", dto.Name).Required().MaxLength(200)
	v.Field("admin_email", dto.AdminEmail).Required().Email()
	v.Field("admin_password", dto.AdminPassword).Required().MinLength(8).MaxLength(72)
	v.Field("admin_name", dto.AdminName).Required().MaxLength(200)
	return v.Validate()
}

type SetStatusDTO struct {
	Status string `json:"status"`
}

func (dto SetStatusDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("status", dto.Status).Required().OneOf("active", "inactive")
	return v.Validate()
}

type SendEmailDTO struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

func (dto SendEmailDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("to", dto.To).Required().Email()
	v.Field("subject", dto.Subject).Required().MaxLength(300)
	v.Field("html", dto.HTML).Required()
	return v.Validate()
}
