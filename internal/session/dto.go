package session

import (
	internal "github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/core/common/validation"
)

type LoginDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (dto LoginDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("email", dto.Email).Required().Email()
	v.Field("password", dto.Password).Required()
	return v.Validate()
}

type RefreshTokenDTO struct {
	RefreshToken string `json:"refresh_token"`
}

func (dto RefreshTokenDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("refresh_token", dto.RefreshToken).Required()
	return v.Validate()
}

type ChangePasswordDTO struct {
	NewPassword string `json:"new_password"`
}

func (dto ChangePasswordDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("new_password", dto.NewPassword).Required().MinLength(8).MaxLength(72)
	return v.Validate()
}

type TokenPairDTO struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

type LoginResponseDTO struct {
	TokenPairDTO
	Identity Identity `json:"identity"`
}

type IdentityResponseDTO struct {
	Identity Identity `json:"identity"`
	Loading  bool     `json:"loading"`
}

func loginError(code LoginErrorCode) *internal.AppError {
	switch code {
	case LoginErrAccountRestricted:
		return internal.ErrAccountRestricted
	case LoginErrCompanyInactive:
		return internal.ErrCompanyInactive
	default:
		return internal.ErrInvalidCredentials
	}
}
