package order

import (
	internal "github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/core/common/validation"
)

type CreateOrderDTO struct {
	ClientName string `json:"client_name"`
	TotalCents int64  `json:"total_cents"`
	Notes      string `json:"notes"`
}

func (dto CreateOrderDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("client_name", dto.ClientName).Required().MaxLength(200)
	v.Field("total_cents", dto.TotalCents).Required().MinInt(1, internal.ErrCodeValidationFailed)
	v.Field("notes", dto.Notes).MaxLength(1000)
	return v.Validate()
}

type UpdateOrderStatusDTO struct {
	Status string `json:"status"`
}

func (dto UpdateOrderStatusDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("status", dto.Status).Required().
		OneOf(string(StatusApproved), string(StatusRejected), string(StatusFulfilled))
	return v.Validate()
}

type ListOrdersDTO struct {
	Limit  int
	Offset int
}

func (dto *ListOrdersDTO) Normalize() {
	if dto.Limit <= 0 || dto.Limit > 100 {
		dto.Limit = 20
	}
	if dto.Offset < 0 {
		dto.Offset = 0
	}
}
