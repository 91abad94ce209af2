package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldViolation описывает нарушение ограничения одного поля.
type FieldViolation struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationError собирает все нарушения, найденные при проверке сущности.
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	builder := strings.Builder{}
	builder.WriteString(ErrValidation.Error())
	for i, v := range e.Violations {
		if i == 0 {
			builder.WriteString(": ")
		} else {
			builder.WriteString("; ")
		}
		builder.WriteString(v.Field)
		builder.WriteString(" ")
		builder.WriteString(v.Message)
	}
	return builder.String()
}

// Is позволяет сравнивать ошибку с ErrValidation через errors.Is.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	if err := v.RegisterValidation("order_status", func(fl validator.FieldLevel) bool {
		return OrderStatus(fl.Field().String()).IsValid()
	}); err != nil {
		panic(fmt.Sprintf("register order_status validation: %v", err))
	}
	return v
}

// ValidateOrder проверяет ограничения полей заказа перед сохранением.
// Возвращает *ValidationError со всеми нарушениями или nil.
func ValidateOrder(o Order) error {
	violations := structViolations(o)

	if o.OrderDate.IsZero() {
		violations = append(violations, FieldViolation{
			Field:   "orderDate",
			Rule:    "required",
			Message: "must not be empty",
		})
	}
	for i, p := range o.Products {
		if p.ID <= 0 {
			violations = append(violations, FieldViolation{
				Field:   fmt.Sprintf("productList[%d].id", i),
				Rule:    "required",
				Message: "must reference an existing product",
			})
		}
	}

	return violationsToError(violations)
}

// ValidateProduct проверяет ограничения полей товара перед сохранением.
func ValidateProduct(p Product) error {
	return violationsToError(structViolations(p))
}

func structViolations(entity any) []FieldViolation {
	err := validate.Struct(entity)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []FieldViolation{{Field: "", Rule: "invalid", Message: err.Error()}}
	}

	violations := make([]FieldViolation, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		violations = append(violations, FieldViolation{
			Field:   fe.Field(),
			Rule:    fe.Tag(),
			Message: violationMessage(fe),
		})
	}
	return violations
}

func violationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must not be empty"
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at most %s items", fe.Param())
		}
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s items", fe.Param())
		}
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "order_status":
		return "must be one of pending, paid, shipped, delivered, canceled"
	default:
		return fmt.Sprintf("violates %q constraint", fe.Tag())
	}
}

func violationsToError(violations []FieldViolation) error {
	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Violations: violations}
}
