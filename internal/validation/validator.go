package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
)

var (
	once     sync.Once
	validate *validator.Validate
)

// Validator возвращает общий экземпляр validator/v10.
func Validator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
	})
	return validate
}

// Struct проверяет структуру по тегам validate и возвращает ошибку VALIDATION_ERROR
// с описанием первого нарушенного правила.
func Struct(v any) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperror.Wrap(err, apperror.ErrCodeValidation, "некорректные данные")
	}
	return apperror.Wrap(err, apperror.ErrCodeValidation, describe(fieldErrs[0]))
}

func describe(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("поле %s обязательно", field)
	case "min":
		return fmt.Sprintf("поле %s: минимум %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("поле %s: максимум %s", field, fe.Param())
	case "email":
		return fmt.Sprintf("поле %s должно содержать корректный email", field)
	case "url", "http_url":
		return fmt.Sprintf("поле %s должно содержать корректную ссылку", field)
	case "iso4217":
		return fmt.Sprintf("поле %s должно содержать код валюты ISO 4217", field)
	case "oneof":
		return fmt.Sprintf("поле %s должно быть одним из: %s", field, fe.Param())
	}
	return fmt.Sprintf("поле %s не прошло проверку %s", field, fe.Tag())
}
