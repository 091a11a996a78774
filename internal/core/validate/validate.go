package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"product-user-services/internal/core/errs"
)

var (
	once sync.Once
	v    *validator.Validate
)

// Engine 与 gin binding 共用同一套 tag（binding:"..."），字段名取 json 名
func Engine() *validator.Validate {
	once.Do(func() {
		v = validator.New(validator.WithRequiredStructEnabled())
		v.SetTagName("binding")
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	})
	return v
}

// Struct 校验并转换为 errs.KindValidation
func Struct(s any) error {
	if err := Engine().Struct(s); err != nil {
		return FromError(err)
	}
	return nil
}

// FromError 把 validator / 绑定错误转成字段级错误
func FromError(err error) error {
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return errs.Invalid("body", err.Error())
	}
	fields := make(map[string]string, len(ves))
	for _, fe := range ves {
		fields[fe.Field()] = reason(fe)
	}
	return errs.Validation(fields)
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "oneof":
		return "must be one of [" + fe.Param() + "]"
	case "uuid":
		return "must be a uuid"
	default:
		return "failed on " + fe.Tag()
	}
}
