package http

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"highlightsync/internal/httpx"
)

var (
	validate     *validator.Validate
	vendorIDExpr = regexp.MustCompile(`^[A-Z0-9]{10}$`)
)

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("query"); name != "" {
			return name
		}
		return strings.ToLower(f.Name)
	})
	_ = validate.RegisterValidation("vendor_id", validateVendorID)
}

func validateVendorID(fl validator.FieldLevel) bool {
	return vendorIDExpr.MatchString(fl.Field().String())
}

// ValidateStruct checks s against its validate tags and returns one detail
// per failing field, keyed by the field's query name.
func ValidateStruct(s any) []httpx.ErrorDetail {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []httpx.ErrorDetail{{Field: "", Message: err.Error()}}
	}

	details := make([]httpx.ErrorDetail, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		param := fe.Param()

		var message string
		switch fe.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", field)
		case "max":
			message = fmt.Sprintf("%s must be at most %s characters", field, param)
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", field, param)
		case "vendor_id":
			message = fmt.Sprintf("%s must be a 10 character ASIN", field)
		case "gte", "lte":
			message = fmt.Sprintf("%s must be between 0 and %d", field, maxAnnotationLimit)
		default:
			message = fmt.Sprintf("%s is invalid", field)
		}
		details = append(details, httpx.ErrorDetail{Field: field, Message: message})
	}
	return details
}
