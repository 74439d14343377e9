package validation

import (
	"encoding/json"
	"errors"
	"reflect"
	"regexp"
	"slices"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/pesdo/placement-portal/pkg/sms"
)

var e164 = regexp.MustCompile(`^\+[1-9]\d{9,14}$`)

var (
	accountTypes = []string{"admin", "employer", "jobseeker"}

	// admin accounts are seeded, never self-registered
	signupTypes = []string{"employer", "jobseeker"}
)

// roleIn matches the account-type parser: case and surrounding space are
// ignored and a blank value means "unspecified".
func roleIn(allowed []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		s := strings.ToLower(strings.TrimSpace(fl.Field().String()))
		return s == "" || slices.Contains(allowed, s)
	}
}

// Init configures the validator used by Gin's binding: JSON field names in
// errors plus the portal's alias tags.
func Init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		Register(v)
	}
}

// Register installs the tag name func, aliases and custom rules on v.
func Register(v *validator.Validate) {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterAlias("pwd", "min=8")
	_ = v.RegisterValidation("usertype", roleIn(accountTypes))
	_ = v.RegisterValidation("signuptype", roleIn(signupTypes))
	// accepts local Philippine formats as well as E.164
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return e164.MatchString(sms.NormalizePhone(fl.Field().String()))
	})
}

// ToDetails converts validation/binding errors into a map[field]message suitable for API error.details.
func ToDetails(err error) map[string]string {
	if err == nil {
		return nil
	}

	var se *json.SyntaxError
	var ute *json.UnmarshalTypeError
	if errors.As(err, &se) || errors.As(err, &ute) {
		return map[string]string{"payload": "invalid json"}
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			out[fe.Field()] = formatFieldError(fe)
		}
		return out
	}
	return map[string]string{"payload": "invalid payload"}
}

func formatFieldError(fe validator.FieldError) string {
	param := fe.Param()
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "url":
		return "must be a valid URL"
	case "uuid":
		return "must be a valid UUID"
	case "min":
		return "must be at least " + param + " characters long"
	case "max":
		return "must be at most " + param + " characters long"
	case "oneof":
		return "must be one of: " + strings.Join(strings.Fields(param), ", ")
	case "pwd":
		return "min length 8"
	case "usertype":
		return "must be one of: " + strings.Join(accountTypes, ", ")
	case "signuptype":
		return "must be one of: " + strings.Join(signupTypes, ", ")
	case "phone":
		return "must be a valid phone number"
	}
	if param != "" {
		return "failed '" + fe.Tag() + "' (" + param + ")"
	}
	return "failed '" + fe.Tag() + "'"
}
