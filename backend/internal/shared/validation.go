// ============================================================================
// backend/internal/shared/validation.go
// Request validation with go-playground/validator and Spanish messages
// ============================================================================

package shared

import (
	"errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/locales/es"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	es_translations "github.com/go-playground/validator/v10/translations/es"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	Validate   *validator.Validate
	Translator ut.Translator

	// custom validation tags
	notBlankTag = "notblank"
	digitsTag   = "digits"
	bimesterTag = "bimester"
)

func init() {
	Validate = validator.New()

	_es := es.New()
	uni := ut.New(_es, _es)
	Translator, _ = uni.GetTranslator("es")
	_ = es_translations.RegisterDefaultTranslations(Validate, Translator)

	// Use JSON tag names for errors instead of Go struct names.
	Validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = Validate.RegisterValidation(notBlankTag, notBlankValidation)
	_ = Validate.RegisterValidation(digitsTag, digitsValidation)
	_ = Validate.RegisterValidation(bimesterTag, bimesterValidation)

	registerFn := func(ut.Translator) error { return nil }
	for _, tag := range []string{notBlankTag, digitsTag, bimesterTag} {
		_ = Validate.RegisterTranslation(tag, Translator, registerFn, translateCustomValidationErrs)
	}
}

func translateCustomValidationErrs(_ ut.Translator, fe validator.FieldError) string {
	switch fe.Tag() {
	case notBlankTag:
		return fe.Field() + " no puede estar vacío"
	case digitsTag:
		return fe.Field() + " debe contener solo dígitos"
	case bimesterTag:
		return fe.Field() + " debe ser un bimestre entre 1 y 3"
	default:
		return ""
	}
}

func notBlankValidation(fl validator.FieldLevel) bool {
	if str, ok := fl.Field().Interface().(string); ok {
		return strings.TrimSpace(str) != ""
	}
	return false
}

func digitsValidation(fl validator.FieldLevel) bool {
	str, ok := fl.Field().Interface().(string)
	if !ok || str == "" {
		return false
	}
	for _, r := range str {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func bimesterValidation(fl validator.FieldLevel) bool {
	var n int
	switch fl.Field().Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n = int(fl.Field().Int())
	case reflect.String:
		v, err := strconv.Atoi(fl.Field().String())
		if err != nil {
			return false
		}
		n = v
	default:
		return false
	}
	return n >= 1 && n <= 3
}

// ValidateStruct runs the struct's validate tags and returns the first
// failure as a translated message, or nil.
func ValidateStruct(v interface{}) error {
	err := Validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return errors.New(fieldErrs[0].Translate(Translator))
	}
	return err
}

// InvalidArgument validates v and wraps a failure as a gRPC InvalidArgument status.
func InvalidArgument(v interface{}) error {
	if err := ValidateStruct(v); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return nil
}
