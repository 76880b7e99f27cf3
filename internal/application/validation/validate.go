// Package validation runs struct-tag validation on command inputs and turns
// failures into shared.ValidationError keyed by JSON field name.
package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/shopspring/decimal"

	"github.com/alem-hub/academy-finance/internal/domain/shared"
)

var (
	validate   *validator.Validate
	translator ut.Translator

	notBlankTag = "notblank"
	roleTag     = "role"
)

func init() {
	validate = validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Money fields are validated through their float value so that gt/gte/lte apply.
	validate.RegisterCustomTypeFunc(func(v reflect.Value) interface{} {
		if d, ok := v.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	_ = validate.RegisterValidation(notBlankTag, notBlank)
	_ = validate.RegisterValidation(roleTag, validRole)
	registerCustomTranslations(notBlankTag, roleTag)
}

// a noop register func is passed because the default translations are already registered.
func registerCustomTranslations(tags ...string) {
	registerFn := func(ut.Translator) error { return nil }
	for _, tag := range tags {
		_ = validate.RegisterTranslation(tag, translator, registerFn, translateCustom)
	}
}

func translateCustom(_ ut.Translator, fe validator.FieldError) string {
	switch fe.Tag() {
	case notBlankTag:
		return fe.Field() + " cannot be blank"
	case roleTag:
		return fe.Field() + " must be OWNER, PARTNER, STAFF or TEACHER"
	default:
		return fe.Field() + " is invalid"
	}
}

func notBlank(fl validator.FieldLevel) bool {
	if s, ok := fl.Field().Interface().(string); ok {
		return strings.TrimSpace(s) != ""
	}
	return false
}

func validRole(fl validator.FieldLevel) bool {
	if s, ok := fl.Field().Interface().(string); ok {
		_, known := shared.ParseRole(s)
		return known
	}
	return false
}

// Struct validates v and returns a *shared.ValidationError listing every bad field.
func Struct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return shared.WrapError("validation", "Struct", shared.ErrInvalidInput, "cannot validate input", err)
	}

	out := &shared.ValidationError{}
	for _, fe := range verrs {
		out.Add(fieldPath(fe), fe.Translate(translator))
	}
	return out
}

// fieldPath strips the top-level struct name from the namespace: "Cmd.shares[0].percentage" -> "shares[0].percentage".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}
