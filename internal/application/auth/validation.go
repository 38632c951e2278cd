package auth

import (
	"errors"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

// inputValidator checks flow inputs and reports the first problem as a
// domain validation error with an English message.
type inputValidator struct {
	v     *validator.Validate
	trans ut.Translator
}

func newInputValidator() *inputValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("password_strength", validatePasswordStrength)

	english := en.New()
	trans, _ := ut.New(english, english).GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(v, trans)
	_ = v.RegisterTranslation("password_strength", trans,
		func(t ut.Translator) error {
			return t.Add("password_strength", "{0} must contain an upper-case letter, a lower-case letter and a number", true)
		},
		func(t ut.Translator, fe validator.FieldError) string {
			msg, _ := t.T("password_strength", fe.Field())
			return msg
		},
	)

	return &inputValidator{v: v, trans: trans}
}

func (iv *inputValidator) check(in any) error {
	return iv.convert(iv.v.Struct(in))
}

func (iv *inputValidator) checkVar(field string, value any, tag string) error {
	err := iv.convert(iv.v.Var(value, tag))
	var de *domain.Error
	if errors.As(err, &de) && de.Kind == domain.KindValidation {
		de.Meta["field"] = field
		if reason, ok := de.Meta["reason"]; ok {
			de.Meta["reason"] = field + " " + strings.TrimSpace(reason)
		}
	}
	return err
}

func (iv *inputValidator) convert(err error) error {
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return domain.ErrInternal(err)
	}
	fe := ves[0]
	if fe.Tag() == "required" {
		return domain.ErrMissingField(fe.Field())
	}
	return domain.ErrInvalidField(fe.Field(), fe.Translate(iv.trans))
}

// validatePasswordStrength requires an upper-case letter, a lower-case letter
// and a number.
func validatePasswordStrength(fl validator.FieldLevel) bool {
	var hasUpper, hasLower, hasNumber bool
	for _, c := range fl.Field().String() {
		switch {
		case unicode.IsUpper(c):
			hasUpper = true
		case unicode.IsLower(c):
			hasLower = true
		case unicode.IsNumber(c):
			hasNumber = true
		}
		if hasUpper && hasLower && hasNumber {
			return true
		}
	}
	return false
}
