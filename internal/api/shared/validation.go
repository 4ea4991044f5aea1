package shared

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"

	"github.com/mygeslike/api/internal/domain"
)

var (
	validate   = validator.New(validator.WithRequiredStructEnabled())
	translator ut.Translator
)

func init() {
	// Report JSON names, not Go field names.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = f.Tag.Get("form")
		}
		return name
	})

	english := en.New()
	translator, _ = ut.New(english, english).GetTranslator("en")
	if err := entranslations.RegisterDefaultTranslations(validate, translator); err != nil {
		// ALLOW-PANIC: the built-in translations are static
		panic("failed to register validator translations: " + err.Error())
	}
}

// ValidateRequest validates v. A type with its own Validate method is
// trusted with it; everything else goes through the struct tags. Tag
// failures are translated to English and returned as a domain validation
// error naming the first failing field.
func ValidateRequest(v interface{}) error {
	if self, ok := v.(interface{ Validate() error }); ok {
		return self.Validate()
	}

	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return domain.NewValidationError("", err.Error(), nil)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Translate(translator))
	}
	return domain.NewValidationError("", strings.Join(msgs, "; "), nil)
}
