package onboarding

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	// Validate checks student rows. Field names in errors come from csv tags.
	Validate   *validator.Validate
	Translator ut.Translator

	emailShapeTag   = "emailshape"
	integerTag      = "integer"
	emailShapeRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

func init() {
	Validate = validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	var found bool
	if Translator, found = uni.GetTranslator("en"); !found {
		panic("onboarding: en translator not found")
	}
	must("register default translations", en_translations.RegisterDefaultTranslations(Validate, Translator))

	Validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("csv"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	must("register "+emailShapeTag, Validate.RegisterValidation(emailShapeTag, emailShapeValidation))
	must("register "+integerTag, Validate.RegisterValidation(integerTag, integerValidation))

	registerReason("required", "{0} is required")
	registerReason(emailShapeTag, "{0} is not a valid email address")
	registerReason(integerTag, "{0} must be an integer")
}

// must panics on setup errors; they can only come from a programming mistake.
func must(what string, err error) {
	if err != nil {
		panic(fmt.Sprintf("onboarding: %s: %v", what, err))
	}
}

// registerReason overrides the translation used as the failure reason for tag.
func registerReason(tag, text string) {
	err := Validate.RegisterTranslation(
		tag, Translator,
		func(t ut.Translator) error { return t.Add(tag, text, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
	must("register "+tag+" translation", err)
}

func emailShapeValidation(fl validator.FieldLevel) bool {
	return emailShapeRegex.MatchString(fl.Field().String())
}

// integerValidation accepts values that fit the 32-bit batch column.
func integerValidation(fl validator.FieldLevel) bool {
	_, err := strconv.ParseInt(fl.Field().String(), 10, 32)
	return err == nil
}

// rowSchema is the validation view of a Row.
type rowSchema struct {
	Name      string `csv:"name" validate:"required"`
	Email     string `csv:"email" validate:"required,emailshape"`
	StudentID string `csv:"student_id" validate:"required"`
	Batch     string `csv:"batch" validate:"omitempty,integer"`
}

// ValidationResult is the outcome of ValidateRow.
type ValidationResult struct {
	Valid   bool
	Reasons []string

	input StudentInput
}

// Reason joins all failure reasons for reporting.
func (r ValidationResult) Reason() string {
	return strings.Join(r.Reasons, "; ")
}

// Input returns the typed record. Only meaningful when Valid is true.
func (r ValidationResult) Input() StudentInput {
	return r.input
}

// ValidateRow checks a row against the student schema. Every failing field
// contributes a reason; validation never stops at the first problem.
func ValidateRow(row Row) ValidationResult {
	schema := rowSchema{
		Name:      strings.TrimSpace(row.Name),
		Email:     strings.TrimSpace(row.Email),
		StudentID: strings.TrimSpace(row.StudentID),
		Batch:     strings.TrimSpace(deref(row.Batch)),
	}

	var reasons []string
	if err := Validate.Struct(schema); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				reasons = append(reasons, fe.Translate(Translator))
			}
		} else {
			reasons = append(reasons, err.Error())
		}
	}

	if len(reasons) > 0 {
		return ValidationResult{Reasons: reasons}
	}

	in := StudentInput{
		Name:          schema.Name,
		Email:         schema.Email,
		StudentID:     schema.StudentID,
		DegreeProgram: row.DegreeProgram,
		Semester:      row.Semester,
	}
	if schema.Batch != "" {
		n, _ := strconv.ParseInt(schema.Batch, 10, 32)
		batch := int(n)
		in.Batch = &batch
	}

	return ValidationResult{Valid: true, input: in}
}
