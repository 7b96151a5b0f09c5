package review

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidRequest wraps every local validation failure.
var ErrInvalidRequest = errors.New("invalid manual review")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		answer := sl.Current().Interface().(AnswerInput)
		if answer.QuestionID == nil && answer.QuestionNo == nil {
			sl.ReportError(answer.QuestionID, "question_id", "QuestionID", "question_ref", "")
		}
	}, AnswerInput{})
	return v
}

// Validate checks req before it is sent.
func (req SaveRequest) Validate() error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, describe(fe))
	}
	sort.Strings(problems)
	return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(problems, "; "))
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "SaveRequest.")
	switch fe.Tag() {
	case "question_ref":
		return strings.TrimSuffix(field, ".question_id") + ": question_id or question_no is required"
	case "gt":
		return field + ": must be greater than " + fe.Param()
	case "max":
		return field + ": at most " + fe.Param() + " characters"
	default:
		return field + ": failed " + fe.Tag()
	}
}
