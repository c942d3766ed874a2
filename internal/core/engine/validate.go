package engine

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/apony/quoteintake/internal/core"
)

// MaxNoteLength is the longest note, in characters, a submission may carry.
const MaxNoteLength = 500

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Validation rule identifiers reported in ValidationError.Rule.
const (
	RuleRequiredFields = "required_fields"
	RuleEmailFormat    = "email_format"
	RuleShipDate       = "ship_date_format"
	RuleWeight         = "weight_positive"
	RuleNonNegative    = "non_negative"
	RuleServices       = "services_required"
	RuleServiceUnknown = "service_unknown"
	RuleConsent        = "consent_required"
	RuleNoteLength     = "note_too_long"
	RuleMalformedBody  = "malformed_body"
)

// ValidationError reports the first rule a submission violated.
type ValidationError struct {
	Rule    string
	Fields  []string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ruleOrder ranks rules so the first violation reported follows field
// priority rather than struct layout.
var ruleOrder = map[string]int{
	RuleRequiredFields: 0,
	RuleEmailFormat:    1,
	RuleShipDate:       2,
	RuleWeight:         3,
	RuleNonNegative:    4,
	RuleServices:       5,
	RuleServiceUnknown: 6,
	RuleConsent:        7,
	RuleNoteLength:     8,
}

var submissionValidator = newSubmissionValidator()

func newSubmissionValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	mustRegister(v, "contactemail", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(strings.TrimSpace(fl.Field().String()))
	})
	mustRegister(v, "shipdate", func(fl validator.FieldLevel) bool {
		_, ok := ParseShipDate(fl.Field().String())
		return ok
	})
	mustRegister(v, "servicetype", func(fl validator.FieldLevel) bool {
		return core.ServiceType(fl.Field().String()).Valid()
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

// ValidateSubmission checks s and returns a *ValidationError for the first
// rule it breaks, or nil.
func ValidateSubmission(s core.Submission) error {
	err := submissionValidator.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &ValidationError{Rule: RuleMalformedBody, Message: err.Error()}
	}

	var missing []string
	var first validator.FieldError
	firstRule := ""
	for _, fe := range fieldErrs {
		rule := ruleFor(fe)
		if rule == RuleRequiredFields {
			missing = append(missing, fe.Field())
			continue
		}
		if first == nil || ruleOrder[rule] < ruleOrder[firstRule] {
			first, firstRule = fe, rule
		}
	}

	if len(missing) > 0 {
		return &ValidationError{
			Rule:    RuleRequiredFields,
			Fields:  missing,
			Message: "Missing required fields: " + strings.Join(missing, ", "),
		}
	}
	return newFieldError(firstRule, first)
}

func ruleFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "notblank":
		return RuleRequiredFields
	case "required":
		if fe.StructField() == "Services" {
			return RuleServices
		}
		return RuleRequiredFields
	case "contactemail":
		return RuleEmailFormat
	case "shipdate":
		return RuleShipDate
	case "gt":
		return RuleWeight
	case "gte":
		return RuleNonNegative
	case "min":
		return RuleServices
	case "servicetype":
		return RuleServiceUnknown
	case "eq":
		return RuleConsent
	case "max":
		return RuleNoteLength
	default:
		return RuleMalformedBody
	}
}

func newFieldError(rule string, fe validator.FieldError) error {
	field := fe.Field()
	switch rule {
	case RuleEmailFormat:
		return &ValidationError{Rule: rule, Fields: []string{field}, Message: "Invalid email format"}
	case RuleShipDate:
		return &ValidationError{Rule: rule, Fields: []string{field}, Message: "shipDate must be a date (YYYY-MM-DD)"}
	case RuleWeight:
		return &ValidationError{Rule: rule, Fields: []string{field}, Message: "weightKg must be greater than zero"}
	case RuleNonNegative:
		return &ValidationError{Rule: rule, Fields: []string{field}, Message: field + " must not be negative"}
	case RuleServices:
		return &ValidationError{Rule: rule, Fields: []string{"services"}, Message: "At least one service type must be selected"}
	case RuleServiceUnknown:
		return &ValidationError{
			Rule:    rule,
			Fields:  []string{"services"},
			Message: fmt.Sprintf("Unknown service type %q", fmt.Sprint(fe.Value())),
		}
	case RuleConsent:
		return &ValidationError{Rule: rule, Fields: []string{field}, Message: "Consent is required"}
	case RuleNoteLength:
		return &ValidationError{
			Rule:    rule,
			Fields:  []string{field},
			Message: fmt.Sprintf("Note must be %d characters or less", MaxNoteLength),
		}
	default:
		return &ValidationError{Rule: RuleMalformedBody, Fields: []string{field}, Message: "Invalid value for " + field}
	}
}

// ParseShipDate accepts a calendar date or an RFC 3339 timestamp.
func ParseShipDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, true
	}
	return time.Time{}, false
}
