package validator

import (
	"errors"
	"fmt"
	"strings"

	"peerpair/pkg/logger"
	"peerpair/pkg/model"
	"peerpair/pkg/sanitizer"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// Fields maps each failing field to its message, for error details.
func (v ValidationErrors) Fields() map[string]any {
	fields := make(map[string]any, len(v))
	for _, err := range v {
		fields[err.Field] = err.Message
	}
	return fields
}

type BookingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewBookingValidator(log *logger.Logger) *BookingValidator {
	v := validator.New()

	if err := v.RegisterValidation("engagement_kind", validateEngagementKind); err != nil {
		log.Fatal("Failed to register 'engagement_kind' validator",
			"error", err,
		)
	}
	if err := v.RegisterValidation("msisdn", validateMSISDN); err != nil {
		log.Fatal("Failed to register 'msisdn' validator",
			"error", err,
		)
	}
	v.RegisterStructValidation(validateDurationCap, model.BookingRequest{})

	log.Debug("Booking validator initialized successfully")

	return &BookingValidator{
		validate: v,
		logger:   log,
	}
}

func validateEngagementKind(fl validator.FieldLevel) bool {
	kind, ok := fl.Field().Interface().(model.EngagementKind)
	if !ok {
		return model.EngagementKind(fl.Field().String()).Valid()
	}
	return kind.Valid()
}

func validateMSISDN(fl validator.FieldLevel) bool {
	return sanitizer.NormalizeMSISDN(fl.Field().String()) != ""
}

func validateDurationCap(sl validator.StructLevel) {
	req := sl.Current().Interface().(model.BookingRequest)
	if !req.EngagementKind.Valid() {
		return
	}
	if req.Duration > req.EngagementKind.MaxDuration() {
		sl.ReportError(req.Duration, "Duration", "duration", "duration_cap", fmt.Sprint(req.EngagementKind.MaxDuration()))
	}
}

func (v *BookingValidator) Validate(req *model.BookingRequest) error {
	return v.check(req)
}

func (v *BookingValidator) ValidatePayment(req *model.PaymentRequest) error {
	return v.check(req)
}

func (v *BookingValidator) check(s any) error {
	if err := v.validate.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *BookingValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "engagement_kind":
			message = fmt.Sprintf("%s must be one of: %s, %s, %s", err.Field(), model.KindShortUnit, model.KindDayUnit, model.KindWeekUnit)
		case "msisdn":
			message = fmt.Sprintf("%s must be a Kenyan mobile number (e.g., 0712345678 or 254712345678)", err.Field())
		case "duration_cap":
			message = fmt.Sprintf("%s must be at most %s for this engagement kind", err.Field(), err.Param())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
