// Package validation holds the input schemas for account flows. It performs
// no I/O, so a failed check never reaches a store.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/geocoder89/coursehub/internal/apperr"
	"github.com/geocoder89/coursehub/internal/domain/user"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.SetTagName("binding")
	v.RegisterTagNameFunc(func(sf reflect.StructField) string {
		name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return sf.Name
		}
		return name
	})
	_ = v.RegisterValidation("maxbytes", maxBytes)
	return v
}

// maxBytes bounds the encoded length of a string, e.g. "maxbytes=72".
// max counts characters, which lets multi-byte input slip past limits that
// are defined in bytes.
func maxBytes(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil || fl.Field().Kind() != reflect.String {
		return false
	}
	return len(fl.Field().String()) <= limit
}

type SignUpInput struct {
	FirstName string `json:"firstName" binding:"required,max=100"`
	LastName  string `json:"lastName" binding:"required,max=100"`
	Email     string `json:"email" binding:"required,email,max=254"`
	// bcrypt rejects anything past 72 bytes.
	Password string `json:"password" binding:"required,min=6,maxbytes=72"`
}

type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LookupInput struct {
	UserID string `json:"userId" binding:"required"`
}

// SignUp normalizes and checks a signup request. The returned input is the
// normalized one and is what callers should persist.
func SignUp(in SignUpInput) (SignUpInput, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = user.NormalizeEmail(in.Email)

	if err := Struct(in); err != nil {
		return in, err
	}
	return in, nil
}

func Login(in LoginInput) (LoginInput, error) {
	in.Email = user.NormalizeEmail(in.Email)
	if err := Struct(in); err != nil {
		return in, err
	}
	return in, nil
}

func Lookup(in LookupInput) (LookupInput, error) {
	in.UserID = strings.TrimSpace(in.UserID)
	if err := Struct(in); err != nil {
		return in, err
	}
	return in, nil
}

// Struct runs the binding rules of v and reports failures as a validation
// app error with one entry per failing field.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Wrap(apperr.Validation, "Validation failed", err)
	}

	return apperr.Invalid(FieldErrors(verrs))
}

func FieldErrors(verrs validator.ValidationErrors) []apperr.FieldError {
	fields := make([]apperr.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperr.FieldError{
			Field:   fe.Field(),
			Rule:    fe.Tag(),
			Param:   fe.Param(),
			Message: Message(fe.Tag(), fe.Param(), fe.Kind()),
		})
	}
	return fields
}

func Message(rule, param string, kind reflect.Kind) string {
	unit := ""
	if kind == reflect.String {
		unit = " characters"
	}

	switch rule {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "uuid":
		return "must be a valid UUID"
	case "min":
		return "must be at least " + param + unit
	case "max":
		return "must be at most " + param + unit
	case "maxbytes":
		return "must be at most " + param + " bytes"
	case "len":
		return "must be exactly " + param + unit
	case "oneof":
		return "must be one of " + strings.ReplaceAll(param, " ", ", ")
	default:
		if param != "" {
			return fmt.Sprintf("failed %s validation (%s)", rule, param)
		}
		return "failed " + rule + " validation"
	}
}
