// Package form reads intent-tagged action requests and turns binding failures into
// field-keyed errors.
package form

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/provider-portal/backend/pkg/apperr"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(fieldName)
	}
}

// fieldName reports errors under the json (or form) name the client sent.
func fieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "" {
		name = strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
	}
	if name == "-" {
		return ""
	}
	return name
}

type envelope struct {
	Intent string `json:"intent" form:"intent"`
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/")
}

// Intent returns the intent discriminator of an action request. The JSON body is cached
// so Bind can read it again.
func Intent(c *gin.Context) (string, error) {
	var env envelope
	var err error
	if isMultipart(c) {
		env.Intent = c.PostForm("intent")
	} else {
		err = c.ShouldBindBodyWith(&env, binding.JSON)
	}
	if err != nil {
		return "", apperr.BadRequest("invalid request body")
	}
	if env.Intent == "" {
		return "", apperr.Field("intent", "Intent is required")
	}
	return env.Intent, nil
}

// Bind decodes and validates the request into dst.
func Bind(c *gin.Context, dst interface{}) error {
	var err error
	if isMultipart(c) {
		err = c.ShouldBindWith(dst, binding.FormMultipart)
	} else {
		err = c.ShouldBindBodyWith(dst, binding.JSON)
	}
	if err == nil {
		return nil
	}
	return Translate(err)
}

// Translate converts validator errors into a field-keyed validation error.
func Translate(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.BadRequest("invalid request body")
	}
	fields := apperr.FieldErrors{}
	for _, fe := range verrs {
		fields.Add(fe.Field(), message(fe))
	}
	return apperr.Validation(fields)
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email address"
	case "len":
		return fmt.Sprintf("Must be exactly %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("Must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("Must be at most %s characters", fe.Param())
	case "numeric":
		return "Must contain only digits"
	case "uuid":
		return "Invalid identifier"
	case "oneof":
		return "Must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "excludes":
		return fmt.Sprintf("Must not contain %s", fe.Param())
	case "alphanum":
		return "Must contain only letters and digits"
	default:
		return "Invalid value"
	}
}

// OptionalUUID parses s, returning nil for an empty or malformed value. Inputs are
// validated with the uuid tag before this is called.
func OptionalUUID(s string) *uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		return nil
	}
	return &id
}

// UUIDs parses ids, dropping duplicates and malformed values while keeping order.
func UUIDs(ids []string) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, s := range ids {
		id, err := uuid.Parse(s)
		if err != nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
