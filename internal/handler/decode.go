package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/recruiting-portal/internal/apperror"
)

// validate checks request structs against their `validate` tags. Field
// names in errors are the JSON names.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON reads the body into dst. An empty body leaves dst at its zero
// value so the route's own "missing fields" check answers it.
func decodeJSON(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return nil
	default:
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return apperror.TooLarge(MsgTooLarge)
		}
		return apperror.ValidationFailed("", "invalid JSON body")
	}
}

// bind decodes and validates dst. Any failed tag is reported with
// missingMsg, the route's fixed text for incomplete input.
func bind(r *http.Request, dst any, missingMsg string) error {
	if err := decodeJSON(r, dst); err != nil {
		return err
	}
	if err := validate.Struct(dst); err != nil {
		field := ""
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			field = verrs[0].Field()
		}
		return apperror.ValidationFailed(field, missingMsg)
	}
	return nil
}

// flexString accepts a JSON string or number. Older clients send class
// years as numbers.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}
