package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"superstore-dashboard/internal/errors"
	"superstore-dashboard/internal/models"
)

// Selection query parameters. Each may repeat.
const (
	paramRegion   = "region"
	paramSegment  = "segment"
	paramCategory = "category"
)

const defaultPageLimit = 50

type pageQuery struct {
	Offset int `json:"offset" validate:"min=0"`
	Limit  int `json:"limit" validate:"min=1,max=500"`
}

type exportQuery struct {
	Format string `json:"format" validate:"oneof=csv xlsx"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validate runs struct validation and converts failures into a single
// VALIDATION_ERROR.
func validate(v *validator.Validate, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.ValidationWrap(err, "invalid request")
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, formatFieldError(fe))
	}
	return errors.ValidationWrap(err, strings.Join(msgs, "; "))
}

func formatFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

func parsePage(v *validator.Validate, q url.Values) (pageQuery, error) {
	page := pageQuery{Offset: 0, Limit: defaultPageLimit}
	var err error
	if raw := q.Get("offset"); raw != "" {
		if page.Offset, err = strconv.Atoi(raw); err != nil {
			return page, errors.ValidationWrap(err, "offset must be an integer")
		}
	}
	if raw := q.Get("limit"); raw != "" {
		if page.Limit, err = strconv.Atoi(raw); err != nil {
			return page, errors.ValidationWrap(err, "limit must be an integer")
		}
	}
	return page, validate(v, page)
}

func parseExport(v *validator.Validate, q url.Values) (exportQuery, error) {
	exp := exportQuery{Format: "csv"}
	if raw := q.Get("format"); raw != "" {
		exp.Format = strings.ToLower(raw)
	}
	return exp, validate(v, exp)
}

// parseSelection reads the selection from the query string. An absent
// parameter keeps the default component; a present one replaces it with
// its non-empty values, which may leave it empty.
func parseSelection(r *http.Request, defaults models.FilterSelection) models.FilterSelection {
	q := r.URL.Query()
	return models.FilterSelection{
		Regions:    selectionParam(q, paramRegion, defaults.Regions),
		Segments:   selectionParam(q, paramSegment, defaults.Segments),
		Categories: selectionParam(q, paramCategory, defaults.Categories),
	}
}

func selectionParam(q url.Values, key string, fallback []string) []string {
	values, ok := q[key]
	if !ok {
		return fallback
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// encodeSelection is the inverse of parseSelection. Every component is
// written, so an empty one round-trips as the empty set.
func encodeSelection(sel models.FilterSelection) string {
	q := url.Values{}
	encode := func(key string, values []string) {
		if len(values) == 0 {
			q.Set(key, "")
			return
		}
		q[key] = append([]string(nil), values...)
	}
	encode(paramRegion, sel.Regions)
	encode(paramSegment, sel.Segments)
	encode(paramCategory, sel.Categories)
	return q.Encode()
}
