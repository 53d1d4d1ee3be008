package api

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/warp/spirit-ledger/spirit"
)

// =============================================================================
// REQUEST VALIDATION
// =============================================================================

var (
	validate     *validator.Validate
	validateOnce sync.Once

	tankIDRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,31}$`)
)

// customRule is a validator tag backed by one of the functions below.
type customRule struct {
	tag string
	fn  validator.Func
}

var customRules = []customRule{
	{tag: "decimal", fn: validateDecimal},
	{tag: "tank_id", fn: validateTankID},
}

// requestValidator returns the shared validator with the custom rules.
// A rule that fails to register panics on first use.
func requestValidator() *validator.Validate {
	validateOnce.Do(func() {
		v, err := newRequestValidator(customRules)
		if err != nil {
			panic(err)
		}
		validate = v
	})
	return validate
}

func newRequestValidator(rules []customRule) (*validator.Validate, error) {
	v := validator.New()
	for _, rule := range rules {
		if err := v.RegisterValidation(rule.tag, rule.fn); err != nil {
			return nil, fmt.Errorf("register %q validation: %w", rule.tag, err)
		}
	}

	// Report JSON field names, not Go field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return fld.Name
		}
		return name
	})
	return v, nil
}

func validateDecimal(fl validator.FieldLevel) bool {
	_, err := decimal.NewFromString(fl.Field().String())
	return err == nil
}

func validateTankID(fl validator.FieldLevel) bool {
	return tankIDRegex.MatchString(fl.Field().String())
}

// RequestError is a malformed request body. It unwraps to the domain
// sentinel matching the request so IsClientError sees it.
type RequestError struct {
	Fields map[string]string
	Kind   error
}

func (e *RequestError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return fmt.Sprintf("%v: %s", e.Kind, strings.Join(parts, ", "))
}

func (e *RequestError) Unwrap() error {
	return e.Kind
}

// validateRequest runs the struct rules. kind is the sentinel reported on failure.
func validateRequest(req any, kind error) error {
	err := requestValidator().Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", kind, err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		// Namespace is "ReceiptRequest.advised_al"; drop the struct name.
		ns := fe.Namespace()
		fields[ns[strings.Index(ns, ".")+1:]] = fe.Tag()
	}
	return &RequestError{Fields: fields, Kind: kind}
}

// =============================================================================
// FIELD PARSING
// =============================================================================

// The validator has already checked these strings; the errors are for
// callers that skip it.

func parseDecimal(field, s string, kind error) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &spirit.InvalidValueError{Field: field, Reason: "is not a decimal", Kind: kind}
	}
	return d, nil
}

func parseOptionalDecimal(field, s string, kind error) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := parseDecimal(field, s, kind)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
