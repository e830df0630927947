package discovery

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Listing types selectable with the type query parameter.
const (
	ListFeatured   = "featured"
	ListTop        = "top"
	ListComingSoon = "coming-soon"
	ListSearch     = "search"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ListParams are the query parameters of GET /games.
type ListParams struct {
	Type               string   `validate:"omitempty,oneof=featured top coming-soon search"`
	MinRating          *float64 `validate:"omitempty,min=0,max=100"`
	GenreIDs           []int64
	PlatformIDs        []int64
	DeveloperCompanyID *int64 `validate:"omitempty,gt=0"`
	Year               *int   `validate:"omitempty,min=1,max=9999"`
	ComingSoon         bool
	Sort               string `validate:"omitempty,oneof=hot rating count newest release_asc"`
	Limit              *int   `validate:"omitempty,min=1,max=100"`
	Offset             *int   `validate:"omitempty,min=0"`
	Query              string
}

// ListBody is the JSON body of POST /games. A non-empty Query is a raw
// catalog query and the structured fields are ignored.
type ListBody struct {
	Query              string   `json:"query"`
	MinRating          *float64 `json:"minRating" validate:"omitempty,min=0,max=100"`
	GenreIDs           []int64  `json:"genreIds"`
	PlatformIDs        []int64  `json:"platformIds"`
	DeveloperCompanyID *int64   `json:"developerCompanyId" validate:"omitempty,gt=0"`
	Year               *int     `json:"year" validate:"omitempty,min=1,max=9999"`
	ComingSoon         bool     `json:"comingSoon"`
	Sort               string   `json:"sort" validate:"omitempty,oneof=hot rating count newest release_asc"`
	Limit              *int     `json:"limit" validate:"omitempty,min=1,max=200"`
	Offset             *int     `json:"offset" validate:"omitempty,min=0"`
}

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned when request input fails validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Field + ": " + f.Message
	}
	return "invalid parameters: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidCriteria
}

// ParseListParams reads and validates GET /games query parameters.
// Non-numeric entries in the id lists are dropped.
func ParseListParams(values url.Values) (ListParams, error) {
	p := ListParams{
		Type:        values.Get("type"),
		GenreIDs:    parseIDList(values.Get("genreIds")),
		PlatformIDs: parseIDList(values.Get("platformIds")),
		ComingSoon:  values.Get("comingSoon") == "1",
		Sort:        values.Get("sort"),
		Query:       values.Get("q"),
	}

	var fieldErrs []FieldError
	numeric := func(name string, parse func(string) error) {
		v := strings.TrimSpace(values.Get(name))
		if v == "" {
			return
		}
		if err := parse(v); err != nil {
			fieldErrs = append(fieldErrs, FieldError{Field: name, Message: "must be a number"})
		}
	}

	numeric("minRating", func(v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			p.MinRating = &f
		}
		return err
	})
	numeric("developerCompanyId", func(v string) error {
		n, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			p.DeveloperCompanyID = &n
		}
		return err
	})
	numeric("year", func(v string) error {
		n, err := strconv.Atoi(v)
		if err == nil {
			p.Year = &n
		}
		return err
	})
	numeric("limit", func(v string) error {
		n, err := strconv.Atoi(v)
		if err == nil {
			p.Limit = &n
		}
		return err
	})
	numeric("offset", func(v string) error {
		n, err := strconv.Atoi(v)
		if err == nil {
			p.Offset = &n
		}
		return err
	})

	if len(fieldErrs) > 0 {
		return p, &ValidationError{Fields: fieldErrs}
	}
	if err := validateStruct(p, listParamNames); err != nil {
		return p, err
	}
	return p, nil
}

// Criteria converts validated parameters to discovery criteria.
func (p ListParams) Criteria() Criteria {
	return Criteria{
		MinRating:          p.MinRating,
		GenreIDs:           p.GenreIDs,
		PlatformIDs:        p.PlatformIDs,
		DeveloperCompanyID: p.DeveloperCompanyID,
		ReleaseYear:        p.Year,
		ComingSoonOnly:     p.ComingSoon,
		Sort:               SortMode(p.Sort),
		Limit:              derefOr(p.Limit, 0),
		Offset:             derefOr(p.Offset, 0),
	}
}

// Validate checks the structured fields of the body.
func (b ListBody) Validate() error {
	return validateStruct(b, listBodyNames)
}

// Criteria converts a validated body to discovery criteria.
func (b ListBody) Criteria() Criteria {
	return Criteria{
		MinRating:          b.MinRating,
		GenreIDs:           b.GenreIDs,
		PlatformIDs:        b.PlatformIDs,
		DeveloperCompanyID: b.DeveloperCompanyID,
		ReleaseYear:        b.Year,
		ComingSoonOnly:     b.ComingSoon,
		Sort:               SortMode(b.Sort),
		Limit:              derefOr(b.Limit, 0),
		Offset:             derefOr(b.Offset, 0),
	}
}

var listParamNames = map[string]string{
	"Type":               "type",
	"MinRating":          "minRating",
	"DeveloperCompanyID": "developerCompanyId",
	"Year":               "year",
	"Sort":               "sort",
	"Limit":              "limit",
	"Offset":             "offset",
}

var listBodyNames = map[string]string{
	"MinRating":          "minRating",
	"DeveloperCompanyID": "developerCompanyId",
	"Year":               "year",
	"Sort":               "sort",
	"Limit":              "limit",
	"Offset":             "offset",
}

func validateStruct(s any, names map[string]string) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", ErrInvalidCriteria, err)
	}

	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		name, ok := names[fe.StructField()]
		if !ok {
			name = fe.Field()
		}
		fields = append(fields, FieldError{Field: name, Message: fieldMessage(fe)})
	}
	return &ValidationError{Fields: fields}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "is invalid"
	}
}

func parseIDList(s string) []int64 {
	if s == "" {
		return nil
	}
	var ids []int64
	for part := range strings.SplitSeq(s, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func derefOr[T any](v *T, fallback T) T {
	if v == nil {
		return fallback
	}
	return *v
}
