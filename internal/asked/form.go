package asked

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Form is what a user submits to schedule a question.
type Form struct {
	Text           string    `validate:"required"`
	CollectionDate time.Time `validate:"required,gt"`
	AskedBy        string
}

// ValidationError carries one message per rejected field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, k := range e.fieldNames() {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "asked: invalid form: " + strings.Join(parts, "; ")
}

// Message lists the problems for the user, one per line.
func (e *ValidationError) Message() string {
	lines := make([]string, 0, len(e.Fields))
	for _, k := range e.fieldNames() {
		lines = append(lines, "⚠️ "+e.Fields[k])
	}
	return strings.Join(lines, "\n")
}

func (e *ValidationError) fieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

var validate = validator.New(validator.WithRequiredStructEnabled())

var fieldMessages = map[string]map[string]string{
	"Text": {
		"required": "Please type a question",
	},
	"CollectionDate": {
		"required": "Please pick a collection date",
		"gt":       "The collection date must be in the future",
	},
}

func validateForm(f Form) error {
	err := validate.Struct(f)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	out := &ValidationError{Fields: make(map[string]string, len(ve))}
	for _, fe := range ve {
		msg := fieldMessages[fe.Field()][fe.Tag()]
		if msg == "" {
			msg = fe.Tag()
		}
		out.Fields[fe.Field()] = msg
	}
	return out
}

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04"
)

// ParseCommand reads "<YYYY-MM-DD> [HH:MM] <question>". A date without a
// time collects until the end of that day.
func ParseCommand(args string, loc *time.Location) (Form, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return Form{}, &ValidationError{Fields: map[string]string{"CollectionDate": "Please pick a collection date"}}
	}
	if loc == nil {
		loc = time.UTC
	}
	date, err := time.ParseInLocation(dateLayout, fields[0], loc)
	if err != nil {
		return Form{}, &ValidationError{Fields: map[string]string{"CollectionDate": fmt.Sprintf("Unrecognized date %q, use YYYY-MM-DD", fields[0])}}
	}
	rest := fields[1:]
	if len(rest) > 0 {
		if at, err := time.ParseInLocation(dateTimeLayout, fields[0]+" "+rest[0], loc); err == nil {
			date = at
			rest = rest[1:]
		} else {
			date = date.Add(24*time.Hour - time.Minute)
		}
	} else {
		date = date.Add(24*time.Hour - time.Minute)
	}
	return Form{Text: strings.Join(rest, " "), CollectionDate: date}, nil
}
