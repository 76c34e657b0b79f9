package schema

import (
	"errors"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Message keys emitted by Validate. Callers localize them.
const (
	MsgNameEmpty         = "storage_name_empty"
	MsgNameInvalid       = "storage_name_invalid"
	MsgParameterRequired = "parameter_required"
	MsgParameterInvalid  = "parameter_invalid"
	MsgParameterRange    = "parameter_out_of_range"
	MsgParameterOption   = "parameter_not_an_option"
)

// nameRe is the backend's grammar for storage names: letters, digits, '_',
// '.', '+', '@', '-' and inner spaces; no leading '-' or surrounding spaces.
var nameRe = regexp.MustCompile(`^[\w\p{L}\p{N}.+@][\w\p{L}\p{N}.+@ -]*$`)

var nameRules = []validation.Rule{
	validation.Required.ErrorObject(validation.NewError(MsgNameEmpty, "storage name is required")),
	validation.Match(nameRe).ErrorObject(validation.NewError(MsgNameInvalid, "storage name contains invalid characters")),
	validation.By(func(v any) error {
		if s, _ := v.(string); len(s) > 0 && s[len(s)-1] == ' ' {
			return validation.NewError(MsgNameInvalid, "storage name must not end with a space")
		}
		return nil
	}),
}

// Result is the outcome of Validate. Message is a message key, empty when OK.
type Result struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Field   string `json:"field,omitempty"`
}

func fail(key, field string) Result {
	return Result{Message: key, Field: field}
}

// ValidateName checks a storage name against the backend's naming rules.
func ValidateName(name string) Result {
	if err := validation.Validate(name, nameRules...); err != nil {
		return fail(errorCode(err, MsgNameInvalid), "name")
	}
	return Result{OK: true}
}

// Validate checks the storage name, then every definition of s in order
// (standard before advanced), and reports the first violation. A required
// definition is satisfied by a user value or a non-empty default. values is
// not modified.
func Validate(name string, values Parameters, s Schema) Result {
	if r := ValidateName(name); !r.OK {
		return r
	}
	for _, d := range s.Definitions() {
		v, set := values[d.Key]
		if !set || isEmpty(v) {
			v = d.Resolved()
		}
		if isEmpty(v) {
			if d.Required {
				return fail(MsgParameterRequired, d.Key)
			}
			continue
		}
		if key := checkDefinition(d, v); key != "" {
			return fail(key, d.Key)
		}
	}
	return Result{OK: true}
}

func checkDefinition(d Definition, v any) string {
	switch d.Type {
	case Enum:
		if !d.HasOption(v) {
			return MsgParameterOption
		}
	case Number:
		f, ok := toFloat(v)
		if !ok {
			return MsgParameterInvalid
		}
		if minV := d.Constraints.Min; minV != nil && f < *minV {
			return MsgParameterRange
		}
		if maxV := d.Constraints.Max; maxV != nil && f > *maxV {
			return MsgParameterRange
		}
	case Boolean:
		if _, ok := coerce(Boolean, v); !ok {
			return MsgParameterInvalid
		}
	case TagList:
		if _, ok := coerce(TagList, v); !ok {
			return MsgParameterInvalid
		}
	case Text:
		if d.Constraints.Pattern == "" {
			return ""
		}
		re, err := regexp.Compile(d.Constraints.Pattern)
		if err != nil {
			return MsgParameterInvalid
		}
		s, _ := coerce(Text, v)
		err = validation.Validate(s, validation.Match(re).ErrorObject(validation.NewError(MsgParameterInvalid, "value has an invalid format")))
		if err != nil {
			return errorCode(err, MsgParameterInvalid)
		}
	}
	return ""
}

func errorCode(err error, fallback string) string {
	var vErr validation.Error
	if errors.As(err, &vErr) && vErr.Code() != "" {
		return vErr.Code()
	}
	return fallback
}
