// Package env loads configuration structs from environment variables.
package env

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Validator is implemented by config structs that need validation.
type Validator interface {
	Validate() error
}

// ErrInvalidValue is returned when an environment variable value cannot be parsed.
type ErrInvalidValue struct {
	Field  string
	EnvVar string
	Value  string
	Err    error
}

func (e ErrInvalidValue) Error() string {
	return fmt.Sprintf("invalid value for %s=%q (field: %s): %v", e.EnvVar, e.Value, e.Field, e.Err)
}

func (e ErrInvalidValue) Unwrap() error {
	return e.Err
}

// ErrNotStructPointer is returned when Load is called with a non-pointer or non-struct argument.
type ErrNotStructPointer struct {
	Type string
}

func (e ErrNotStructPointer) Error() string {
	return fmt.Sprintf("env.Load: argument must be a pointer to struct, got %s", e.Type)
}

// ErrUnsupportedType is returned when a field has an unsupported type.
type ErrUnsupportedType struct {
	Kind string
}

func (e ErrUnsupportedType) Error() string {
	return fmt.Sprintf("unsupported type: %s", e.Kind)
}

// Load fills the struct pointed to by v from environment variables, then runs
// Validate on v and on every nested struct that implements Validator.
//
// Fields opt in with an `env:"VAR_NAME"` tag. A `default:"value"` tag applies
// when VAR_NAME is unset; a variable set to the empty string is kept as is.
// Supported kinds are string, bool, integers, floats, time.Duration and
// []string (comma separated, blanks dropped).
func Load(v any) error {
	ptrVal := reflect.ValueOf(v)
	if ptrVal.Kind() != reflect.Pointer || ptrVal.Elem().Kind() != reflect.Struct {
		return ErrNotStructPointer{Type: fmt.Sprintf("%T", v)}
	}

	vp := viper.New()
	vp.AllowEmptyEnv(true)
	l := loader{vp: vp}

	if err := l.parseStruct(ptrVal.Elem()); err != nil {
		return err
	}
	if validator, ok := v.(Validator); ok {
		return validator.Validate()
	}
	return nil
}

// loader resolves tagged fields through viper's environment bindings.
type loader struct {
	vp *viper.Viper
}

// lookup returns the value bound to key, falling back to its default tag.
func (l loader) lookup(key string, field reflect.StructField) (string, bool) {
	_ = l.vp.BindEnv(key, key)
	if def, ok := field.Tag.Lookup("default"); ok {
		l.vp.SetDefault(key, def)
	}
	if !l.vp.IsSet(key) {
		return "", false
	}
	return l.vp.GetString(key), true
}

var timeType = reflect.TypeOf(time.Time{})

func (l loader) parseStruct(val reflect.Value) error {
	typ := val.Type()

	for i := range val.NumField() {
		field := val.Field(i)
		structField := typ.Field(i)
		if !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct && field.Type() != timeType {
			if err := l.parseStruct(field); err != nil {
				return err
			}
			if validator, ok := field.Addr().Interface().(Validator); ok {
				if err := validator.Validate(); err != nil {
					return err
				}
			}
			continue
		}

		key := structField.Tag.Get("env")
		if key == "" {
			continue
		}
		value, ok := l.lookup(key, structField)
		if !ok {
			continue
		}
		if err := setField(field, value); err != nil {
			return ErrInvalidValue{Field: structField.Name, EnvVar: key, Value: value, Err: err}
		}
	}
	return nil
}

func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
		return nil

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
		return nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// Special case for time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}

		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(i)
		return nil

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetFloat(f)
		return nil

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return ErrUnsupportedType{Kind: "[]" + field.Type().Elem().Kind().String()}
		}
		var items []string
		for item := range strings.SplitSeq(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		field.Set(reflect.ValueOf(items).Convert(field.Type()))
		return nil

	default:
		return ErrUnsupportedType{Kind: field.Kind().String()}
	}
}
