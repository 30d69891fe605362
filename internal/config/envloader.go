package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var durationType = reflect.TypeOf(time.Duration(0))

// ApplyEnv overrides fields of cfg from the environment variables named by
// their `env` struct tags. Nested structs are walked; unset or empty
// variables leave the field alone.
func ApplyEnv(cfg any) error {
	return applyEnv(reflect.ValueOf(cfg), os.LookupEnv)
}

func applyEnv(v reflect.Value, lookup func(string) (string, bool)) error {
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		sf := t.Field(i)
		if !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct && field.Type() != durationType {
			if err := applyEnv(field.Addr(), lookup); err != nil {
				return err
			}
			continue
		}

		name := sf.Tag.Get("env")
		if name == "" {
			continue
		}
		value, ok := lookup(name)
		if !ok || value == "" {
			continue
		}
		if err := setField(field, value); err != nil {
			return fmt.Errorf("invalid value for %s: %w", name, err)
		}
	}
	return nil
}

func setField(field reflect.Value, value string) error {
	switch {
	case field.Type() == durationType:
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))

	case field.Kind() == reflect.String:
		field.SetString(value)

	case field.Kind() == reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case field.Kind() >= reflect.Int && field.Kind() <= reflect.Int64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(n)

	case field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.String:
		parts := splitList(value)
		field.Set(reflect.ValueOf(parts))

	case field.Kind() == reflect.Map &&
		field.Type().Key().Kind() == reflect.String &&
		field.Type().Elem().Kind() == reflect.String:
		m := make(map[string]string)
		for _, pair := range splitList(value) {
			k, val, found := strings.Cut(pair, "=")
			if !found || k == "" {
				return fmt.Errorf("expected KEY=VALUE, got %q", pair)
			}
			m[k] = val
		}
		field.Set(reflect.ValueOf(m))

	default:
		return fmt.Errorf("unsupported field type %s", field.Type())
	}
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
