package config

import (
	"encoding"
	"reflect"
	"strconv"
	"strings"
	"time"

	beanerrors "github.com/km-arc/go-beans/framework/errors"
)

var (
	durationType        = reflect.TypeFor[time.Duration]()
	timeType            = reflect.TypeFor[time.Time]()
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
)

// dateLayouts are tried in order when converting to time.Time.
var dateLayouts = []string{time.RFC3339Nano, time.DateTime, time.DateOnly}

// convert turns the text of key into a value of type t.
func convert(key, s string, t reflect.Type) (any, error) {
	if t == nil || (t.Kind() == reflect.Interface && t.NumMethod() == 0) {
		return s, nil
	}

	fail := func(err error) (any, error) {
		return nil, &beanerrors.PropertyConversionError{Key: key, Value: s, Type: t.String(), Cause: err}
	}

	switch t {
	case durationType:
		d, err := time.ParseDuration(s)
		if err != nil {
			return fail(err)
		}
		return d, nil
	case timeType:
		var err error
		for _, layout := range dateLayouts {
			var tm time.Time
			if tm, err = time.Parse(layout, s); err == nil {
				return tm, nil
			}
		}
		return fail(err)
	}

	if reflect.PointerTo(t).Implements(textUnmarshalerType) {
		v := reflect.New(t)
		if err := v.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s)); err != nil {
			return fail(err)
		}
		return v.Elem().Interface(), nil
	}

	v := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.String:
		v.SetString(s)
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return fail(err)
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(s, 10, t.Bits())
		if err != nil {
			return fail(err)
		}
		v.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(s, 10, t.Bits())
		if err != nil {
			return fail(err)
		}
		v.SetUint(u)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, t.Bits())
		if err != nil {
			return fail(err)
		}
		v.SetFloat(f)
	case reflect.Slice:
		if t.Elem().Kind() != reflect.String {
			return nil, &beanerrors.PropertyConversionError{Key: key, Value: s, Type: t.String()}
		}
		parts := splitList(s)
		sl := reflect.MakeSlice(t, len(parts), len(parts))
		for i, part := range parts {
			sl.Index(i).SetString(part)
		}
		v.Set(sl)
	default:
		return nil, &beanerrors.PropertyConversionError{Key: key, Value: s, Type: t.String()}
	}
	return v.Interface(), nil
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
