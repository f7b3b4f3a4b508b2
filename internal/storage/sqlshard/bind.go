package sqlshard

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"
)

type segment struct {
	text  string
	param string
}

// parseNamed splits text into literal runs and :name parameters. Quoted
// literals and :: casts are left alone.
func parseNamed(text string) ([]segment, error) {
	var segs []segment
	var lit strings.Builder
	runes := []rune(text)

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		switch {
		case r == '\'':
			end := i + 1
			for end < len(runes) {
				if runes[end] == '\'' {
					if end+1 < len(runes) && runes[end+1] == '\'' {
						end += 2
						continue
					}
					break
				}
				end++
			}
			if end >= len(runes) {
				return nil, fmt.Errorf("unterminated string literal")
			}
			lit.WriteString(string(runes[i : end+1]))
			i = end

		case r == ':' && i+1 < len(runes) && runes[i+1] == ':':
			lit.WriteString("::")
			i++

		case r == ':' && i+1 < len(runes) && isIdentStart(runes[i+1]):
			end := i + 1
			for end < len(runes) && isIdentPart(runes[end]) {
				end++
			}
			if lit.Len() > 0 {
				segs = append(segs, segment{text: lit.String()})
				lit.Reset()
			}
			segs = append(segs, segment{param: string(runes[i+1 : end])})
			i = end - 1

		default:
			lit.WriteRune(r)
		}
	}

	if lit.Len() > 0 {
		segs = append(segs, segment{text: lit.String()})
	}
	return segs, nil
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// bind renders text for dialect and resolves its parameters from arg.
func bind(text string, dialect Dialect, arg interface{}) (string, []interface{}, error) {
	segs, err := parseNamed(text)
	if err != nil {
		return "", nil, err
	}

	var b strings.Builder
	var args []interface{}
	lookup := binder(arg)

	for _, s := range segs {
		if s.param == "" {
			b.WriteString(s.text)
			continue
		}
		v, err := lookup(s.param)
		if err != nil {
			return "", nil, err
		}
		args = append(args, v)
		b.WriteString(dialect.Placeholder(len(args)))
	}

	return b.String(), args, nil
}

func binder(arg interface{}) func(name string) (interface{}, error) {
	switch a := arg.(type) {
	case nil:
		return func(name string) (interface{}, error) {
			return nil, fmt.Errorf("parameter :%s has no argument", name)
		}
	case map[string]interface{}:
		return func(name string) (interface{}, error) {
			v, ok := a[name]
			if !ok {
				return nil, fmt.Errorf("argument has no field %q", name)
			}
			return v, nil
		}
	case map[string]string:
		return func(name string) (interface{}, error) {
			v, ok := a[name]
			if !ok {
				return nil, fmt.Errorf("argument has no field %q", name)
			}
			return v, nil
		}
	}

	rv := reflect.ValueOf(arg)
	for rv.Kind() == reflect.Ptr && !rv.IsNil() {
		rv = rv.Elem()
	}
	if rv.Kind() == reflect.Struct {
		return func(name string) (interface{}, error) {
			return structField(rv, name)
		}
	}

	// a single scalar binds every parameter
	return func(string) (interface{}, error) {
		return arg, nil
	}
}

func structField(rv reflect.Value, name string) (interface{}, error) {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := strings.Split(f.Tag.Get("db"), ",")[0]
		if tag == "-" {
			continue
		}
		if tag == name || (tag == "" && strings.EqualFold(f.Name, name)) {
			return rv.Field(i).Interface(), nil
		}
	}
	return nil, fmt.Errorf("argument %s has no field %q", rt.Name(), name)
}
