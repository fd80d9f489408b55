package eval

import (
	"encoding/base32"
	"encoding/base64"
	"html"
	"net/url"
	"strings"

	"github.com/vshell/vshell/query/value"
)

// applyFormat implements the `@name` format strings (spec §4.7 Format
// family): each renders the current value as a string in the named
// encoding.
func applyFormat(name string, v value.Value) (string, error) {
	switch name {
	case "text":
		return v.ToGoString(), nil
	case "json":
		return v.ToJSON(false), nil
	case "base64":
		return base64.StdEncoding.EncodeToString([]byte(v.ToGoString())), nil
	case "base64d":
		decoded, err := base64.StdEncoding.DecodeString(v.ToGoString())
		if err != nil {
			decoded, err = base64.RawStdEncoding.DecodeString(v.ToGoString())
			if err != nil {
				return "", newError("invalid base64 input")
			}
		}
		return string(decoded), nil
	case "base32":
		return base32.StdEncoding.EncodeToString([]byte(v.ToGoString())), nil
	case "base32d":
		decoded, err := base32.StdEncoding.DecodeString(v.ToGoString())
		if err != nil {
			return "", newError("invalid base32 input")
		}
		return string(decoded), nil
	case "uri":
		return url.QueryEscape(v.ToGoString()), nil
	case "html":
		return html.EscapeString(v.ToGoString()), nil
	case "sh":
		return shellQuoteFormat(v), nil
	case "csv":
		return formatRow(v, ",", csvCell)
	case "tsv":
		return formatRow(v, "\t", tsvCell)
	}
	return "", newError("@%s is not a valid format", name)
}

func shellQuoteFormat(v value.Value) string {
	if v.Kind == value.Array {
		parts := make([]string, len(v.A))
		for i, e := range v.A {
			parts[i] = shellQuoteFormat(e)
		}
		return strings.Join(parts, " ")
	}
	s := v.ToGoString()
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func formatRow(v value.Value, sep string, cell func(value.Value) (string, error)) (string, error) {
	if v.Kind != value.Array {
		return "", newError("%s cannot be formatted as a row", v.TypeName())
	}
	parts := make([]string, len(v.A))
	for i, e := range v.A {
		c, err := cell(e)
		if err != nil {
			return "", err
		}
		parts[i] = c
	}
	return strings.Join(parts, sep), nil
}

func csvCell(v value.Value) (string, error) {
	switch v.Kind {
	case value.Null:
		return "", nil
	case value.Number:
		return value.FormatNumber(v.N), nil
	case value.Bool:
		if v.B {
			return "true", nil
		}
		return "false", nil
	case value.String:
		return `"` + strings.ReplaceAll(v.S, `"`, `""`) + `"`, nil
	}
	return "", newError("%s is not valid in a csv row", v.TypeName())
}

func tsvCell(v value.Value) (string, error) {
	switch v.Kind {
	case value.Null:
		return "", nil
	case value.Number:
		return value.FormatNumber(v.N), nil
	case value.Bool:
		if v.B {
			return "true", nil
		}
		return "false", nil
	case value.String:
		s := strings.ReplaceAll(v.S, "\\", `\\`)
		s = strings.ReplaceAll(s, "\t", `\t`)
		s = strings.ReplaceAll(s, "\n", `\n`)
		s = strings.ReplaceAll(s, "\r", `\r`)
		return s, nil
	}
	return "", newError("%s is not valid in a tsv row", v.TypeName())
}
