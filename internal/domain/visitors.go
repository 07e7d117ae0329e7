package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

type visitorKind uint8

const (
	visitorsAbsent visitorKind = iota
	visitorsStructured
	visitorsDelimited
)

// VisitorInput is the raw visitor field as it arrives from a form or a
// store: a structured list, free text, or nothing. Normalize resolves it
// into the canonical ordered list.
type VisitorInput struct {
	kind  visitorKind
	items []any
	text  string
}

// StructuredVisitors wraps an already structured list.
func StructuredVisitors(visitors []Visitor) VisitorInput {
	items := make([]any, 0, len(visitors))
	for _, v := range visitors {
		items = append(items, v)
	}
	return VisitorInput{kind: visitorsStructured, items: items}
}

// DelimitedVisitors wraps free text: one visitor per line or comma, or a
// serialized list.
func DelimitedVisitors(text string) VisitorInput {
	return VisitorInput{kind: visitorsDelimited, text: text}
}

// NoVisitors is the absent input.
func NoVisitors() VisitorInput { return VisitorInput{} }

// Normalize returns the visitors in input order. Entries that cannot be
// interpreted are dropped; it never fails.
func (in VisitorInput) Normalize() []Visitor {
	switch in.kind {
	case visitorsStructured:
		return fromItems(in.items)
	case visitorsDelimited:
		return ParseVisitorText(in.text)
	default:
		return []Visitor{}
	}
}

// UnmarshalJSON accepts an array (objects, [name, phone] pairs or text
// entries), a string, or null.
func (in *VisitorInput) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*in = NoVisitors()
		return nil
	}
	switch trimmed[0] {
	case '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		*in = DelimitedVisitors(text)
	case '[':
		var items []any
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		*in = VisitorInput{kind: visitorsStructured, items: items}
	default:
		// a lone object or number is kept and dropped later if unusable
		var item any
		if err := json.Unmarshal(trimmed, &item); err != nil {
			return err
		}
		*in = VisitorInput{kind: visitorsStructured, items: []any{item}}
	}
	return nil
}

// MarshalJSON writes the normalized list.
func (in VisitorInput) MarshalJSON() ([]byte, error) {
	return json.Marshal(in.Normalize())
}

// ParseVisitorText splits free-text visitor input. Text that is entirely a
// serialized list ("[...]" or "{...}") is decoded leniently; anything else
// is split on newlines and commas. When list-shaped text does not decode as
// a whole, bracketed fragments without a phone are dropped from the split.
func ParseVisitorText(text string) []Visitor {
	text = strings.TrimSpace(text)
	if text == "" {
		return []Visitor{}
	}
	listShaped := text[0] == '[' || text[0] == '{'
	if listShaped {
		if items, ok := decodeList(text); ok {
			return fromItems(items)
		}
	}

	lines := strings.Split(strings.ReplaceAll(text, ",", "\n"), "\n")
	out := make([]Visitor, 0, len(lines))
	for _, line := range lines {
		v, ok := parseEntry(line)
		if !ok {
			continue
		}
		if listShaped && v.Phone == "" && strings.ContainsAny(v.Name[:1], "[{") {
			continue
		}
		out = append(out, v)
	}
	return out
}

// decodeList accepts text only when one YAML document spans all of it and
// closes with the bracket it opened with.
func decodeList(text string) ([]any, bool) {
	closer := byte(']')
	if text[0] == '{' {
		closer = '}'
	}
	if text[len(text)-1] != closer {
		return nil, false
	}

	dec := yaml.NewDecoder(strings.NewReader(text))
	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return nil, false
	}
	var rest any
	if err := dec.Decode(&rest); !errors.Is(err, io.EOF) {
		return nil, false
	}
	if items, ok := decoded.([]any); ok {
		return items, true
	}
	if m, ok := decoded.(map[string]any); ok {
		return []any{m}, true
	}
	return nil, false
}

func fromItems(items []any) []Visitor {
	out := make([]Visitor, 0, len(items))
	for _, item := range items {
		if v, ok := visitorFromValue(item); ok {
			out = append(out, v)
		}
	}
	return out
}

var (
	nameKeys  = []string{"name", "nombre", "full_name", "detalle"}
	phoneKeys = []string{"phone", "telefono", "teléfono", "tel", "celular", "mobile"}
)

func visitorFromValue(value any) (Visitor, bool) {
	switch v := value.(type) {
	case Visitor:
		return clean(v.Name, v.Phone)
	case string:
		return parseEntry(v)
	case map[string]any:
		return clean(lookup(v, nameKeys), lookup(v, phoneKeys))
	case []any:
		if len(v) == 0 || len(v) > 2 {
			return Visitor{}, false
		}
		name := scalar(v[0])
		phone := ""
		if len(v) == 2 {
			phone = scalar(v[1])
		}
		return clean(name, phone)
	default:
		return Visitor{}, false
	}
}

func lookup(m map[string]any, keys []string) string {
	for k, v := range m {
		for _, want := range keys {
			if strings.EqualFold(strings.TrimSpace(k), want) {
				return scalar(v)
			}
		}
	}
	return ""
}

func scalar(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case bool:
		return strconv.FormatBool(s)
	case map[string]any, []any:
		return ""
	default:
		return fmt.Sprint(s)
	}
}

var (
	phoneOnlyRe     = regexp.MustCompile(`^\+?[\d\s().-]+$`)
	trailingPhoneRe = regexp.MustCompile(`^(.*?)[\s-]*(\+?\d[\d\s().-]*\d)$`)
	entrySeparators = []string{" - ", " – ", " — ", ":", "|", ";", "\t"}
)

// parseEntry reads "Name - phone", "Name phone", a bare phone or an opaque name.
func parseEntry(raw string) (Visitor, bool) {
	entry := strings.TrimSpace(raw)
	if entry == "" {
		return Visitor{}, false
	}
	if looksLikePhone(entry) {
		return clean("", entry)
	}
	for _, sep := range entrySeparators {
		if idx := strings.LastIndex(entry, sep); idx >= 0 {
			name, phone := entry[:idx], entry[idx+len(sep):]
			if looksLikePhone(strings.TrimSpace(phone)) {
				return clean(name, phone)
			}
		}
	}
	if m := trailingPhoneRe.FindStringSubmatch(entry); m != nil && m[1] != "" && digitCount(m[2]) >= 5 {
		return clean(m[1], m[2])
	}
	return clean(entry, "")
}

func looksLikePhone(s string) bool {
	return phoneOnlyRe.MatchString(s) && digitCount(s) >= 5
}

func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

func clean(name, phone string) (Visitor, bool) {
	name = norm.NFC.String(strings.Trim(strings.TrimSpace(name), " -–—:|;"))
	phone = norm.NFC.String(strings.TrimSpace(phone))
	if name == "" && phone == "" {
		return Visitor{}, false
	}
	return Visitor{Name: name, Phone: phone}, true
}
