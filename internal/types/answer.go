package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// AnswerKind discriminates the Answer sum type.
type AnswerKind int

const (
	AnswerNone AnswerKind = iota
	AnswerText
	AnswerNumber
	AnswerBool
	AnswerList
	AnswerTable
)

func (k AnswerKind) String() string {
	switch k {
	case AnswerText:
		return "text"
	case AnswerNumber:
		return "number"
	case AnswerBool:
		return "boolean"
	case AnswerList:
		return "list"
	case AnswerTable:
		return "table"
	default:
		return "none"
	}
}

// Answer is the value recorded against a decision. Exactly one variant is set.
// On the wire it is null, a string, a number, a boolean, an array of strings,
// or an array of objects (table rows).
type Answer struct {
	kind AnswerKind
	text string
	num  float64
	flag bool
	list []string
	rows []TableRow
}

// NoAnswer is the absent answer.
func NoAnswer() Answer { return Answer{} }

// TextAnswer wraps free text or a single-select value.
func TextAnswer(s string) Answer { return Answer{kind: AnswerText, text: s} }

// NumberAnswer wraps a numeric answer.
func NumberAnswer(f float64) Answer { return Answer{kind: AnswerNumber, num: f} }

// BoolAnswer wraps a yes/no answer.
func BoolAnswer(b bool) Answer { return Answer{kind: AnswerBool, flag: b} }

// ListAnswer wraps a multi-select answer.
func ListAnswer(items []string) Answer {
	return Answer{kind: AnswerList, list: append([]string{}, items...)}
}

// TableAnswer wraps data-table rows.
func TableAnswer(rows []TableRow) Answer {
	cp := make([]TableRow, len(rows))
	for i, r := range rows {
		cp[i] = append(TableRow{}, r...)
	}
	return Answer{kind: AnswerTable, rows: cp}
}

func (a Answer) Kind() AnswerKind { return a.kind }
func (a Answer) IsNone() bool     { return a.kind == AnswerNone }

func (a Answer) Text() (string, bool)    { return a.text, a.kind == AnswerText }
func (a Answer) Number() (float64, bool) { return a.num, a.kind == AnswerNumber }
func (a Answer) Bool() (bool, bool)      { return a.flag, a.kind == AnswerBool }

func (a Answer) List() ([]string, bool) {
	if a.kind != AnswerList {
		return nil, false
	}
	return append([]string{}, a.list...), true
}

func (a Answer) Table() ([]TableRow, bool) {
	if a.kind != AnswerTable {
		return nil, false
	}
	return TableAnswer(a.rows).rows, true
}

// Len returns the element count of list and table answers, 0 otherwise.
func (a Answer) Len() int {
	switch a.kind {
	case AnswerList:
		return len(a.list)
	case AnswerTable:
		return len(a.rows)
	}
	return 0
}

// Clone returns a copy that shares no slices with a.
func (a Answer) Clone() Answer {
	switch a.kind {
	case AnswerList:
		return ListAnswer(a.list)
	case AnswerTable:
		return TableAnswer(a.rows)
	}
	return a
}

// Equal compares answers by their wire form.
func (a Answer) Equal(b Answer) bool {
	if a.kind != b.kind {
		return false
	}
	x, errX := json.Marshal(a)
	y, errY := json.Marshal(b)
	return errX == nil && errY == nil && bytes.Equal(x, y)
}

// Preview is a one-line rendering used in listings.
func (a Answer) Preview() string {
	switch a.kind {
	case AnswerText:
		if a.text == "" {
			return "—"
		}
		r := []rune(a.text)
		if len(r) > 80 {
			return string(r[:80])
		}
		return a.text
	case AnswerNumber:
		return FormatValue(a.num)
	case AnswerBool:
		if a.flag {
			return "Yes"
		}
		return "No"
	case AnswerList:
		if len(a.list) == 0 {
			return "—"
		}
		return strings.Join(a.list, ", ")
	case AnswerTable:
		return fmt.Sprintf("%d entries", len(a.rows))
	}
	return "—"
}

// MarshalJSON implements json.Marshaler.
func (a Answer) MarshalJSON() ([]byte, error) {
	switch a.kind {
	case AnswerText:
		return json.Marshal(a.text)
	case AnswerNumber:
		return json.Marshal(a.num)
	case AnswerBool:
		return json.Marshal(a.flag)
	case AnswerList:
		if a.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(a.list)
	case AnswerTable:
		if a.rows == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(a.rows)
	}
	return []byte("null"), nil
}

// ErrInvalidAnswer is returned when a JSON value has no Answer variant.
var ErrInvalidAnswer = errors.New("invalid answer value")

// UnmarshalJSON implements json.Unmarshaler. An empty array decodes as an empty list.
func (a *Answer) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = NoAnswer()
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = TextAnswer(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*a = BoolAnswer(b)
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		if len(raw) == 0 {
			*a = ListAnswer(nil)
			return nil
		}
		first := bytes.TrimSpace(raw[0])
		switch {
		case len(first) > 0 && first[0] == '"':
			var items []string
			if err := json.Unmarshal(data, &items); err != nil {
				return fmt.Errorf("%w: list elements must all be strings", ErrInvalidAnswer)
			}
			*a = ListAnswer(items)
		case len(first) > 0 && first[0] == '{':
			var rows []TableRow
			if err := json.Unmarshal(data, &rows); err != nil {
				return fmt.Errorf("%w: table rows: %v", ErrInvalidAnswer, err)
			}
			*a = TableAnswer(rows)
		default:
			return fmt.Errorf("%w: arrays must hold strings or objects", ErrInvalidAnswer)
		}
	case '{':
		return fmt.Errorf("%w: objects are only allowed as table rows", ErrInvalidAnswer)
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidAnswer, err)
		}
		*a = NumberAnswer(f)
	}
	return nil
}

// TableCell is one column value in a row. Values are string, float64, bool or nil.
type TableCell struct {
	Key   string
	Value any
}

// Cell builds a TableCell, widening integer values to float64.
func Cell(key string, value any) TableCell {
	return TableCell{Key: key, Value: normalizeValue(value)}
}

// TableRow is an ordered set of cells. Key order is preserved through JSON.
type TableRow []TableCell

// Get returns the value stored under key.
func (r TableRow) Get(key string) (any, bool) {
	for _, c := range r {
		if c.Key == key {
			return c.Value, true
		}
	}
	return nil, false
}

// Keys returns the column keys in row order.
func (r TableRow) Keys() []string {
	keys := make([]string, len(r))
	for i, c := range r {
		keys[i] = c.Key
	}
	return keys
}

// MarshalJSON writes the row as an object in cell order.
func (r TableRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(c.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(c.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object of scalar values, keeping key order.
// A repeated key overwrites the earlier value in place.
func (r *TableRow) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("table row must be an object")
	}

	row := TableRow{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("table row key must be a string")
		}
		valTok, err := dec.Token()
		if err != nil {
			return err
		}
		if _, nested := valTok.(json.Delim); nested {
			return fmt.Errorf("table cell %q must be a string, number or boolean", key)
		}
		row = row.set(key, valTok)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*r = row
	return nil
}

func (r TableRow) set(key string, value any) TableRow {
	for i := range r {
		if r[i].Key == key {
			r[i].Value = value
			return r
		}
	}
	return append(r, TableCell{Key: key, Value: value})
}

// FormatValue renders a scalar the way a JavaScript template literal would.
func FormatValue(v any) string {
	switch x := normalizeValue(v).(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return FormatNumber(x)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// FormatNumber prints f the way the portal has always shown numbers: plain
// decimal, switching to exponent form ("1e+21", "1.5e-7") outside [1e-6, 1e21).
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}

	if abs := math.Abs(f); abs >= 1e21 || abs < 1e-6 {
		mant, exp, _ := strings.Cut(strconv.FormatFloat(f, 'e', -1, 64), "e")
		return mant + "e" + exp[:1] + strings.TrimLeft(exp[1:], "0")
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case float32:
		return float64(x)
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	}
	return v
}
