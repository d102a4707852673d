package validation

import (
	"fmt"

	"github.com/insurewright/onboarding/internal/catalog"
	"github.com/insurewright/onboarding/internal/types"
)

// ValidateAnswer checks an answer against the shape its definition declares.
// An absent answer is always accepted.
func ValidateAnswer(def catalog.Definition, answer types.Answer) []ValidationError {
	var c Collector
	if answer.IsNone() {
		return nil
	}

	switch def.InputType {
	case types.InputFreeText, types.InputRichText:
		text, ok := answer.Text()
		if !ok {
			c.Add(ValidateKind("answer", types.AnswerText, answer))
			break
		}
		c.Text("answer", text, MaxTextAnswerLength)

	case types.InputSingleSelect:
		value, ok := answer.Text()
		if !ok {
			c.Add(ValidateKind("answer", types.AnswerText, answer))
			break
		}
		c.Add(ValidateOption("answer", value, def.Options))

	case types.InputMultiSelect:
		values, ok := answer.List()
		if !ok {
			c.Add(ValidateKind("answer", types.AnswerList, answer))
			break
		}
		seen := make(map[string]bool, len(values))
		for i, v := range values {
			field := fmt.Sprintf("answer[%d]", i)
			c.Add(ValidateOption(field, v, def.Options))
			if seen[v] {
				c.Add(invalid(field, "duplicate selection"))
			}
			seen[v] = true
		}

	case types.InputNumeric:
		n, ok := answer.Number()
		if !ok {
			c.Add(ValidateKind("answer", types.AnswerNumber, answer))
			break
		}
		if nv := def.NumericValidation; nv != nil {
			c.Add(ValidateBounds("answer", n, nv.Min, nv.Max))
		}

	case types.InputYesNo:
		c.Add(ValidateKind("answer", types.AnswerBool, answer))

	case types.InputDataTable:
		// An empty array decodes as an empty list; accept it as an empty table.
		if answer.Kind() == types.AnswerList && answer.Len() == 0 {
			break
		}
		rows, ok := answer.Table()
		if !ok {
			c.Add(ValidateKind("answer", types.AnswerTable, answer))
			break
		}
		for i, row := range rows {
			validateRow(&c, def.TableColumns, i, row)
		}

	case types.InputFileUpload:
		c.Add(invalid("answer", "file uploads are not supported"))

	default:
		c.Add(invalid("answer", "unknown input type %q", def.InputType))
	}

	return c.Errors()
}

func validateRow(c *Collector, columns []catalog.TableColumn, index int, row types.TableRow) {
	known := make(map[string]catalog.TableColumn, len(columns))
	for _, col := range columns {
		known[col.Key] = col
	}

	for _, cell := range row {
		field := fmt.Sprintf("answer[%d].%s", index, cell.Key)
		col, ok := known[cell.Key]
		if !ok {
			c.Add(invalid(field, "unknown column"))
			continue
		}
		if cell.Value == nil {
			continue
		}
		switch col.Type {
		case catalog.ColumnNumber:
			if _, ok := cell.Value.(float64); !ok {
				c.Add(invalid(field, "must be a number"))
			}
		case catalog.ColumnSelect:
			v, ok := cell.Value.(string)
			if !ok {
				c.Add(invalid(field, "must be one of the column's options"))
			} else if v != "" {
				c.Add(ValidateOption(field, v, col.Options))
			}
		default:
			if s, ok := cell.Value.(string); !ok {
				c.Add(invalid(field, "must be text"))
			} else {
				c.Add(ValidateNoNullBytes(field, s))
			}
		}
	}

	for _, col := range columns {
		if !col.Required {
			continue
		}
		v, ok := row.Get(col.Key)
		if !ok || v == nil || v == "" {
			c.Add(invalid(fmt.Sprintf("answer[%d].%s", index, col.Key), "is required"))
		}
	}
}

// ValidateNotes checks free-form notes saved with an answer.
func ValidateNotes(notes string) []ValidationError {
	var c Collector
	c.Text("notes", notes, MaxNotesLength)
	return c.Errors()
}

// ValidateComment checks comment content and author role. An empty author
// defaults to the stakeholder downstream.
func ValidateComment(content string, author types.Role) []ValidationError {
	var c Collector
	c.Add(ValidateRequired("content", content))
	c.Text("content", content, MaxCommentLength)
	if author != "" {
		c.Add(ValidateRole("author", author))
	}
	return c.Errors()
}
