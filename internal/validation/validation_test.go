package validation

import (
	"strings"
	"testing"

	"github.com/insurewright/onboarding/internal/catalog"
	"github.com/insurewright/onboarding/internal/types"
)

func TestValidateUTF8(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"ascii", "hello world", false},
		{"empty", "", false},
		{"unicode", "Prämie £5,000", false},
		{"emoji", "Agreed 👍", false},
		{"invalid bytes", string([]byte{0xff, 0xfe}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUTF8("notes", tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateUTF8(%q) = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
			if err != nil && err.Field != "notes" {
				t.Errorf("error.Field = %q, want notes", err.Field)
			}
		})
	}
}

func TestValidateNoNullBytes(t *testing.T) {
	if err := ValidateNoNullBytes("content", "clean"); err != nil {
		t.Errorf("clean value rejected: %v", err)
	}
	if err := ValidateNoNullBytes("content", "bad\x00value"); err == nil {
		t.Error("null byte accepted")
	}
}

func TestValidateMaxLength(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		max     int
		wantErr bool
	}{
		{"within", "abc", 5, false},
		{"at limit", "abcde", 5, false},
		{"exceeds", "abcdef", 5, true},
		{"multibyte at limit", "日本語", 3, false},
		{"multibyte exceeds", "日本語です", 3, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMaxLength("content", tt.value, tt.max)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateMaxLength(%q, %d) = %v, wantErr %v", tt.value, tt.max, err, tt.wantErr)
			}
		})
	}
}

func TestValidateRequired(t *testing.T) {
	for _, v := range []string{"", "   ", "\t\n"} {
		if err := ValidateRequired("content", v); err == nil {
			t.Errorf("ValidateRequired(%q) = nil, want error", v)
		}
	}
	if err := ValidateRequired("content", "x"); err != nil {
		t.Errorf("ValidateRequired(x) = %v", err)
	}
}

func TestValidateRole(t *testing.T) {
	if err := ValidateRole("author", types.RoleTeam); err != nil {
		t.Errorf("valid role rejected: %v", err)
	}
	err := ValidateRole("author", types.Role("Team"))
	if err == nil {
		t.Fatal("roles should be case-sensitive")
	}
	if err.Message != "must be one of: neil, team" {
		t.Errorf("message = %q", err.Message)
	}
}

func TestValidateOption(t *testing.T) {
	options := []catalog.SelectOption{{Value: "refer"}, {Value: "decline"}}

	if err := ValidateOption("answer", "decline", options); err != nil {
		t.Errorf("known option rejected: %v", err)
	}
	err := ValidateOption("answer", "accept", options)
	if err == nil {
		t.Fatal("unknown option accepted")
	}
	if err.Message != "must be one of: refer, decline" {
		t.Errorf("message = %q", err.Message)
	}
}

func TestValidateKind(t *testing.T) {
	if err := ValidateKind("answer", types.AnswerBool, types.BoolAnswer(false)); err != nil {
		t.Errorf("matching kind rejected: %v", err)
	}
	err := ValidateKind("answer", types.AnswerBool, types.TextAnswer("yes"))
	if err == nil {
		t.Fatal("mismatched kind accepted")
	}
	if err.Message != "must be a boolean answer, got text" {
		t.Errorf("message = %q", err.Message)
	}
}

func TestValidateBounds(t *testing.T) {
	f := func(v float64) *float64 { return &v }

	tests := []struct {
		name     string
		value    float64
		min, max *float64
		wantMsg  string
	}{
		{"in range", 90, f(30), f(365), ""},
		{"at lower bound", 30, f(30), f(365), ""},
		{"above range", 400, f(30), f(365), "must be between 30 and 365"},
		{"below min only", 0, f(1), nil, "must be at least 1"},
		{"above max only", 1.5, nil, f(0.5), "must be at most 0.5"},
		{"huge max", 2e21, nil, f(1e21), "must be at most 1e+21"},
		{"no bounds", -1e9, nil, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBounds("answer", tt.value, tt.min, tt.max)
			switch {
			case tt.wantMsg == "" && err != nil:
				t.Errorf("unexpected error: %v", err)
			case tt.wantMsg != "" && err == nil:
				t.Errorf("expected %q, got nil", tt.wantMsg)
			case err != nil && err.Message != tt.wantMsg:
				t.Errorf("message = %q, want %q", err.Message, tt.wantMsg)
			}
		})
	}
}

func TestCollector_Text(t *testing.T) {
	var c Collector
	c.Text("notes", "fine", 10)
	if c.HasErrors() {
		t.Fatalf("clean text rejected: %+v", c.Errors())
	}

	c.Text("notes", "bad\x00"+strings.Repeat("x", 10), 10)
	errs := c.Errors()
	if len(errs) != 2 {
		t.Fatalf("errors = %+v, want null-byte and length", errs)
	}
	for _, e := range errs {
		if e.Field != "notes" {
			t.Errorf("field = %q", e.Field)
		}
	}
}

func TestCollector(t *testing.T) {
	c := &Collector{}
	if c.HasErrors() {
		t.Error("empty collector reports errors")
	}

	c.Add(nil)
	c.Add(&ValidationError{Field: "f1", Message: "m1"})
	c.Add(nil)
	c.Add(&ValidationError{Field: "f2", Message: "m2"})

	errs := c.Errors()
	if len(errs) != 2 {
		t.Fatalf("len(Errors()) = %d, want 2 (nil should be ignored)", len(errs))
	}
	if errs[0].Field != "f1" || errs[1].Field != "f2" {
		t.Errorf("order not preserved: %+v", errs)
	}
	if !c.HasErrors() {
		t.Error("HasErrors() = false after adds")
	}
}
