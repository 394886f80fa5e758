package calc

import (
	"errors"
	"testing"
)

func TestEval(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"5 + 3 * 2", "11"},
		{"(5 + 3) * 2", "16"},
		{"10 / 4", "2.5"},
		{"10 / 2", "5"},
		{"64**0.5", "8"},
		{"2 ** 3 ** 2", "512"},
		{"-2 ** 2", "-4"},
		{"2 ** -1", "0.5"},
		{"7 % 3", "1"},
		{"-7 % 3", "2"},
		{"7 % -3", "-2"},
		{"7 // 2", "3"},
		{"-7 // 2", "-4"},
		{"--3", "3"},
		{"+.5 + 1.", "1.5"},
		{"  ( ( 1 ) )  ", "1"},
		{"0 * -1", "0"},
		{"100 - 99.5", "0.5"},
	}
	for _, tt := range tests {
		v, err := Eval(tt.expr)
		if err != nil {
			t.Errorf("Eval(%q): unexpected error %v", tt.expr, err)
			continue
		}
		if got := Format(v); got != tt.want {
			t.Errorf("Eval(%q) = %s, want %s", tt.expr, got, tt.want)
		}
	}
}

func TestEvalRejectsDisallowedCharacters(t *testing.T) {
	for _, expr := range []string{"import os", "__import__('os')", "2^3", "1e5", "abs(-1)"} {
		if _, err := Eval(expr); !errors.Is(err, ErrDisallowedCharacter) {
			t.Errorf("Eval(%q): expected ErrDisallowedCharacter, got %v", expr, err)
		}
	}
}

func TestEvalDivisionByZero(t *testing.T) {
	for _, expr := range []string{"1 / 0", "1 // (2 - 2)", "5 % 0", "0 ** -1"} {
		_, err := Eval(expr)
		if !errors.Is(err, ErrDivisionByZero) {
			t.Errorf("Eval(%q): expected ErrDivisionByZero, got %v", expr, err)
		}
		var cerr *Error
		if !errors.As(err, &cerr) {
			t.Errorf("Eval(%q): expected *Error, got %T", expr, err)
		}
	}
}

func TestEvalSyntaxErrors(t *testing.T) {
	tests := []string{"", "   ", "1 +", "(1 + 2", "1 2", "1..2", ".", "()", "*3", "1 +* 2"}
	for _, expr := range tests {
		_, err := Eval(expr)
		var cerr *Error
		if !errors.As(err, &cerr) {
			t.Errorf("Eval(%q): expected *Error, got %v", expr, err)
		}
	}
}

func TestEvalOutOfRange(t *testing.T) {
	for _, expr := range []string{"10 ** 400", "(-8) ** 0.5"} {
		if _, err := Eval(expr); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("Eval(%q): expected ErrOutOfRange, got %v", expr, err)
		}
	}
}

func TestEvalNestingLimit(t *testing.T) {
	expr := ""
	for i := 0; i < 200; i++ {
		expr += "("
	}
	expr += "1"
	for i := 0; i < 200; i++ {
		expr += ")"
	}
	if _, err := Eval(expr); err == nil {
		t.Error("expected nesting error")
	}
}
