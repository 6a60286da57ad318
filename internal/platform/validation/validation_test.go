package validation

import (
	"errors"
	"strings"
	"testing"
)

type sample struct {
	Name  string `form:"nombre" validate:"notblank"`
	Email string `json:"email" validate:"required,email"`
	Notes string `json:"notas" validate:"omitempty,min=10"`
	Hour  string `form:"hora" validate:"hhmm"`
	Count int    `json:"count" validate:"min=15,max=180"`
}

func TestStruct_Valid(t *testing.T) {
	s := sample{Name: "Juan", Email: "juan@example.com", Hour: "09:30", Count: 30}
	if err := Struct(s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStruct_UsesTagNames(t *testing.T) {
	s := sample{Name: "  ", Email: "nope", Notes: "short", Hour: "25:00", Count: 5}
	err := Struct(s)
	var fe FieldErrors
	if !errors.As(err, &fe) {
		t.Fatalf("expected FieldErrors, got %T", err)
	}
	for _, field := range []string{"nombre", "email", "notas", "hora", "count"} {
		if !fe.Has(field) {
			t.Errorf("expected error on %s, got %v", field, fe)
		}
	}
	if fe["nombre"] != "es obligatorio" {
		t.Errorf("expected required message, got %q", fe["nombre"])
	}
	if !strings.Contains(fe["notas"], "10 caracteres") {
		t.Errorf("expected length message, got %q", fe["notas"])
	}
	if fe["email"] != "debe ser un correo electrónico válido" {
		t.Errorf("expected email message, got %q", fe["email"])
	}
	if fe["hora"] != "debe ser una hora en formato HH:MM" {
		t.Errorf("expected time message, got %q", fe["hora"])
	}
}

func TestFieldErrors_ErrorIsSorted(t *testing.T) {
	fe := FieldErrors{"b": "x", "a": "y"}
	if fe.Error() != "validation failed: a: y; b: x" {
		t.Errorf("unexpected message: %s", fe.Error())
	}
}

func TestValidator_Singleton(t *testing.T) {
	if Validator() != Validator() {
		t.Error("expected the same validator instance")
	}
}
