package validation

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestConfigValidator_Required(t *testing.T) {
	cv := NewConfigValidator("TestConfig")
	cv.Required("Name", "")

	if !cv.HasErrors() {
		t.Error("Expected error for empty required field")
	}

	cv2 := NewConfigValidator("TestConfig")
	cv2.Required("Name", "value")

	if cv2.HasErrors() {
		t.Error("Expected no error for non-empty required field")
	}
}

func TestConfigValidator_Numbers(t *testing.T) {
	tests := []struct {
		name      string
		apply     func(*ConfigValidator)
		expectErr bool
	}{
		{"positive ok", func(cv *ConfigValidator) { cv.Positive("Conns", 1) }, false},
		{"positive zero", func(cv *ConfigValidator) { cv.Positive("Conns", 0) }, true},
		{"non-negative zero", func(cv *ConfigValidator) { cv.NonNegative("Threshold", 0) }, false},
		{"non-negative below", func(cv *ConfigValidator) { cv.NonNegative("Threshold", -1) }, true},
		{"duration ok", func(cv *ConfigValidator) { cv.MinDuration("Timeout", time.Second, time.Millisecond) }, false},
		{"duration below", func(cv *ConfigValidator) { cv.MinDuration("Timeout", 0, time.Millisecond) }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cv := NewConfigValidator("TestConfig")
			tt.apply(cv)
			if cv.HasErrors() != tt.expectErr {
				t.Errorf("HasErrors() = %v, want %v (errors: %v)", cv.HasErrors(), tt.expectErr, cv.Errors())
			}
		})
	}
}

func TestConfigValidator_OneOf(t *testing.T) {
	allowed := []string{"memory", "sqlite", "postgres"}

	cv := NewConfigValidator("Backend")
	cv.OneOf("Type", "sqlite", allowed)
	if cv.HasErrors() {
		t.Errorf("Expected no error, got %v", cv.Errors())
	}

	cv.OneOf("Type", "mysql", allowed)
	if !cv.HasErrors() {
		t.Fatal("Expected error for value outside allowed set")
	}
	if !strings.Contains(cv.Errors()[0].Error(), `"mysql"`) {
		t.Errorf("Error should name the rejected value: %v", cv.Errors()[0])
	}
}

func TestConfigValidator_CustomAndWhen(t *testing.T) {
	sentinel := errors.New("bad url")

	cv := NewConfigValidator("Postgres")
	cv.When(false, func(cv *ConfigValidator) {
		cv.Required("URL", "")
	})
	if cv.HasErrors() {
		t.Fatal("When(false) must not apply validations")
	}

	cv.When(true, func(cv *ConfigValidator) {
		cv.Custom("URL", func() error { return sentinel })
	})
	if !errors.Is(cv.Validate(), sentinel) {
		t.Errorf("Validate() should wrap the custom error, got %v", cv.Validate())
	}
}

func TestConfigValidator_ValidateJoinsErrors(t *testing.T) {
	cv := NewConfigValidator("Config")
	if err := cv.Validate(); err != nil {
		t.Fatalf("Validate() with no errors = %v", err)
	}

	cv.Required("A", "").Positive("B", 0)
	err := cv.Validate()
	if err == nil {
		t.Fatal("Expected combined error")
	}
	for _, want := range []string{"Config.A", "Config.B"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() = %q, want it to mention %s", err, want)
		}
	}
}

func TestConfigValidator_Struct(t *testing.T) {
	type settings struct {
		Kind  string `validate:"oneof=a b"`
		Limit int    `validate:"min=1"`
	}

	cv := NewConfigValidator("Settings")
	cv.Struct(settings{Kind: "c", Limit: 0})
	if got := len(cv.Errors()); got != 2 {
		t.Fatalf("Struct() recorded %d errors, want 2: %v", got, cv.Errors())
	}

	cv2 := NewConfigValidator("Settings")
	cv2.Struct(settings{Kind: "a", Limit: 3})
	if cv2.HasErrors() {
		t.Errorf("Expected valid struct, got %v", cv2.Errors())
	}
}

func TestDefaultOr(t *testing.T) {
	if got := DefaultOr("", "memory"); got != "memory" {
		t.Errorf("DefaultOr(\"\") = %q", got)
	}
	if got := DefaultOr("sqlite", "memory"); got != "sqlite" {
		t.Errorf("DefaultOr(\"sqlite\") = %q", got)
	}
	if got := DefaultOrDuration(0, time.Second); got != time.Second {
		t.Errorf("DefaultOrDuration(0) = %v", got)
	}
	if got := DefaultOrDuration(2*time.Second, time.Second); got != 2*time.Second {
		t.Errorf("DefaultOrDuration(2s) = %v", got)
	}
}
