package validate

import "testing"

type sample struct {
	Name  string `validate:"required"`
	Email string `validate:"required"`
	Note  string
}

func TestComplete_AllPresent(t *testing.T) {
	ok, fields := Complete(sample{Name: "Jane", Email: "jane@x.com"})
	if !ok {
		t.Errorf("expected complete, missing = %v", fields)
	}
}

func TestComplete_MissingFields(t *testing.T) {
	ok, fields := Complete(sample{Name: "Jane"})
	if ok {
		t.Fatal("expected incomplete")
	}
	if len(fields) != 1 || fields[0] != "Email" {
		t.Errorf("fields = %v, want [Email]", fields)
	}
}

func TestEmail(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"jane@x.com", true},
		{"a.b@c.co.jp", true},
		{"jane@x", false},
		{"jane.x.com", false},
		{"ja ne@x.com", false},
		{"@x.com", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := Email(tt.input); got != tt.want {
			t.Errorf("Email(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestPasswordLength(t *testing.T) {
	if PasswordLength("1234567") {
		t.Error("7 characters should be rejected")
	}
	if !PasswordLength("12345678") {
		t.Error("8 characters should be accepted")
	}
	if !PasswordLength("パスワード安全です") {
		t.Error("multi-byte characters should be counted as characters")
	}
}
