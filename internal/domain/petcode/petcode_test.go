package petcode

import "testing"

func TestIsValid(t *testing.T) {
	valid := []string{"ABC12345", "ZZZ00000", "QWE98765"}
	for _, s := range valid {
		if !IsValid(s) {
			t.Fatalf("expected %q to be valid", s)
		}
	}

	invalid := []string{
		"",
		"ABC1234",    // faltan dígitos
		"ABC123456",  // sobran dígitos
		"AB312345",   // dígito donde va letra
		"abc12345",   // minúsculas no (Normalize se encarga)
		"ABCD2345",   // 4 letras
		"ABC1234X",   // letra donde va dígito
		" ABC12345",  // espacios
		"ABC-12345",  // separador
	}
	for _, s := range invalid {
		if IsValid(s) {
			t.Fatalf("expected %q to be invalid", s)
		}
	}
}

func TestNormalize(t *testing.T) {
	got, err := Normalize("  abc12345 ")
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if got != "ABC12345" {
		t.Fatalf("expected ABC12345, got %q", got)
	}

	if _, err := Normalize("nope"); err != ErrInvalidFormat {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
}

func TestGenerate_Format(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := Generate()
		if err != nil {
			t.Fatalf("Generate error: %v", err)
		}
		if !IsValid(code) {
			t.Fatalf("generated code %q does not match format", code)
		}
	}
}
