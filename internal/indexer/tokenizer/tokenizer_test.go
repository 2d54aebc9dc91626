package tokenizer

import (
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"simple name", "Ana Lopez", []string{"ana", "lopez"}},
		{"case folding", "MARÍA José", []string{"maría", "josé"}},
		{"punctuation split", "O'Brien-Smith", []string{"o", "brien", "smith"}},
		{"digits kept", "user 42", []string{"user", "42"}},
		{"empty string", "", []string{}},
		{"only separators", " \t,.;- ", []string{}},
		{"repeated separators", "ana,,  lopez", []string{"ana", "lopez"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.in)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestTokenizeDeterministic(t *testing.T) {
	in := "Juan Carlos de la Cruz"
	first := Tokenize(in)
	for i := 0; i < 10; i++ {
		if got := Tokenize(in); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d: Tokenize not deterministic: %v vs %v", i, got, first)
		}
	}
}
