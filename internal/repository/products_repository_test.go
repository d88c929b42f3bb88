package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateSlug(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Blue Cotton T-Shirt", "blue-cotton-t-shirt"},
		{"  Red Mug (350ml)  ", "red-mug-350ml"},
		{"Ünïcode Nãme", "n-code-n-me"},
		{"---", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, generateSlug(tt.name), "input %q", tt.name)
	}
}
