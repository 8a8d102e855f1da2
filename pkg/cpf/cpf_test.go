package cpf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "52998224725", Normalize("529.982.247-25"))
	assert.Equal(t, "52998224725", Normalize(" 529 982 247 25 "))
	assert.Equal(t, "", Normalize("abc"))
}

func TestValid(t *testing.T) {
	cases := []struct {
		name  string
		cpf   string
		valid bool
	}{
		{"known valid", "52998224725", true},
		{"known valid formatted", "529.982.247-25", true},
		{"valid second vector", "11144477735", true},
		{"bad first check digit", "52998224715", false},
		{"bad second check digit", "52998224724", false},
		{"too short", "5299822472", false},
		{"too long", "529982247250", false},
		{"empty", "", false},
		{"letters only", "abcdefghijk", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.valid, Valid(tc.cpf))
		})
	}
}

func TestValidRejectsRepeatedDigits(t *testing.T) {
	for d := byte('0'); d <= '9'; d++ {
		seq := string(make([]byte, 0, 11))
		for i := 0; i < 11; i++ {
			seq += string(d)
		}
		assert.False(t, Valid(seq), "sequence %s must be rejected", seq)
	}
}
