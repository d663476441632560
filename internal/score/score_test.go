package score

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText_Empty(t *testing.T) {
	assert.Equal(t, 0.0, Text(""))
	assert.Equal(t, 0.0, Text("\x00\x01\x02"))
}

func TestText_RangeClamp(t *testing.T) {
	texts := []string{
		"",
		"a",
		"John Smith\nPatient Care Manager\njohn.smith@example.com\n(303) 555-0142",
		"email phone manager center care nursing @ office contact",
		strings.Repeat("x", 500),
		"!!!! ???? ....",
	}
	for _, text := range texts {
		s := Text(text)
		assert.GreaterOrEqual(t, s, 0.0, "text=%q", text)
		assert.LessOrEqual(t, s, MaxScore, "text=%q", text)
	}
}

func TestText_CardBeatsNoise(t *testing.T) {
	card := "Jane Doe\nCase Manager\njane.doe@riverhealth.org\nOffice: (719) 555-0199\n123 Main Street, Suite 4"
	noise := "xq zzv pk qrtw bcdfg hjklm npqrs"
	assert.Greater(t, Text(card), Text(noise))
}

func TestText_EmailBonus(t *testing.T) {
	without := "Jane Doe Case Manager"
	with := without + " jane@clinic.org"
	assert.Greater(t, Text(with), Text(without))
}

func TestText_RepeatedCharsPenalized(t *testing.T) {
	repeated := strings.Repeat("aaaa ", 20)
	varied := "The quick brown fox jumps over the lazy dog near the clinic"
	assert.Less(t, Text(repeated), Text(varied))
}

func TestText_NoWordsPenalty(t *testing.T) {
	assert.Less(t, Text("1234 5678 90"), 0.5)
}

func TestLineValid(t *testing.T) {
	tests := []struct {
		name string
		line string
		want bool
	}{
		{"normal name line", "Jane Doe", true},
		{"title line", "Patient Care Manager", true},
		{"too short", "ab", false},
		{"single letter", "a", false},
		{"mostly digits", "1234567a", false},
		{"no vowels", "xzq wrt plk", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LineValid(tt.line))
		})
	}
}

func TestGibberish(t *testing.T) {
	assert.True(t, Gibberish(""))
	assert.True(t, Gibberish("1234 %%%% 5678"))
	assert.True(t, Gibberish("xqz wrt plk bcd fgh"))
	assert.False(t, Gibberish("Jane Doe\nCase Manager\njane@clinic.org\nphone 303 555 0100"))
	// An email marker rescues otherwise low-scoring text.
	assert.False(t, Gibberish("xz@q.co"))
}

func TestRotational(t *testing.T) {
	assert.Equal(t, -1.0, Rotational(""))
	// One email, one phone, six words total.
	got := Rotational("jane@clinic.org 303-555-0100 Jane Doe Case Manager")
	assert.Equal(t, 10.0+5.0+6.0, got)
	assert.Equal(t, 3.0, Rotational("three plain words"))
}

func TestHasEmail(t *testing.T) {
	assert.True(t, HasEmail("reach me at jane.doe@river-health.org today"))
	assert.False(t, HasEmail("no address here"))
	assert.False(t, HasEmail("half@done"))
}

func TestCleanText(t *testing.T) {
	in := "  Jane   Doe  \n\n\tCase  Manager\t\n   \n"
	assert.Equal(t, "Jane Doe\nCase Manager", CleanText(in))
	assert.Equal(t, "", CleanText(""))
}
