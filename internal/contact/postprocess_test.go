package contact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPostProcess_DropsGarbledLines(t *testing.T) {
	in := "xK3@!z qwrtpsd\njane@acme.com\nJane Doe\n555-123-4567"
	out := PostProcess(in)

	assert.NotContains(t, out, "qwrtpsd")
	assert.Contains(t, out, "jane@acme.com")
	assert.Contains(t, out, "Jane Doe")
	assert.Contains(t, out, "555-123-4567")
}

func TestPostProcess_KeepsEmailOnGarbledLine(t *testing.T) {
	// An email rescues a line the validity check alone would drop.
	in := "zzqq9 jane@acme.com zzqq9"
	assert.Equal(t, in, PostProcess(in))
}

func TestPostProcess_FallsBackWhenFilterEmpties(t *testing.T) {
	// Nothing survives the filter, so the raw (trimmed) lines come back
	// instead of an empty string.
	in := "  zxqv ppft  \n\n  9 9 9  "
	assert.Equal(t, "zxqv ppft\n9 9 9", PostProcess(in))
}

func TestPostProcess_Empty(t *testing.T) {
	assert.Equal(t, "", PostProcess(""))
}

func TestPostProcess_StripsBlankLines(t *testing.T) {
	out := PostProcess("Jane Doe\n\n\nAcme Health Partners\n")
	assert.Equal(t, "Jane Doe\nAcme Health Partners", out)
}
