package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	SetOutput(&out, &errOut)
	t.Cleanup(func() {
		SetOutput(nil, nil)
		SetTheme("classic")
		SetColorForcing(false, false)
	})
	return &out, &errOut
}

func TestOKAndFail_Streams(t *testing.T) {
	out, errOut := captureOutput(t)

	OK("OK (200)")
	Fail("NOT OK (500)")

	// buffers are not terminals, so no escape codes
	assert.Equal(t, "✔ OK (200)\n", out.String())
	assert.Equal(t, "✖ NOT OK (500)\n", errOut.String())
}

func TestC_Forced(t *testing.T) {
	captureOutput(t)
	SetColorForcing(true, false)

	assert.Equal(t, fgGreen+"x"+reset, C(fgGreen, "x"))
	assert.Equal(t, "x", C("", "x"))
}

func TestSetTheme_Mono(t *testing.T) {
	out, _ := captureOutput(t)
	SetColorForcing(true, false)
	SetTheme("mono")

	OK("done")
	assert.Equal(t, "ok done\n", out.String())
	assert.Equal(t, "mono", Current().Name)
}

func TestSetTheme_UnknownFallsBack(t *testing.T) {
	captureOutput(t)
	SetTheme("pastel")
	assert.Equal(t, "classic", Current().Name)
}

func TestPanelString(t *testing.T) {
	captureOutput(t)

	s := PanelString([]string{"Comuta", C(fgGreen, "device: http://led.local")})
	lines := strings.Split(strings.TrimSuffix(s, "\n"), "\n")
	require.Len(t, lines, 4)

	assert.Equal(t, "┌"+strings.Repeat("─", 26)+"┐", lines[0])
	assert.Equal(t, "│ Comuta"+strings.Repeat(" ", 18)+" │", lines[1])
	assert.Equal(t, "│ device: http://led.local │", lines[2])
	assert.Equal(t, "└"+strings.Repeat("─", 26)+"┘", lines[3])
}

func TestStripANSI(t *testing.T) {
	assert.Equal(t, "plain", stripANSI("\033[1mplain\033[0m"))
	assert.Equal(t, 5, visibleWidth("\033[32m✔ yes\033[0m"))
}
