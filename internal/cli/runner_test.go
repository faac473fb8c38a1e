package cli

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Makepad-fr/comuta/internal/ui"
)

const device = "http://led.local"

type testEnv struct {
	mt     *httpmock.MockTransport
	out    *bytes.Buffer
	errOut *bytes.Buffer
	logs   *bytes.Buffer
	opt    Options
}

func newTestEnv(t *testing.T, overrides map[string]any) *testEnv {
	t.Helper()
	// keep the developer's environment out of the way
	t.Setenv("COMUTA_DEVICE__URL", "")

	env := &testEnv{
		mt:     httpmock.NewMockTransport(),
		out:    &bytes.Buffer{},
		errOut: &bytes.Buffer{},
		logs:   &bytes.Buffer{},
	}
	ui.SetOutput(env.out, env.errOut)
	t.Cleanup(func() {
		ui.SetOutput(nil, nil)
		ui.SetTheme("classic")
		ui.SetColorForcing(false, false)
	})

	if overrides == nil {
		overrides = map[string]any{"device.url": device}
	}
	env.opt = Options{
		Overrides:  overrides,
		HTTPClient: &http.Client{Transport: env.mt},
		LogOutput:  env.logs,
	}
	return env
}

func TestRun_Usage(t *testing.T) {
	newTestEnv(t, nil)

	assert.Equal(t, 2, Run(nil, Options{}))
	assert.Equal(t, 0, Run([]string{"help"}, Options{}))
	assert.Equal(t, 2, Run([]string{"blink"}, Options{}))
	assert.Equal(t, 2, Run([]string{"ui", "extra"}, Options{}))
	assert.Equal(t, 2, Run([]string{"serve", "extra"}, Options{}))
	assert.Equal(t, 2, Run([]string{"toggle", "zero"}, Options{}))
	assert.Equal(t, 2, Run([]string{"toggle", "0"}, Options{}))
	assert.Equal(t, 2, Run([]string{"toggle", "1", "2"}, Options{}))
}

func TestToggle_OK(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mt.RegisterResponder(http.MethodPost, device+"/toggle", httpmock.NewStringResponder(http.StatusOK, ""))

	code := Run([]string{"toggle"}, env.opt)

	assert.Equal(t, 0, code)
	assert.Equal(t, "✔ OK (200)\n", env.out.String())
	assert.Empty(t, env.errOut.String())
	assert.Equal(t, 1, env.mt.GetTotalCallCount())
	assert.Contains(t, env.logs.String(), "msg=OK")
}

func TestToggle_NotOK(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mt.RegisterResponder(http.MethodPost, device+"/toggle", httpmock.NewStringResponder(http.StatusInternalServerError, ""))

	code := Run([]string{"toggle"}, env.opt)

	assert.Equal(t, 1, code)
	assert.Equal(t, "✖ NOT OK (500)\n", env.errOut.String())
	assert.Contains(t, env.logs.String(), `msg="NOT OK"`)
}

func TestToggle_NetworkError(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mt.RegisterResponder(http.MethodPost, device+"/toggle", httpmock.NewErrorResponder(errors.New("no route to host")))

	code := Run([]string{"toggle"}, env.opt)

	assert.Equal(t, 1, code)
	assert.Contains(t, env.errOut.String(), "✖ NETWORK ERROR: ")
	assert.Contains(t, env.errOut.String(), "no route to host")
	assert.Contains(t, env.logs.String(), `msg="NETWORK ERROR"`)
}

func TestToggle_BurstIssuesOneRequestEach(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mt.RegisterResponder(http.MethodPost, device+"/toggle", httpmock.NewStringResponder(http.StatusNoContent, ""))

	code := Run([]string{"toggle", "4"}, env.opt)

	assert.Equal(t, 0, code)
	assert.Equal(t, 4, env.mt.GetTotalCallCount())
	assert.Equal(t, 4, bytes.Count(env.out.Bytes(), []byte("OK (204)")))
}

func TestToggle_MissingDevice(t *testing.T) {
	env := newTestEnv(t, map[string]any{})

	code := Run([]string{"toggle"}, env.opt)

	assert.Equal(t, 2, code)
	assert.Contains(t, env.errOut.String(), "config: invalid configuration")
	assert.Zero(t, env.mt.GetTotalCallCount())
}

func TestServe_StopsWhenContextDone(t *testing.T) {
	env := newTestEnv(t, map[string]any{
		"device.url":  device,
		"server.addr": "127.0.0.1:0",
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	env.opt.Context = ctx

	done := make(chan int, 1)
	go func() { done <- Run([]string{"serve"}, env.opt) }()

	select {
	case code := <-done:
		assert.Equal(t, 0, code)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
	assert.Contains(t, env.out.String(), "Device:   "+device+"/toggle")
	assert.Contains(t, env.out.String(), "Policy:   concurrent")
}

func TestOverrides_OnlySetFlags(t *testing.T) {
	fs := flag.NewFlagSet("comuta", flag.ContinueOnError)
	fs.String("device", "", "")
	fs.String("policy", "", "")
	fs.Duration("timeout", 0, "")
	fs.String("label", "", "")
	fs.Bool("unrelated", false, "")

	require.NoError(t, fs.Parse([]string{"-device", "http://x.local", "-timeout", "2s", "-label", "Desk", "-unrelated", "toggle"}))

	got := Overrides(fs)
	assert.Equal(t, map[string]any{
		"device.url":     "http://x.local",
		"device.timeout": "2s",
		"ui.label":       "Desk",
	}, got)
	assert.Equal(t, []string{"toggle"}, fs.Args())
}
