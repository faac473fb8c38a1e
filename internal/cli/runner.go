package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Makepad-fr/comuta/internal/config"
	"github.com/Makepad-fr/comuta/internal/logging"
	"github.com/Makepad-fr/comuta/internal/metrics"
	"github.com/Makepad-fr/comuta/internal/toggle"
	"github.com/Makepad-fr/comuta/internal/tui"
	"github.com/Makepad-fr/comuta/internal/ui"
	"github.com/Makepad-fr/comuta/internal/webui"
)

// Options carry what the root command resolved before dispatch.
type Options struct {
	Overrides map[string]any // config keys set explicitly on the command line

	// Test seams. Zero values mean the real thing.
	Context    context.Context
	HTTPClient toggle.HTTPClient
	LogOutput  io.Writer
}

// FlagKeys maps root flag names to config keys.
var FlagKeys = map[string]string{
	"device":     "device.url",
	"timeout":    "device.timeout",
	"addr":       "server.addr",
	"policy":     "toggle.policy",
	"log-level":  "log.level",
	"log-format": "log.format",
	"log-file":   "log.file",
	"theme":      "ui.theme",
	"label":      "ui.label",
}

// Overrides collects the flags of fs that were actually set, keyed for config.Load.
func Overrides(fs *flag.FlagSet) map[string]any {
	out := map[string]any{}
	fs.Visit(func(f *flag.Flag) {
		if key, ok := FlagKeys[f.Name]; ok {
			out[key] = f.Value.String()
		}
	})
	return out
}

// Run dispatches subcommands and returns an exit code (0 ok, 1 error, 2 usage).
func Run(args []string, opt Options) int {
	if len(args) == 0 {
		PrintHelp()
		return 2
	}
	cmd, a := args[0], args[1:]

	switch cmd {
	case "help", "-h", "--help":
		PrintHelp()
		return 0

	case "ui":
		if len(a) != 0 {
			ui.Fail("usage: comuta ui")
			return 2
		}
		return doUI(opt)

	case "toggle":
		count := 1
		if len(a) > 1 {
			ui.Fail("usage: comuta toggle [count]")
			return 2
		}
		if len(a) == 1 {
			n, err := strconv.Atoi(a[0])
			if err != nil || n < 1 {
				ui.Fail("toggle: count must be a positive number: " + a[0])
				return 2
			}
			count = n
		}
		return doToggle(opt, count)

	case "serve":
		if len(a) != 0 {
			ui.Fail("usage: comuta serve")
			return 2
		}
		return doServe(opt)
	}

	ui.Fail("unknown subcommand: " + cmd)
	fmt.Fprintln(os.Stderr)
	PrintHelp()
	return 2
}

func PrintHelp() {
	fmt.Printf(`comuta - flip a remote LED with one button

Usage:
  comuta [flags] <subcommand> [args]

Subcommands:
  ui                 Terminal view: one button, enter/space/click toggles
  toggle [count]     Send count toggles at once (default 1) and report each
  serve              Serve the web page and relay POST /toggle to the device

Flags:
  -device URL        LED device base URL            (COMUTA_DEVICE__URL)
  -timeout DUR       per-request timeout, 0 = none  (COMUTA_DEVICE__TIMEOUT)
  -addr ADDR         listen address for serve       (COMUTA_SERVER__ADDR, default :3000)
  -policy P          concurrent | drop              (COMUTA_TOGGLE__POLICY)
  -log-level L       debug | info | warn | error    (COMUTA_LOG__LEVEL)
  -log-format F      text | json                    (COMUTA_LOG__FORMAT)
  -log-file PATH     debug log for ui               (COMUTA_LOG__FILE)
  -theme T           classic | neon | mono          (COMUTA_UI__THEME)
  -label TEXT        button caption for ui          (COMUTA_UI__LABEL)

Examples:
  comuta -device http://192.168.4.1 ui
  comuta -device http://192.168.4.1 toggle
  comuta -device http://192.168.4.1 -addr :8080 serve
`)
}

// -------------- subcommand impls ----------------

func doToggle(opt Options, count int) int {
	cfg, code := loadConfig(opt)
	if cfg == nil {
		return code
	}
	logger, err := logging.New(logOutput(opt), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		ui.Fail("log: " + err.Error())
		return 1
	}
	client, err := newClient(cfg, logger, opt, nil)
	if err != nil {
		ui.Fail("device: " + err.Error())
		return 2
	}

	var (
		mu      sync.Mutex
		results []toggle.Result
	)
	ctx := runContext(opt)
	for i := 0; i < count; i++ {
		client.Activate(ctx, func(r toggle.Result) {
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		})
	}
	client.Wait()

	code = 0
	for _, r := range results {
		if r.OK() {
			ui.OK(r.String())
			continue
		}
		if r.Outcome == toggle.Skipped {
			ui.Warn(r.String())
		} else {
			ui.Fail(r.String())
		}
		code = 1
	}
	return code
}

func doUI(opt Options) int {
	cfg, code := loadConfig(opt)
	if cfg == nil {
		return code
	}

	// the alt screen owns the terminal, logs go to a file instead
	f, err := tea.LogToFile(cfg.Log.File, "comuta")
	if err != nil {
		ui.Fail("log file: " + err.Error())
		return 1
	}
	defer f.Close()

	logger, err := logging.New(f, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		ui.Fail("log: " + err.Error())
		return 1
	}
	client, err := newClient(cfg, logger, opt, nil)
	if err != nil {
		ui.Fail("device: " + err.Error())
		return 2
	}

	ctx, stop := signal.NotifyContext(runContext(opt), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = tui.Run(ctx, client, tui.WithTheme(cfg.UI.Theme), tui.WithLabel(cfg.UI.Label))
	client.Wait()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		ui.Fail("ui: " + err.Error())
		return 1
	}
	return 0
}

func doServe(opt Options) int {
	cfg, code := loadConfig(opt)
	if cfg == nil {
		return code
	}
	logger, err := logging.New(logOutput(opt), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		ui.Fail("log: " + err.Error())
		return 1
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.NewActivationMetrics(reg)
	if err != nil {
		ui.Fail("metrics: " + err.Error())
		return 1
	}

	client, err := newClient(cfg, logger, opt, m)
	if err != nil {
		ui.Fail("device: " + err.Error())
		return 2
	}
	srv := webui.New(client, webui.WithLogger(logger), webui.WithMetrics(m.Handler()))

	printBanner(cfg, client)

	ctx, stop := signal.NotifyContext(runContext(opt), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = srv.Run(ctx, cfg.Server.Addr)
	// a second signal now kills the process instead of being swallowed
	stop()
	client.Wait()
	if err != nil {
		ui.Fail("serve: " + err.Error())
		return 1
	}
	return 0
}

// -------------- helpers --------------

// loadConfig returns a nil config and the exit code to use when loading fails.
func loadConfig(opt Options) (*config.Config, int) {
	cfg, err := config.Load(opt.Overrides)
	if err != nil {
		ui.Fail("config: " + err.Error())
		if errors.Is(err, config.ErrInvalid) {
			fmt.Fprintln(os.Stderr, ui.C(ui.Current().Muted, "Hint: set -device or COMUTA_DEVICE__URL, see `comuta help`"))
			return nil, 2
		}
		return nil, 1
	}
	ui.SetTheme(cfg.UI.Theme)
	return cfg, 0
}

func newClient(cfg *config.Config, logger *slog.Logger, opt Options, m *metrics.ActivationMetrics) (*toggle.Client, error) {
	policy, err := toggle.ParsePolicy(cfg.Toggle.Policy)
	if err != nil {
		return nil, err
	}
	hc := opt.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Device.Timeout}
	}

	opts := []toggle.Option{
		toggle.WithHTTPClient(hc),
		toggle.WithLogger(logger),
		toggle.WithPolicy(policy),
	}
	if m != nil {
		opts = append(opts, toggle.WithRecorder(m))
	}
	return toggle.New(cfg.Device.URL, opts...)
}

func runContext(opt Options) context.Context {
	if opt.Context != nil {
		return opt.Context
	}
	return context.Background()
}

func logOutput(opt Options) io.Writer {
	if opt.LogOutput != nil {
		return opt.LogOutput
	}
	return os.Stderr
}

func printBanner(cfg *config.Config, client *toggle.Client) {
	host := cfg.Server.Addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	t := ui.Current()
	ui.Panel([]string{
		ui.C(t.Title, "Comuta LED"),
		"",
		"Page:     " + ui.C(t.Accent, "http://"+host+"/"),
		"Device:   " + client.Endpoint(),
		"Metrics:  http://" + host + "/metrics",
		"Policy:   " + string(client.Policy()),
	})
}
