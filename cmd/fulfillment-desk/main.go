// cmd/fulfillment-desk/main.go
//
// Entry point for the fulfillment desk. Run it from any directory: the
// .fulfillment folder is created there and the dashboard starts.

package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/fulfillment-desk/internal/api"
	"github.com/kingrea/fulfillment-desk/internal/api/apitest"
	"github.com/kingrea/fulfillment-desk/internal/config"
	"github.com/kingrea/fulfillment-desk/internal/logging"
	"github.com/kingrea/fulfillment-desk/internal/tui"
)

type options struct {
	apiURL  string
	workDir string
	demo    bool
}

func main() {
	var opts options
	flag.StringVar(&opts.apiURL, "api", "", "ecommerce API root (overrides config.yaml and FULFILLMENT_API_URL)")
	flag.StringVar(&opts.workDir, "dir", "", "directory holding .fulfillment (defaults to cwd)")
	flag.BoolVar(&opts.demo, "demo", false, "serve sample orders from an in-process fake API")
	flag.Parse()

	if err := run(opts, runProgram); err != nil {
		die("%v", err)
	}
}

// run prepares the desk and hands the dashboard to start. Everything it
// opens is closed before it returns.
func run(opts options, start func(tea.Model) error) error {
	dir := opts.workDir
	if dir == "" {
		var err error
		dir, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("determine working directory: %w", err)
		}
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve working directory: %w", err)
	}
	if err := config.InitDeskDir(dir); err != nil {
		return fmt.Errorf("init %s: %w", config.DeskDir, err)
	}

	logger, err := logging.New(dir)
	if err != nil {
		return err
	}
	defer logger.Close()

	appOpts := []tui.AppOption{tui.WithLogger(logger)}
	if opts.demo {
		srv := demoAPI().Serve()
		defer srv.Close()
		logger.Printf("demo API listening on %s", srv.URL)
		appOpts = append(appOpts, tui.WithAPIURL(srv.URL))
	} else if opts.apiURL != "" {
		appOpts = append(appOpts, tui.WithAPIURL(opts.apiURL))
	}

	app, err := tui.NewApp(dir, appOpts...)
	if err != nil {
		return err
	}
	if err := start(app); err != nil {
		return fmt.Errorf("running dashboard: %w", err)
	}
	return nil
}

func runProgram(model tea.Model) error {
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// demoAPI seeds a fake API: some orders succeed on retry, one fails once,
// one never succeeds.
func demoAPI() *apitest.OrderAPI {
	fake := apitest.New(apitest.WithLatency(900 * time.Millisecond))
	fake.AddOrder("EDX-100001", api.StatusFulfillmentError)
	fake.AddOrder("EDX-100002", api.StatusFulfillmentError)
	fake.AddOrder("EDX-100003", api.StatusFulfillmentError)
	fake.AddOrder("EDX-100004", api.StatusComplete)
	fake.AddOrder("EDX-100005", api.StatusRefunded)
	fake.AddOrder("EDX-100006", api.StatusOpen)
	fake.FailNext("EDX-100002", 1)
	fake.FailNext("EDX-100003", -1)
	return fake
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
