package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/fulfillment-desk/internal/api"
	"github.com/kingrea/fulfillment-desk/internal/config"
)

func TestDemoAPIServesRetryableOrders(t *testing.T) {
	srv := demoAPI().Serve()
	t.Cleanup(srv.Close)

	client, err := api.New(srv.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	orders, err := client.ListOrders(context.Background())
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(orders) != 6 {
		t.Fatalf("orders = %d, want 6", len(orders))
	}
	retryable := 0
	for _, order := range orders {
		if order.CanRetryFulfillment() {
			retryable++
		}
	}
	if retryable != 3 {
		t.Fatalf("retryable orders = %d, want 3", retryable)
	}
}

func TestRunClosesDemoServerWhenDashboardFails(t *testing.T) {
	t.Setenv("FULFILLMENT_API_URL", "")
	dir := t.TempDir()
	boom := errors.New("no tty")
	started := false
	err := run(options{workDir: dir, demo: true}, func(tea.Model) error {
		started = true
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("run error = %v, want %v", err, boom)
	}
	if !started {
		t.Fatalf("dashboard was never started")
	}

	data, err := os.ReadFile(filepath.Join(dir, config.DeskDir, "logs", "desk.log"))
	if err != nil {
		t.Fatalf("read desk log: %v", err)
	}
	const marker = "demo API listening on "
	idx := strings.Index(string(data), marker)
	if idx < 0 {
		t.Fatalf("desk log missing demo URL:\n%s", data)
	}
	url := strings.Fields(string(data)[idx+len(marker):])[0]
	if resp, err := http.Get(url + "/api/v1/orders/"); err == nil {
		resp.Body.Close()
		t.Fatalf("demo server still serving at %s", url)
	}
}

func TestRunRejectsInvalidAPIURL(t *testing.T) {
	t.Setenv("FULFILLMENT_API_URL", "")
	err := run(options{workDir: t.TempDir(), apiURL: "ftp://orders.example.test"}, func(tea.Model) error {
		t.Fatalf("dashboard must not start with an invalid API URL")
		return nil
	})
	if err == nil {
		t.Fatalf("expected an error for an ftp API URL")
	}
}
