// Package testsupport provides shared helpers for package tests.
package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"garpconnect/internal/config"
	"garpconnect/internal/journal"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per
// test. The directories exist when it returns.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WatchDir = filepath.Join(base, "outgoing")
	cfg.Paths.ProcessingDir = filepath.Join(base, "processing")
	cfg.Paths.DoneDir = filepath.Join(base, "done")
	cfg.Paths.ErrorDir = filepath.Join(base, "error")
	cfg.Paths.LabelDir = filepath.Join(base, "labels")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.DHL.APIKey = "test-key"
	cfg.PostNord.Enabled = true
	cfg.PostNord.APIKey = "test-key"
	cfg.DHL.RetryWaitSeconds = 0
	cfg.DHL.RetryMaxWaitSeconds = 0
	cfg.PostNord.RetryWaitSeconds = 0
	cfg.PostNord.RetryMaxWaitSeconds = 0
	cfg.Sender.Name = "Ernst P AB"
	cfg.Sender.Address1 = "Industrigatan 1"
	cfg.Sender.Zipcode = "57010"
	cfg.Sender.City = "KORSBERGA"
	cfg.Sender.Email = "lager@example.se"
	cfg.Sender.DHLCustomerNumber = "123456"
	cfg.Sender.PostNordCustomerNumber = "654321"
	cfg.Watcher.QuietPeriodSeconds = 1
	cfg.Watcher.SweepIntervalSeconds = 1

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// MustOpenStore opens a journal store in the test's log directory and
// closes it at cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *journal.Store {
	t.Helper()
	store, err := journal.Open(journal.DefaultPath(cfg.Paths.LogDir))
	if err != nil {
		t.Fatalf("open journal store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close journal store: %v", err)
		}
	})
	return store
}

// WriteOrderXML drops a minimal single-shipment export file into dir
// and returns its path. The shipment carries an enot notification
// option, so processing it sends a tracking email.
func WriteOrderXML(t testing.TB, dir, name, orderNo, srvid string) string {
	t.Helper()
	notification := fmt.Sprintf(`
  <ufonline>
   <option optid="enot">
    <val n="message">Order %s har skickats</val>
   </option>
  </ufonline>`, orderNo)
	return writeOrderXML(t, dir, name, orderNo, srvid, notification)
}

// WriteOrderXMLWithoutNotification writes the same export file without
// the enot option; processing it must not send a tracking email.
func WriteOrderXMLWithoutNotification(t testing.TB, dir, name, orderNo, srvid string) string {
	t.Helper()
	return writeOrderXML(t, dir, name, orderNo, srvid, "")
}

func writeOrderXML(t testing.TB, dir, name, orderNo, srvid, notification string) string {
	t.Helper()
	content := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<data>
 <shipment orderno=%q>
  <val n="from">Ernst P AB</val>
  <val n="reference">%s</val>
  <service srvid=%q></service>
  <receiver rcvid="1">
   <val n="name">Testbutiken AB</val>
   <val n="address1">Storgatan 10</val>
   <val n="zipcode">11122</val>
   <val n="city">STOCKHOLM</val>
   <val n="country">SE</val>
   <val n="email">kund@example.se</val>
  </receiver>
  <container type="parcel">
   <val n="copies">1</val>
   <val n="weight">2.5</val>
  </container>%s
 </shipment>
</data>`, orderNo, orderNo, srvid, notification)

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write order xml: %v", err)
	}
	return path
}
