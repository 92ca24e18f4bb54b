package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	gomail "gopkg.in/gomail.v2"

	"garpconnect/internal/carrier"
	"garpconnect/internal/config"
	"garpconnect/internal/journal"
	"garpconnect/internal/notifications"
	"garpconnect/internal/pipeline"
	"garpconnect/internal/printing"
	"garpconnect/internal/services"
	"garpconnect/internal/shipment"
	"garpconnect/internal/testsupport"
)

type fakeClient struct {
	id       shipment.Carrier
	createFn func(ctx context.Context, s *shipment.Shipment) (*carrier.Result, error)
	pickups  []string
}

func (f *fakeClient) Carrier() shipment.Carrier { return f.id }

func (f *fakeClient) CreateShipment(ctx context.Context, s *shipment.Shipment) (*carrier.Result, error) {
	return f.createFn(ctx, s)
}

func (f *fakeClient) RequestPickup(ctx context.Context, shipmentID, pickupDate string) error {
	f.pickups = append(f.pickups, shipmentID+"@"+pickupDate)
	return nil
}

func (f *fakeClient) FindServicePoints(ctx context.Context, zipcode, country string, maxResults int) ([]carrier.ServicePoint, error) {
	return nil, nil
}

func okClient(id shipment.Carrier) *fakeClient {
	return &fakeClient{
		id: id,
		createFn: func(ctx context.Context, s *shipment.Shipment) (*carrier.Result, error) {
			return &carrier.Result{
				ShipmentID:     "TI-" + s.OrderNo,
				TrackingNumber: "JJD-" + s.OrderNo,
				Label:          []byte("%PDF-1.4 " + s.OrderNo),
				LabelFormat:    "pdf",
			}, nil
		},
	}
}

type testEnv struct {
	cfg     *config.Config
	store   *journal.Store
	manager *pipeline.Manager

	mu      sync.Mutex
	sent    []*gomail.Message
	printed []string
}

func (e *testEnv) sentCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sent)
}

func (e *testEnv) printedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.printed)
}

func newEnv(t *testing.T, clients map[shipment.Carrier]carrier.Client) *testEnv {
	t.Helper()
	env := &testEnv{}
	env.cfg = testsupport.NewConfig(t)
	env.store = testsupport.MustOpenStore(t, env.cfg)

	notifier := notifications.NewWithSender(config.SMTP{
		Enabled:       true,
		Host:          "smtp.example.se",
		Port:          587,
		FromAddress:   "frakt@example.se",
		FromName:      "Ernst P AB",
		OperatorEmail: "lager@example.se",
	}, nil, func(msgs ...*gomail.Message) error {
		env.mu.Lock()
		defer env.mu.Unlock()
		env.sent = append(env.sent, msgs...)
		return nil
	})

	printer := printing.NewWithRunner(config.Printing{
		LabelPrinter:   "zebra",
		LabelFormat:    "pdf",
		SpoolerCommand: "lp",
	}, nil, func(ctx context.Context, name string, args ...string) ([]byte, error) {
		env.mu.Lock()
		defer env.mu.Unlock()
		env.printed = append(env.printed, strings.Join(args, " "))
		return nil, nil
	})

	env.manager = pipeline.NewManagerWithServices(env.cfg, env.store, nil, clients, printer, notifier)
	return env
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir %s: %v", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestProcessFileSuccess(t *testing.T) {
	env := newEnv(t, map[shipment.Carrier]carrier.Client{
		shipment.CarrierDHL: okClient(shipment.CarrierDHL),
	})
	path := testsupport.WriteOrderXML(t, env.cfg.Paths.WatchDir, "order-1.xml", "ORD-1", "DHL:102")

	if err := env.manager.ProcessFile(context.Background(), path); err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}

	done := dirEntries(t, env.cfg.Paths.DoneDir)
	if len(done) != 1 || !strings.HasSuffix(done[0], "_order-1.xml") {
		t.Fatalf("expected timestamped file in done, got %v", done)
	}
	if entries := dirEntries(t, env.cfg.Paths.ErrorDir); len(entries) != 0 {
		t.Fatalf("expected empty error dir, got %v", entries)
	}
	if entries := dirEntries(t, env.cfg.Paths.WatchDir); len(entries) != 0 {
		t.Fatalf("expected watch dir drained, got %v", entries)
	}

	label, err := os.ReadFile(filepath.Join(env.cfg.Paths.LabelDir, "ORD-1.pdf"))
	if err != nil {
		t.Fatalf("read label: %v", err)
	}
	if !strings.Contains(string(label), "ORD-1") {
		t.Fatalf("unexpected label content: %q", label)
	}
	if env.printedCount() != 1 {
		t.Fatalf("expected 1 print job, got %d", env.printedCount())
	}

	items, err := env.store.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("list journal: %v", err)
	}
	if len(items) != 1 || items[0].Status != journal.StatusCompleted {
		t.Fatalf("expected completed journal item, got %+v", items)
	}

	shipments, err := env.store.ShipmentsForItem(context.Background(), items[0].ID)
	if err != nil {
		t.Fatalf("list shipments: %v", err)
	}
	if len(shipments) != 1 || shipments[0].TrackingNumber != "JJD-ORD-1" {
		t.Fatalf("unexpected journal shipments: %+v", shipments)
	}

	if env.sentCount() != 1 {
		t.Fatalf("expected 1 tracking email, got %d", env.sentCount())
	}
}

func TestProcessFileWithoutNotificationSendsNoEmail(t *testing.T) {
	env := newEnv(t, map[shipment.Carrier]carrier.Client{
		shipment.CarrierDHL: okClient(shipment.CarrierDHL),
	})
	path := testsupport.WriteOrderXMLWithoutNotification(t, env.cfg.Paths.WatchDir, "order-9.xml", "ORD-9", "DHL:102")

	if err := env.manager.ProcessFile(context.Background(), path); err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}

	if done := dirEntries(t, env.cfg.Paths.DoneDir); len(done) != 1 {
		t.Fatalf("expected file in done, got %v", done)
	}
	if env.sentCount() != 0 {
		t.Fatalf("expected no tracking email without enot option, got %d", env.sentCount())
	}
}

func TestProcessFileParseFailureGoesToError(t *testing.T) {
	env := newEnv(t, map[shipment.Carrier]carrier.Client{
		shipment.CarrierDHL: okClient(shipment.CarrierDHL),
	})
	path := testsupport.WriteOrderXML(t, env.cfg.Paths.WatchDir, "order-2.xml", "ORD-2", "UPS:100")

	err := env.manager.ProcessFile(context.Background(), path)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	errorFiles := dirEntries(t, env.cfg.Paths.ErrorDir)
	if len(errorFiles) != 2 {
		t.Fatalf("expected moved file plus sidecar, got %v", errorFiles)
	}
	var sidecar string
	for _, name := range errorFiles {
		if strings.HasSuffix(name, ".error.txt") {
			sidecar = name
		}
	}
	if sidecar == "" {
		t.Fatalf("expected .error.txt sidecar, got %v", errorFiles)
	}
	content, err := os.ReadFile(filepath.Join(env.cfg.Paths.ErrorDir, sidecar))
	if err != nil {
		t.Fatalf("read sidecar: %v", err)
	}
	if !strings.Contains(string(content), "validation") {
		t.Fatalf("expected error kind in sidecar, got %q", content)
	}

	if entries := dirEntries(t, env.cfg.Paths.DoneDir); len(entries) != 0 {
		t.Fatalf("expected empty done dir, got %v", entries)
	}

	// Operator alert for the failed file.
	if env.sentCount() != 1 {
		t.Fatalf("expected 1 operator alert, got %d", env.sentCount())
	}

	items, err := env.store.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("list journal: %v", err)
	}
	if len(items) != 1 || items[0].Status != journal.StatusFailed || items[0].ErrorKind != "validation" {
		t.Fatalf("expected failed journal item with validation kind, got %+v", items)
	}
}

func TestCarrierFailureGoesToError(t *testing.T) {
	failing := &fakeClient{
		id: shipment.CarrierDHL,
		createFn: func(ctx context.Context, s *shipment.Shipment) (*carrier.Result, error) {
			return nil, services.Wrap(services.ErrAuth, "dhl", "create shipment", "unexpected status 401", nil)
		},
	}
	env := newEnv(t, map[shipment.Carrier]carrier.Client{shipment.CarrierDHL: failing})
	path := testsupport.WriteOrderXML(t, env.cfg.Paths.WatchDir, "order-3.xml", "ORD-3", "DHL:102")

	err := env.manager.ProcessFile(context.Background(), path)
	if !errors.Is(err, services.ErrAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}

	items, _ := env.store.List(context.Background(), 10)
	if len(items) != 1 || items[0].ErrorKind != "auth" || items[0].Attempts != 1 {
		t.Fatalf("unexpected journal state: %+v", items)
	}
}

func TestDisabledCarrierIsConfigurationError(t *testing.T) {
	env := newEnv(t, map[shipment.Carrier]carrier.Client{
		shipment.CarrierDHL: okClient(shipment.CarrierDHL),
	})
	path := testsupport.WriteOrderXML(t, env.cfg.Paths.WatchDir, "order-4.xml", "ORD-4", "PN:19")

	err := env.manager.ProcessFile(context.Background(), path)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestClaimIsExclusive(t *testing.T) {
	env := newEnv(t, nil)
	path := testsupport.WriteOrderXML(t, env.cfg.Paths.WatchDir, "order-5.xml", "ORD-5", "DHL:102")

	claimed, err := env.manager.Claim(path)
	if err != nil {
		t.Fatalf("first claim failed: %v", err)
	}
	if filepath.Dir(claimed) != env.cfg.Paths.ProcessingDir {
		t.Fatalf("expected file in processing dir, got %q", claimed)
	}

	if _, err := env.manager.Claim(path); !errors.Is(err, pipeline.ErrAlreadyClaimed) {
		t.Fatalf("expected ErrAlreadyClaimed, got %v", err)
	}
}

func TestRecoverProcessingReturnsLeftovers(t *testing.T) {
	env := newEnv(t, nil)
	testsupport.WriteOrderXML(t, env.cfg.Paths.ProcessingDir, "order-6.xml", "ORD-6", "DHL:102")

	if err := env.manager.RecoverProcessing(); err != nil {
		t.Fatalf("RecoverProcessing failed: %v", err)
	}

	if entries := dirEntries(t, env.cfg.Paths.ProcessingDir); len(entries) != 0 {
		t.Fatalf("expected processing drained, got %v", entries)
	}
	watch := dirEntries(t, env.cfg.Paths.WatchDir)
	if len(watch) != 1 || watch[0] != "order-6.xml" {
		t.Fatalf("expected file back in watch dir, got %v", watch)
	}
}

func TestStartProcessesDroppedFiles(t *testing.T) {
	env := newEnv(t, map[shipment.Carrier]carrier.Client{
		shipment.CarrierDHL:      okClient(shipment.CarrierDHL),
		shipment.CarrierPostNord: okClient(shipment.CarrierPostNord),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := env.manager.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer env.manager.Stop()

	testsupport.WriteOrderXML(t, env.cfg.Paths.WatchDir, "order-7.xml", "ORD-7", "DHL:102")
	testsupport.WriteOrderXML(t, env.cfg.Paths.WatchDir, "order-8.xml", "ORD-8", "PN:19")

	deadline := time.After(20 * time.Second)
	for {
		if len(dirEntries(t, env.cfg.Paths.DoneDir)) == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("files never reached done: done=%v error=%v watch=%v",
				dirEntries(t, env.cfg.Paths.DoneDir),
				dirEntries(t, env.cfg.Paths.ErrorDir),
				dirEntries(t, env.cfg.Paths.WatchDir))
		case <-time.After(200 * time.Millisecond):
		}
	}
}
