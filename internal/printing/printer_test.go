package printing_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"garpconnect/internal/config"
	"garpconnect/internal/printing"
	"garpconnect/internal/services"
)

func TestPrintLabelSpoolsPDF(t *testing.T) {
	var gotName string
	var gotArgs []string
	var gotContent []byte

	runner := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotName = name
		gotArgs = args
		data, err := os.ReadFile(args[len(args)-1])
		if err != nil {
			t.Fatalf("read spool file: %v", err)
		}
		gotContent = data
		return nil, nil
	}

	p := printing.NewWithRunner(config.Printing{
		LabelPrinter:   "zebra",
		LabelFormat:    "pdf",
		SpoolerCommand: "lp",
	}, nil, runner)

	if err := p.PrintLabel(context.Background(), []byte("%PDF-1.4"), "pdf", "ORD-1"); err != nil {
		t.Fatalf("PrintLabel failed: %v", err)
	}
	if gotName != "lp" {
		t.Fatalf("unexpected spooler command: %q", gotName)
	}
	if gotArgs[0] != "-d" || gotArgs[1] != "zebra" {
		t.Fatalf("unexpected args: %v", gotArgs)
	}
	if string(gotContent) != "%PDF-1.4" {
		t.Fatalf("unexpected spool content: %q", gotContent)
	}
}

func TestPrintLabelZPLUsesRawMode(t *testing.T) {
	var gotArgs []string
	runner := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotArgs = args
		return nil, nil
	}

	p := printing.NewWithRunner(config.Printing{
		LabelPrinter:   "zebra",
		SpoolerCommand: "lp",
	}, nil, runner)

	if err := p.PrintLabel(context.Background(), []byte("^XA^XZ"), "zpl", "ORD-2"); err != nil {
		t.Fatalf("PrintLabel failed: %v", err)
	}
	joined := strings.Join(gotArgs, " ")
	if !strings.Contains(joined, "-o raw") {
		t.Fatalf("expected raw mode for zpl, got args %v", gotArgs)
	}
}

func TestPrintLabelFailureIsPrinterError(t *testing.T) {
	runner := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("lp: destination unknown"), errors.New("exit status 1")
	}

	p := printing.NewWithRunner(config.Printing{
		LabelPrinter:   "zebra",
		SpoolerCommand: "lp",
	}, nil, runner)

	err := p.PrintLabel(context.Background(), []byte("data"), "pdf", "ORD-3")
	if !errors.Is(err, services.ErrPrinter) {
		t.Fatalf("expected printer error, got %v", err)
	}
	if !services.IsTerminal(err) {
		t.Fatal("printer errors must be terminal")
	}
	if !strings.Contains(err.Error(), "destination unknown") {
		t.Fatalf("expected spooler output in error, got %v", err)
	}
}

func TestPrintLabelWithoutPrinterIsNoop(t *testing.T) {
	called := false
	runner := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		called = true
		return nil, nil
	}

	p := printing.NewWithRunner(config.Printing{SpoolerCommand: "lp"}, nil, runner)
	if err := p.PrintLabel(context.Background(), []byte("data"), "pdf", "ORD-4"); err != nil {
		t.Fatalf("PrintLabel failed: %v", err)
	}
	if called {
		t.Fatal("expected no spooler invocation without a configured printer")
	}
}

func TestPrintDocumentWithoutPrinterSkips(t *testing.T) {
	called := false
	runner := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		called = true
		return nil, nil
	}

	p := printing.NewWithRunner(config.Printing{
		LabelPrinter:   "zebra",
		SpoolerCommand: "lp",
	}, nil, runner)
	if err := p.PrintDocument(context.Background(), []byte("doc"), "ORD-5"); err != nil {
		t.Fatalf("PrintDocument failed: %v", err)
	}
	if called {
		t.Fatal("expected document print skipped without a document printer")
	}
}
