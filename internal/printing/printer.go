// Package printing sends labels and accompanying documents to the
// configured spooler queues. Labels go to a dedicated label printer,
// waybills and other A4 documents to a separate document printer.
package printing

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"garpconnect/internal/config"
	"garpconnect/internal/logging"
	"garpconnect/internal/services"
)

// Runner executes a spooler command. Swapped out in tests.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Printer submits print jobs through the system spooler.
type Printer struct {
	cfg    config.Printing
	logger *slog.Logger
	runner Runner
}

// New constructs a Printer from the printing configuration.
func New(cfg config.Printing, logger *slog.Logger) *Printer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Printer{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "printing"),
		runner: execRunner,
	}
}

// NewWithRunner constructs a Printer with a custom command runner.
func NewWithRunner(cfg config.Printing, logger *slog.Logger, runner Runner) *Printer {
	p := New(cfg, logger)
	p.runner = runner
	return p
}

// LabelPrinterConfigured reports whether a label queue is set up.
func (p *Printer) LabelPrinterConfigured() bool {
	return strings.TrimSpace(p.cfg.LabelPrinter) != ""
}

// PrintLabel sends a label to the label printer. ZPL data is spooled
// raw; PDF data goes through the regular driver. When no label printer
// is configured the call is a no-op, the pipeline keeps the file copy
// in the label directory either way.
func (p *Printer) PrintLabel(ctx context.Context, data []byte, format, orderNo string) error {
	if !p.LabelPrinterConfigured() {
		p.logger.Warn("no label printer configured, keeping label on disk only",
			logging.String(logging.FieldOrderNo, orderNo))
		return nil
	}
	return p.spool(ctx, p.cfg.LabelPrinter, data, format, orderNo, "label")
}

// PrintDocument sends an A4 document such as a waybill to the document
// printer. Skipped when no document printer is configured.
func (p *Printer) PrintDocument(ctx context.Context, data []byte, orderNo string) error {
	if strings.TrimSpace(p.cfg.DocumentPrinter) == "" {
		p.logger.Debug("no document printer configured, skipping document",
			logging.String(logging.FieldOrderNo, orderNo))
		return nil
	}
	return p.spool(ctx, p.cfg.DocumentPrinter, data, "pdf", orderNo, "document")
}

func (p *Printer) spool(ctx context.Context, queue string, data []byte, format, orderNo, kind string) error {
	operation := "print " + kind

	tmp, err := os.CreateTemp("", fmt.Sprintf("garpconnect-%s-%s-*.%s", kind, sanitize(orderNo), format))
	if err != nil {
		return services.Wrap(services.ErrPrinter, "printing", operation, "create spool file", err)
	}
	path := tmp.Name()
	defer os.Remove(path)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return services.Wrap(services.ErrPrinter, "printing", operation, "write spool file", err)
	}
	if err := tmp.Close(); err != nil {
		return services.Wrap(services.ErrPrinter, "printing", operation, "close spool file", err)
	}

	args := []string{"-d", queue}
	if strings.EqualFold(format, "zpl") {
		args = append(args, "-o", "raw")
	}
	args = append(args, path)

	output, err := p.runner(ctx, p.cfg.SpoolerCommand, args...)
	if err != nil {
		detail := strings.TrimSpace(string(output))
		message := fmt.Sprintf("spooler command failed for queue %q", queue)
		if detail != "" {
			message = fmt.Sprintf("%s: %s", message, detail)
		}
		return services.Wrap(services.ErrPrinter, "printing", operation, message, err)
	}

	p.logger.Info("print job submitted",
		logging.String(logging.FieldOrderNo, orderNo),
		logging.String("queue", queue),
		logging.String("kind", kind),
		logging.String("format", format))
	return nil
}

// sanitize keeps order numbers safe for use in temp file patterns.
func sanitize(orderNo string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, orderNo)
}
