package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"garpconnect/internal/fileutil"
	"garpconnect/internal/journal"
	"garpconnect/internal/logging"
	"garpconnect/internal/notifications"
	"garpconnect/internal/services"
	"garpconnect/internal/shipment"
)

// ProcessFile claims a watched file and runs it to a terminal
// directory. Also used by the one-shot process command.
func (m *Manager) ProcessFile(ctx context.Context, watchPath string) error {
	claimed, err := m.Claim(watchPath)
	if err != nil {
		return err
	}
	return m.processClaimed(ctx, claimed)
}

// processClaimed takes a file already in the processing directory
// through parse, submission, and finalize. Every return path moves the
// file to exactly one of done/ or error/.
func (m *Manager) processClaimed(ctx context.Context, procPath string) error {
	fileName := filepath.Base(procPath)
	ctx = services.WithRequestID(ctx, uuid.NewString())
	ctx = services.WithFile(ctx, fileName)

	item := m.journalNewItem(ctx, fileName, procPath)
	if item != nil {
		ctx = services.WithItemID(ctx, item.ID)
	}

	logger := logging.WithContext(ctx, m.logger)
	logger.Info("processing file")

	shipments, err := shipment.ParseFile(procPath)
	if err != nil {
		logger.Error("parse failed", logging.Error(err))
		return m.finalizeFailure(ctx, item, procPath, err)
	}
	logger.Info("parsed shipments", logging.Int("count", len(shipments)))

	m.journalTransition(ctx, item, journal.StatusSubmitting)
	m.journalAttempt(ctx, item)

	var failures []error
	for _, s := range shipments {
		if err := m.submitShipment(ctx, item, s); err != nil {
			logger.Error("shipment failed",
				logging.String(logging.FieldOrderNo, s.OrderNo),
				logging.String("error_kind", services.Kind(err)),
				logging.Error(err))
			failures = append(failures, fmt.Errorf("order %s: %w", s.OrderNo, err))
		}
	}

	if len(failures) > 0 {
		return m.finalizeFailure(ctx, item, procPath, joinFailures(failures))
	}
	return m.finalizeSuccess(ctx, item, procPath)
}

// submitShipment books one shipment, saves and prints its documents,
// and sends the customer tracking email.
func (m *Manager) submitShipment(ctx context.Context, item *journal.WorkItem, s *shipment.Shipment) error {
	client, ok := m.clients[s.Service.Carrier]
	if !ok {
		return services.Wrap(services.ErrConfiguration, "pipeline", "submit",
			fmt.Sprintf("carrier %s is not enabled", s.Service.Carrier), nil)
	}
	if s.Receiver == nil {
		return services.Wrap(services.ErrValidation, "pipeline", "submit",
			"shipment has no receiver", nil)
	}

	result, err := client.CreateShipment(ctx, s)
	if err != nil {
		return err
	}

	labelPath := filepath.Join(m.cfg.Paths.LabelDir, fmt.Sprintf("%s.%s", s.OrderNo, result.LabelFormat))
	if err := fileutil.WriteFileAtomic(labelPath, result.Label, 0o644); err != nil {
		return services.Wrap(services.ErrTransient, "pipeline", "save label",
			"write "+labelPath, err)
	}

	if s.Service.Booking != nil && s.Service.Booking.PickupBooking && s.Service.Booking.PickupDate != "" {
		if err := client.RequestPickup(ctx, result.ShipmentID, s.Service.Booking.PickupDate); err != nil {
			return err
		}
	}

	if err := m.printer.PrintLabel(ctx, result.Label, result.LabelFormat, s.OrderNo); err != nil {
		return err
	}
	if len(result.ShipmentList) > 0 {
		listPath := filepath.Join(m.cfg.Paths.LabelDir, fmt.Sprintf("%s_shipmentlist.pdf", s.OrderNo))
		if err := fileutil.WriteFileAtomic(listPath, result.ShipmentList, 0o644); err != nil {
			return services.Wrap(services.ErrTransient, "pipeline", "save shipment list",
				"write "+listPath, err)
		}
		if err := m.printer.PrintDocument(ctx, result.ShipmentList, s.OrderNo); err != nil {
			return err
		}
	}

	m.journalShipment(ctx, item, s, result.ShipmentID, result.TrackingNumber, labelPath)

	// The booking already succeeded at this point, so a failed email is
	// logged rather than failing the file; redropping the file would
	// book the shipment twice.
	if s.WantsTrackingEmail() {
		email := notifications.TrackingEmail{
			To:             s.Receiver.Email,
			OrderNo:        s.OrderNo,
			TrackingNumber: result.TrackingNumber,
			Carrier:        s.Service.Carrier,
			CustomMessage:  s.TrackingMessage(),
		}
		if err := m.notifier.SendTrackingEmail(ctx, email); err != nil {
			m.logger.Warn("tracking email failed",
				logging.String(logging.FieldOrderNo, s.OrderNo), logging.Error(err))
		}
	}

	m.logger.Info("shipment booked",
		logging.String(logging.FieldOrderNo, s.OrderNo),
		logging.String(logging.FieldCarrier, string(s.Service.Carrier)),
		logging.String("tracking_number", result.TrackingNumber))
	return nil
}

// finalizeSuccess moves the file to the done directory with a
// timestamp prefix.
func (m *Manager) finalizeSuccess(ctx context.Context, item *journal.WorkItem, procPath string) error {
	dest := fileutil.UniqueDestination(m.cfg.Paths.DoneDir, stampedName(procPath))
	if err := fileutil.MoveFile(procPath, dest); err != nil {
		return fmt.Errorf("move to done: %w", err)
	}

	if item != nil && m.store != nil {
		if err := m.store.MarkCompleted(ctx, item.ID, dest); err != nil {
			m.logger.Warn("journal update failed", logging.Error(err))
		}
	}

	m.logger.Info("file completed", logging.String(logging.FieldFile, filepath.Base(dest)))
	return nil
}

// finalizeFailure moves the file to the error directory, writes the
// error sidecar, and alerts the operator.
func (m *Manager) finalizeFailure(ctx context.Context, item *journal.WorkItem, procPath string, cause error) error {
	fileName := filepath.Base(procPath)
	dest := fileutil.UniqueDestination(m.cfg.Paths.ErrorDir, stampedName(procPath))
	if err := fileutil.MoveFile(procPath, dest); err != nil {
		return fmt.Errorf("move to error: %w", err)
	}

	sidecar := strings.TrimSuffix(dest, filepath.Ext(dest)) + ".error.txt"
	content := fmt.Sprintf("Tid: %s\nFil: %s\nFeltyp: %s\nFel: %s\n",
		time.Now().Format("2006-01-02 15:04:05"), fileName, services.Kind(cause), cause)
	if err := fileutil.WriteFileAtomic(sidecar, []byte(content), 0o644); err != nil {
		m.logger.Warn("write error sidecar failed", logging.Error(err))
	}

	if item != nil && m.store != nil {
		if err := m.store.MarkFailed(ctx, item.ID, services.Kind(cause), cause.Error(), dest); err != nil {
			m.logger.Warn("journal update failed", logging.Error(err))
		}
	}

	alert := notifications.FailureAlert{
		FileName:  fileName,
		Reason:    cause.Error(),
		ErrorKind: services.Kind(cause),
		Timestamp: time.Now(),
	}
	if err := m.notifier.SendFailureAlert(ctx, alert); err != nil {
		m.logger.Warn("failure alert failed", logging.Error(err))
	}

	m.logger.Error("file failed",
		logging.String(logging.FieldFile, filepath.Base(dest)),
		logging.String("error_kind", services.Kind(cause)),
		logging.Error(cause))
	return cause
}

func (m *Manager) journalNewItem(ctx context.Context, fileName, procPath string) *journal.WorkItem {
	if m.store == nil {
		return nil
	}
	item, err := m.store.NewItem(ctx, fileName, procPath)
	if err != nil {
		m.logger.Warn("journal insert failed", logging.Error(err))
		return nil
	}
	return item
}

func (m *Manager) journalTransition(ctx context.Context, item *journal.WorkItem, status journal.Status) {
	if item == nil || m.store == nil {
		return
	}
	if err := m.store.Transition(ctx, item.ID, status); err != nil {
		m.logger.Warn("journal transition failed", logging.Error(err))
	}
}

func (m *Manager) journalAttempt(ctx context.Context, item *journal.WorkItem) {
	if item == nil || m.store == nil {
		return
	}
	if err := m.store.IncrementAttempts(ctx, item.ID); err != nil {
		m.logger.Warn("journal attempt update failed", logging.Error(err))
	}
}

func (m *Manager) journalShipment(ctx context.Context, item *journal.WorkItem, s *shipment.Shipment, shipmentID, tracking, labelPath string) {
	if item == nil || m.store == nil {
		return
	}
	_, err := m.store.RecordShipment(ctx, journal.ShipmentRecord{
		ItemID:         item.ID,
		OrderNo:        s.OrderNo,
		Carrier:        string(s.Service.Carrier),
		ShipmentID:     shipmentID,
		TrackingNumber: tracking,
		LabelPath:      labelPath,
	})
	if err != nil {
		m.logger.Warn("journal shipment insert failed", logging.Error(err))
	}
}

// stampedName prefixes the file name with a timestamp so repeated
// exports of the same order never collide in done/ or error/.
func stampedName(path string) string {
	return time.Now().Format("20060102_150405") + "_" + filepath.Base(path)
}

func joinFailures(failures []error) error {
	if len(failures) == 1 {
		return failures[0]
	}
	return fmt.Errorf("%d shipments failed: %w", len(failures), errors.Join(failures...))
}
