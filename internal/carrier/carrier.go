package carrier

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"garpconnect/internal/config"
	"garpconnect/internal/services"
	"garpconnect/internal/shipment"
)

// Client books shipments with a single carrier API.
type Client interface {
	Carrier() shipment.Carrier
	// CreateShipment books the shipment and returns identifiers plus the
	// printable documents the carrier produced.
	CreateShipment(ctx context.Context, s *shipment.Shipment) (*Result, error)
	// RequestPickup books a pickup for an already created shipment.
	// Carriers without a pickup API treat this as a no-op.
	RequestPickup(ctx context.Context, shipmentID, pickupDate string) error
	// FindServicePoints lists the nearest parcel shops for a postal code.
	FindServicePoints(ctx context.Context, zipcode, country string, maxResults int) ([]ServicePoint, error)
}

// Result carries the outcome of a successful booking.
type Result struct {
	ShipmentID     string
	TrackingNumber string
	Label          []byte
	LabelFormat    string
	// ShipmentList holds the optional waybill document. Not every
	// product has one.
	ShipmentList []byte
}

// ServicePoint is a pickup location returned by a carrier locator API.
type ServicePoint struct {
	ID      string
	Name    string
	Address string
	City    string
	Zipcode string
}

// NewHTTPClient builds the retrying HTTP client shared by the carrier
// implementations. Connection errors, 429 and 5xx responses are retried
// with exponential backoff; everything else is returned to the caller
// for classification.
func NewHTTPClient(cfg config.Carrier) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.RetryMax = cfg.RetryAttempts
	client.RetryWaitMin = time.Duration(cfg.RetryWaitSeconds) * time.Second
	client.RetryWaitMax = time.Duration(cfg.RetryMaxWaitSeconds) * time.Second
	client.HTTPClient.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	client.Logger = nil
	return client
}

// ClassifyStatus maps a non-2xx carrier response to the error taxonomy.
// Auth failures and rejected payloads are terminal; anything else is
// worth retrying on a later attempt.
func ClassifyStatus(component, operation string, status int, body []byte) error {
	detail := strings.TrimSpace(string(body))
	if len(detail) > 300 {
		detail = detail[:300]
	}
	message := fmt.Sprintf("unexpected status %d", status)
	if detail != "" {
		message = fmt.Sprintf("unexpected status %d: %s", status, detail)
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return services.Wrap(services.ErrAuth, component, operation, message, nil)
	case http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity:
		return services.Wrap(services.ErrValidation, component, operation, message, nil)
	default:
		return services.Wrap(services.ErrTransient, component, operation, message, nil)
	}
}

// CleanPostalCode strips a country prefix from a postal code. Exported
// order files sometimes carry codes like "DK-5220" where the carrier
// APIs want "5220".
func CleanPostalCode(zipcode string) string {
	cleaned := strings.TrimSpace(zipcode)
	if len(cleaned) > 3 && cleaned[2] == '-' && isAlpha(cleaned[:2]) {
		return cleaned[3:]
	}
	return cleaned
}

func isAlpha(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return s != ""
}
