// Package dhl books shipments through the DHL Freight API farm. Each
// product area lives behind its own path prefix on the shared base URL:
// transport instructions create the shipment, the print API renders the
// label and waybill, and the pickup request API books collection.
package dhl

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"garpconnect/internal/carrier"
	"garpconnect/internal/config"
	"garpconnect/internal/logging"
	"garpconnect/internal/services"
	"garpconnect/internal/shipment"
)

const (
	pathTransportInstruction = "/transportinstructionapi/v1/transportinstruction/sendtransportinstruction"
	pathPrintDocuments       = "/printapi/v1/print/printdocuments"
	pathPrintByID            = "/printapi/v1/print/printdocumentsbyid"
	pathServicePoints        = "/servicepointlocatorapi/v1/servicepoint/findnearestservicepoints"
	pathPickupRequest        = "/pickuprequestapi/v1/pickuprequest/pickuprequest"
)

// addonCodes maps addon codes from the order export to the names the
// additionalServices object expects.
var addonCodes = map[string]string{
	"AVIS":         "notification",
	"notification": "notification",
}

// packageTypeDefaults picks a package type per product when the export
// does not name one. 210 (pallet) defaults to an EUR pallet; everything
// else falls back to a standard parcel.
var packageTypeDefaults = map[string]string{
	"210": "701",
}

// Client talks to the DHL Freight API farm. Authentication is a
// client-key header carrying the account GUID.
type Client struct {
	baseURL        string
	apiKey         string
	customerNumber string
	sender         config.Sender
	http           *retryablehttp.Client
	logger         *slog.Logger

	// The print API needs the full transport instruction the booking
	// returned, so responses are cached per shipment id.
	mu      sync.Mutex
	tiCache map[string]json.RawMessage
}

// New constructs a DHL client from the carrier and sender configuration.
func New(cfg config.Carrier, sender config.Sender, logger *slog.Logger) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:         cfg.APIKey,
		customerNumber: sender.DHLCustomerNumber,
		sender:         sender,
		http:           carrier.NewHTTPClient(cfg),
		logger:         logging.NewComponentLogger(logger, "dhl"),
		tiCache:        make(map[string]json.RawMessage),
	}
}

func (c *Client) Carrier() shipment.Carrier {
	return shipment.CarrierDHL
}

// CreateShipment books the shipment via the transport instruction API
// and renders the label and optional waybill via the print API.
func (c *Client) CreateShipment(ctx context.Context, s *shipment.Shipment) (*carrier.Result, error) {
	payload := c.buildTransportInstruction(s)

	c.logger.Info("creating shipment",
		logging.String(logging.FieldOrderNo, s.OrderNo),
		logging.String("product_code", s.Service.ProductCode))

	body, err := c.postJSON(ctx, "create shipment", pathTransportInstruction, payload)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Status               string          `json:"status"`
		TransportInstruction json.RawMessage `json:"transportInstruction"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, services.Wrap(services.ErrTransient, "dhl", "create shipment", "decode response", err)
	}
	raw := envelope.TransportInstruction
	if len(raw) == 0 {
		raw = body
	}

	var ti struct {
		ID     json.RawMessage `json:"id"`
		Pieces []struct {
			ID        []string `json:"id"`
			BarcodeID string   `json:"barcodeId"`
		} `json:"pieces"`
	}
	if err := json.Unmarshal(raw, &ti); err != nil {
		return nil, services.Wrap(services.ErrTransient, "dhl", "create shipment", "decode transport instruction", err)
	}

	shipmentID := rawString(ti.ID)
	tracking := ""
	if len(ti.Pieces) > 0 {
		if len(ti.Pieces[0].ID) > 0 && ti.Pieces[0].ID[0] != "" {
			tracking = ti.Pieces[0].ID[0]
		} else {
			tracking = ti.Pieces[0].BarcodeID
		}
	}

	c.mu.Lock()
	c.tiCache[shipmentID] = raw
	c.mu.Unlock()

	c.logger.Info("shipment created",
		logging.String(logging.FieldOrderNo, s.OrderNo),
		logging.String("shipment_id", shipmentID),
		logging.String("tracking_number", tracking))

	label, err := c.fetchLabel(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	shipmentList := c.fetchShipmentList(ctx, shipmentID)

	return &carrier.Result{
		ShipmentID:     shipmentID,
		TrackingNumber: tracking,
		Label:          label,
		LabelFormat:    "pdf",
		ShipmentList:   shipmentList,
	}, nil
}

// RequestPickup books collection for a created shipment.
func (c *Client) RequestPickup(ctx context.Context, shipmentID, pickupDate string) error {
	c.logger.Info("booking pickup",
		logging.String("shipment_id", shipmentID),
		logging.String("pickup_date", pickupDate))

	_, err := c.postJSON(ctx, "request pickup", pathPickupRequest, map[string]string{
		"transportInstructionId": shipmentID,
		"pickupDate":             pickupDate,
	})
	return err
}

// FindServicePoints queries the service point locator.
func (c *Client) FindServicePoints(ctx context.Context, zipcode, country string, maxResults int) ([]carrier.ServicePoint, error) {
	query := url.Values{
		"postalCode":  {zipcode},
		"countryCode": {country},
		"maxResults":  {strconv.Itoa(maxResults)},
	}
	body, err := c.getJSON(ctx, "find service points", pathServicePoints+"?"+query.Encode())
	if err != nil {
		return nil, err
	}

	var decoded struct {
		ServicePoints []struct {
			ID      string `json:"id"`
			Name    string `json:"name"`
			Address struct {
				Street     string `json:"street"`
				CityName   string `json:"cityName"`
				PostalCode string `json:"postalCode"`
			} `json:"address"`
		} `json:"servicePoints"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, services.Wrap(services.ErrTransient, "dhl", "find service points", "decode response", err)
	}

	points := make([]carrier.ServicePoint, 0, len(decoded.ServicePoints))
	for _, p := range decoded.ServicePoints {
		points = append(points, carrier.ServicePoint{
			ID:      p.ID,
			Name:    p.Name,
			Address: p.Address.Street,
			City:    p.Address.CityName,
			Zipcode: p.Address.PostalCode,
		})
	}
	return points, nil
}

// fetchLabel renders the label via printdocuments using the cached
// instruction, falling back to printdocumentsbyid when the cache misses
// or the first call fails.
func (c *Client) fetchLabel(ctx context.Context, shipmentID string) ([]byte, error) {
	c.mu.Lock()
	ti, ok := c.tiCache[shipmentID]
	c.mu.Unlock()

	if ok {
		label, err := c.printDocuments(ctx, ti, "label", "Label")
		if err == nil {
			return label, nil
		}
		c.logger.Warn("printdocuments failed, falling back to printdocumentsbyid",
			logging.String("shipment_id", shipmentID), logging.Error(err))
	}

	body, err := c.postJSON(ctx, "print label", pathPrintByID, map[string]any{
		"transportInstructionId": shipmentID,
		"options":                map[string]bool{"label": true},
	})
	if err != nil {
		return nil, err
	}
	label, err := extractReport(body, "Label")
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "dhl", "print label", "no label in response", err)
	}
	return label, nil
}

// fetchShipmentList asks the print API for the optional waybill. Not
// every product has one, so failures only log.
func (c *Client) fetchShipmentList(ctx context.Context, shipmentID string) []byte {
	c.mu.Lock()
	ti, ok := c.tiCache[shipmentID]
	c.mu.Unlock()
	if !ok {
		return nil
	}

	list, err := c.printDocuments(ctx, ti, "shipmentList", "ShipmentList")
	if err != nil {
		c.logger.Debug("no shipment list available",
			logging.String("shipment_id", shipmentID), logging.Error(err))
		return nil
	}
	return list
}

func (c *Client) printDocuments(ctx context.Context, ti json.RawMessage, option, reportType string) ([]byte, error) {
	body, err := c.postJSON(ctx, "print documents", pathPrintDocuments, map[string]any{
		"shipment": ti,
		"options":  map[string]bool{option: true},
	})
	if err != nil {
		return nil, err
	}
	doc, err := extractReport(body, reportType)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "dhl", "print documents", "extract report", err)
	}
	return doc, nil
}

func (c *Client) postJSON(ctx context.Context, operation, path string, payload any) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "dhl", operation, "encode payload", err)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "dhl", operation, "build request", err)
	}
	return c.do(req, operation)
}

func (c *Client) getJSON(ctx context.Context, operation, pathAndQuery string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pathAndQuery, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "dhl", operation, "build request", err)
	}
	return c.do(req, operation)
}

func (c *Client) do(req *retryablehttp.Request, operation string) ([]byte, error) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("client-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "dhl", operation, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "dhl", operation, "read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, carrier.ClassifyStatus("dhl", operation, resp.StatusCode, body)
	}
	return body, nil
}

// extractReport pulls a base64 document of the given type out of a
// print API response, falling back to the first report when no type
// matches.
func extractReport(body []byte, reportType string) ([]byte, error) {
	var decoded struct {
		Reports []struct {
			Type    string `json:"type"`
			Content string `json:"content"`
		} `json:"reports"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode print response: %w", err)
	}
	if len(decoded.Reports) == 0 {
		return nil, fmt.Errorf("print response contains no reports")
	}

	report := decoded.Reports[0]
	for _, r := range decoded.Reports {
		if r.Type == reportType {
			report = r
			break
		}
	}
	if report.Content == "" {
		return nil, fmt.Errorf("report %q has no content", reportType)
	}
	data, err := base64.StdEncoding.DecodeString(report.Content)
	if err != nil {
		return nil, fmt.Errorf("decode report content: %w", err)
	}
	return data, nil
}

func (c *Client) buildTransportInstruction(s *shipment.Shipment) transportInstruction {
	recv := s.Receiver
	var container *shipment.Container
	if len(s.Containers) > 0 {
		container = &s.Containers[0]
	}

	weight := 1.0
	volume := 0.001
	copies := 1
	if container != nil {
		weight = container.Weight
		copies = container.Copies
		if container.Volume > 0 {
			volume = container.Volume
		}
	}

	shippingDate := time.Now().Format("2006-01-02")
	if s.Service.Booking != nil && s.Service.Booking.PickupDate != "" {
		shippingDate = s.Service.Booking.PickupDate
	}

	var references []string
	if s.Reference != "" {
		references = []string{s.Reference}
	}

	parties := []tiParty{
		{
			ID:         c.customerNumber,
			Type:       "Consignor",
			Name:       c.sender.Name,
			References: references,
			Address: tiAddress{
				Street:      c.sender.Address1,
				CityName:    c.sender.City,
				PostalCode:  carrier.CleanPostalCode(c.sender.Zipcode),
				CountryCode: c.sender.Country,
			},
			Phone: c.sender.Phone,
			Email: c.sender.Email,
		},
		{
			Type:       "Consignee",
			Name:       recv.Name,
			References: []string{},
			Address: tiAddress{
				Street:      recv.Address1,
				CityName:    recv.City,
				PostalCode:  carrier.CleanPostalCode(recv.Zipcode),
				CountryCode: recv.Country,
			},
			Phone: recv.Phone,
			Email: recv.Email,
		},
	}

	packageType := ""
	if container != nil {
		packageType = container.PackageCode
	}
	if packageType == "" {
		packageType = packageTypeDefaults[s.Service.ProductCode]
	}
	if packageType == "" {
		packageType = "PKT"
	}

	piece := tiPiece{
		ID:             []string{""},
		PackageType:    packageType,
		NumberOfPieces: copies,
		Weight:         weight,
		Volume:         volume,
	}
	if container != nil {
		piece.Length = container.Length
		piece.Width = container.Width
		piece.Height = container.Height
	}

	additionalServices := map[string]bool{}
	if s.Service.Addon != "" {
		code, ok := addonCodes[s.Service.Addon]
		if !ok {
			code = s.Service.Addon
		}
		additionalServices[code] = true
	}

	return transportInstruction{
		ID:                  "",
		ProductCode:         s.Service.ProductCode,
		ShippingDate:        shippingDate,
		DeliveryInstruction: s.DeliveryInstruction,
		PickupInstruction:   "",
		TotalNumberOfPieces: copies,
		TotalWeight:         weight,
		TotalVolume:         volume,
		PayerCode:           tiPayerCode{Code: "1", Location: ""},
		Parties:             parties,
		AdditionalServices:  additionalServices,
		Pieces:              []tiPiece{piece},
	}
}

// rawString renders a JSON scalar as a string whether the API returned
// a quoted string or a bare number.
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

type transportInstruction struct {
	ID                  string          `json:"id"`
	ProductCode         string          `json:"productCode"`
	ShippingDate        string          `json:"shippingDate"`
	DeliveryInstruction string          `json:"deliveryInstruction"`
	PickupInstruction   string          `json:"pickupInstruction"`
	TotalNumberOfPieces int             `json:"totalNumberOfPieces"`
	TotalWeight         float64         `json:"totalWeight"`
	TotalVolume         float64         `json:"totalVolume"`
	PayerCode           tiPayerCode     `json:"payerCode"`
	Parties             []tiParty       `json:"parties"`
	AdditionalServices  map[string]bool `json:"additionalServices"`
	Pieces              []tiPiece       `json:"pieces"`
}

type tiPayerCode struct {
	Code     string `json:"code"`
	Location string `json:"location"`
}

type tiParty struct {
	ID         string    `json:"id,omitempty"`
	Type       string    `json:"type"`
	Name       string    `json:"name"`
	References []string  `json:"references"`
	Address    tiAddress `json:"address"`
	Phone      string    `json:"phone"`
	Email      string    `json:"email"`
}

type tiAddress struct {
	Street      string `json:"street"`
	CityName    string `json:"cityName"`
	PostalCode  string `json:"postalCode"`
	CountryCode string `json:"countryCode"`
}

type tiPiece struct {
	ID             []string `json:"id"`
	PackageType    string   `json:"packageType"`
	NumberOfPieces int      `json:"numberOfPieces"`
	Weight         float64  `json:"weight"`
	Volume         float64  `json:"volume"`
	Length         float64  `json:"length,omitempty"`
	Width          float64  `json:"width,omitempty"`
	Height         float64  `json:"height,omitempty"`
}
