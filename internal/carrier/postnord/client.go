// Package postnord books shipments through the PostNord Booking API v3,
// which combines booking and label rendering in a single call.
package postnord

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hashicorp/go-retryablehttp"

	"garpconnect/internal/carrier"
	"garpconnect/internal/config"
	"garpconnect/internal/logging"
	"garpconnect/internal/services"
	"garpconnect/internal/shipment"
)

// Client talks to the PostNord REST APIs. Authentication is the
// X-API-Key header.
type Client struct {
	baseURL     string
	apiKey      string
	customer    string
	sender      config.Sender
	labelFormat string
	http        *retryablehttp.Client
	logger      *slog.Logger
}

// New constructs a PostNord client. labelFormat selects the booking
// print target, "pdf" or "zpl".
func New(cfg config.Carrier, sender config.Sender, labelFormat string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	if labelFormat == "" {
		labelFormat = "pdf"
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		customer:    sender.PostNordCustomerNumber,
		sender:      sender,
		labelFormat: labelFormat,
		http:        carrier.NewHTTPClient(cfg),
		logger:      logging.NewComponentLogger(logger, "postnord"),
	}
}

func (c *Client) Carrier() shipment.Carrier {
	return shipment.CarrierPostNord
}

// CreateShipment books the shipment. The booking response carries the
// label inline as base64, so no separate print call is needed.
func (c *Client) CreateShipment(ctx context.Context, s *shipment.Shipment) (*carrier.Result, error) {
	payload := c.buildBookingPayload(s)

	c.logger.Info("creating shipment",
		logging.String(logging.FieldOrderNo, s.OrderNo),
		logging.String("service_code", s.Service.ProductCode))

	body, err := c.postJSON(ctx, "create shipment", "/shipment/v3/booking", payload)
	if err != nil {
		return nil, err
	}

	var decoded struct {
		Shipments []struct {
			ShipmentID string `json:"shipmentId"`
			Items      []struct {
				ItemID    string `json:"itemId"`
				LabelData string `json:"labelData"`
			} `json:"items"`
		} `json:"shipments"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, services.Wrap(services.ErrTransient, "postnord", "create shipment", "decode response", err)
	}
	if len(decoded.Shipments) == 0 {
		return nil, services.Wrap(services.ErrTransient, "postnord", "create shipment", "booking response contains no shipments", nil)
	}

	booked := decoded.Shipments[0]
	result := &carrier.Result{
		ShipmentID:  booked.ShipmentID,
		LabelFormat: c.labelFormat,
	}
	if len(booked.Items) > 0 {
		result.TrackingNumber = booked.Items[0].ItemID
		if booked.Items[0].LabelData != "" {
			label, err := base64.StdEncoding.DecodeString(booked.Items[0].LabelData)
			if err != nil {
				return nil, services.Wrap(services.ErrTransient, "postnord", "create shipment", "decode label data", err)
			}
			result.Label = label
		}
	}

	if len(result.Label) == 0 {
		label, err := c.fetchLabel(ctx, result.ShipmentID)
		if err != nil {
			return nil, err
		}
		result.Label = label
	}

	c.logger.Info("shipment created",
		logging.String(logging.FieldOrderNo, s.OrderNo),
		logging.String("shipment_id", result.ShipmentID),
		logging.String("tracking_number", result.TrackingNumber))

	return result, nil
}

// RequestPickup is a no-op; pickup booking goes through the regular
// PostNord transport agreement rather than a per-shipment API call.
func (c *Client) RequestPickup(ctx context.Context, shipmentID, pickupDate string) error {
	c.logger.Debug("pickup request skipped, not supported by booking api",
		logging.String("shipment_id", shipmentID),
		logging.String("pickup_date", pickupDate))
	return nil
}

// FindServicePoints queries the business location API for nearby
// parcel shops.
func (c *Client) FindServicePoints(ctx context.Context, zipcode, country string, maxResults int) ([]carrier.ServicePoint, error) {
	query := url.Values{
		"apikey":                {c.apiKey},
		"countryCode":           {country},
		"postalCode":            {zipcode},
		"numberOfServicePoints": {strconv.Itoa(maxResults)},
	}
	body, err := c.get(ctx, "find service points", "/businesslocation/v5/servicepoints/nearest?"+query.Encode())
	if err != nil {
		return nil, err
	}

	var decoded struct {
		ServicePointInformationResponse struct {
			ServicePoints []struct {
				ServicePointID string `json:"servicePointId"`
				Name           string `json:"name"`
				VisitingAddress struct {
					StreetName string `json:"streetName"`
					City       string `json:"city"`
					PostalCode string `json:"postalCode"`
				} `json:"visitingAddress"`
			} `json:"servicePoints"`
		} `json:"servicePointInformationResponse"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, services.Wrap(services.ErrTransient, "postnord", "find service points", "decode response", err)
	}

	raw := decoded.ServicePointInformationResponse.ServicePoints
	points := make([]carrier.ServicePoint, 0, len(raw))
	for _, p := range raw {
		points = append(points, carrier.ServicePoint{
			ID:      p.ServicePointID,
			Name:    p.Name,
			Address: p.VisitingAddress.StreetName,
			City:    p.VisitingAddress.City,
			Zipcode: p.VisitingAddress.PostalCode,
		})
	}
	return points, nil
}

func (c *Client) fetchLabel(ctx context.Context, shipmentID string) ([]byte, error) {
	query := url.Values{
		"shipmentId": {shipmentID},
		"format":     {strings.ToUpper(c.labelFormat)},
	}
	return c.get(ctx, "fetch label", "/shipment/v3/labels?"+query.Encode())
}

func (c *Client) postJSON(ctx context.Context, operation, path string, payload any) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "postnord", operation, "encode payload", err)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "postnord", operation, "build request", err)
	}
	return c.do(req, operation)
}

func (c *Client) get(ctx context.Context, operation, pathAndQuery string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pathAndQuery, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "postnord", operation, "build request", err)
	}
	return c.do(req, operation)
}

func (c *Client) do(req *retryablehttp.Request, operation string) ([]byte, error) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "postnord", operation, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "postnord", operation, "read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, carrier.ClassifyStatus("postnord", operation, resp.StatusCode, body)
	}
	return body, nil
}

func (c *Client) buildBookingPayload(s *shipment.Shipment) bookingRequest {
	recv := s.Receiver
	var container *shipment.Container
	if len(s.Containers) > 0 {
		container = &s.Containers[0]
	}

	parcel := bookingParcel{
		Weight:           bookingMeasure{Value: 1.0, Unit: "kg"},
		Volume:           bookingMeasure{Value: 0, Unit: "m3"},
		NumberOfPackages: 1,
	}
	if container != nil {
		parcel.Weight.Value = container.Weight
		parcel.Volume.Value = container.Volume
		parcel.Contents = container.Contents
		parcel.NumberOfPackages = container.Copies
	}

	var addons []string
	if s.Service.Addon != "" {
		addons = []string{s.Service.Addon}
	}

	return bookingRequest{
		Shipment: bookingShipment{
			Service: bookingService{
				BasicServiceCode:      s.Service.ProductCode,
				AdditionalServiceCode: addons,
			},
			Parties: bookingParties{
				Sender: bookingParty{
					Name1:        c.sender.Name,
					AddressLine1: c.sender.Address1,
					PostalCode:   c.sender.Zipcode,
					City:         c.sender.City,
					CountryCode:  c.sender.Country,
					Contact: bookingContact{
						EmailAddress: c.sender.Email,
						PhoneNo:      c.sender.Phone,
					},
				},
				Receiver: bookingParty{
					Name1:        recv.Name,
					AddressLine1: recv.Address1,
					AddressLine2: recv.Address2,
					PostalCode:   recv.Zipcode,
					City:         recv.City,
					CountryCode:  recv.Country,
					Contact: bookingContact{
						EmailAddress: recv.Email,
						PhoneNo:      recv.Phone,
						Name:         recv.Contact,
					},
				},
			},
			Parcels:        []bookingParcel{parcel},
			OrderReference: s.Reference,
			CustomerNumber: c.customer,
		},
		PrintConfig: bookingPrintConfig{
			Target: bookingPrintTarget{Media: strings.ToUpper(c.labelFormat)},
		},
	}
}

type bookingRequest struct {
	Shipment    bookingShipment    `json:"shipment"`
	PrintConfig bookingPrintConfig `json:"printConfig"`
}

type bookingShipment struct {
	Service        bookingService  `json:"service"`
	Parties        bookingParties  `json:"parties"`
	Parcels        []bookingParcel `json:"parcels"`
	OrderReference string          `json:"orderReference"`
	CustomerNumber string          `json:"customerNumber"`
}

type bookingService struct {
	BasicServiceCode      string   `json:"basicServiceCode"`
	AdditionalServiceCode []string `json:"additionalServiceCode"`
}

type bookingParties struct {
	Sender   bookingParty `json:"sender"`
	Receiver bookingParty `json:"receiver"`
}

type bookingParty struct {
	Name1        string         `json:"name1"`
	AddressLine1 string         `json:"addressLine1"`
	AddressLine2 string         `json:"addressLine2,omitempty"`
	PostalCode   string         `json:"postalCode"`
	City         string         `json:"city"`
	CountryCode  string         `json:"countryCode"`
	Contact      bookingContact `json:"contact"`
}

type bookingContact struct {
	EmailAddress string `json:"emailAddress"`
	PhoneNo      string `json:"phoneNo"`
	Name         string `json:"name,omitempty"`
}

type bookingParcel struct {
	Weight           bookingMeasure `json:"weight"`
	Volume           bookingMeasure `json:"volume"`
	Contents         string         `json:"contents"`
	NumberOfPackages int            `json:"numberOfPackages"`
}

type bookingMeasure struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

type bookingPrintConfig struct {
	Target bookingPrintTarget `json:"target"`
}

type bookingPrintTarget struct {
	Media string `json:"media"`
}
