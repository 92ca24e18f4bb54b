package dhl_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"garpconnect/internal/carrier/dhl"
	"garpconnect/internal/config"
	"garpconnect/internal/services"
	"garpconnect/internal/shipment"
)

func testCarrierConfig(baseURL string) config.Carrier {
	return config.Carrier{
		Enabled:        true,
		BaseURL:        baseURL,
		APIKey:         "test-key",
		TimeoutSeconds: 5,
		RetryAttempts:  2,
	}
}

func testSender() config.Sender {
	return config.Sender{
		Name:              "Ernst P AB",
		Address1:          "Industrigatan 1",
		Zipcode:           "57010",
		City:              "KORSBERGA",
		Country:           "SE",
		Email:             "lager@example.se",
		DHLCustomerNumber: "123456",
	}
}

func testShipment() *shipment.Shipment {
	return &shipment.Shipment{
		OrderNo:   "107739-132888",
		Reference: "REF-1",
		Service: shipment.ServiceInfo{
			Carrier:     shipment.CarrierDHL,
			ProductCode: "102",
		},
		Receiver: &shipment.Receiver{
			Name:     "Testbutiken AB",
			Address1: "Storgatan 10",
			Zipcode:  "DK-5220",
			City:     "ODENSE",
			Country:  "DK",
		},
		Containers: []shipment.Container{
			{Copies: 2, Weight: 5.5, PackageCode: "PKT"},
		},
	}
}

func TestCreateShipment(t *testing.T) {
	labelPDF := []byte("%PDF-1.4 label")

	var tiPayload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("client-key") != "test-key" {
			t.Errorf("missing client-key header on %s", r.URL.Path)
		}
		switch r.URL.Path {
		case "/transportinstructionapi/v1/transportinstruction/sendtransportinstruction":
			if err := json.NewDecoder(r.Body).Decode(&tiPayload); err != nil {
				t.Errorf("decode payload: %v", err)
			}
			json.NewEncoder(w).Encode(map[string]any{
				"status": "Succes",
				"transportInstruction": map[string]any{
					"id":     98765,
					"pieces": []map[string]any{{"id": []string{"JJD0001"}}},
				},
			})
		case "/printapi/v1/print/printdocuments":
			var req struct {
				Options map[string]bool `json:"options"`
			}
			json.NewDecoder(r.Body).Decode(&req)
			if req.Options["shipmentList"] {
				json.NewEncoder(w).Encode(map[string]any{"reports": []any{}})
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"reports": []map[string]any{{
					"type":        "Label",
					"content":     base64.StdEncoding.EncodeToString(labelPDF),
					"contentType": "application/pdf",
				}},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := dhl.New(testCarrierConfig(srv.URL), testSender(), nil)
	result, err := client.CreateShipment(context.Background(), testShipment())
	if err != nil {
		t.Fatalf("CreateShipment failed: %v", err)
	}

	if result.ShipmentID != "98765" {
		t.Fatalf("unexpected shipment id: %q", result.ShipmentID)
	}
	if result.TrackingNumber != "JJD0001" {
		t.Fatalf("unexpected tracking number: %q", result.TrackingNumber)
	}
	if string(result.Label) != string(labelPDF) {
		t.Fatalf("unexpected label data: %q", result.Label)
	}
	if result.LabelFormat != "pdf" {
		t.Fatalf("unexpected label format: %q", result.LabelFormat)
	}

	if tiPayload["productCode"] != "102" {
		t.Fatalf("unexpected product code in payload: %v", tiPayload["productCode"])
	}
	parties := tiPayload["parties"].([]any)
	consignee := parties[1].(map[string]any)
	address := consignee["address"].(map[string]any)
	if address["postalCode"] != "5220" {
		t.Fatalf("expected country prefix stripped from postal code, got %v", address["postalCode"])
	}
	if tiPayload["totalNumberOfPieces"] != float64(2) {
		t.Fatalf("unexpected piece count: %v", tiPayload["totalNumberOfPieces"])
	}
}

func TestCreateShipmentAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := dhl.New(testCarrierConfig(srv.URL), testSender(), nil)
	_, err := client.CreateShipment(context.Background(), testShipment())
	if !errors.Is(err, services.ErrAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestCreateShipmentRejectedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := dhl.New(testCarrierConfig(srv.URL), testSender(), nil)
	_, err := client.CreateShipment(context.Background(), testShipment())
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if services.IsTerminal(err) != true {
		t.Fatal("validation errors must be terminal")
	}
}

func TestCreateShipmentRetriesServerErrors(t *testing.T) {
	labelPDF := base64.StdEncoding.EncodeToString([]byte("label"))
	var tiAttempts atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/transportinstructionapi/v1/transportinstruction/sendtransportinstruction":
			if tiAttempts.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"transportInstruction": map[string]any{
					"id":     "1",
					"pieces": []map[string]any{{"barcodeId": "B1"}},
				},
			})
		case "/printapi/v1/print/printdocuments":
			var req struct {
				Options map[string]bool `json:"options"`
			}
			json.NewDecoder(r.Body).Decode(&req)
			if req.Options["shipmentList"] {
				json.NewEncoder(w).Encode(map[string]any{"reports": []any{}})
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"reports": []map[string]any{{"type": "Label", "content": labelPDF}},
			})
		}
	}))
	defer srv.Close()

	client := dhl.New(testCarrierConfig(srv.URL), testSender(), nil)
	result, err := client.CreateShipment(context.Background(), testShipment())
	if err != nil {
		t.Fatalf("CreateShipment failed: %v", err)
	}
	if got := tiAttempts.Load(); got != 2 {
		t.Fatalf("expected 2 booking attempts, got %d", got)
	}
	if result.TrackingNumber != "B1" {
		t.Fatalf("expected barcodeId fallback, got %q", result.TrackingNumber)
	}
}

func TestRequestPickup(t *testing.T) {
	var payload map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pickuprequestapi/v1/pickuprequest/pickuprequest" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&payload)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer srv.Close()

	client := dhl.New(testCarrierConfig(srv.URL), testSender(), nil)
	if err := client.RequestPickup(context.Background(), "98765", "2026-02-19"); err != nil {
		t.Fatalf("RequestPickup failed: %v", err)
	}
	if payload["transportInstructionId"] != "98765" || payload["pickupDate"] != "2026-02-19" {
		t.Fatalf("unexpected pickup payload: %v", payload)
	}
}
