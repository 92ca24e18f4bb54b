package shipment

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"garpconnect/internal/services"
)

// GARP exports XML in a format derived from Unifaun OnlineConnect. Fields
// arrive as <val n="key">value</val> children padded with whitespace, and the
// files are declared ISO-8859-1.

type xmlVal struct {
	N     string `xml:"n,attr"`
	Value string `xml:",chardata"`
}

type xmlBooking struct {
	Vals []xmlVal `xml:"val"`
}

type xmlService struct {
	Srvid   string      `xml:"srvid,attr"`
	Booking *xmlBooking `xml:"booking"`
}

type xmlReceiver struct {
	Rcvid string   `xml:"rcvid,attr"`
	Vals  []xmlVal `xml:"val"`
}

type xmlContainer struct {
	Type    string   `xml:"type,attr"`
	Measure string   `xml:"measure,attr"`
	Vals    []xmlVal `xml:"val"`
}

type xmlOption struct {
	OptID string   `xml:"optid,attr"`
	Vals  []xmlVal `xml:"val"`
}

type xmlUFOnline struct {
	Options []xmlOption `xml:"option"`
}

type xmlShipment struct {
	OrderNo    string         `xml:"orderno,attr"`
	Vals       []xmlVal       `xml:"val"`
	Service    *xmlService    `xml:"service"`
	Receiver   *xmlReceiver   `xml:"receiver"`
	Containers []xmlContainer `xml:"container"`
	UFOnline   *xmlUFOnline   `xml:"ufonline"`
}

type xmlData struct {
	XMLName   xml.Name      `xml:"data"`
	Receiver  *xmlReceiver  `xml:"receiver"`
	Shipments []xmlShipment `xml:"shipment"`
}

// ParseFile parses a GARP export file into shipments.
func ParseFile(path string) ([]*Shipment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "parser", "read file", path, err)
	}
	return Parse(data)
}

// Parse parses GARP export XML. A file can hold several <shipment> elements;
// a <receiver> at root level is shared by every shipment that lacks its own.
func Parse(data []byte) ([]*Shipment, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.CharsetReader = charsetReader

	var doc xmlData
	if err := decoder.Decode(&doc); err != nil {
		return nil, services.Wrap(services.ErrValidation, "parser", "decode xml", "not a GARP export document", err)
	}

	var shared *Receiver
	if doc.Receiver != nil {
		shared = parseReceiver(doc.Receiver)
	}

	shipments := make([]*Shipment, 0, len(doc.Shipments))
	for i := range doc.Shipments {
		parsed, err := parseShipment(&doc.Shipments[i], shared)
		if err != nil {
			return nil, err
		}
		shipments = append(shipments, parsed)
	}

	if len(shipments) == 0 {
		return nil, services.Wrap(services.ErrValidation, "parser", "decode xml", "document contains no shipments", nil)
	}
	return shipments, nil
}

func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(charset)) {
	case "", "utf-8", "utf8":
		return input, nil
	case "iso-8859-1", "latin1":
		return charmap.ISO8859_1.NewDecoder().Reader(input), nil
	case "windows-1252":
		return charmap.Windows1252.NewDecoder().Reader(input), nil
	default:
		return nil, fmt.Errorf("unsupported charset %q", charset)
	}
}

func parseShipment(elem *xmlShipment, shared *Receiver) (*Shipment, error) {
	vals := extractVals(elem.Vals)

	service, err := parseService(elem.Service)
	if err != nil {
		return nil, err
	}

	receiver := shared
	if elem.Receiver != nil {
		receiver = parseReceiver(elem.Receiver)
	}

	containers := make([]Container, 0, len(elem.Containers))
	for i := range elem.Containers {
		containers = append(containers, parseContainer(&elem.Containers[i]))
	}

	return &Shipment{
		OrderNo:             strings.TrimSpace(elem.OrderNo),
		SenderName:          vals["from"],
		Reference:           vals["reference"],
		TermCode:            vals["termcode"],
		DeliveryInstruction: vals["deliveryinstruction"],
		Service:             service,
		Receiver:            receiver,
		Containers:          containers,
		Notifications:       parseNotifications(elem.UFOnline),
	}, nil
}

func parseReceiver(elem *xmlReceiver) *Receiver {
	vals := extractVals(elem.Vals)
	return &Receiver{
		ID:       strings.TrimSpace(elem.Rcvid),
		Name:     vals["name"],
		Address1: vals["address1"],
		Address2: vals["address2"],
		Zipcode:  vals["zipcode"],
		City:     vals["city"],
		Country:  vals["country"],
		Phone:    vals["phone"],
		Email:    vals["email"],
		Contact:  vals["contact"],
		SMS:      vals["sms"],
	}
}

func parseService(elem *xmlService) (ServiceInfo, error) {
	if elem == nil {
		return ServiceInfo{}, services.Wrap(services.ErrValidation, "parser", "service", "shipment has no <service> element", nil)
	}

	raw := strings.TrimSpace(elem.Srvid)
	carrier, productCode, addon, err := ParseSrvid(raw)
	if err != nil {
		return ServiceInfo{}, err
	}

	var booking *BookingInfo
	if elem.Booking != nil {
		bvals := extractVals(elem.Booking.Vals)
		booking = &BookingInfo{
			PickupBooking: strings.EqualFold(bvals["pickupbooking"], "YES"),
			PickupDate:    bvals["pickupdate"],
		}
	}

	return ServiceInfo{
		Carrier:     carrier,
		ProductCode: productCode,
		Addon:       addon,
		RawSrvid:    raw,
		Booking:     booking,
	}, nil
}

// ParseSrvid splits a srvid of the form "CARRIER:PRODUCT[:ADDON]".
func ParseSrvid(srvid string) (Carrier, string, string, error) {
	parts := strings.Split(srvid, ":")
	if len(parts) < 2 {
		return "", "", "", services.Wrap(services.ErrValidation, "parser", "srvid",
			fmt.Sprintf("invalid srvid %q, expected CARRIER:PRODUCT[:ADDON]", srvid), nil)
	}

	carrier, ok := ParseCarrier(parts[0])
	if !ok {
		return "", "", "", services.Wrap(services.ErrValidation, "parser", "srvid",
			fmt.Sprintf("unknown carrier %q in srvid %q", strings.TrimSpace(parts[0]), srvid), nil)
	}

	productCode := strings.TrimSpace(parts[1])
	addon := ""
	if len(parts) > 2 {
		addon = strings.TrimSpace(parts[2])
	}
	return carrier, productCode, addon, nil
}

func parseContainer(elem *xmlContainer) Container {
	vals := extractVals(elem.Vals)

	containerType := strings.TrimSpace(elem.Type)
	if containerType == "" {
		containerType = "parcel"
	}
	packageCode := vals["packagecode"]
	if packageCode == "" {
		packageCode = "PC"
	}

	return Container{
		Type:        containerType,
		Measure:     strings.TrimSpace(elem.Measure),
		Copies:      parseIntDefault(vals["copies"], 1),
		PackageCode: packageCode,
		Contents:    vals["contents"],
		Weight:      parseFloatDefault(vals["weight"], 0),
		Volume:      parseFloatDefault(vals["volume"], 0),
		Length:      parseFloatDefault(vals["length"], 0),
		Width:       parseFloatDefault(vals["width"], 0),
		Height:      parseFloatDefault(vals["height"], 0),
	}
}

func parseNotifications(elem *xmlUFOnline) []Notification {
	if elem == nil {
		return nil
	}
	notifications := make([]Notification, 0, len(elem.Options))
	for _, opt := range elem.Options {
		vals := extractVals(opt.Vals)
		notifications = append(notifications, Notification{
			OptID:   strings.TrimSpace(opt.OptID),
			Message: vals["message"],
		})
	}
	return notifications
}

// extractVals collects <val n="key">value</val> rows into a map, stripping
// GARP's whitespace padding.
func extractVals(vals []xmlVal) map[string]string {
	out := make(map[string]string, len(vals))
	for _, v := range vals {
		out[strings.TrimSpace(v.N)] = strings.TrimSpace(v.Value)
	}
	return out
}

func parseIntDefault(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	// GARP writes numeric fields with decimal notation, e.g. copies "1.0".
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return int(f)
}

func parseFloatDefault(value string, fallback float64) float64 {
	if value == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return f
}
