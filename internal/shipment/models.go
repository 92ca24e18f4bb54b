package shipment

import (
	"fmt"
	"strings"
)

// Carrier identifies the transport company a shipment is booked with.
type Carrier string

const (
	CarrierDHL      Carrier = "DHL"
	CarrierPostNord Carrier = "PN"
)

var knownCarriers = map[Carrier]struct{}{
	CarrierDHL:      {},
	CarrierPostNord: {},
}

// ParseCarrier converts a srvid carrier token into a known Carrier.
func ParseCarrier(value string) (Carrier, bool) {
	normalized := Carrier(strings.ToUpper(strings.TrimSpace(value)))
	_, ok := knownCarriers[normalized]
	return normalized, ok
}

// Name returns the human-readable carrier name used in customer emails.
func (c Carrier) Name() string {
	switch c {
	case CarrierDHL:
		return "DHL"
	case CarrierPostNord:
		return "PostNord"
	default:
		return string(c)
	}
}

// TrackingURL returns the carrier's public tracking page for a parcel number.
func (c Carrier) TrackingURL(tracking string) string {
	switch c {
	case CarrierDHL:
		return fmt.Sprintf("https://www.dhl.com/se-sv/home/tracking.html?tracking-id=%s", tracking)
	case CarrierPostNord:
		return fmt.Sprintf("https://tracking.postnord.com/se/?id=%s", tracking)
	default:
		return ""
	}
}

// Receiver is the consignee parsed from the GARP export.
type Receiver struct {
	ID       string
	Name     string
	Address1 string
	Address2 string
	Zipcode  string
	City     string
	Country  string
	Phone    string
	Email    string
	Contact  string
	SMS      string
}

// Container describes one parcel line of a shipment.
type Container struct {
	Type        string
	Measure     string
	Copies      int
	PackageCode string
	Contents    string
	Weight      float64
	Volume      float64
	Length      float64
	Width       float64
	Height      float64
}

// BookingInfo carries pickup booking details when the order requests one.
type BookingInfo struct {
	PickupBooking bool
	PickupDate    string
}

// Notification is a ufonline option row; optid "enot" requests a customer
// tracking email with an optional custom message.
type Notification struct {
	OptID   string
	Message string
}

// ServiceInfo is the parsed srvid plus booking data.
//
// srvid format in the XML: "CARRIER:PRODUCT[:ADDON]", for example "DHL:104",
// "DHL:104:AVIS", or "PN:19".
type ServiceInfo struct {
	Carrier     Carrier
	ProductCode string
	Addon       string
	RawSrvid    string
	Booking     *BookingInfo
}

// Shipment is one consignment parsed from a GARP export file. A single file
// can contain several shipments.
type Shipment struct {
	OrderNo             string
	SenderName          string
	Reference           string
	TermCode            string
	DeliveryInstruction string
	Service             ServiceInfo
	Receiver            *Receiver
	Containers          []Container
	Notifications       []Notification
}

// WantsTrackingEmail reports whether the shipment requested an "enot"
// customer notification and has a receiver email to send it to.
func (s *Shipment) WantsTrackingEmail() bool {
	if s.Receiver == nil || strings.TrimSpace(s.Receiver.Email) == "" {
		return false
	}
	for _, n := range s.Notifications {
		if n.OptID == "enot" {
			return true
		}
	}
	return false
}

// TrackingMessage returns the custom message attached to the enot option.
func (s *Shipment) TrackingMessage() string {
	for _, n := range s.Notifications {
		if n.OptID == "enot" {
			return n.Message
		}
	}
	return ""
}
