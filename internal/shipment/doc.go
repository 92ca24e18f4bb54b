// Package shipment parses GARP XML export files into consignment models.
//
// GARP exports a Unifaun OnlineConnect derived format: a <data> root with one
// or more <shipment> elements, field values in <val n="key"> children, and a
// srvid attribute of the form CARRIER:PRODUCT[:ADDON] that selects carrier
// and product. Files are declared ISO-8859-1; the decoder handles the
// charset via x/text charmap.
package shipment
