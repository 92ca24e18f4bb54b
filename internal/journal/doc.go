// Package journal persists processing history for claimed files and
// the shipments booked from them.
package journal
