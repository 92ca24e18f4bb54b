// Package services defines shared error utilities consumed by the pipeline
// and the external integrations (carrier APIs, printing, email).
//
// Sentinel markers classify failures into the connector's taxonomy
// (transient, auth, validation, printer, configuration, not found) and the
// Wrap helper attaches component context while keeping the marker reachable
// through errors.Is. The pipeline uses the classification to decide whether a
// work item is routed to the error directory and what the sidecar file says.
//
// Use these helpers when wiring new integrations so operational behaviour
// stays uniform across the pipeline.
package services
