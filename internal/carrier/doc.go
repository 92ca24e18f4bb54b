// Package carrier defines the booking client interface shared by the
// carrier API integrations and the HTTP plumbing they have in common.
package carrier
