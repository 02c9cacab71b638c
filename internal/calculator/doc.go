// Package calculator runs a complete planning pass for one carton: it
// resolves the channel, validates the box and SKU rows, allocates
// quantities and prices the shipment. Compute is a pure function of its
// request and keeps no state between calls.
package calculator
