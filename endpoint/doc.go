// Package endpoint maps a routed (service type, identifier, name) triple to the
// upstream GraphQL URL that serves it.
//
// Each ServiceType has exactly one URL template. The reserved bypass identifier
// is swapped for a configured credential before the template is applied, so
// callers can use the gateway without holding their own upstream key.
package endpoint
