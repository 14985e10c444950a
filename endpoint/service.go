package endpoint

import (
	"fmt"
	"strings"
)

// ServiceType identifies an upstream backend family.
type ServiceType string

const (
	// Hosted is the legacy hosted service, addressed by username and subgraph name.
	Hosted ServiceType = "hosted"
	// Gateway is the decentralized network gateway, addressed by API key and subgraph id.
	Gateway ServiceType = "gateway"
	// GatewayArbitrum is the Arbitrum network gateway, addressed by API key and subgraph id.
	GatewayArbitrum ServiceType = "gateway-arbitrum"
	// DeploymentArbitrum is the Arbitrum network gateway, addressed by API key and deployment id.
	DeploymentArbitrum ServiceType = "deployment-arbitrum"
	// Studio is the subgraph studio, addressed by user number and subgraph name.
	Studio ServiceType = "studio"
)

// ServiceTypes lists every supported service type.
var ServiceTypes = []ServiceType{Hosted, Gateway, GatewayArbitrum, DeploymentArbitrum, Studio}

// ParseServiceType validates s against the ServiceType enumeration.
func ParseServiceType(s string) (ServiceType, error) {
	for _, t := range ServiceTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedServiceType, s)
}

// SharesIdentifier reports whether cache entries for this type are shared across
// identifiers. For gateway types the identifier is the caller's API key, not a
// data-scoping value.
func (t ServiceType) SharesIdentifier() bool {
	return t == Gateway || t == GatewayArbitrum
}

func (t ServiceType) String() string {
	return string(t)
}

// Route is the (type, identifier, name) triple extracted from the request path.
type Route struct {
	Type       string
	Identifier string
	Name       string
}

// Validate checks that every segment is present.
func (r Route) Validate() error {
	var missing []string
	if strings.TrimSpace(r.Type) == "" {
		missing = append(missing, "type")
	}
	if strings.TrimSpace(r.Identifier) == "" {
		missing = append(missing, "identifier")
	}
	if strings.TrimSpace(r.Name) == "" {
		missing = append(missing, "name")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidRoute, strings.Join(missing, ", "))
	}
	return nil
}
