package endpoint

import (
	"context"
	"net/url"
	"strings"
)

// DefaultBypassIdentifier is the identifier that requests the configured credential.
const DefaultBypassIdentifier = "bypass"

// Default upstream base URLs.
const (
	DefaultHostedBase   = "https://api.thegraph.com"
	DefaultStudioBase   = "https://api.studio.thegraph.com"
	DefaultGatewayBase  = "https://gateway.thegraph.com"
	DefaultArbitrumBase = "https://gateway-arbitrum.network.thegraph.com"
)

// Resolved is the outcome of resolving a Route.
type Resolved struct {
	// Type is the validated service type.
	Type ServiceType
	// Identifier is the identifier as routed. It is the bypass sentinel, never
	// the substituted credential, so it is safe to use in cache keys and events.
	Identifier string
	// Name is the subgraph name, subgraph id or deployment id.
	Name string
	// URL is the upstream endpoint.
	URL string
	// DisplayURL is URL built with the routed identifier. It never contains
	// the bypass credential.
	DisplayURL string
}

// Config configures a Resolver.
type Config struct {
	// BypassIdentifier is the reserved identifier replaced by Credential.
	// Default: DefaultBypassIdentifier
	BypassIdentifier string

	// Credential is substituted for BypassIdentifier. Empty means bypass
	// requests fail with ErrMissingCredential.
	Credential string

	// Bases overrides the upstream base URL per service type.
	Bases map[ServiceType]string
}

// Resolver builds upstream URLs from routes.
//
// Contract:
// - Concurrency: safe for concurrent use; holds no mutable state.
// - Context: Resolve performs no I/O and only checks for cancellation.
type Resolver struct {
	bypass     string
	credential string
	builders   map[ServiceType]builder
}

// builder renders one URL template. It returns "" when it cannot build a URL.
type builder func(identifier, name string) string

// NewResolver creates a resolver with the given configuration.
func NewResolver(cfg Config) *Resolver {
	if cfg.BypassIdentifier == "" {
		cfg.BypassIdentifier = DefaultBypassIdentifier
	}

	base := func(t ServiceType, def string) string {
		if b, ok := cfg.Bases[t]; ok && b != "" {
			return strings.TrimRight(b, "/")
		}
		return def
	}

	hosted := base(Hosted, DefaultHostedBase)
	studio := base(Studio, DefaultStudioBase)
	gateway := base(Gateway, DefaultGatewayBase)
	gatewayArb := base(GatewayArbitrum, DefaultArbitrumBase)
	deploymentArb := base(DeploymentArbitrum, DefaultArbitrumBase)

	return &Resolver{
		bypass:     cfg.BypassIdentifier,
		credential: cfg.Credential,
		builders: map[ServiceType]builder{
			Hosted: func(username, subgraph string) string {
				return join(hosted, "subgraphs", "name", username, subgraph)
			},
			Studio: func(userNumber, subgraph string) string {
				return join(studio, "query", userNumber, subgraph, "version", "latest")
			},
			Gateway: func(apiKey, subgraphID string) string {
				return join(gateway, "api", apiKey, "subgraphs", "id", subgraphID)
			},
			GatewayArbitrum: func(apiKey, subgraphID string) string {
				return join(gatewayArb, "api", apiKey, "subgraphs", "id", subgraphID)
			},
			DeploymentArbitrum: func(apiKey, deploymentID string) string {
				return join(deploymentArb, "api", apiKey, "deployments", "id", deploymentID)
			},
		},
	}
}

// Resolve validates the route and returns its upstream endpoint.
func (r *Resolver) Resolve(ctx context.Context, route Route) (Resolved, error) {
	if err := ctx.Err(); err != nil {
		return Resolved{}, err
	}
	if err := route.Validate(); err != nil {
		return Resolved{}, err
	}

	st, err := ParseServiceType(route.Type)
	if err != nil {
		return Resolved{}, err
	}

	identifier := route.Identifier
	if identifier == r.bypass {
		if r.credential == "" {
			return Resolved{}, ErrMissingCredential
		}
		identifier = r.credential
	}

	build, ok := r.builders[st]
	if !ok {
		return Resolved{}, ErrEndpointResolution
	}
	u := build(identifier, route.Name)
	if u == "" {
		return Resolved{}, ErrEndpointResolution
	}
	display := u
	if identifier != route.Identifier {
		display = build(route.Identifier, route.Name)
	}

	return Resolved{
		Type:       st,
		Identifier: route.Identifier,
		Name:       route.Name,
		URL:        u,
		DisplayURL: display,
	}, nil
}

// join appends escaped path segments to base.
func join(base string, segments ...string) string {
	if base == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString(base)
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}
