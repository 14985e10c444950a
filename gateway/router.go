package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jonwraymond/graphcache/endpoint"
	"github.com/jonwraymond/graphcache/observe"
	"github.com/jonwraymond/graphcache/usage"
)

// DefaultMaxBodyBytes caps a request body.
const DefaultMaxBodyBytes = 1 << 20

// CacheStatusName identifies this cache in the Cache-Status response header.
const CacheStatusName = "graphcache"

// RouterConfig configures NewRouter.
type RouterConfig struct {
	// MaxBodyBytes caps POST bodies. Default: 1 MiB
	MaxBodyBytes int64

	// Logger receives request decode failures. Default: observe.NopLogger()
	Logger observe.Logger

	// Mount registers extra routes, such as health and metrics, ahead of
	// the GraphQL route.
	Mount func(r chi.Router)
}

type handler struct {
	dispatcher *Dispatcher
	maxBytes   int64
	logger     observe.Logger
}

// NewRouter returns the HTTP surface of the gateway:
// POST or GET /{type}/{identifier}/{name}.
func NewRouter(d *Dispatcher, cfg RouterConfig) chi.Router {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}
	h := &handler{dispatcher: d, maxBytes: cfg.MaxBodyBytes, logger: cfg.Logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if cfg.Mount != nil {
		cfg.Mount(r)
	}
	r.Post("/{type}/{identifier}/{name}", h.serve)
	r.Get("/{type}/{identifier}/{name}", h.serve)
	return r
}

// graphqlRequest is the GraphQL-over-HTTP request body.
type graphqlRequest struct {
	Query         string          `json:"query"`
	OperationName string          `json:"operationName,omitempty"`
	Variables     json.RawMessage `json:"variables,omitempty"`
}

func (h *handler) serve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	gr, err := h.decode(w, r)
	if err != nil {
		h.logger.Warn(ctx, "rejecting request",
			observe.F("request_id", middleware.GetReqID(ctx)),
			observe.F("error", err))
		writeError(w, err)
		return
	}

	resp, err := h.dispatcher.Dispatch(ctx, Request{
		Route: endpoint.Route{
			Type:       chi.URLParam(r, "type"),
			Identifier: chi.URLParam(r, "identifier"),
			Name:       chi.URLParam(r, "name"),
		},
		Query:         gr.Query,
		OperationName: gr.OperationName,
		Variables:     gr.Variables,
		Geo:           usage.GeoFromRequest(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Status", cacheStatus(resp))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(resp.Body)
}

func (h *handler) decode(w http.ResponseWriter, r *http.Request) (graphqlRequest, error) {
	var gr graphqlRequest
	if r.Method == http.MethodGet {
		q := r.URL.Query()
		gr.Query = q.Get("query")
		gr.OperationName = q.Get("operationName")
		if v := q.Get("variables"); v != "" {
			gr.Variables = json.RawMessage(v)
		}
	} else {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBytes))
		if err != nil {
			return gr, fmt.Errorf("%w: read body: %w", ErrInvalidRequest, err)
		}
		if err := json.Unmarshal(body, &gr); err != nil {
			return gr, fmt.Errorf("%w: decode body: %v", ErrInvalidRequest, err)
		}
	}

	if gr.Query == "" {
		return gr, fmt.Errorf("%w: missing query", ErrInvalidRequest)
	}
	if bytes.Equal(bytes.TrimSpace(gr.Variables), []byte("null")) {
		gr.Variables = nil
	}
	if len(gr.Variables) > 0 && !json.Valid(gr.Variables) {
		return gr, fmt.Errorf("%w: variables are not JSON", ErrInvalidRequest)
	}
	return gr, nil
}

// cacheStatus renders the Cache-Status header value for resp.
func cacheStatus(resp Response) string {
	switch resp.Outcome {
	case observe.OutcomeHit:
		return CacheStatusName + "; hit"
	case observe.OutcomeUncached:
		return CacheStatusName + "; fwd=bypass"
	}
	status := CacheStatusName + "; fwd=uri-miss"
	if resp.Collapsed {
		status += "; collapsed"
	}
	if resp.Stored {
		status += "; stored"
	}
	return status
}

func writeError(w http.ResponseWriter, err error) {
	code := StatusCode(err)
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		code = http.StatusRequestEntityTooLarge
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = io.WriteString(w, GenericErrorBody)
}
