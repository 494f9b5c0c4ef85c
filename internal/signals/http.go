package signals

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/opensource-finance/truerev/internal/domain"
)

var tracer = otel.Tracer("truerev-signals")

// maxPayload bounds a collaborator response body.
const maxPayload = 1 << 20

// HTTPProvider posts the application to a collaborator endpoint and
// returns the response body as the signal payload.
type HTTPProvider struct {
	kind   domain.SignalKind
	url    string
	client *http.Client
}

// NewHTTPProvider creates a provider for kind at url. client may be nil.
func NewHTTPProvider(kind domain.SignalKind, url string, client *http.Client) *HTTPProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPProvider{kind: kind, url: url, client: client}
}

// HTTPProviders builds one provider per configured endpoint.
func HTTPProviders(cfg domain.SignalsConfig, client *http.Client) []Provider {
	var out []Provider
	for _, kind := range Kinds {
		if url := cfg.Endpoints[kind]; url != "" {
			out = append(out, NewHTTPProvider(kind, url, client))
		}
	}
	return out
}

func (p *HTTPProvider) Kind() domain.SignalKind { return p.kind }

func (p *HTTPProvider) Fetch(ctx context.Context, tenantID string, app *domain.Application) (json.RawMessage, error) {
	ctx, span := tracer.Start(ctx, "signals.Fetch")
	defer span.End()
	span.SetAttributes(
		attribute.String("signal.kind", string(p.kind)),
		attribute.String("tenant.id", tenantID),
	)

	body, err := json.Marshal(app)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", tenantID)

	resp, err := p.client.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPayload))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("%s collaborator returned %d", p.kind, resp.StatusCode)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%s collaborator returned invalid JSON", p.kind)
	}
	return data, nil
}
