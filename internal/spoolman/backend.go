// Package spoolman implements the remote inventory backend against a
// Spoolman-style REST API.
package spoolman

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/agentstation/spoolsync/pkg/errors"
	"github.com/agentstation/spoolsync/pkg/logging"
	"github.com/agentstation/spoolsync/pkg/planner"
	"github.com/agentstation/spoolsync/pkg/profiles"
)

// DefaultHTTPTimeout bounds individual backend requests. Pass-level deadlines
// come from the sync options; this is a floor against hung connections.
var DefaultHTTPTimeout = 30 * time.Second

const profilesPath = "/api/v1/profiles"

// Backend talks to a Spoolman-style inventory server and implements the sync
// engine's remote side.
type Backend struct {
	baseURL string
	apiKey  string
	auth    Authenticator
	http    *http.Client
}

// Option configures a Backend.
type Option func(*Backend)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(b *Backend) { b.http = client }
}

// WithAuth replaces the authenticator. The default sends a Bearer token when
// an API key is configured.
func WithAuth(auth Authenticator) Option {
	return func(b *Backend) { b.auth = auth }
}

// New creates a Backend for the given server. apiKey may be empty for
// unauthenticated servers.
func New(baseURL, apiKey string, opts ...Option) (*Backend, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, &errors.ValidationError{Field: "baseURL", Value: baseURL, Message: "not an absolute URL"}
	}

	b := &Backend{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		auth:    &BearerAuth{},
		http:    &http.Client{Timeout: DefaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// wireProfile is the API's profile resource.
type wireProfile struct {
	ID           string            `json:"id"`
	ParentID     string            `json:"parent_id,omitempty"`
	Properties   map[string]string `json:"properties"`
	Tags         []string          `json:"tags,omitempty"`
	LastModified int64             `json:"last_modified"`
}

type profileList struct {
	Profiles []wireProfile `json:"profiles"`
}

// FetchSnapshot retrieves every profile from the inventory.
func (b *Backend) FetchSnapshot(ctx context.Context) ([]profiles.Profile, error) {
	resp, err := b.do(ctx, http.MethodGet, profilesPath, "", nil)
	if err != nil {
		return nil, &errors.BackendError{Operation: "fetch", Message: "listing profiles", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("fetch", resp)
	}

	var list profileList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, &errors.BackendError{Operation: "fetch", Message: "decoding profile list", Err: err}
	}

	out := make([]profiles.Profile, 0, len(list.Profiles))
	for _, w := range list.Profiles {
		out = append(out, w.profile())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	logging.Ctx(ctx).Debug().Int("profiles", len(out)).Msg("inventory snapshot fetched")
	return out, nil
}

// Apply executes one push operation against the inventory. The operation key
// travels as an Idempotency-Key header so a retried request that already
// landed is a no-op server-side.
func (b *Backend) Apply(ctx context.Context, op *planner.SyncOperation) error {
	var (
		resp *http.Response
		err  error
		name string
	)

	switch op.Kind {
	case planner.KindCreate:
		name = "create"
		body := wireProfile{
			ID:         string(op.ProfileID),
			ParentID:   string(op.ParentID),
			Properties: op.Payload,
		}
		resp, err = b.do(ctx, http.MethodPost, profilesPath, op.Key, body)
	case planner.KindUpdate:
		name = "update"
		body := struct {
			Properties map[string]string `json:"properties"`
		}{Properties: op.Payload}
		resp, err = b.do(ctx, http.MethodPatch, profilesPath+"/"+url.PathEscape(string(op.ProfileID)), op.Key, body)
	case planner.KindDelete:
		name = "delete"
		resp, err = b.do(ctx, http.MethodDelete, profilesPath+"/"+url.PathEscape(string(op.ProfileID)), op.Key, nil)
	default:
		return &errors.ValidationError{Field: "kind", Value: op.Kind, Message: "unknown operation kind"}
	}

	if err != nil {
		return &errors.BackendError{Operation: name, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound && op.Kind == planner.KindDelete:
		// Already gone; deletes are idempotent.
		return nil
	default:
		return statusError(name, resp)
	}
}

// do builds and sends one request. A non-empty idempotencyKey is attached on
// mutating requests.
func (b *Backend) do(ctx context.Context, method, path, idempotencyKey string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	if b.apiKey != "" {
		b.auth.Apply(req, b.apiKey)
	}

	return b.http.Do(req)
}

// statusError maps a non-success response to the error taxonomy. The body is
// read for the server's message but never trusted to be JSON.
func statusError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	message := strings.TrimSpace(string(body))
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	return &errors.BackendError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Message:    message,
	}
}

func (w wireProfile) profile() profiles.Profile {
	props := make(map[string]profiles.PropertyValue, len(w.Properties))
	for name, value := range w.Properties {
		props[name] = profiles.PropertyValue{Value: value, Mode: profiles.SyncModeInherit}
	}
	return profiles.Profile{
		ID:         profiles.ID(w.ID),
		ParentID:   profiles.ID(w.ParentID),
		Properties: props,
		Tags:       append([]string(nil), w.Tags...),
		Revision:   w.LastModified,
		Origin:     profiles.OriginRemote,
	}
}
