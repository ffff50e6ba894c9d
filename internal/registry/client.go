package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ehealth-tools/registry-sync/internal/sync/domain"
)

// Config holds registry API client configuration.
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	PageSize int
}

// Client talks to the national health registry API.
type Client struct {
	config     *Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new registry API client.
func NewClient(config *Config, logger *slog.Logger) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// listPaths maps each entity kind to its registry collection path.
var listPaths = map[domain.EntityKind]string{
	domain.KindDeclaration:        "declarations",
	domain.KindDeclarationRequest: "declaration_requests",
	domain.KindEmployee:           "employees",
	domain.KindEmployeeRequest:    "employee_requests",
	domain.KindConfidantPerson:    "confidant_persons",
	domain.KindContractRequest:    "contract_requests",
}

// Item is one entry of a registry list page.
type Item struct {
	ID      string
	Payload json.RawMessage
}

// Page is one page of a registry listing.
type Page struct {
	Items      []Item
	Number     int
	TotalPages int
}

// IsNotLast reports whether more pages follow this one.
func (p *Page) IsNotLast() bool {
	return p.Number < p.TotalPages
}

// List fetches one page of the registry collection for kind, filtered by the
// legal entity's registry uuid and, when set, the acting user's employee id.
func (c *Client) List(ctx context.Context, token string, kind domain.EntityKind, legalEntityUUID, scopeEmployeeID string, page int) (*Page, error) {
	path, ok := listPaths[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownCategory, kind)
	}

	q := url.Values{}
	q.Set("legal_entity_id", legalEntityUUID)
	q.Set("page", strconv.Itoa(page))
	if c.config.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(c.config.PageSize))
	}
	if scopeEmployeeID != "" {
		q.Set("employee_id", scopeEmployeeID)
	}

	endpoint := fmt.Sprintf("%s/api/%s?%s", c.config.BaseURL, path, q.Encode())

	body, err := c.do(ctx, token, endpoint)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data   []json.RawMessage `json:"data"`
		Paging struct {
			PageNumber int `json:"page_number"`
			TotalPages int `json:"total_pages"`
		} `json:"paging"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode registry list response: %w", err)
	}

	items := make([]Item, 0, len(resp.Data))
	for _, raw := range resp.Data {
		var ident struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(raw, &ident); err != nil || ident.ID == "" {
			c.logger.Warn("Registry list entry without id, skipping",
				slog.String("kind", string(kind)),
			)
			continue
		}
		items = append(items, Item{ID: ident.ID, Payload: raw})
	}

	c.logger.Debug("Registry page fetched",
		slog.String("kind", string(kind)),
		slog.Int("page", resp.Paging.PageNumber),
		slog.Int("total_pages", resp.Paging.TotalPages),
		slog.Int("items", len(items)),
	)

	return &Page{
		Items:      items,
		Number:     resp.Paging.PageNumber,
		TotalPages: resp.Paging.TotalPages,
	}, nil
}

// Detail fetches the full detail payload of a single entity by registry uuid.
func (c *Client) Detail(ctx context.Context, token string, kind domain.EntityKind, id string) (json.RawMessage, error) {
	path, ok := listPaths[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownCategory, kind)
	}

	endpoint := fmt.Sprintf("%s/api/%s/%s", c.config.BaseURL, path, url.PathEscape(id))

	body, err := c.do(ctx, token, endpoint)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode registry detail response: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("registry detail response has no data for %s %s", kind, id)
	}

	return resp.Data, nil
}

// do executes a GET against the registry and maps failures onto the error
// taxonomy: ErrConnection for transport failures, *ResponseError for non-2xx.
func (c *Client) do(ctx context.Context, token, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build registry request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		respErr := &ResponseError{StatusCode: resp.StatusCode}
		var errBody struct {
			Error struct {
				Message string          `json:"message"`
				Invalid json.RawMessage `json:"invalid"`
			} `json:"error"`
		}
		if err := json.Unmarshal(body, &errBody); err == nil {
			respErr.Message = errBody.Error.Message
			respErr.Invalid = errBody.Error.Invalid
		}
		c.logger.Error("Registry request failed",
			slog.String("endpoint", endpoint),
			slog.Int("status", resp.StatusCode),
			slog.String("message", respErr.Message),
			slog.String("invalid", string(respErr.Invalid)),
		)
		return nil, respErr
	}

	return body, nil
}
