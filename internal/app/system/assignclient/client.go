// Package assignclient talks to the remote assignment backend and user
// directory over HTTP. Every request carries the operator's bearer token.
package assignclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/assignhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/assignhub/internal/app/system/metrics"
	"github.com/dalemusser/assignhub/internal/app/system/reconcile"
	"github.com/dalemusser/assignhub/internal/app/system/timeouts"
	"github.com/dalemusser/assignhub/internal/domain/models"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// maxBody caps how much of a response body is read.
const maxBody = 4 << 20

// APIError is a non-success response from the backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.Status)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Status, e.Message)
}

// Client calls the backend rooted at a base URL such as
// "https://api.example.com/api/v1".
type Client struct {
	base   string
	origin *url.URL
	http   *http.Client
	log    *zap.Logger
}

// New builds a Client whose requests are authorised by ts. base may be nil,
// in which case http.DefaultTransport carries the requests.
func New(baseURL string, ts oauth2.TokenSource, base http.RoundTripper, logger *zap.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid assign api base url %q", baseURL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		base:   u.String(),
		origin: &url.URL{Scheme: u.Scheme, Host: u.Host},
		http:   &http.Client{Transport: &oauth2.Transport{Source: ts, Base: base}},
		log:    logger,
	}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type remoteUser struct {
	MongoID string `json:"_id"`
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Image   string `json:"image"`
	Address string `json:"address"`
}

func (u remoteUser) customer(origin *url.URL) models.Customer {
	c := models.Customer{
		ID:      u.MongoID,
		Name:    u.Name,
		Email:   u.Email,
		Phone:   u.Phone,
		Image:   u.Image,
		Address: u.Address,
	}
	if c.ID == "" {
		c.ID = u.ID
	}
	htmlsanitize.Fields{Name: &c.Name, Email: &c.Email, Phone: &c.Phone, Image: &c.Image, Address: &c.Address}.Apply()
	c.Image = resolveImage(origin, c.Image)
	return c
}

// resolveImage makes a backend-relative image path absolute against origin.
// Absolute http(s) URLs pass through; any other scheme is dropped.
func resolveImage(origin *url.URL, img string) string {
	if img == "" {
		return ""
	}
	ref, err := url.Parse(img)
	if err != nil {
		return ""
	}
	switch strings.ToLower(ref.Scheme) {
	case "http", "https":
		return ref.String()
	case "":
		return origin.ResolveReference(ref).String()
	default:
		return ""
	}
}

// AssignedCustomers returns the customers the backend holds as assigned to
// productID, in backend order.
func (c *Client) AssignedCustomers(ctx context.Context, productID string) ([]models.Customer, error) {
	env, status, err := c.do(ctx, "assigned_users", http.MethodGet,
		"/assign-product/get-assigned-users/"+url.PathEscape(productID), nil)
	if err != nil {
		return nil, err
	}
	if status/100 != 2 || !env.Success {
		return nil, &APIError{Status: status, Message: env.Message}
	}

	var items []struct {
		User remoteUser `json:"user"`
	}
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &items); err != nil {
			return nil, fmt.Errorf("decode assigned users: %w", err)
		}
	}

	out := make([]models.Customer, 0, len(items))
	for _, it := range items {
		cu := it.User.customer(c.origin)
		if cu.ID == "" {
			continue
		}
		out = append(out, cu)
	}
	return out, nil
}

// Assign asks the backend to assign customerID to productID. A backend
// response carrying the duplicate message yields ErrDuplicateAssignment,
// whatever its status code.
func (c *Client) Assign(ctx context.Context, productID, customerID string) error {
	body, err := json.Marshal(map[string]string{"productId": productID, "userId": customerID})
	if err != nil {
		return err
	}
	env, status, err := c.do(ctx, "assign", http.MethodPost, "/assign-product/assign", body)
	if err != nil {
		return err
	}
	if env.Message == reconcile.DuplicateMessage {
		return fmt.Errorf("assign %s to %s: %w", customerID, productID, reconcile.ErrDuplicateAssignment)
	}
	if status/100 == 2 || env.Success {
		return nil
	}
	return &APIError{Status: status, Message: env.Message}
}

// ListUsers returns one page of the user directory.
func (c *Client) ListUsers(ctx context.Context, page, limit int) ([]models.Customer, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	env, status, err := c.do(ctx, "list_users", http.MethodGet, "/users?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if status/100 != 2 || !env.Success {
		return nil, &APIError{Status: status, Message: env.Message}
	}

	var data struct {
		Result []remoteUser `json:"result"`
	}
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, fmt.Errorf("decode users: %w", err)
		}
	}

	out := make([]models.Customer, 0, len(data.Result))
	for _, u := range data.Result {
		cu := u.customer(c.origin)
		if cu.ID == "" {
			continue
		}
		out = append(out, cu)
	}
	return out, nil
}

// do sends one request and decodes the response envelope. A body that is
// not a JSON envelope is not an error on its own; the status code decides.
func (c *Client) do(ctx context.Context, op, method, path string, body []byte) (envelope, int, error) {
	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Medium(), c.log, "assign api "+op)
	defer cancel()

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rdr)
	if err != nil {
		return envelope{}, 0, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RemoteRequestDuration.WithLabelValues(op, "error").Observe(time.Since(start).Seconds())
		c.log.Warn("assign api request failed", zap.String("operation", op), zap.Error(err))
		return envelope{}, 0, err
	}
	defer resp.Body.Close()
	metrics.RemoteRequestDuration.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return envelope{}, resp.StatusCode, fmt.Errorf("read %s response: %w", op, err)
	}

	var env envelope
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			c.log.Debug("assign api response is not a json envelope",
				zap.String("operation", op), zap.Int("status", resp.StatusCode))
			env = envelope{}
		}
	}
	env.Message = htmlsanitize.PlainText(env.Message)
	return env, resp.StatusCode, nil
}
