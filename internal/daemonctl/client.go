package daemonctl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"webar/internal/api"
	"webar/internal/config"
	"webar/internal/registry"
	"webar/internal/services"
)

// Client speaks the daemon's admin HTTP API.
type Client struct {
	base  string
	token string
	http  *http.Client
}

// Dial returns a client for the daemon that published its address for cfg.
func Dial(cfg *config.Config) (*Client, error) {
	addr, err := ReadAddress(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{
		base:  "http://" + addr,
		token: cfg.Paths.APIToken,
		http:  &http.Client{Timeout: 5 * time.Minute},
	}, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// Upload submits a model file; the daemon converts it in the background.
func (c *Client) Upload(ctx context.Context, filename, name string, data []byte) (api.Asset, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return api.Asset{}, err
	}
	if _, err := part.Write(data); err != nil {
		return api.Asset{}, err
	}
	if name != "" {
		if err := mw.WriteField("name", name); err != nil {
			return api.Asset{}, err
		}
	}
	if err := mw.Close(); err != nil {
		return api.Asset{}, err
	}

	var asset api.Asset
	err = c.do(ctx, http.MethodPost, "/api/admin/models/upload", mw.FormDataContentType(), &body, true, &asset)
	return asset, err
}

// Get fetches one asset by numeric id.
func (c *Client) Get(ctx context.Context, id int64) (api.Asset, error) {
	var asset api.Asset
	err := c.do(ctx, http.MethodGet, "/api/admin/models/"+strconv.FormatInt(id, 10), "", nil, true, &asset)
	return asset, err
}

// GetBySlug resolves a slug through the public route, then loads the admin view.
func (c *Client) GetBySlug(ctx context.Context, slug string) (api.Asset, error) {
	var view api.PublicAsset
	if err := c.do(ctx, http.MethodGet, "/api/models/"+url.PathEscape(slug), "", nil, false, &view); err != nil {
		return api.Asset{}, err
	}
	return c.Get(ctx, view.ID)
}

// List returns one page of assets.
func (c *Client) List(ctx context.Context, opts registry.ListOptions) (api.AssetList, error) {
	query := url.Values{}
	if opts.Page > 0 {
		query.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Search != "" {
		query.Set("search", opts.Search)
	}
	if opts.Status != "" {
		query.Set("status", string(opts.Status))
	}
	path := "/api/admin/models"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var list api.AssetList
	err := c.do(ctx, http.MethodGet, path, "", nil, true, &list)
	return list, err
}

// Delete removes an asset.
func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/api/admin/models/"+strconv.FormatInt(id, 10), "", nil, true, nil)
}

// WaitSettled polls an asset until it leaves the converting state.
func (c *Client) WaitSettled(ctx context.Context, id int64, interval time.Duration) (api.Asset, error) {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		asset, err := c.Get(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return api.Asset{}, services.Wrap(services.ErrTimeout, "daemonctl", "wait", "asset still converting", ctx.Err())
			}
			return api.Asset{}, err
		}
		if asset.Status != string(registry.StatusConverting) {
			return asset, nil
		}
		select {
		case <-ctx.Done():
			return asset, services.Wrap(services.ErrTimeout, "daemonctl", "wait", "asset still converting", ctx.Err())
		case <-ticker.C:
		}
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, admin bool, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if admin && c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "daemonctl", strings.ToLower(method), "daemon unreachable at "+c.base, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return services.Wrap(services.ErrTransient, "daemonctl", strings.ToLower(method),
			fmt.Sprintf("unreadable daemon response (HTTP %d)", resp.StatusCode), err)
	}
	if resp.StatusCode >= http.StatusBadRequest || !env.Success {
		return services.Wrap(markerFor(resp.StatusCode), "daemon", strings.ToLower(method), env.Message, nil)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode daemon response: %w", err)
	}
	return nil
}

func markerFor(status int) error {
	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return services.ErrValidation
	case http.StatusNotFound:
		return services.ErrNotFound
	case http.StatusUnauthorized:
		return services.ErrConfiguration
	case http.StatusBadGateway:
		return services.ErrExternalTool
	case http.StatusGatewayTimeout:
		return services.ErrTimeout
	default:
		return services.ErrTransient
	}
}
