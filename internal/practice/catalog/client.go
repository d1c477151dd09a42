// ============================================================================
// hatsuon - Pronunciation Trainer
// ============================================================================
//
// Package:     catalog
// Description: HTTP client for the backend's phrase and audio endpoints
// Author:      Mike Stoffels
// Created:     2025-12-09
// License:     MIT
// ============================================================================

package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	hterror "github.com/msto63/hatsuon/foundation/core/error"
	"github.com/msto63/hatsuon/pkg/core/logging"
)

// maxAudioBytes caps a reference audio download
const maxAudioBytes = 16 << 20

// ClientConfig holds backend endpoint settings
type ClientConfig struct {
	BaseURL     string
	CatalogPath string
	AudioPath   string
	HealthPath  string
	Timeout     time.Duration
}

// DefaultClientConfig returns the settings for a local backend
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:     "http://localhost:8000",
		CatalogPath: "/api/v1/phrases",
		AudioPath:   "/api/v1/audio-stream/audio",
		HealthPath:  "/api/v1/system/health",
		Timeout:     10 * time.Second,
	}
}

// Client fetches lessons and reference audio over HTTP
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient creates a new catalog client
func NewClient(cfg ClientConfig, logger *logging.Logger) *Client {
	def := DefaultClientConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.CatalogPath == "" {
		cfg.CatalogPath = def.CatalogPath
	}
	if cfg.AudioPath == "" {
		cfg.AudioPath = def.AudioPath
	}
	if cfg.HealthPath == "" {
		cfg.HealthPath = def.HealthPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

func (c *Client) endpoint(path string, segments ...string) string {
	u := strings.TrimRight(c.cfg.BaseURL, "/") + "/" + strings.Trim(path, "/")
	for _, s := range segments {
		u += "/" + url.PathEscape(s)
	}
	return u
}

// List returns all utterances of the catalog
func (c *Client) List(ctx context.Context) ([]Utterance, error) {
	var list []Utterance
	if err := c.getJSON(ctx, c.endpoint(c.cfg.CatalogPath), &list); err != nil {
		return nil, err
	}
	if err := validate(list); err != nil {
		return nil, err
	}
	c.logger.Debug("Catalog loaded", "lessons", len(list))
	return list, nil
}

// Get returns one utterance. The backend answers null for unknown ids.
func (c *Client) Get(ctx context.Context, id string) (Utterance, error) {
	var u *Utterance
	if err := c.getJSON(ctx, c.endpoint(c.cfg.CatalogPath, id), &u); err != nil {
		if hterror.HasCode(err, hterror.CodeNotFound) {
			return Utterance{}, notFound(id)
		}
		return Utterance{}, err
	}
	if u == nil || u.ID == "" {
		return Utterance{}, notFound(id)
	}
	return *u, nil
}

// ReferenceAudio downloads the reference recording of a lesson
func (c *Client) ReferenceAudio(ctx context.Context, id string) ([]byte, error) {
	target := c.endpoint(c.cfg.AudioPath, id)
	resp, err := c.get(ctx, target)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes+1))
	if err != nil {
		return nil, hterror.Wrap(err, "failed to read reference audio").
			WithCode(hterror.CodeConnectionError).
			WithDetail("url", target)
	}
	if len(data) > maxAudioBytes {
		return nil, hterror.Newf("reference audio exceeds %d bytes", maxAudioBytes).
			WithCode(hterror.CodeInvalidInput).
			WithDetail("url", target)
	}
	return data, nil
}

// Health checks the backend's health endpoint
func (c *Client) Health(ctx context.Context) error {
	var status struct {
		Status string `json:"status"`
	}
	if err := c.getJSON(ctx, c.endpoint(c.cfg.HealthPath), &status); err != nil {
		return err
	}
	if status.Status != "ok" {
		return hterror.Newf("backend unhealthy: %s", status.Status).
			WithCode(hterror.CodeBackendError)
	}
	return nil
}

func (c *Client) get(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, hterror.Wrap(err, "failed to create request").
			WithCode(hterror.CodeInvalidInput).
			WithDetail("url", target)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, hterror.Wrap(err, "request failed").
			WithCode(hterror.CodeConnectionError).
			WithDetail("url", target)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		code := hterror.CodeBackendError
		if resp.StatusCode == http.StatusNotFound {
			code = hterror.CodeNotFound
		}
		return nil, hterror.Newf("server returned %d: %s", resp.StatusCode, bytes.TrimSpace(body)).
			WithCode(code).
			WithDetail("url", target).
			WithDetail("status", resp.StatusCode)
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, target string, dst interface{}) error {
	resp, err := c.get(ctx, target)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return hterror.Wrap(err, fmt.Sprintf("failed to decode response from %s", target)).
			WithCode(hterror.CodeProtocolError)
	}
	return nil
}
