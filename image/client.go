// Package image is a client for the getimg.ai image generation API.
//
// A Client is safe for concurrent use. Each method performs exactly one POST
// and never retries; deadlines and cancellation come from the context.
package image

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/dmorgan81/getimg/internal/codec"
	"github.com/dmorgan81/getimg/internal/log"
	"github.com/samber/lo"
)

const (
	DefaultBaseURL = "https://api.getimg.ai/v1"
	DefaultModel   = "lcm-realistic-vision-v5-1"
)

type Generator interface {
	TextToImage(context.Context, TextToImageParams) (*Result, error)
	ImageToImage(context.Context, ImageToImageParams) (*Result, error)
	ControlNet(context.Context, ControlNetParams) (*Result, error)
	Repaint(context.Context, RepaintParams) (*Result, error)
	Edit(context.Context, EditParams) (*Result, error)
}

// Result is a generated image. Seed and Cost are nil when the service omits them.
type Result struct {
	Image []byte
	Seed  *int64
	Cost  *float64
}

type Credentials struct {
	APIKey string
	Model  string
}

func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("api_key", redact(c.APIKey)),
		slog.String("model", c.Model),
	)
}

func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{api_key: %q, model: %q}", redact(c.APIKey), c.Model)
}

func (c Credentials) GoString() string {
	return c.String()
}

func redact(key string) string {
	return lo.Ternary(key == "", "", "******")
}

type Client struct {
	client    *http.Client
	creds     Credentials
	baseURL   string
	userAgent string
}

var _ Generator = (*Client)(nil)

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.client = client }
}

func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

func WithUserAgent(userAgent string) Option {
	return func(c *Client) { c.userAgent = userAgent }
}

func NewClient(creds Credentials, opts ...Option) *Client {
	c := &Client{
		client:    http.DefaultClient,
		creds:     creds,
		baseURL:   DefaultBaseURL,
		userAgent: defaultUserAgent(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func defaultUserAgent() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "getimg/unknown"
	}
	setting := lo.FindOrElse(info.Settings, debug.BuildSetting{Value: "unknown"}, func(s debug.BuildSetting) bool {
		return s.Key == "vcs.revision"
	})
	return "getimg/" + setting.Value
}

func (c *Client) Model() string {
	return c.creds.Model
}

func (c *Client) String() string {
	return fmt.Sprintf("Client{model: %q}", c.creds.Model)
}

func (c *Client) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("api_key", redact(c.creds.APIKey)),
		slog.String("model", c.creds.Model),
		slog.String("base_url", c.baseURL),
	)
}

func (c *Client) TextToImage(ctx context.Context, params TextToImageParams) (*Result, error) {
	return c.post(ctx, textToImagePath, newTextToImageRequest(c.creds.Model, params))
}

func (c *Client) ImageToImage(ctx context.Context, params ImageToImageParams) (*Result, error) {
	return c.post(ctx, imageToImagePath, newImageToImageRequest(c.creds.Model, params))
}

func (c *Client) ControlNet(ctx context.Context, params ControlNetParams) (*Result, error) {
	return c.post(ctx, controlNetPath, newControlNetRequest(params))
}

func (c *Client) Repaint(ctx context.Context, params RepaintParams) (*Result, error) {
	return c.post(ctx, inpaintPath, newRepaintRequest(params))
}

func (c *Client) Edit(ctx context.Context, params EditParams) (*Result, error) {
	return c.post(ctx, instructPath, newEditRequest(params))
}

func (c *Client) post(ctx context.Context, path string, payload any) (*Result, error) {
	endpoint := c.baseURL + path
	log := log.FromContextOrDiscard(ctx).WithGroup("getimg").With("endpoint", endpoint)
	log.Info("generating image via api.getimg.ai")

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.creds.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &TransportError{Op: http.MethodPost, URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: http.MethodPost, URL: endpoint, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn("getimg returned an error", "status", resp.StatusCode)
		return nil, &ServiceError{StatusCode: resp.StatusCode, Body: data}
	}

	var reply response
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, &DecodeError{Format: "json", Err: err}
	}
	if reply.Image == nil {
		return nil, &ServiceError{StatusCode: resp.StatusCode, Body: data}
	}

	img, err := codec.Decode(*reply.Image)
	if err != nil {
		return nil, err
	}

	log.Info("received image via api.getimg.ai", "seed", reply.Seed, "cost", reply.Cost, "bytes", len(img))
	return &Result{Image: img, Seed: reply.Seed, Cost: reply.Cost}, nil
}
