package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/liut/medilink/pkg/models/consult"
	"github.com/liut/medilink/pkg/settings"
)

const (
	startPath      = "api/Consultation/start"
	defaultTimeout = time.Second * 60
	maxBodySize    = 4 << 20
)

func logger() *zap.SugaredLogger {
	return zap.S()
}

// Gateway sends clinical notes to the remote diagnostic service
type Gateway interface {
	StartAnalysis(ctx context.Context, patientNotes, existingMeds string) (*consult.Result, error)
}

type startRequest struct {
	PatientNotes string `json:"patientNotes"`
	ExistingMeds string `json:"existingMeds"`
}

type Option func(*client)

// WithHTTPClient replaces the default http client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		if hc != nil {
			c.hc = hc
		}
	}
}

// New returns a Gateway for baseURL. No retries are made.
func New(baseURL string, opts ...Option) Gateway {
	c := &client{
		baseURL: strings.TrimRight(baseURL, "/") + "/",
		hc: &http.Client{
			Timeout:   defaultTimeout,
			Transport: &http.Transport{Proxy: http.ProxyFromEnvironment},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromSettings ...
func NewFromSettings() Gateway {
	timeout := settings.Current.APITimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return New(settings.Current.APIBaseURL, WithHTTPClient(&http.Client{
		Timeout:   timeout,
		Transport: &http.Transport{Proxy: http.ProxyFromEnvironment},
	}))
}

type client struct {
	baseURL string
	hc      *http.Client
}

func (c *client) StartAnalysis(ctx context.Context, patientNotes, existingMeds string) (*consult.Result, error) {
	const op = "start analysis"
	body, err := json.Marshal(&startRequest{PatientNotes: patientNotes, ExistingMeds: existingMeds})
	if err != nil {
		return nil, consult.NewError(consult.KindInvalid, op, err)
	}
	uri := c.baseURL + startPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uri, bytes.NewReader(body))
	if err != nil {
		return nil, consult.NewError(consult.KindNetwork, op, errors.Wrap(err, "new request"))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		logger().Infow("consultation request fail", "uri", uri, "err", err)
		return nil, consult.NewError(consult.KindNetwork, op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, consult.NewError(consult.KindNetwork, op, errors.Wrap(err, "read body"))
	}
	logger().Debugw("consultation response", "status", resp.StatusCode,
		"size", len(data), "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger().Infow("consultation status fail", "uri", uri, "status", resp.StatusCode)
		return nil, &consult.Error{
			Kind:   consult.KindNetwork,
			Op:     op,
			Status: resp.StatusCode,
			Err:    errors.Errorf("unexpected status %s", resp.Status),
		}
	}
	if len(data) > maxBodySize {
		logger().Infow("consultation response too large", "uri", uri, "limit", maxBodySize)
		return nil, consult.NewError(consult.KindParse, op,
			errors.Errorf("response too large: exceeds %d bytes", maxBodySize))
	}

	res := new(consult.Result)
	if err = json.Unmarshal(data, res); err != nil {
		logger().Infow("consultation decode fail", "err", err, "size", len(data))
		return nil, consult.NewError(consult.KindParse, op, errors.Wrap(err, "decode response"))
	}
	return res, nil
}
