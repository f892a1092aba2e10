package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"token-vesting-go/internal/models"
	"token-vesting-go/internal/timesource"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

const maxWindowBody = 4 << 10

var _ timesource.Oracle = (*HTTPClient)(nil)

// HTTPClient queries GET {base}/v1/oracles/{account}/window
type HTTPClient struct {
	base   string
	client *http.Client
}

func NewHTTPClient(base string, timeout time.Duration) (*HTTPClient, error) {
	transport := &http.Transport{
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	if err := http2.ConfigureTransport(transport); err != nil {
		return nil, fmt.Errorf("failed to configure http2 transport: %w", err)
	}
	return &HTTPClient{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Transport: transport, Timeout: timeout},
	}, nil
}

func (c *HTTPClient) TimeWindow(ctx context.Context, account models.Account) (uint64, uint64, error) {
	url := fmt.Sprintf("%s/v1/oracles/%s/window", c.base, account)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to build oracle request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("oracle request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			zap.L().Debug("Failed to close oracle response body", zap.Error(err))
		}
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return 0, 0, fmt.Errorf("%w: %s", ErrUnknownOracle, account)
	case resp.StatusCode != http.StatusOK:
		return 0, 0, fmt.Errorf("oracle returned status %d", resp.StatusCode)
	}

	var w models.Window
	decoder := json.NewDecoder(io.LimitReader(resp.Body, maxWindowBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&w); err != nil {
		return 0, 0, fmt.Errorf("%w: %v", timesource.ErrMalformedWindow, err)
	}
	return w.Start, w.End, nil
}

// NewHTTPApp serves oracle windows over HTTP
func NewHTTPApp(oracle timesource.Oracle) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Get("/v1/oracles/:account/window", func(c *fiber.Ctx) error {
		account, err := models.ParseAccount(c.Params("account"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		start, end, err := oracle.TimeWindow(c.UserContext(), account)
		if errors.Is(err, ErrUnknownOracle) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		if err != nil {
			zap.L().Warn("Oracle query failed", zap.String("account", account.String()), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "oracle unavailable"})
		}
		return c.JSON(models.Window{Start: start, End: end})
	})

	return app
}
