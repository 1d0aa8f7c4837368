package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/stevehiehn/recipe-executor/internal/runctx"
	"github.com/stevehiehn/recipe-executor/internal/step"
	"github.com/stevehiehn/recipe-executor/internal/template"
)

// HTTPRequest sends a request and stores the response body under
// output_key. url, body and header values are rendered; an object body is
// sent as JSON. A JSON response is stored parsed unless parse_json is
// false. Status codes of 400 and above fail the step.
type HTTPRequest struct {
	cfg    step.Config
	logger *slog.Logger
	client *http.Client
}

func NewHTTPRequest(cfg step.Config, logger *slog.Logger) (step.Step, error) {
	if stringField(cfg, "url", "") == "" {
		return nil, fmt.Errorf("http_request: missing required field 'url'")
	}
	if stringField(cfg, "output_key", "") == "" {
		return nil, fmt.Errorf("http_request: missing required field 'output_key'")
	}
	timeout, err := intField(cfg, "timeout_sec", 60)
	if err != nil {
		return nil, fmt.Errorf("http_request: %w", err)
	}
	return &HTTPRequest{
		cfg:    cfg,
		logger: logger,
		client: &http.Client{Timeout: time.Duration(timeout) * time.Second},
	}, nil
}

func (s *HTTPRequest) Execute(ctx context.Context, rc *runctx.Context) error {
	url, err := renderField(s.cfg, "url", rc)
	if err != nil {
		return fmt.Errorf("http_request: %w", err)
	}
	outputKey, err := renderField(s.cfg, "output_key", rc)
	if err != nil {
		return fmt.Errorf("http_request: %w", err)
	}
	method := strings.ToUpper(stringField(s.cfg, "method", http.MethodGet))

	var bodyReader io.Reader
	isJSON := false
	switch b := s.cfg["body"].(type) {
	case nil:
	case string:
		rendered, err := template.Render(b, rc)
		if err != nil {
			return fmt.Errorf("http_request: %w", err)
		}
		bodyReader = strings.NewReader(rendered)
	default:
		rendered, err := template.RenderValue(b, rc)
		if err != nil {
			return fmt.Errorf("http_request: %w", err)
		}
		data, err := json.Marshal(rendered)
		if err != nil {
			return fmt.Errorf("http_request: encoding body: %w", err)
		}
		bodyReader = strings.NewReader(string(data))
		isJSON = true
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("http_request: failed to create request: %w", err)
	}
	if headers, ok := s.cfg["headers"].(map[string]any); ok {
		rendered, err := template.RenderMap(headers, rc)
		if err != nil {
			return fmt.Errorf("http_request: %w", err)
		}
		for k, v := range rendered {
			req.Header.Set(k, fmt.Sprint(v))
		}
	}
	if bodyReader != nil && req.Header.Get("Content-Type") == "" && isJSON {
		req.Header.Set("Content-Type", "application/json")
	}

	s.logger.Info("sending request", "method", method, "url", url)
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("http_request: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("http_request: failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("http_request: %d %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	parse, err := boolField(s.cfg, "parse_json", true)
	if err != nil {
		return fmt.Errorf("http_request: %w", err)
	}
	var out any = string(respBody)
	if parse && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		var v any
		if err := json.Unmarshal(respBody, &v); err == nil {
			out = v
		}
	}
	rc.Set(outputKey, out)
	return nil
}
