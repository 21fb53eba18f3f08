package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/hyperjump/kakushi/internal/config"
	"github.com/hyperjump/kakushi/internal/models"
	"github.com/hyperjump/kakushi/pkg/utils"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const bodyExcerptLen = 512

// Remote posts chunks to a per-language analyze URL.
type Remote struct {
	defaultURL      string
	urls            map[string]string
	weights         map[string]float64
	filterDetection bool
	client          *http.Client
	limiter         *rate.Limiter
	logger          *zap.Logger
}

// NewRemote returns a remote analyzer. A zero cfg.RateLimit disables rate limiting.
func NewRemote(cfg config.EngineConfig, logger *zap.Logger) *Remote {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	logger = utils.LoggerOrNop(logger)
	return &Remote{
		defaultURL:      cfg.DefaultURL,
		urls:            cfg.URLs,
		weights:         cfg.Weights,
		filterDetection: cfg.FilterDetection,
		client:          &http.Client{Timeout: timeout},
		limiter:         limiter,
		logger:          logger,
	}
}

type analyzeRequest struct {
	Text            string             `json:"text"`
	Lang            string             `json:"lang"`
	Score           float64            `json:"score"`
	Weights         map[string]float64 `json:"weights,omitempty"`
	FilterDetection bool               `json:"filter_detection"`
}

// URLFor returns the analyze URL for lang, falling back to the default URL.
func (r *Remote) URLFor(lang string) (string, error) {
	if u, ok := r.urls[strings.ToLower(lang)]; ok && u != "" {
		return u, nil
	}
	if r.defaultURL != "" {
		return r.defaultURL, nil
	}
	return "", fmt.Errorf("%w: %q", ErrNoEngineURL, lang)
}

// Analyze posts text to the engine. The status code and content type are checked before
// the body is decoded; failures are returned as *ExtractionError.
func (r *Remote) Analyze(ctx context.Context, text, lang string, threshold float64) (*models.EngineResult, error) {
	url, err := r.URLFor(lang)
	if err != nil {
		return nil, err
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	body, err := json.Marshal(analyzeRequest{
		Text:            text,
		Lang:            lang,
		Score:           threshold,
		Weights:         r.weights,
		FilterDetection: r.filterDetection,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	r.logger.Debug("engine request", zap.String("url", url), zap.String("lang", lang), zap.Int("chars", len(text)))
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &ExtractionError{URL: url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	ct := resp.Header.Get("Content-Type")
	if resp.StatusCode < 200 || resp.StatusCode > 299 || !isJSON(ct) {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, bodyExcerptLen))
		return nil, &ExtractionError{
			URL:         url,
			StatusCode:  resp.StatusCode,
			ContentType: ct,
			Body:        strings.TrimSpace(string(excerpt)),
		}
	}
	var res models.EngineResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, &ExtractionError{URL: url, StatusCode: resp.StatusCode, ContentType: ct, Err: err}
	}
	return &res, nil
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}
