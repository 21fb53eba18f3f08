package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hyperjump/kakushi/internal/config"
	"github.com/hyperjump/kakushi/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemote_Analyze(t *testing.T) {
	var got analyzeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(`{
			"analyses": [{"text": "call John", "analysis": [{"start": 5, "end": 9, "entity_type": "PERSON", "score": 0.9}]}],
			"gdpr_risk_mean": 6, "pii_risk_variance": 0.25, "detection_count": 1,
			"detected_pii_types": ["PERSON"], "detected_pii_type_frequencies": {"PERSON": 1}
		}`))
	}))
	defer srv.Close()

	r := NewRemote(config.EngineConfig{
		URLs:            map[string]string{"en": srv.URL},
		Weights:         map[string]float64{"PERSON": 5},
		FilterDetection: true,
	}, nil)
	res, err := r.Analyze(context.Background(), "call John", "en", 0.6)
	require.NoError(t, err)

	assert.Equal(t, "call John", got.Text)
	assert.Equal(t, "en", got.Lang)
	assert.Equal(t, 0.6, got.Score)
	assert.True(t, got.FilterDetection)
	assert.Equal(t, 5.0, got.Weights["PERSON"])

	require.Len(t, res.Hits(), 1)
	assert.Equal(t, "PERSON", res.Hits()[0].EntityType)
	assert.Equal(t, 6, res.GDPRRiskMean)
	assert.Equal(t, 0.25, res.PIIRiskVariance)
	assert.Equal(t, []string{"PERSON"}, res.DetectedPIITypes)
}

func TestRemote_ErrorStatusIsExtractionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"upstream down"}`))
	}))
	defer srv.Close()

	r := NewRemote(config.EngineConfig{DefaultURL: srv.URL}, nil)
	_, err := r.Analyze(context.Background(), "text", "fr", 0.5)
	var xerr *ExtractionError
	require.ErrorAs(t, err, &xerr)
	assert.Equal(t, http.StatusBadGateway, xerr.StatusCode)
	assert.Contains(t, xerr.Body, "upstream down")
}

func TestRemote_NonJSONIsExtractionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	}))
	defer srv.Close()

	_, err := NewRemote(config.EngineConfig{DefaultURL: srv.URL}, nil).Analyze(context.Background(), "text", "en", 0.5)
	var xerr *ExtractionError
	require.ErrorAs(t, err, &xerr)
	assert.Equal(t, http.StatusOK, xerr.StatusCode)
	assert.Equal(t, "text/html", xerr.ContentType)
}

func TestRemote_DecodeFailureIsExtractionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("{not json"))
	}))
	defer srv.Close()

	_, err := NewRemote(config.EngineConfig{DefaultURL: srv.URL}, nil).Analyze(context.Background(), "text", "en", 0.5)
	var xerr *ExtractionError
	require.ErrorAs(t, err, &xerr)
	assert.Error(t, xerr.Unwrap())
}

func TestRemote_NoURL(t *testing.T) {
	r := NewRemote(config.EngineConfig{URLs: map[string]string{"en": "http://x"}}, nil)
	_, err := r.Analyze(context.Background(), "text", "de", 0.5)
	assert.True(t, errors.Is(err, ErrNoEngineURL))
}

func TestRemote_RateLimitHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"analyses": []}`))
	}))
	defer srv.Close()

	r := NewRemote(config.EngineConfig{DefaultURL: srv.URL, RateLimit: 0.001}, nil)
	_, err := r.Analyze(context.Background(), "a", "en", 0.5)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = r.Analyze(ctx, "b", "en", 0.5)
	assert.Error(t, err, "second call must wait on the limiter and hit the deadline")
}

func TestLocal_AnalyzeCollection(t *testing.T) {
	l := NewLocal(map[string]float64{"EMAIL_ADDRESS": 6, "CREDIT_CARD": 9}, "document", "test", false)
	text := "Contact jane.doe@example.com, card 4111 1111 1111 1111."
	res, err := l.AnalyzeCollection(context.Background(), []string{text}, "en", "document", "test", 0.5, false)
	require.NoError(t, err)
	require.Len(t, res.Analyses, 1)

	byType := map[string]models.EntityHit{}
	for _, h := range res.Hits() {
		byType[h.EntityType] = h
	}
	email := byType["EMAIL_ADDRESS"]
	assert.Equal(t, 8, email.Start)
	assert.Equal(t, 28, email.End)
	assert.Equal(t, 1.0, email.Score)
	card := byType["CREDIT_CARD"]
	assert.Equal(t, 0.9, card.Score, "luhn-valid card keeps the base score")

	assert.Equal(t, 2, res.DetectionCount)
	assert.Equal(t, "Contact <EMAIL_ADDRESS>, card <CREDIT_CARD>.", res.SanitizedText)
	assert.Equal(t, 8, res.PIIRiskMean) // (6+9)/2 = 7.5 rounds to 8
	assert.Equal(t, 6, res.PIIRiskMode)
	assert.InDelta(t, 2.25, res.PIIRiskVariance, 1e-9)
	assert.InDelta(t, 1.5, res.PIIRiskStdev, 1e-9)
	assert.Equal(t, 6, res.GDPRRiskMean) // (5+7)/2
}

func TestLocal_FilterDropsLowScores(t *testing.T) {
	l := NewLocal(nil, "", "", true)
	res, err := l.Analyze(context.Background(), "card 4111 1111 1111 1112", "en", 0.5)
	require.NoError(t, err)
	assert.Empty(t, res.Hits(), "luhn-invalid card scores below threshold")
}

func TestLocal_ContextBoost(t *testing.T) {
	l := NewLocal(nil, "", "", false)
	res, err := l.Analyze(context.Background(), "Driver license: D1234567", "en", 0)
	require.NoError(t, err)
	require.Len(t, res.Hits(), 1)
	assert.Equal(t, "US_DRIVER_LICENSE", res.Hits()[0].EntityType)
	assert.InDelta(t, 0.9, res.Hits()[0].Score, 1e-9)

	res, err = l.Analyze(context.Background(), "reference D1234567", "en", 0)
	require.NoError(t, err)
	require.Len(t, res.Hits(), 1)
	assert.InDelta(t, 0.6, res.Hits()[0].Score, 1e-9)
}

func TestLocal_PersonUsesCaptureGroup(t *testing.T) {
	l := NewLocal(nil, "", "", false)
	res, err := l.Analyze(context.Background(), "Seen by Dr. John Martin today", "en", 0)
	require.NoError(t, err)
	require.Len(t, res.Hits(), 1)
	h := res.Hits()[0]
	assert.Equal(t, "PERSON", h.EntityType)
	assert.Equal(t, 12, h.Start, "span starts at the name, not the title")
	assert.Equal(t, 23, h.End)
}

func TestLocal_UnsupportedCollectionType(t *testing.T) {
	l := NewLocal(nil, "", "", false)
	_, err := l.AnalyzeCollection(context.Background(), []string{"x"}, "en", "graph", "c", 0, false)
	assert.Error(t, err)
}

func TestLuhnValid(t *testing.T) {
	assert.True(t, luhnValid("4111 1111 1111 1111"))
	assert.True(t, luhnValid("5500-0000-0000-0004"))
	assert.False(t, luhnValid("4111 1111 1111 1112"))
	assert.False(t, luhnValid("1234"))
}

func TestNew(t *testing.T) {
	a, err := New(config.EngineConfig{})
	require.NoError(t, err)
	assert.IsType(t, &Local{}, a)

	a, err = New(config.EngineConfig{Mode: "remote", DefaultURL: "http://x"})
	require.NoError(t, err)
	assert.IsType(t, &Remote{}, a)

	_, err = New(config.EngineConfig{Mode: "grpc"})
	assert.Error(t, err)
}
