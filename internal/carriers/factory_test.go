package carriers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestClientFactory_ForRule(t *testing.T) {
	factory := NewClientFactory(Config{}, nil)
	rules := BuiltinRules()

	dhl := rules["DHL"]
	dhl.APIKey = "secret"

	tests := []struct {
		name         string
		rule         Rule
		wantAPI      bool
		wantTemplate string
	}{
		{"dhl with key", dhl, true, TemplateDHL},
		{"dhl without key", rules["DHL"], false, TemplateDHL},
		{"explicit no_api", rules["DPD"], false, TemplateNoAPI},
		{"template defaults to key", Rule{Key: "HERMES", APIURL: "https://example.com", APIKey: "k"}, false, "hermes"},
		{"key defaulting to dhl", Rule{Key: "dhl", APIURL: "example.com/track", APIKey: "k"}, true, TemplateDHL},
		{"url none", Rule{Key: "DHL", APIURL: "none", APIKey: "k"}, false, TemplateDHL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ok := factory.ForRule(tt.rule)
			require.NotNil(t, e)
			assert.Equal(t, tt.wantAPI, ok)
			assert.Equal(t, tt.wantTemplate, e.Name())
			if !ok {
				assert.IsType(t, NoopEnricher{}, e)
			}
		})
	}
}

func TestNoopEnricher(t *testing.T) {
	got, err := NoopEnricher{}.Enrich(context.Background(), "123")
	assert.NoError(t, err)
	assert.Equal(t, UnknownEnrichment(), got)
	assert.Equal(t, TemplateNoAPI, NoopEnricher{}.Name())
}

func TestClientFactory_Wrappers(t *testing.T) {
	var hits int32
	var userAgent atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		userAgent.Store(r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{"shipments":[{"status":{"statusCode":"delivered"}}]}`))
	}))
	defer server.Close()

	factory := NewClientFactory(Config{Timeout: time.Second, UserAgent: "parcel-tracker/test"}, nil)
	wrapped := 0
	factory.Use(func(rule Rule, next Enricher) Enricher {
		wrapped++
		return next
	})
	factory.Use(RateLimited(rate.NewLimiter(rate.Inf, 1)))

	e, ok := factory.ForRule(Rule{Key: "DHL", APIURL: server.URL, APIKey: "k"})
	require.True(t, ok)
	assert.Equal(t, 1, wrapped)
	assert.Equal(t, TemplateDHL, e.Name())

	got, err := e.Enrich(context.Background(), "123456789012")
	require.NoError(t, err)
	assert.Equal(t, "Zugestellt", got.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Equal(t, "parcel-tracker/test", userAgent.Load())

	_, ok = factory.ForRule(Rule{Key: "GLS"})
	assert.False(t, ok)
	assert.Equal(t, 1, wrapped)
}

func TestRateLimited_CancelledContext(t *testing.T) {
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	require.True(t, limiter.Allow())

	e := RateLimited(limiter)(Rule{}, NoopEnricher{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := e.Enrich(ctx, "123")
	assert.Error(t, err)
	assert.True(t, got.IsUnknown())
}

type failingEnricher struct{}

func (failingEnricher) Name() string { return "failing" }

func (failingEnricher) Enrich(context.Context, string) (Enrichment, error) {
	return Enrichment{StatusCode: "partial"}, assert.AnError
}

func TestApply(t *testing.T) {
	got, err := Apply(context.Background(), nil, "123")
	assert.NoError(t, err)
	assert.True(t, got.IsUnknown())

	got, err = Apply(context.Background(), failingEnricher{}, "123")
	assert.ErrorIs(t, err, assert.AnError)
	assert.True(t, got.IsUnknown())
}
