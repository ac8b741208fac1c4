package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func modelResponse(text string) string {
	body, _ := json.Marshal(map[string]interface{}{
		"candidates": []map[string]interface{}{
			{"content": map[string]interface{}{
				"parts": []map[string]string{{"text": text}},
			}},
		},
	})
	return string(body)
}

func newTestService(t *testing.T, upstream http.HandlerFunc, models []string) (*Service, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	resolver := &Resolver{Models: models, Versions: []string{"v1beta", "v1"}}
	fetcher := NewFetcher("", 5*time.Second, zap.NewNop())
	client := NewClient(srv.URL, "test-key", 5*time.Second)
	return NewWithParts(resolver, fetcher, client, zap.NewNop()), srv
}

func TestAnalyzeVitalsAdvancesOnNotFoundOnly(t *testing.T) {
	var calls int32
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n <= 2 {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":{"message":"model not found"}}`)
			return
		}
		fmt.Fprint(w, modelResponse(`{"assessment":"ok","languageSummaries":{"en":"fine","roman":""}}`))
	}, []string{"A", "B"})

	got, err := svc.AnalyzeVitals(context.Background(), AnalyzeVitalsInput{
		Values: map[string]interface{}{"systolic": 120},
	})
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, "ok", got.Insight.Assessment)
	assert.NotEmpty(t, got.Raw)
}

func TestAnalyzeVitalsAbortsOnNonNotFound(t *testing.T) {
	var calls int32
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":{"message":"quota exceeded"}}`)
	}, []string{"A", "B"})

	_, err := svc.AnalyzeVitals(context.Background(), AnalyzeVitalsInput{})
	require.Error(t, err)

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusForbidden, reqErr.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "must not try further candidates")
}

func TestAnalyzeVitalsExhaustsAllCandidates(t *testing.T) {
	var calls int32
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"message":"unknown model"}}`)
	}, []string{"A", "B"})

	_, err := svc.AnalyzeVitals(context.Background(), AnalyzeVitalsInput{})
	require.Error(t, err)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls), "2 models x 2 versions")
	assert.Contains(t, exhausted.Endpoint, "/v1/models/B:generateContent")
	assert.Contains(t, exhausted.Detail, "unknown model")
}

func TestAnalyzeVitalsRequiresAPIKey(t *testing.T) {
	resolver := &Resolver{Models: []string{"A"}, Versions: []string{"v1"}}
	client := NewClient("http://localhost:0", "", time.Second)
	svc := NewWithParts(resolver, NewFetcher("", time.Second, zap.NewNop()), client, zap.NewNop())

	_, err := svc.AnalyzeVitals(context.Background(), AnalyzeVitalsInput{})
	assert.ErrorIs(t, err, ErrAPIKeyMissing)
}

func TestErrorsNeverContainAPIKey(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, "boom")
	}, []string{"A"})

	_, err := svc.AnalyzeVitals(context.Background(), AnalyzeVitalsInput{})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "test-key")
}

func TestAnalyzeFileInlinesFetchedBytes(t *testing.T) {
	fileSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fake png bytes"))
	}))
	defer fileSrv.Close()

	var gotReq generateRequest
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		fmt.Fprint(w, modelResponse(`{"languageSummaries":{"en":"summary","roman":""}}`))
	}, []string{"A"})

	got, err := svc.AnalyzeFile(context.Background(), AnalyzeFileInput{
		FileURL:  fileSrv.URL + "/scan.png",
		FileType: "image",
		Title:    "CBC Report",
	})
	require.NoError(t, err)
	assert.Equal(t, "summary", got.Insight.LanguageSummaries.En)

	require.Len(t, gotReq.Contents, 1)
	parts := gotReq.Contents[0].Parts
	require.Len(t, parts, 2)
	assert.Contains(t, parts[0].Text, "CBC Report")
	require.NotNil(t, parts[1].InlineData)
	assert.Equal(t, "image/png", parts[1].InlineData.MIMEType)
	assert.Equal(t, 0.2, gotReq.GenerationConfig.Temperature)
	assert.Equal(t, 40, gotReq.GenerationConfig.TopK)
}

func TestAnalyzeFileDegradesToURLReference(t *testing.T) {
	var gotReq generateRequest
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		fmt.Fprint(w, modelResponse(`{}`))
	}, []string{"A"})

	// unreachable file host: fetch fails, pipeline continues degraded
	_, err := svc.AnalyzeFile(context.Background(), AnalyzeFileInput{
		FileURL:  "http://127.0.0.1:1/missing.png",
		FileType: "image",
	})
	require.NoError(t, err)

	parts := gotReq.Contents[0].Parts
	require.Len(t, parts, 2)
	assert.Nil(t, parts[1].InlineData)
	assert.Contains(t, parts[1].Text, "http://127.0.0.1:1/missing.png")
}
