// internal/catalog/catalog_test.go
package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"admission-workers/internal/common/errors"
	"admission-workers/internal/common/logger"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCatalog(t *testing.T, handler http.HandlerFunc) (*ESCatalog, *httptest.Server) {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{server.URL}})
	require.NoError(t, err)

	return NewESCatalog(client, "programs", logger.NewTestLogger(t)), server
}

func esResponse(w http.ResponseWriter, body string) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(body))
}

func TestESCatalog_LookupPrograms(t *testing.T) {
	cat, _ := newTestCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		var query map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&query))

		terms := query["query"].(map[string]interface{})["terms"].(map[string]interface{})
		assert.ElementsMatch(t, []interface{}{"7480201", "7480101"}, terms["admissionCode"])

		esResponse(w, `{
			"hits": {"hits": [
				{"_source": {"admissionCode": "7480201", "universityName": "HUST", "programName": "Computer Science", "score": 26.5}},
				{"_source": {"admissionCode": "7480201", "universityName": "UET", "programName": "Computer Science", "score": 25.8}},
				{"_source": {"admissionCode": "7480101", "universityName": "PTIT", "programName": "Software Engineering", "score": 24.9}}
			]}
		}`)
	})

	programs, err := cat.LookupPrograms(context.Background(), []string{"7480201", "7480101"})

	require.NoError(t, err)
	require.Len(t, programs, 2)
	assert.Len(t, programs["7480201"], 2)
	assert.Equal(t, "PTIT", programs["7480101"][0].UniversityName)
}

func TestESCatalog_EmptyCodesSkipSearch(t *testing.T) {
	var calls int
	cat, _ := newTestCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		esResponse(w, `{"hits":{"hits":[]}}`)
	})

	programs, err := cat.LookupPrograms(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, programs)
	assert.Zero(t, calls)
}

func TestESCatalog_SearchErrorIsTyped(t *testing.T) {
	cat, _ := newTestCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := cat.LookupPrograms(context.Background(), []string{"7480201"})

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeCatalogLookupFailed, errors.CodeOf(err))
}
