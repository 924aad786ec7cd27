package gazetteer

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap/zaptest"
)

// fakeES mimics the few Elasticsearch endpoints the client uses.
type fakeES struct {
	mu       sync.Mutex
	exists   bool
	requests []string
	bodies   map[string]string
	hits     string
	status   int
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	key := r.Method + " " + r.URL.Path
	f.mu.Lock()
	f.requests = append(f.requests, key)
	if f.bodies == nil {
		f.bodies = make(map[string]string)
	}
	f.bodies[key] = string(body)
	if r.URL.Path == "/"+DefaultIndex+"/_search" {
		f.bodies["size"] = r.URL.Query().Get("size")
	}
	f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	if f.status != 0 {
		w.WriteHeader(f.status)
		io.WriteString(w, `{"error":{"reason":"index_not_found_exception"},"status":404}`)
		return
	}
	switch {
	case r.Method == http.MethodHead:
		if !f.exists {
			w.WriteHeader(http.StatusNotFound)
		}
	case strings.HasSuffix(r.URL.Path, "/_search"):
		io.WriteString(w, f.hits)
	case strings.HasSuffix(r.URL.Path, "/_bulk"):
		io.WriteString(w, `{"took":3,"errors":false,"items":[]}`)
	default:
		io.WriteString(w, `{"acknowledged":true}`)
	}
}

func newTestClient(t *testing.T, f *fakeES) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	c, err := NewClient([]string{srv.URL}, OptClientLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSearch(t *testing.T) {
	f := &fakeES{hits: `{"hits":{"total":{"value":2},"hits":[
		{"_id":"4","_score":3.2,"_source":{"publisher":"Penguin Books"}},
		{"_id":"9","_score":1.1,"_source":{"publisher":"Penguin Random House"}}
	]}}`}
	c := newTestClient(t, f)

	names, err := c.Search(context.Background(), "Penguin,", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Penguin Books", "Penguin Random House"}, names)

	f.mu.Lock()
	defer f.mu.Unlock()
	var query string
	for key, body := range f.bodies {
		if strings.HasSuffix(key, "/_search") {
			query = body
		}
	}
	assert.Equal(t, "Penguin,", gjson.Get(query, "query.match.publisher.query").String())
	assert.Equal(t, "10", f.bodies["size"])
}

func TestSearchNoHits(t *testing.T) {
	c := newTestClient(t, &fakeES{hits: `{"hits":{"hits":[]}}`})
	names, err := c.Search(context.Background(), "Nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestSearchError(t *testing.T) {
	c := newTestClient(t, &fakeES{status: http.StatusNotFound})
	_, err := c.Search(context.Background(), "Penguin", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index_not_found_exception")
}

func TestSeed(t *testing.T) {
	f := &fakeES{exists: true}
	c := newTestClient(t, f)
	require.NoError(t, c.Seed(context.Background(), []string{"Penguin Books", "Alfred A. Knopf"}))

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, []string{
		"HEAD /" + DefaultIndex,
		"DELETE /" + DefaultIndex,
		"PUT /" + DefaultIndex,
		"POST /" + DefaultIndex + "/_bulk",
	}, f.requests)

	settings := f.bodies["PUT /"+DefaultIndex]
	assert.Equal(t, "snowball", gjson.Get(settings, "settings.analysis.analyzer.default.type").String())
	assert.Equal(t, "text", gjson.Get(settings, "mappings.properties.publisher.type").String())

	lines := strings.Split(strings.TrimSpace(f.bodies["POST /"+DefaultIndex+"/_bulk"]), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "1", gjson.Get(lines[2], "index._id").String())
	assert.Equal(t, "Alfred A. Knopf", gjson.Get(lines[3], "publisher").String())
}

func TestSeedNewIndex(t *testing.T) {
	f := &fakeES{}
	c := newTestClient(t, f)
	require.NoError(t, c.Seed(context.Background(), nil))
	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, []string{"HEAD /" + DefaultIndex, "PUT /" + DefaultIndex}, f.requests)
}
