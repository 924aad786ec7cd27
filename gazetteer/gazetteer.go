// Package gazetteer talks to the Elasticsearch index holding the official
// publisher names. The resolver searches it and the seed command fills it.
package gazetteer

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// DefaultIndex is the name of the publisher index.
const DefaultIndex = "book_publishers"

// field holds the publisher name in every document.
const field = "publisher"

// Client is a connection to the gazetteer index. It satisfies
// resolver.Searcher.
type Client struct {
	es        *elasticsearch.Client
	transport *http.Transport
	index     string
	log       *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(c *Client)

// OptClientIndex sets the index name.
func OptClientIndex(index string) ClientOption {
	return func(c *Client) {
		c.index = index
	}
}

// OptClientLogger sets the logger.
func OptClientLogger(log *zap.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient connects to the Elasticsearch nodes at addresses.
func NewClient(addresses []string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		index: DefaultIndex,
		log:   zap.NewNop(),
		transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: addresses,
		Transport: c.transport,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating elasticsearch client")
	}
	c.es = es
	return c, nil
}

// Search returns up to size publisher names matching text, most relevant
// first.
func (c *Client) Search(ctx context.Context, text string, size int) ([]string, error) {
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"match": map[string]interface{}{
				field: map[string]interface{}{
					"query": text,
				},
			},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, errors.Wrap(err, "encoding query")
	}
	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(body)),
		c.es.Search.WithSize(size),
	)
	data, err := readResponse(res, err)
	if err != nil {
		return nil, errors.Wrapf(err, "searching for '%s'", text)
	}
	hits := gjson.GetBytes(data, "hits.hits.#._source."+field).Array()
	names := make([]string, 0, len(hits))
	for _, h := range hits {
		names = append(names, h.String())
	}
	return names, nil
}

// Seed recreates the index and fills it with names. Names are analyzed with
// the English snowball analyzer so plural and singular forms match.
func (c *Client) Seed(ctx context.Context, names []string) error {
	res, err := c.es.Indices.Exists([]string{c.index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return errors.Wrap(err, "checking for index")
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		res, err = c.es.Indices.Delete([]string{c.index}, c.es.Indices.Delete.WithContext(ctx))
		if _, err := readResponse(res, err); err != nil {
			return errors.Wrap(err, "dropping index")
		}
		c.log.Info("dropped index", zap.String("index", c.index))
	}

	settings := map[string]interface{}{
		"settings": map[string]interface{}{
			"analysis": map[string]interface{}{
				"analyzer": map[string]interface{}{
					"default": map[string]interface{}{
						"type":     "snowball",
						"language": "English",
					},
				},
			},
		},
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				field: map[string]interface{}{"type": "text"},
			},
		},
	}
	body, err := json.Marshal(settings)
	if err != nil {
		return errors.Wrap(err, "encoding index settings")
	}
	res, err = c.es.Indices.Create(c.index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(bytes.NewReader(body)))
	if _, err := readResponse(res, err); err != nil {
		return errors.Wrap(err, "creating index")
	}

	if len(names) == 0 {
		return nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i, name := range names {
		meta := map[string]interface{}{"index": map[string]interface{}{"_id": strconv.Itoa(i)}}
		if err := enc.Encode(meta); err != nil {
			return errors.Wrap(err, "encoding bulk action")
		}
		if err := enc.Encode(map[string]string{field: name}); err != nil {
			return errors.Wrap(err, "encoding bulk document")
		}
	}
	res, err = c.es.Bulk(&buf,
		c.es.Bulk.WithContext(ctx),
		c.es.Bulk.WithIndex(c.index),
		c.es.Bulk.WithRefresh("true"))
	data, err := readResponse(res, err)
	if err != nil {
		return errors.Wrap(err, "indexing publishers")
	}
	if gjson.GetBytes(data, "errors").Bool() {
		reason := gjson.GetBytes(data, "items.#.index.error.reason|0").String()
		return errors.Errorf("indexing publishers: %s", reason)
	}
	c.log.Info("seeded index", zap.String("index", c.index), zap.Int("publishers", len(names)))
	return nil
}

// Close releases the client's idle connections.
func (c *Client) Close() error {
	c.transport.CloseIdleConnections()
	return nil
}

// readResponse returns the body of a successful response.
func readResponse(res *esapi.Response, err error) ([]byte, error) {
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading response")
	}
	if res.IsError() {
		reason := gjson.GetBytes(data, "error.reason").String()
		if reason == "" {
			reason = string(data)
		}
		return nil, errors.Errorf("%s: %s", res.Status(), reason)
	}
	return data, nil
}
