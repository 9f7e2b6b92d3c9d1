package es

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/elastic/go-elasticsearch/v7/estransport"
	"github.com/sirupsen/logrus"
)

var (
	IndexFunc = Index
)

// ActiveESClient is nil when ELASTICSEARCH_URL is not configured.
var ActiveESClient *elasticsearch.Client

// CreateClientFromEnv ELASTICSEARCH_URL, ELASTICSEARCH_USERNAME, ELASTICSEARCH_PASSWORD
func CreateClientFromEnv() (*elasticsearch.Client, error) {
	if os.Getenv("ELASTICSEARCH_URL") == "" {
		return nil, nil
	}
	debug := os.Getenv("GIN_MODE") == "debug"
	conf := elasticsearch.Config{
		Username:  os.Getenv("ELASTICSEARCH_USERNAME"),
		Password:  os.Getenv("ELASTICSEARCH_PASSWORD"),
		Logger:    &estransport.TextLogger{Output: os.Stdout, EnableRequestBody: debug, EnableResponseBody: debug},
		Transport: &TracingTransport{Transport: http.DefaultTransport},
	}
	client, err := elasticsearch.NewClient(conf)
	if err != nil {
		return nil, err
	}

	ActiveESClient = client
	return client, nil
}

// Index creates or replaces the document id of index.
func Index(ctx context.Context, index string, id string, doc interface{}) error {
	if ActiveESClient == nil {
		return fmt.Errorf("elasticsearch client not configured")
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(doc); err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      index,
		DocumentID: id,
		Body:       bytes.NewReader(buf.Bytes()),
	}

	logrus.Debugln("saved document body:", buf.String())
	res, err := req.Do(ctx, ActiveESClient)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error response status %s", res.Status())
	}
	logrus.Debugln(res.String())
	return nil
}
