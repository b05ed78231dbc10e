package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	apperrors "crisis-alerts/internal/common/errors"

	"github.com/elastic/go-elasticsearch/v8"
)

type ElasticsearchIndexer struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticsearchIndexer(client *elasticsearch.Client, index string) *ElasticsearchIndexer {
	return &ElasticsearchIndexer{client: client, index: index}
}

func (i *ElasticsearchIndexer) Name() string { return "elasticsearch" }

func (i *ElasticsearchIndexer) Save(ctx context.Context, rec Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return apperrors.NewElasticsearchIndexError(i.index, err)
	}

	res, err := i.client.Index(
		i.index,
		bytes.NewReader(body),
		i.client.Index.WithContext(ctx),
		i.client.Index.WithDocumentID(rec.ID),
	)
	if err != nil {
		return apperrors.NewElasticsearchIndexError(i.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return apperrors.NewElasticsearchIndexError(i.index, fmt.Errorf("index response: %s", res.Status()))
	}
	return nil
}
