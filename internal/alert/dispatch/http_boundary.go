package dispatch

import (
	"context"

	httpclient "crisis-alerts/internal/common/http"
	"crisis-alerts/internal/models"
)

// HTTPBoundary posts dispatch requests to the alert API.
type HTTPBoundary struct {
	client *httpclient.Client
	url    string
}

func NewHTTPBoundary(url string, client *httpclient.Client) *HTTPBoundary {
	return &HTTPBoundary{client: client, url: url}
}

func (b *HTTPBoundary) Dispatch(ctx context.Context, req *models.DispatchRequest) (*models.DispatchResult, error) {
	var result models.DispatchResult
	if err := b.client.PostJSON(ctx, b.url, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
