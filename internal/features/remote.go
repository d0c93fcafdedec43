package features

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wonny/modelcmp/internal/contracts"
	"github.com/wonny/modelcmp/pkg/httputil"
)

// Remote fetches feature rows from an upstream feature service:
//
//	GET {base}/v1/features/{symbol}?start=YYYY-MM-DD&end=YYYY-MM-DD → FeatureTable JSON
type Remote struct {
	baseURL string
	client  *httputil.Client
}

// NewRemote creates a remote provider
func NewRemote(baseURL string, client *httputil.Client) *Remote {
	return &Remote{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// GetFeatureRows implements Provider; 404 means the service has no rows
func (r *Remote) GetFeatureRows(ctx context.Context, symbol string, start, end time.Time) (*contracts.FeatureTable, error) {
	q := url.Values{}
	q.Set("start", start.Format(DateLayout))
	q.Set("end", end.Format(DateLayout))
	endpoint := fmt.Sprintf("%s/v1/features/%s?%s", r.baseURL, url.PathEscape(symbol), q.Encode())

	var table contracts.FeatureTable
	if err := r.client.GetJSON(ctx, endpoint, &table); err != nil {
		var statusErr *httputil.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return &contracts.FeatureTable{Symbol: symbol}, nil
		}
		return nil, fmt.Errorf("fetch features for %s: %w", symbol, err)
	}

	if table.Symbol == "" {
		table.Symbol = symbol
	}
	if !table.IsSorted() {
		return nil, fmt.Errorf("%w: feature service returned unsorted rows for %s", contracts.ErrInvalidInput, symbol)
	}
	return &table, nil
}
