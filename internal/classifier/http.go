package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/zhaambo/NetscapeX-CLI/internal/model"
)

// maxResponseBytes caps the classifier response body.
const maxResponseBytes = 64 << 20

// scoreRequest is the batch sent to the scoring service.
type scoreRequest struct {
	Features []model.FeatureRecord `json:"features"`
}

// scoreResponse is the scoring service's reply, one probability per record.
type scoreResponse struct {
	Probabilities []float64 `json:"probabilities"`
}

// HTTPClassifier posts feature batches to an external scoring service.
type HTTPClassifier struct {
	url    string
	client *http.Client
}

// NewHTTPClassifier creates a client for the scoring service at url.
// A zero timeout means no client-side timeout beyond the context.
func NewHTTPClassifier(url string, timeout time.Duration) *HTTPClassifier {
	return &HTTPClassifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Score sends all records in a single request.
func (c *HTTPClassifier) Score(ctx context.Context, records []model.FeatureRecord) ([]float64, error) {
	if len(records) == 0 {
		return []float64{}, nil
	}

	body, err := json.Marshal(scoreRequest{Features: records})
	if err != nil {
		return nil, fmt.Errorf("classifier: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("classifier: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("classifier: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out scoreResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return nil, fmt.Errorf("classifier: decode response: %w", err)
	}

	return Normalize(out.Probabilities, len(records))
}
