package vision

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/image-insight/internal/core/domain"
	"github.com/kirillkom/image-insight/internal/infrastructure/resilience"
)

// Client calls the external vision-analysis service. One long-lived client is
// shared read-only across requests.
type Client struct {
	baseURL       string
	minConfidence float64
	httpClient    *http.Client
	executor      *resilience.Executor
}

type Options struct {
	MinConfidence      float64
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(baseURL string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		minConfidence: options.MinConfidence,
		httpClient:    &http.Client{Timeout: timeout},
		executor:      options.ResilienceExecutor,
	}
}

type imageRef struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

func toImageRef(ref domain.ImageDescriptor) imageRef {
	return imageRef{Bucket: ref.Bucket, Key: ref.Key}
}

func (c *Client) DetectLabels(ctx context.Context, ref domain.ImageDescriptor, maxLabels int) ([]domain.Finding, error) {
	request := struct {
		Image         imageRef `json:"image"`
		MaxLabels     int      `json:"max_labels"`
		MinConfidence float64  `json:"min_confidence"`
	}{toImageRef(ref), maxLabels, c.minConfidence}

	var response struct {
		Labels []domain.Finding `json:"labels"`
	}
	if err := c.call(ctx, "detect_labels", "/v1/detect/labels", request, &response); err != nil {
		return nil, err
	}
	return response.Labels, nil
}

func (c *Client) DetectFaces(ctx context.Context, ref domain.ImageDescriptor, maxFaces int) ([]domain.FaceFinding, error) {
	request := struct {
		Image    imageRef `json:"image"`
		MaxFaces int      `json:"max_faces"`
	}{toImageRef(ref), maxFaces}

	var response struct {
		Faces []domain.FaceFinding `json:"faces"`
	}
	if err := c.call(ctx, "detect_faces", "/v1/detect/faces", request, &response); err != nil {
		return nil, err
	}
	return response.Faces, nil
}

func (c *Client) DetectText(ctx context.Context, ref domain.ImageDescriptor) ([]string, error) {
	request := struct {
		Image imageRef `json:"image"`
	}{toImageRef(ref)}

	var response struct {
		Detections []struct {
			Text string `json:"text"`
			Type string `json:"type"`
		} `json:"detections"`
	}
	if err := c.call(ctx, "detect_text", "/v1/detect/text", request, &response); err != nil {
		return nil, err
	}

	// Word-level detections duplicate their parent lines; keep lines only.
	lines := make([]string, 0, len(response.Detections))
	for _, d := range response.Detections {
		if d.Type == "LINE" {
			lines = append(lines, d.Text)
		}
	}
	return lines, nil
}

func (c *Client) DetectModeration(ctx context.Context, ref domain.ImageDescriptor) ([]domain.Finding, error) {
	request := struct {
		Image         imageRef `json:"image"`
		MinConfidence float64  `json:"min_confidence"`
	}{toImageRef(ref), c.minConfidence}

	var response struct {
		Labels []domain.Finding `json:"labels"`
	}
	if err := c.call(ctx, "detect_moderation", "/v1/detect/moderation", request, &response); err != nil {
		return nil, err
	}
	return response.Labels, nil
}

func (c *Client) call(ctx context.Context, operation, path string, payload, out any) error {
	fn := func(callCtx context.Context) error {
		return c.postJSON(callCtx, path, payload, out, operation)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "vision."+operation, fn, classifyVisionError)
	} else {
		err = fn(ctx)
	}
	return wrapTemporaryIfNeeded(operation, err)
}
