package images

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"minimarket/internal/apperrors"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

const DefaultImgBBEndpoint = "https://api.imgbb.com/1/upload"

// ImgBBStore uploads images to the ImgBB hosting API. Each call makes exactly
// one attempt.
type ImgBBStore struct {
	endpoint string
	apiKey   string
	timeout  time.Duration
}

func NewImgBBStore(endpoint, apiKey string, timeout time.Duration) *ImgBBStore {
	if endpoint == "" {
		endpoint = DefaultImgBBEndpoint
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ImgBBStore{endpoint: endpoint, apiKey: apiKey, timeout: timeout}
}

type imgbbResponse struct {
	Success bool `json:"success"`
	Data    struct {
		URL        string `json:"url"`
		DisplayURL string `json:"display_url"`
	} `json:"data"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
	StatusTxt string `json:"status_txt"`
}

// Upload posts data as a base64 form field and returns the hosted URL.
func (s *ImgBBStore) Upload(ctx context.Context, data []byte) (string, error) {
	if s.apiKey == "" {
		return "", apperrors.New(apperrors.KindUploadFailed, "image hosting API key is not configured")
	}
	timeout := s.timeout
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", apperrors.Wrap(apperrors.KindUploadFailed, "image upload timed out", ctx.Err())
		}
		if remaining < timeout {
			timeout = remaining
		}
	}
	if err := ctx.Err(); err != nil {
		return "", apperrors.Wrap(apperrors.KindUploadFailed, "image upload cancelled", err)
	}

	args := fiber.AcquireArgs()
	defer fiber.ReleaseArgs(args)
	args.Set("image", base64.StdEncoding.EncodeToString(data))

	agent := fiber.Post(s.endpoint + "?key=" + url.QueryEscape(s.apiKey))
	agent.Form(args).Timeout(timeout)

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		err := errors.Join(errs...)
		if errors.Is(err, fasthttp.ErrTimeout) {
			return "", apperrors.Wrap(apperrors.KindUploadFailed, "image upload timed out", err)
		}
		return "", apperrors.Wrap(apperrors.KindUploadFailed, "image host unreachable", err)
	}

	var resp imgbbResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", apperrors.Wrap(apperrors.KindUploadFailed,
			fmt.Sprintf("unexpected response from image host (status %d)", code), err)
	}
	if !resp.Success || code >= fiber.StatusBadRequest {
		msg := resp.Error.Message
		if msg == "" {
			msg = resp.StatusTxt
		}
		if msg == "" {
			msg = fmt.Sprintf("image host returned status %d", code)
		}
		return "", apperrors.New(apperrors.KindUploadFailed, msg)
	}
	if resp.Data.URL == "" {
		return "", apperrors.New(apperrors.KindUploadFailed, "image host returned no URL")
	}
	return resp.Data.URL, nil
}
