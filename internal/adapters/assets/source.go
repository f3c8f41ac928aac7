package assets

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"
	"time"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// Source loads raw avatar and character icon images.
type Source interface {
	Avatar(ctx context.Context, userID string) (image.Image, error)
	Icon(ctx context.Context, charID string) (image.Image, error)
}

// Default locations of the remote images. Each template takes the id as its
// only verb.
const (
	DefaultAvatarURL = "https://q1.qlogo.cn/g?b=qq&nk=%s&s=640"
	DefaultIconURL   = "https://prod-alicdn-community.kurobbs.com/role/avatar/%s.png"

	DefaultFetchTimeout = 3 * time.Second

	maxImageBytes = 8 << 20
)

// HTTPSource fetches images over HTTP using URL templates.
type HTTPSource struct {
	client    *http.Client
	avatarURL string
	iconURL   string
}

// NewHTTPSource builds a source. Empty templates fall back to the defaults and
// a non-positive timeout uses DefaultFetchTimeout.
func NewHTTPSource(avatarURL, iconURL string, timeout time.Duration) *HTTPSource {
	if avatarURL == "" {
		avatarURL = DefaultAvatarURL
	}
	if iconURL == "" {
		iconURL = DefaultIconURL
	}
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &HTTPSource{
		client:    &http.Client{Timeout: timeout},
		avatarURL: avatarURL,
		iconURL:   iconURL,
	}
}

func (s *HTTPSource) Avatar(ctx context.Context, userID string) (image.Image, error) {
	return s.get(ctx, fmt.Sprintf(s.avatarURL, userID))
}

func (s *HTTPSource) Icon(ctx context.Context, charID string) (image.Image, error) {
	return s.get(ctx, fmt.Sprintf(s.iconURL, charID))
}

func (s *HTTPSource) get(ctx context.Context, url string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %d", ErrFetch, url, resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrFetch, err)
	}
	return Decode(raw)
}

// Decode parses png, jpeg or webp bytes.
func Decode(raw []byte) (image.Image, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrDecode)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	return strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' }) < 0
}
