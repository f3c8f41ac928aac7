package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/okian/slashboard/internal/domain/model"
)

// Default game API settings.
const (
	DefaultBaseURL = "https://api.kurobbs.com"
	DefaultTimeout = 10 * time.Second

	baseInfoPath    = "/aki/roleBox/akiBox/baseData"
	slashDetailPath = "/aki/roleBox/akiBox/slashDetail"
	roleDataPath    = "/aki/roleBox/akiBox/roleData"
	successCode     = 200
	maxBodyBytes    = 4 << 20
)

// HTTPClient talks to the game API over HTTP.
type HTTPClient struct {
	base   string
	client *http.Client
}

// NewHTTPClient creates a client against baseURL.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClient{
		base:   strings.TrimRight(baseURL, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type baseInfo struct {
	Name string `json:"name"`
}

type slashDetail struct {
	IsUnlock       bool `json:"isUnlock"`
	DifficultyList []struct {
		ChallengeList []Challenge `json:"challengeList"`
	} `json:"difficultyList"`
}

// FetchChallenges loads the display name, then the challenge detail. A failed
// name lookup is not fatal.
func (c *HTTPClient) FetchChallenges(ctx context.Context, acct model.Account) (Profile, []Challenge, error) {
	p := Profile{UID: acct.ExternalUID}

	var info baseInfo
	if err := c.post(ctx, baseInfoPath, acct, &info); err == nil {
		p.Name = info.Name
	}

	var detail slashDetail
	if err := c.post(ctx, slashDetailPath, acct, &detail); err != nil {
		return p, nil, err
	}
	if !detail.IsUnlock || len(detail.DifficultyList) == 0 {
		return p, nil, ErrNoData
	}

	var out []Challenge
	for _, d := range detail.DifficultyList {
		out = append(out, d.ChallengeList...)
	}
	if len(out) == 0 {
		return p, nil, ErrNoData
	}
	return p, out, nil
}

type roleData struct {
	RoleList []RoleDetail `json:"roleList"`
}

// RoleDetails loads the account's character roster.
func (c *HTTPClient) RoleDetails(ctx context.Context, acct model.Account) (map[int]RoleDetail, error) {
	var data roleData
	if err := c.post(ctx, roleDataPath, acct, &data); err != nil {
		return nil, err
	}
	out := make(map[int]RoleDetail, len(data.RoleList))
	for _, r := range data.RoleList {
		if r.ID != 0 {
			out[r.ID] = r
		}
	}
	return out, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, acct model.Account, into interface{}) error {
	form := url.Values{}
	form.Set("roleId", acct.ExternalUID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if acct.Token != "" {
		req.Header.Set("token", acct.Token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: %s returned %d", ErrUpstream, path, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrUpstream, err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("%w: decode envelope: %v", ErrUpstream, err)
	}
	if env.Code != successCode {
		return fmt.Errorf("%w: %s code %d: %s", ErrUpstream, path, env.Code, env.Msg)
	}
	return decodeData(env.Data, into)
}

// decodeData accepts the payload either inline or as a JSON-encoded string.
func decodeData(data json.RawMessage, into interface{}) error {
	if len(data) == 0 || string(data) == "null" {
		return ErrNoData
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("%w: decode data string: %v", ErrUpstream, err)
		}
		data = json.RawMessage(s)
	}
	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("%w: decode data: %v", ErrUpstream, err)
	}
	return nil
}
