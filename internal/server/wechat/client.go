// Package wechat exchanges a mini-program login code for the caller's
// stable openid and session key.
package wechat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/dmitrijs2005/wxcounter/internal/netx"
)

// Session is the identity returned by a successful code exchange.
type Session struct {
	OpenID     string `json:"openid"`
	SessionKey string `json:"session_key"`
	UnionID    string `json:"unionid"`
}

type response struct {
	Session
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// ErrEmptyCode is returned before any network call when the code is blank.
var ErrEmptyCode = errors.New("empty login code")

// Client calls the jscode2session endpoint.
type Client struct {
	endpoint  string
	appID     string
	appSecret string
	http      *http.Client
}

func NewClient(endpoint, appID, appSecret string, timeout time.Duration) *Client {
	return &Client{
		endpoint:  endpoint,
		appID:     appID,
		appSecret: appSecret,
		http:      &http.Client{Timeout: timeout},
	}
}

// Exchange trades a one-time login code for a Session. A non-zero errcode
// from the provider is returned as an error.
func (c *Client) Exchange(ctx context.Context, code string) (*Session, error) {
	if code == "" {
		return nil, ErrEmptyCode
	}

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("bad endpoint: %w", err)
	}
	q := u.Query()
	q.Set("appid", c.appID)
	q.Set("secret", c.appSecret)
	q.Set("js_code", code)
	q.Set("grant_type", "authorization_code")
	u.RawQuery = q.Encode()

	var resp response
	if err := netx.GetJSON(ctx, c.http, u.String(), &resp); err != nil {
		return nil, fmt.Errorf("code exchange: %w", err)
	}
	if resp.ErrCode != 0 {
		return nil, fmt.Errorf("code exchange: errcode %d: %s", resp.ErrCode, resp.ErrMsg)
	}

	return &resp.Session, nil
}
