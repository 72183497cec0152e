// Package client is a small HTTP client for the account endpoints. Each
// submission goes through a form.Machine, so a second submit while one is
// in flight is refused and a failure leaves one dismissible notice.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/geocoder89/coursehub/internal/apperr"
	"github.com/geocoder89/coursehub/internal/domain/user"
	"github.com/geocoder89/coursehub/internal/form"
	"github.com/geocoder89/coursehub/internal/validation"
)

// APIError is a non-2xx answer from the server. The body's "error" key is
// the human-readable message.
type APIError struct {
	Status  int              `json:"-"`
	Message string           `json:"error"`
	Code    string           `json:"code"`
	Details *apiErrorDetails `json:"details,omitempty"`
}

type apiErrorDetails struct {
	Fields []apperr.FieldError `json:"fields"`
}

func (e *APIError) Error() string { return e.Message }

type Client struct {
	baseURL string
	http    *http.Client
	form    *form.Machine
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithForm(m *form.Machine) Option {
	return func(c *Client) { c.form = m }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		form:    form.New(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Form exposes the submission state, e.g. to render the current notice.
func (c *Client) Form() *form.Machine { return c.form }

// SignUp checks the input locally, then creates the account.
func (c *Client) SignUp(ctx context.Context, in validation.SignUpInput) (user.User, error) {
	var out struct {
		User user.User `json:"user"`
	}

	err := c.form.Submit(ctx, func(ctx context.Context) error {
		norm, err := validation.SignUp(in)
		if err != nil {
			return localError(err)
		}
		return c.post(ctx, "/users", norm, http.StatusCreated, &out, nil)
	})
	if err != nil {
		return user.User{}, err
	}
	return out.User, nil
}

// Session is what Login hands back. RefreshToken is empty when the server
// did not set the cookie.
type Session struct {
	Token        string
	RefreshToken string
}

func (c *Client) Login(ctx context.Context, in validation.LoginInput) (Session, error) {
	var (
		out struct {
			Token string `json:"token"`
		}
		sess Session
	)

	err := c.form.Submit(ctx, func(ctx context.Context) error {
		norm, err := validation.Login(in)
		if err != nil {
			return localError(err)
		}
		return c.post(ctx, "/auth/login", norm, http.StatusOK, &out, func(resp *http.Response) {
			for _, ck := range resp.Cookies() {
				if ck.Name == "refresh_token" {
					sess.RefreshToken = ck.Value
				}
			}
		})
	})
	if err != nil {
		return Session{}, err
	}
	sess.Token = out.Token
	return sess, nil
}

func (c *Client) post(ctx context.Context, path string, body any, want int, out any, inspect func(*http.Response)) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return decodeAPIError(resp)
	}
	if inspect != nil {
		inspect(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeAPIError(resp *http.Response) error {
	var apiErr APIError
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Message == "" {
		return &APIError{Status: resp.StatusCode, Code: "unexpected_response", Message: http.StatusText(resp.StatusCode)}
	}
	apiErr.Status = resp.StatusCode
	return &apiErr
}

// localError turns a validation failure into the same shape the server
// would return, with the first field problem as the message.
func localError(err error) error {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		return err
	}
	msg := ae.Message
	if len(ae.Fields) > 0 {
		msg = ae.Fields[0].Field + " " + ae.Fields[0].Message
	}
	return &APIError{
		Status:  ae.Kind.Status,
		Code:    ae.Kind.Code,
		Message: msg,
		Details: &apiErrorDetails{Fields: ae.Fields},
	}
}
