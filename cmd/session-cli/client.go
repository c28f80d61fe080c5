package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"resty.dev/v3"

	"jan-server/services/session-api/internal/interfaces/httpserver/responses"
	conversationresponses "jan-server/services/session-api/internal/interfaces/httpserver/responses/conversation"
	"jan-server/services/session-api/internal/utils/httpclients"
)

// apiClient calls the session-api HTTP surface.
type apiClient struct {
	client     *resty.Client
	baseURL    string
	user       string
	token      string
	userHeader string
}

// apiError is a non-2xx answer from the server. Conversation is set when a send failed after the
// degraded reply was stored.
type apiError struct {
	Status       int
	Body         responses.ErrorResponse
	Conversation *conversationresponses.ConversationResponse
}

func (e *apiError) Error() string {
	if e.Body.Message != "" {
		return fmt.Sprintf("server returned %d %s: %s", e.Status, e.Body.Error, e.Body.Message)
	}
	return fmt.Sprintf("server returned %d", e.Status)
}

func newAPIClient(baseURL, user, token, userHeader string, timeout time.Duration, verbose bool) *apiClient {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
	return &apiClient{
		client:     httpclients.NewClient("session-cli", timeout, log),
		baseURL:    strings.TrimRight(baseURL, "/"),
		user:       user,
		token:      token,
		userHeader: userHeader,
	}
}

func (c *apiClient) request(ctx context.Context) *resty.Request {
	req := c.client.R().SetContext(ctx).SetHeader("Accept", "application/json")
	if c.token != "" {
		req.SetAuthToken(c.token)
	} else if c.user != "" {
		req.SetHeader(c.userHeader, c.user)
	}
	return req
}

func (c *apiClient) do(req *resty.Request, method, path string, out any) error {
	var failure conversationresponses.SendMessageErrorResponse
	req.SetError(&failure)
	if out != nil {
		req.SetResult(out)
	}

	resp, err := req.Execute(method, c.baseURL+path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return &apiError{Status: resp.StatusCode(), Body: failure.ErrorResponse, Conversation: failure.Conversation}
	}
	return nil
}

type listOptions struct {
	Page     int
	Limit    int
	Archived bool
	Tag      string
}

func (c *apiClient) List(ctx context.Context, opts listOptions) (*conversationresponses.ConversationListResponse, error) {
	query := map[string]string{}
	if opts.Page > 0 {
		query["page"] = strconv.Itoa(opts.Page)
	}
	if opts.Limit > 0 {
		query["limit"] = strconv.Itoa(opts.Limit)
	}
	if opts.Archived {
		query["archived"] = "true"
	}
	if opts.Tag != "" {
		query["tag"] = opts.Tag
	}

	var out conversationresponses.ConversationListResponse
	req := c.request(ctx).SetQueryParams(query)
	if err := c.do(req, http.MethodGet, "/v1/conversations", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) Create(ctx context.Context, title, model string) (*conversationresponses.ConversationResponse, error) {
	body := map[string]string{}
	if title != "" {
		body["title"] = title
	}
	if model != "" {
		body["model"] = model
	}
	var out conversationresponses.ConversationResponse
	if err := c.do(c.request(ctx).SetBody(body), http.MethodPost, "/v1/conversations", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) Get(ctx context.Context, id string) (*conversationresponses.ConversationResponse, error) {
	var out conversationresponses.ConversationResponse
	if err := c.do(c.request(ctx), http.MethodGet, "/v1/conversations/"+url.PathEscape(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) Send(ctx context.Context, id, message, model string) (*conversationresponses.SendMessageResponse, error) {
	body := map[string]string{"message": message}
	if model != "" {
		body["model"] = model
	}
	var out conversationresponses.SendMessageResponse
	if err := c.do(c.request(ctx).SetBody(body), http.MethodPost, "/v1/conversations/"+url.PathEscape(id)+"/messages", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) Rename(ctx context.Context, id, title string) (*conversationresponses.ConversationResponse, error) {
	var out conversationresponses.ConversationResponse
	req := c.request(ctx).SetBody(map[string]string{"title": title})
	if err := c.do(req, http.MethodPatch, "/v1/conversations/"+url.PathEscape(id)+"/title", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) Archive(ctx context.Context, id string, archived bool) (*conversationresponses.ConversationResponse, error) {
	var out conversationresponses.ConversationResponse
	req := c.request(ctx).SetBody(map[string]bool{"archived": archived})
	if err := c.do(req, http.MethodPatch, "/v1/conversations/"+url.PathEscape(id)+"/archive", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) SetTags(ctx context.Context, id string, tags []string) (*conversationresponses.ConversationResponse, error) {
	if tags == nil {
		tags = []string{}
	}
	var out conversationresponses.ConversationResponse
	req := c.request(ctx).SetBody(map[string][]string{"tags": tags})
	if err := c.do(req, http.MethodPut, "/v1/conversations/"+url.PathEscape(id)+"/tags", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) Delete(ctx context.Context, id string) error {
	return c.do(c.request(ctx), http.MethodDelete, "/v1/conversations/"+url.PathEscape(id), nil)
}
