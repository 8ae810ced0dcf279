// Package admin — клиент HTTP management API RabbitMQ: создание
// виртуальных хостов и список очередей.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrUnexpectedStatus — management API ответил неожиданным кодом.
var ErrUnexpectedStatus = errors.New("unexpected management api status")

// Queue — очередь из ответа GET /api/queues.
type Queue struct {
	Name     string `json:"name"`
	VHost    string `json:"vhost"`
	Durable  bool   `json:"durable"`
	Messages int    `json:"messages"`
}

// Client — HTTP-клиент management API.
type Client struct {
	baseURL    string
	user       string
	password   string
	httpClient *http.Client
}

// NewClient создаёт клиент. baseURL — например, http://localhost:15672.
func NewClient(baseURL, user, password string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		user:     user,
		password: password,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CreateVHost создаёт виртуальный хост.
// Возвращает true, если хост создан, и false, если он уже существовал.
func (c *Client) CreateVHost(ctx context.Context, vhost string) (bool, error) {
	if vhost == "" {
		return false, fmt.Errorf("vhost name is empty")
	}

	resp, err := c.do(ctx, http.MethodPut, "/api/vhosts/"+url.PathEscape(vhost))
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		return true, nil
	case http.StatusNoContent:
		return false, nil
	default:
		return false, statusError(resp)
	}
}

// ListQueues возвращает очереди виртуального хоста.
func (c *Client) ListQueues(ctx context.Context, vhost string) ([]Queue, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/queues/"+url.PathEscape(vhost))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var all []Queue
	if err := json.NewDecoder(resp.Body).Decode(&all); err != nil {
		return nil, fmt.Errorf("failed to decode queues: %w", err)
	}

	// API может вернуть очереди других хостов, если vhost пустой
	queues := make([]Queue, 0, len(all))
	for _, q := range all {
		if vhost == "" || q.VHost == vhost {
			queues = append(queues, q)
		}
	}
	return queues, nil
}

// QueueNames возвращает имена очередей виртуального хоста.
func (c *Client) QueueNames(ctx context.Context, vhost string) ([]string, error) {
	queues, err := c.ListQueues(ctx, vhost)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(queues))
	for i, q := range queues {
		names[i] = q.Name
	}
	return names, nil
}

func (c *Client) do(ctx context.Context, method, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.user, c.password)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return fmt.Errorf("%w: HTTP %d: %s", ErrUnexpectedStatus, resp.StatusCode, msg)
}
