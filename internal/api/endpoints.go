package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"taskboard-cli/internal/model"
)

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Token exchanges credentials for a bearer token (POST /token, form-encoded).
// A rejected login comes back as *Error with the server's status.
func (c *Client) Token(ctx context.Context, username, password string) (TokenResponse, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)
	var out TokenResponse
	err := c.do(ctx, request{method: http.MethodPost, path: "/token", form: form, anonymous: true}, &out)
	if err != nil {
		return TokenResponse{}, err
	}
	if strings.TrimSpace(out.AccessToken) == "" {
		return TokenResponse{}, &Error{Status: http.StatusBadGateway, Detail: "server returned no access token"}
	}
	return out, nil
}

// Me fetches the profile for token. It runs before the session begins, so the
// token is passed explicitly and a 401 does not end any session.
func (c *Client) Me(ctx context.Context, token string) (model.User, error) {
	var u model.User
	err := c.do(ctx, request{method: http.MethodGet, path: "/users/me/", token: token}, &u)
	return u, err
}

func (c *Client) ListTasks(ctx context.Context) ([]model.Task, error) {
	var out []model.Task
	if err := c.get(ctx, "/tasks/", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateTask(ctx context.Context, in model.TaskInput) (model.Task, error) {
	var out model.Task
	err := c.post(ctx, "/tasks/", in, &out)
	return out, err
}

func (c *Client) UpdateTask(ctx context.Context, id int64, in model.TaskInput) (model.Task, error) {
	var out model.Task
	err := c.put(ctx, fmt.Sprintf("/tasks/%d", id), in, &out)
	return out, err
}

func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	return c.delete(ctx, fmt.Sprintf("/tasks/%d", id))
}

func (c *Client) ListUsers(ctx context.Context) ([]model.User, error) {
	var out []model.User
	if err := c.get(ctx, "/users/", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateUser(ctx context.Context, in model.UserInput) (model.User, error) {
	var out model.User
	err := c.post(ctx, "/users/", in, &out)
	return out, err
}

func (c *Client) UpdateUser(ctx context.Context, id int64, in model.UserInput) (model.User, error) {
	var out model.User
	err := c.put(ctx, fmt.Sprintf("/users/%d", id), in, &out)
	return out, err
}

func (c *Client) DeleteUser(ctx context.Context, id int64) error {
	return c.delete(ctx, fmt.Sprintf("/users/%d", id))
}

func (c *Client) ListNotifications(ctx context.Context) ([]model.Notification, error) {
	var out []model.Notification
	if err := c.get(ctx, "/notifications/", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var out struct {
		UnreadCount int `json:"unread_count"`
	}
	if err := c.get(ctx, "/notifications/unread-count", &out); err != nil {
		return 0, err
	}
	return out.UnreadCount, nil
}

func (c *Client) MarkNotificationRead(ctx context.Context, id int64) error {
	return c.put(ctx, fmt.Sprintf("/notifications/%d/read", id), nil, nil)
}

func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	return c.put(ctx, "/notifications/read-all", nil, nil)
}
