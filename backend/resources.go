package backend

import (
	"context"
	"errors"
	"net/http"

	"github.com/faustyna77/INF-frontend-next/domain"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"passwordHash"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var resp loginResponse
	if err := c.do(ctx, "login", http.MethodPost, "/auth/login", "", loginRequest{Email: email, Password: password}, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", errors.New("login: backend returned no token")
	}
	return resp.Token, nil
}

// Me returns the user the token belongs to.
func (c *Client) Me(ctx context.Context, token string) (domain.User, error) {
	var u domain.User
	err := c.do(ctx, "who am i", http.MethodGet, "/users/me", token, nil, &u)
	return u, err
}

func (c *Client) ListUsers(ctx context.Context, token string) ([]domain.User, error) {
	var users []domain.User
	err := c.do(ctx, "list users", http.MethodGet, "/users", token, nil, &users)
	return users, err
}

func (c *Client) CreateUser(ctx context.Context, token string, in domain.UserInput) (domain.User, error) {
	var u domain.User
	err := c.do(ctx, "create user", http.MethodPost, "/users", token, in, &u)
	return u, err
}

func (c *Client) UpdateUser(ctx context.Context, token string, id int64, in domain.UserInput) (domain.User, error) {
	var u domain.User
	err := c.do(ctx, "update user", http.MethodPut, idPath("/users", id), token, in, &u)
	return u, err
}

func (c *Client) DeleteUser(ctx context.Context, token string, id int64) error {
	return c.do(ctx, "delete user", http.MethodDelete, idPath("/users", id), token, nil, nil)
}

func (c *Client) ListOrders(ctx context.Context, token string) ([]domain.Order, error) {
	var orders []domain.Order
	err := c.do(ctx, "list orders", http.MethodGet, "/orders", token, nil, &orders)
	return orders, err
}

func (c *Client) GetOrder(ctx context.Context, token string, id int64) (domain.Order, error) {
	var o domain.Order
	err := c.do(ctx, "get order", http.MethodGet, idPath("/orders", id), token, nil, &o)
	return o, err
}

func (c *Client) CreateOrder(ctx context.Context, token string, in domain.OrderInput) (domain.Order, error) {
	var o domain.Order
	err := c.do(ctx, "create order", http.MethodPost, "/orders", token, in, &o)
	return o, err
}

func (c *Client) UpdateOrder(ctx context.Context, token string, id int64, in domain.OrderInput) (domain.Order, error) {
	var o domain.Order
	err := c.do(ctx, "update order", http.MethodPut, idPath("/orders", id), token, in, &o)
	return o, err
}

func (c *Client) DeleteOrder(ctx context.Context, token string, id int64) error {
	return c.do(ctx, "delete order", http.MethodDelete, idPath("/orders", id), token, nil, nil)
}

// CreateClient registers the person commissioning an order.
func (c *Client) CreateClient(ctx context.Context, token string, in domain.Client) (domain.Client, error) {
	var out domain.Client
	err := c.do(ctx, "create client", http.MethodPost, "/clients", token, in, &out)
	return out, err
}

func (c *Client) ListTasks(ctx context.Context, token string) ([]domain.Task, error) {
	var tasks []domain.Task
	err := c.do(ctx, "list tasks", http.MethodGet, "/tasks", token, nil, &tasks)
	return tasks, err
}

// ListAssignedTasks returns the tasks assigned to the token's user.
func (c *Client) ListAssignedTasks(ctx context.Context, token string) ([]domain.Task, error) {
	var tasks []domain.Task
	err := c.do(ctx, "list assigned tasks", http.MethodGet, "/tasks/assigned", token, nil, &tasks)
	return tasks, err
}

func (c *Client) GetTask(ctx context.Context, token string, id int64) (domain.Task, error) {
	var t domain.Task
	err := c.do(ctx, "get task", http.MethodGet, idPath("/tasks", id), token, nil, &t)
	return t, err
}

func (c *Client) CreateTask(ctx context.Context, token string, in domain.TaskInput) (domain.Task, error) {
	var t domain.Task
	err := c.do(ctx, "create task", http.MethodPost, "/tasks", token, in, &t)
	return t, err
}

func (c *Client) UpdateTask(ctx context.Context, token string, id int64, in domain.TaskInput) (domain.Task, error) {
	var t domain.Task
	err := c.do(ctx, "update task", http.MethodPut, idPath("/tasks", id), token, in, &t)
	return t, err
}

// UpdateTaskStatus sends only the new status, as an assignee may not
// change anything else.
func (c *Client) UpdateTaskStatus(ctx context.Context, token string, id int64, status domain.TaskStatus) (domain.Task, error) {
	var t domain.Task
	body := map[string]string{"status": string(status)}
	err := c.do(ctx, "update task status", http.MethodPut, idPath("/tasks", id), token, body, &t)
	return t, err
}

func (c *Client) DeleteTask(ctx context.Context, token string, id int64) error {
	return c.do(ctx, "delete task", http.MethodDelete, idPath("/tasks", id), token, nil, nil)
}
