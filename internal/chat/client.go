package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultHistoryPage  = 1
	defaultHistoryLimit = 200
)

// Client talks to the backend chat REST API. Every response arrives wrapped
// in a {"data": ...} envelope.
type Client struct {
	base  string
	token func() string
	http  *http.Client
}

func NewClient(base string, token func() string) *Client {
	return &Client{
		base:  base,
		token: token,
		http:  &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	return json.Unmarshal(envelope.Data, out)
}

// CreateOrGetRoom returns the room for a customer, creating it server-side
// when none exists yet.
func (c *Client) CreateOrGetRoom(ctx context.Context, customerID string) (*Room, error) {
	var room Room
	err := c.do(ctx, http.MethodPost, "/chat/room-by-expert",
		map[string]string{"customerId": customerID}, &room)
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (c *Client) Rooms(ctx context.Context) ([]Room, error) {
	var rooms []Room
	if err := c.do(ctx, http.MethodGet, "/chat/rooms", nil, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

func (c *Client) RoomByID(ctx context.Context, roomID string) (*Room, error) {
	var room Room
	if err := c.do(ctx, http.MethodGet, "/chat/room/"+url.PathEscape(roomID), nil, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

// History fetches one page of a room's messages; zero page/limit fall back
// to the defaults (page 1, 200 messages).
func (c *Client) History(ctx context.Context, roomID string, page, limit int) ([]Message, error) {
	if page <= 0 {
		page = defaultHistoryPage
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	path := "/chat/room/" + url.PathEscape(roomID) + "/expert/messages?page=" +
		strconv.Itoa(page) + "&limit=" + strconv.Itoa(limit)
	var msgs []Message
	if err := c.do(ctx, http.MethodGet, path, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (c *Client) MarkMessagesRead(ctx context.Context, roomID string) error {
	return c.do(ctx, http.MethodPost, "/chat/room/"+url.PathEscape(roomID)+"/mark-read", nil, nil)
}

func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var out struct {
		UnreadCount int `json:"unreadCount"`
	}
	if err := c.do(ctx, http.MethodGet, "/chat/unread-count", nil, &out); err != nil {
		return 0, err
	}
	return out.UnreadCount, nil
}

func (c *Client) ChattedCustomers(ctx context.Context) ([]Customer, error) {
	var customers []Customer
	if err := c.do(ctx, http.MethodGet, "/chat/customers", nil, &customers); err != nil {
		return nil, err
	}
	return customers, nil
}

func (c *Client) DeleteChat(ctx context.Context, expertID, customerID string) error {
	return c.do(ctx, http.MethodDelete,
		"/chat/expert/"+url.PathEscape(expertID)+"/customer/"+url.PathEscape(customerID), nil, nil)
}

// CustomerIDForRoom resolves a room id to the customer on the other side.
func (c *Client) CustomerIDForRoom(ctx context.Context, roomID string) (string, error) {
	room, err := c.RoomByID(ctx, roomID)
	if err != nil {
		return "", err
	}
	if room.Customer != nil && room.Customer.ID != "" {
		return room.Customer.ID, nil
	}
	if room.CustomerID != "" {
		return room.CustomerID, nil
	}
	return "", fmt.Errorf("room %s has no customer", roomID)
}
