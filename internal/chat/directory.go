package chat

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/piyushyadav-melb/expert-realtime/internal/socket"
)

// Directory holds the chatted-customer list and keeps presence current from
// userStatusChanged pushes.
type Directory struct {
	log *zap.Logger

	mu        sync.Mutex
	customers []Customer
	offs      []func()
	now       func() time.Time
}

func NewDirectory(log *zap.Logger) *Directory {
	return &Directory{log: log, now: time.Now}
}

// Load replaces the directory with the backend's chatted-customer list.
func (d *Directory) Load(ctx context.Context, client *Client) error {
	customers, err := client.ChattedCustomers(ctx)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.customers = customers
	d.mu.Unlock()
	return nil
}

// Bind subscribes to presence pushes on the shared connection.
func (d *Directory) Bind(bus socket.Bus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.offs = append(d.offs, bus.On("userStatusChanged", func(raw json.RawMessage) {
		var p statusPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			d.log.Warn("userStatusChanged: bad payload", zap.Error(err))
			return
		}
		d.SetStatus(p.UserID, p.IsOnline)
	}))
}

func (d *Directory) Teardown() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, off := range d.offs {
		off()
	}
	d.offs = nil
}

// SetStatus flips a customer's presence; going offline stamps last-seen.
func (d *Directory) SetStatus(userID string, online bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.customers {
		if d.customers[i].ID != userID {
			continue
		}
		d.customers[i].IsOnline = online
		if !online {
			d.customers[i].LastSeen = d.now().UTC().Format(time.RFC3339)
		}
		return
	}
}

func (d *Directory) List() []Customer {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Customer, len(d.customers))
	copy(out, d.customers)
	return out
}

// Search filters by case-insensitive name or email substring.
func (d *Directory) Search(query string) []Customer {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return d.List()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []Customer
	for _, c := range d.customers {
		if strings.Contains(strings.ToLower(c.Name), q) ||
			strings.Contains(strings.ToLower(c.Email), q) {
			out = append(out, c)
		}
	}
	return out
}

func (d *Directory) Get(id string) (Customer, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.customers {
		if c.ID == id {
			return c, true
		}
	}
	return Customer{}, false
}

// Put re-inserts a customer, used to roll back an optimistic removal.
func (d *Directory) Put(c Customer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.customers {
		if d.customers[i].ID == c.ID {
			d.customers[i] = c
			return
		}
	}
	d.customers = append(d.customers, c)
}

func (d *Directory) Remove(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.customers {
		if d.customers[i].ID == id {
			d.customers = append(d.customers[:i], d.customers[i+1:]...)
			return
		}
	}
}

// IDs is the known-customer fallback used when a room lookup fails.
func (d *Directory) IDs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]string, len(d.customers))
	for i, c := range d.customers {
		ids[i] = c.ID
	}
	return ids
}
