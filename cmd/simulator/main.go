// Simulator is a stand-in backend for local development: it serves the chat
// REST endpoints and the event socket, answers acks, and pushes randomized
// notification and chat traffic at the connected agent.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	AckID int64           `json:"ackId,omitempty"`
}

type customer struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Email             string `json:"email,omitempty"`
	ProfilePictureURL string `json:"profile_picture_url,omitempty"`
	IsOnline          bool   `json:"is_online"`
	LastSeen          string `json:"last_seen,omitempty"`
}

type room struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customerId"`
	ExpertID   string    `json:"expertId"`
	Customer   *customer `json:"customer,omitempty"`
}

type message struct {
	ID         string `json:"id"`
	ChatRoomID string `json:"chatRoomId"`
	SenderID   string `json:"senderId"`
	SenderType string `json:"senderType"`
	Content    string `json:"content"`
	IsRead     bool   `json:"is_read"`
	Timestamp  string `json:"timestamp"`
}

type simulator struct {
	expertID string

	mu        sync.Mutex
	customers []customer
	rooms     map[string]*room // keyed by room id
	conns     map[*websocket.Conn]*sync.Mutex
}

func newSimulator(expertID string) *simulator {
	s := &simulator{
		expertID: expertID,
		rooms:    map[string]*room{},
		conns:    map[*websocket.Conn]*sync.Mutex{},
	}
	for i := 0; i < 5; i++ {
		c := customer{
			ID:       uuid.NewString(),
			Name:     gofakeit.Name(),
			Email:    gofakeit.Email(),
			IsOnline: gofakeit.Bool(),
		}
		s.customers = append(s.customers, c)
		r := &room{ID: uuid.NewString(), CustomerID: c.ID, ExpertID: expertID}
		cc := c
		r.Customer = &cc
		s.rooms[r.ID] = r
	}
	return s
}

func writeData(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"data": v})
}

// roomFor and history expect s.mu to be held.
func (s *simulator) roomFor(customerID string) *room {
	for _, r := range s.rooms {
		if r.CustomerID == customerID {
			return r
		}
	}
	return nil
}

func (s *simulator) history(roomID string, n int) []message {
	r := s.rooms[roomID]
	if r == nil {
		return nil
	}
	msgs := make([]message, 0, n)
	ts := time.Now().Add(-time.Duration(n) * time.Minute)
	for i := 0; i < n; i++ {
		sender, stype := r.CustomerID, "CUSTOMER"
		if i%3 == 0 {
			sender, stype = s.expertID, "EXPERT"
		}
		msgs = append(msgs, message{
			ID:         uuid.NewString(),
			ChatRoomID: roomID,
			SenderID:   sender,
			SenderType: stype,
			Content:    gofakeit.Sentence(8),
			IsRead:     true,
			Timestamp:  ts.Add(time.Duration(i) * time.Minute).UTC().Format(time.RFC3339),
		})
	}
	return msgs
}

// push sends an event to every connected socket.
func (s *simulator) push(event string, v any) {
	data, _ := json.Marshal(v)
	s.mu.Lock()
	conns := make(map[*websocket.Conn]*sync.Mutex, len(s.conns))
	for c, l := range s.conns {
		conns[c] = l
	}
	s.mu.Unlock()
	for c, l := range conns {
		s.send(c, l, envelope{Event: event, Data: data})
	}
}

func (s *simulator) send(c *websocket.Conn, l *sync.Mutex, env envelope) {
	b, _ := json.Marshal(env)
	l.Lock()
	err := c.WriteMessage(websocket.TextMessage, b)
	l.Unlock()
	if err != nil {
		s.drop(c)
	}
}

func (s *simulator) drop(c *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	_ = c.Close()
}

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

func (s *simulator) handleWS(w http.ResponseWriter, r *http.Request) {
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("upgrade: %v", err)
		return
	}
	lock := &sync.Mutex{}
	s.mu.Lock()
	s.conns[c] = lock
	s.mu.Unlock()
	log.Printf("socket connected from %s", r.RemoteAddr)

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			s.drop(c)
			log.Printf("socket closed: %v", err)
			return
		}
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		s.handleEvent(c, lock, env)
	}
}

func (s *simulator) handleEvent(c *websocket.Conn, lock *sync.Mutex, env envelope) {
	ack := func(v any) {
		if env.AckID == 0 {
			return
		}
		data, _ := json.Marshal(v)
		s.send(c, lock, envelope{Event: "ack", AckID: env.AckID, Data: data})
	}

	switch env.Event {
	case "joinChat":
		ack(map[string]string{"status": "joined"})
	case "leaveChat":
		// fire-and-forget
	case "sendMessage":
		var p struct {
			ChatRoomID string `json:"chatRoomId"`
			SenderID   string `json:"senderId"`
			SenderType string `json:"senderType"`
			Content    string `json:"content"`
		}
		if err := json.Unmarshal(env.Data, &p); err != nil {
			ack(map[string]string{"error": "bad payload"})
			return
		}
		msg := message{
			ID:         uuid.NewString(),
			ChatRoomID: p.ChatRoomID,
			SenderID:   p.SenderID,
			SenderType: p.SenderType,
			Content:    p.Content,
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
		}
		ack(msg)
	case "typing":
		var p struct {
			ChatRoomID string `json:"chatRoomId"`
			IsTyping   bool   `json:"isTyping"`
		}
		_ = json.Unmarshal(env.Data, &p)
		log.Printf("typing in %s: %v", p.ChatRoomID, p.IsTyping)
	case "getUnreadCount":
		total := rand.Intn(20)
		s.push("unreadCountResponse", map[string]any{
			"userId": s.expertID, "userType": "EXPERT", "unreadCount": total,
		})
	case "getAllChatUnreadCounts":
		s.mu.Lock()
		counts := make([]map[string]any, 0, len(s.rooms))
		for _, r := range s.rooms {
			counts = append(counts, map[string]any{
				"chatRoomId":  r.ID,
				"unreadCount": rand.Intn(6),
				"otherUser":   map[string]any{"id": r.CustomerID},
			})
		}
		s.mu.Unlock()
		s.push("allChatUnreadCountsResponse", map[string]any{
			"userId": s.expertID, "userType": "EXPERT", "chatUnreadCounts": counts,
		})
	}
}

// chatter keeps a trickle of random events flowing.
func (s *simulator) chatter() {
	tick := time.NewTicker(5 * time.Second)
	defer tick.Stop()
	for range tick.C {
		s.mu.Lock()
		if len(s.conns) == 0 || len(s.customers) == 0 {
			s.mu.Unlock()
			continue
		}
		cust := s.customers[rand.Intn(len(s.customers))]
		r := s.roomFor(cust.ID)
		s.mu.Unlock()
		if r == nil {
			continue
		}

		switch rand.Intn(6) {
		case 0:
			s.push("messageNotification", map[string]any{
				"type":       "MESSAGE",
				"chatRoomId": r.ID,
				"messageId":  uuid.NewString(),
				"sender":     map[string]any{"id": cust.ID, "name": cust.Name, "type": "CUSTOMER"},
				"message": map[string]any{
					"content":   gofakeit.Sentence(12),
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				},
				"recipientId":   s.expertID,
				"recipientType": "EXPERT",
			})
		case 1:
			s.push("notification", map[string]any{
				"userId": s.expertID,
				"type":   "SYSTEM",
				"title":  "System notice",
				"body":   gofakeit.Sentence(10),
			})
		case 2:
			s.push("bookingNotification", map[string]any{
				"bookingId": uuid.NewString(),
				"userId":    s.expertID,
				"body":      fmt.Sprintf("%s booked a session", cust.Name),
			})
		case 3:
			s.push("meetingNotification", map[string]any{
				"meetingId": uuid.NewString(),
				"userId":    s.expertID,
				"body":      fmt.Sprintf("Meeting with %s starts soon", cust.Name),
			})
		case 4:
			s.push("newMessage", message{
				ID:         uuid.NewString(),
				ChatRoomID: r.ID,
				SenderID:   cust.ID,
				SenderType: "CUSTOMER",
				Content:    gofakeit.Sentence(10),
				Timestamp:  time.Now().UTC().Format(time.RFC3339),
			})
			s.push("chatUnreadCountUpdated", map[string]any{
				"chatRoomId": r.ID, "userId": s.expertID, "userType": "EXPERT",
				"unreadCount": rand.Intn(8) + 1,
			})
		case 5:
			online := gofakeit.Bool()
			s.push("userStatusChanged", map[string]any{"userId": cust.ID, "isOnline": online})
		}
	}
}

func devToken(expertID string) string {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId": expertID,
		"sub":    expertID,
		"exp":    time.Now().Add(24 * time.Hour).Unix(),
	}).SignedString([]byte("dev-secret"))
	if err != nil {
		log.Fatalf("sign dev token: %v", err)
	}
	return tok
}

func main() {
	gofakeit.Seed(time.Now().UnixNano())

	expertID := os.Getenv("EXPERT_ID")
	if expertID == "" {
		expertID = "expert-" + uuid.NewString()[:8]
	}
	s := newSimulator(expertID)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)

	mux.HandleFunc("GET /token", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, map[string]string{"token": devToken(expertID), "expertId": expertID})
	})
	mux.HandleFunc("GET /chat/customers", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		writeData(w, s.customers)
	})
	mux.HandleFunc("POST /chat/room-by-expert", func(w http.ResponseWriter, r *http.Request) {
		var p struct {
			CustomerID string `json:"customerId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		rm := s.roomFor(p.CustomerID)
		if rm == nil {
			http.Error(w, "unknown customer", http.StatusNotFound)
			return
		}
		writeData(w, rm)
	})
	mux.HandleFunc("GET /chat/rooms", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		rooms := make([]*room, 0, len(s.rooms))
		for _, rm := range s.rooms {
			rooms = append(rooms, rm)
		}
		writeData(w, rooms)
	})
	mux.HandleFunc("GET /chat/room/{id}", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		rm := s.rooms[r.PathValue("id")]
		if rm == nil {
			http.Error(w, "unknown room", http.StatusNotFound)
			return
		}
		writeData(w, rm)
	})
	mux.HandleFunc("GET /chat/room/{id}/expert/messages", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		writeData(w, s.history(r.PathValue("id"), 20))
	})
	mux.HandleFunc("POST /chat/room/{id}/mark-read", func(w http.ResponseWriter, r *http.Request) {
		roomID := r.PathValue("id")
		go s.push("messagesRead", map[string]string{"chatRoomId": roomID, "readBy": expertID})
		writeData(w, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /chat/unread-count", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, map[string]int{"unreadCount": rand.Intn(20)})
	})
	mux.HandleFunc("DELETE /chat/expert/{expert_id}/customer/{customer_id}", func(w http.ResponseWriter, r *http.Request) {
		customerID := r.PathValue("customer_id")
		s.mu.Lock()
		for i := range s.customers {
			if s.customers[i].ID == customerID {
				s.customers = append(s.customers[:i], s.customers[i+1:]...)
				break
			}
		}
		for id, rm := range s.rooms {
			if rm.CustomerID == customerID {
				delete(s.rooms, id)
			}
		}
		s.mu.Unlock()
		writeData(w, map[string]string{"status": "deleted"})
	})

	go s.chatter()

	addr := os.Getenv("SIM_PORT")
	if addr == "" {
		addr = ":7000"
	}
	if !strings.HasPrefix(addr, ":") {
		addr = ":" + addr
	}
	log.Printf("simulator listening on %s (expert %s)", addr, expertID)
	log.Printf("dev token: curl localhost%s/token", addr)
	log.Fatal(http.ListenAndServe(addr, mux))
}
