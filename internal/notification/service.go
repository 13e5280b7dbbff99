package notification

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/piyushyadav-melb/expert-realtime/internal/socket"
)

// Identity resolves the locally authenticated user.
type Identity interface {
	CurrentUserID() string
}

// PopupPublisher receives every accepted notification; the popup queue is
// the only consumer.
type PopupPublisher interface {
	Publish(n Notification)
}

type State int

const (
	StateUninitialized State = iota
	StateBound
	StateTornDown
)

// Service binds the notification event stream to the store. Listener
// registration is the entry action of the Bound state and deregistration its
// exit action, so re-binding to a fresh socket is a clean transition.
type Service struct {
	log    *zap.Logger
	store  *Store
	ids    Identity
	popups PopupPublisher
	now    func() time.Time

	mu    sync.Mutex
	state State
	offs  []func()
}

func NewService(store *Store, ids Identity, popups PopupPublisher, log *zap.Logger) *Service {
	return &Service{
		log:    log,
		store:  store,
		ids:    ids,
		popups: popups,
		now:    time.Now,
	}
}

func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Bind registers the notification listeners on the shared connection.
func (s *Service) Bind(bus socket.Bus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateBound {
		return fmt.Errorf("notification service already bound")
	}
	s.offs = []func(){
		bus.On("messageNotification", s.onMessageNotification),
		bus.On("notification", s.onGeneralNotification),
		bus.On("bookingNotification", s.onBookingNotification),
		bus.On("meetingNotification", s.onMeetingNotification),
		bus.OnConnect(func() { s.store.SetConnected(true) }),
		bus.OnDisconnect(func() { s.store.SetConnected(false) }),
	}
	s.store.SetConnected(bus.Connected())
	s.state = StateBound
	return nil
}

// Teardown removes every listener. The service can be bound again to a new
// socket afterwards.
func (s *Service) Teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, off := range s.offs {
		off()
	}
	s.offs = nil
	s.state = StateTornDown
}

func (s *Service) onMessageNotification(raw json.RawMessage) {
	var p MessageNotificationPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		s.reject("messageNotification", err)
		return
	}
	receivedTotal.WithLabelValues("message").Inc()
	s.accept(NormalizeMessage(p, s.now()))
}

func (s *Service) onGeneralNotification(raw json.RawMessage) {
	var p GeneralNotificationPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		s.reject("notification", err)
		return
	}
	receivedTotal.WithLabelValues("general").Inc()
	n, err := NormalizeGeneral(p, s.now())
	if err != nil {
		s.reject("notification", err)
		return
	}
	s.accept(n)
}

func (s *Service) onBookingNotification(raw json.RawMessage) {
	var p EventNotificationPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		s.reject("bookingNotification", err)
		return
	}
	receivedTotal.WithLabelValues("booking").Inc()
	s.accept(NormalizeBooking(p, s.now()))
}

func (s *Service) onMeetingNotification(raw json.RawMessage) {
	var p EventNotificationPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		s.reject("meetingNotification", err)
		return
	}
	receivedTotal.WithLabelValues("meeting").Inc()
	s.accept(NormalizeMeeting(p, s.now()))
}

func (s *Service) reject(event string, err error) {
	malformedTotal.WithLabelValues(event).Inc()
	s.log.Warn("dropping malformed payload", zap.String("event", event), zap.Error(err))
}

// accept runs the identity filter once, at ingestion; nothing downstream
// re-filters, so a notification that fails here is never shown anywhere.
func (s *Service) accept(n Notification) {
	if !s.allowed(n) {
		filteredTotal.Inc()
		s.log.Debug("notification filtered", zap.String("id", n.ID), zap.String("type", string(n.Type)))
		return
	}
	if !s.store.Add(n) {
		return
	}
	acceptedTotal.WithLabelValues(string(n.Type)).Inc()
	if s.popups != nil {
		s.popups.Publish(n)
	}
}

// allowed applies the addressing rules: MESSAGE goes by recipientId, others
// by userId, and records carrying neither are broadcast.
func (s *Service) allowed(n Notification) bool {
	uid := s.ids.CurrentUserID()
	if n.Type == TypeMessage {
		if rid := stringField(n.Data, "recipientId"); rid != "" {
			return rid == uid && uid != ""
		}
		return true
	}
	if target := stringField(n.Data, "userId"); target != "" {
		return target == uid && uid != ""
	}
	return true
}

func stringField(data map[string]any, key string) string {
	if data == nil {
		return ""
	}
	v, _ := data[key].(string)
	return v
}

// NavigationTarget maps a notification to the route a click should open.
func NavigationTarget(n Notification) string {
	switch n.Type {
	case TypeMessage:
		if n.ChatRoomID != "" {
			return "/chat?room=" + n.ChatRoomID
		}
		if room := stringField(n.Data, "chatRoomId"); room != "" {
			return "/chat?room=" + room
		}
	case TypeBooking:
		return "/bookings"
	case TypeMeeting:
		return "/meetings"
	}
	return ""
}
