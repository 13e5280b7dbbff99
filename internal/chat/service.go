package chat

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Service orchestrates the customer directory, the REST client and the one
// active room session on behalf of the HTTP surface.
type Service struct {
	log     *zap.Logger
	client  *Client
	dir     *Directory
	session *Session
	ids     Identity
}

func NewService(client *Client, dir *Directory, session *Session, ids Identity, log *zap.Logger) *Service {
	return &Service{log: log, client: client, dir: dir, session: session, ids: ids}
}

func (s *Service) Customers(query string) []Customer {
	return s.dir.Search(query)
}

// SelectCustomer opens (or creates) the room for a customer and enters it.
func (s *Service) SelectCustomer(ctx context.Context, customerID string) (*Room, []Message, error) {
	customer, ok := s.dir.Get(customerID)
	if !ok {
		return nil, nil, fmt.Errorf("unknown customer %s", customerID)
	}
	room, err := s.client.CreateOrGetRoom(ctx, customerID)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := s.session.Enter(ctx, room, &customer)
	if err != nil {
		return nil, nil, err
	}
	// Opening a conversation reads it; best effort, the socket's
	// messagesRead push corrects the counters either way.
	if err := s.client.MarkMessagesRead(ctx, room.ID); err != nil {
		s.log.Debug("mark-read failed", zap.String("room", room.ID), zap.Error(err))
	}
	return room, msgs, nil
}

func (s *Service) Send(ctx context.Context, content string, file *Attachment) (*Message, error) {
	return s.session.Send(ctx, content, file)
}

func (s *Service) Typing(isTyping bool) {
	s.session.Typing(isTyping)
}

func (s *Service) Leave() {
	s.session.Leave()
}

// DeleteChat removes a conversation. The local state is cleared before the
// backend call so the UI never shows a half-deleted chat; a failed delete
// puts the customer back.
func (s *Service) DeleteChat(ctx context.Context, customerID string) error {
	expertID := s.ids.CurrentUserID()
	if expertID == "" {
		return fmt.Errorf("no authenticated expert")
	}
	customer, ok := s.dir.Get(customerID)
	if !ok {
		return fmt.Errorf("unknown customer %s", customerID)
	}
	if room := s.session.Room(); room != nil && room.CustomerID == customerID {
		s.session.Leave()
	}
	s.dir.Remove(customerID)
	if err := s.client.DeleteChat(ctx, expertID, customerID); err != nil {
		s.dir.Put(customer)
		return fmt.Errorf("delete chat: %w", err)
	}
	return nil
}

func (s *Service) SessionView() (room *Room, msgs []Message, typing bool) {
	return s.session.Room(), s.session.Messages(), s.session.CustomerTyping()
}
