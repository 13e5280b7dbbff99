package notification

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const maxBodyRunes = 50

// truncateBody cuts display bodies at exactly 50 characters and appends an
// ellipsis; shorter text passes through unchanged.
func truncateBody(s string) string {
	r := []rune(s)
	if len(r) <= maxBodyRunes {
		return s
	}
	return string(r[:maxBodyRunes]) + "..."
}

func randSuffix() string {
	return uuid.NewString()[:8]
}

// NormalizeMessage maps a messageNotification payload into the canonical form.
func NormalizeMessage(p MessageNotificationPayload, receivedAt time.Time) Notification {
	ts := p.Message.Timestamp
	if ts == "" {
		ts = receivedAt.UTC().Format(time.RFC3339)
	}
	return Notification{
		ID:    fmt.Sprintf("msg_%s_%d", p.MessageID, receivedAt.UnixMilli()),
		Type:  TypeMessage,
		Title: "New message from " + p.Sender.Name,
		Body:  truncateBody(p.Message.Content),
		Data: map[string]any{
			"chatRoomId":           p.ChatRoomID,
			"messageId":            p.MessageID,
			"senderId":             p.Sender.ID,
			"senderType":           p.Sender.Type,
			"senderName":           p.Sender.Name,
			"senderProfilePicture": p.Sender.ProfilePicture,
			"hasFile":              p.Message.HasFile,
			"fileType":             p.Message.FileType,
			"recipientId":          p.RecipientID,
		},
		Timestamp:  ts,
		ChatRoomID: p.ChatRoomID,
		MessageID:  p.MessageID,
		SenderID:   p.Sender.ID,
		SenderType: p.Sender.Type,
	}
}

// NormalizeGeneral maps a notification payload. A payload without a type is
// undeliverable and rejected; unrecognized types pass through as-is so newer
// backend kinds still render with a generic icon.
func NormalizeGeneral(p GeneralNotificationPayload, receivedAt time.Time) (Notification, error) {
	if p.Type == "" {
		return Notification{}, fmt.Errorf("notification payload without type")
	}
	ts := p.Timestamp
	if ts == "" {
		ts = receivedAt.UTC().Format(time.RFC3339)
	}
	data := map[string]any{}
	for k, v := range p.Data {
		data[k] = v
	}
	if p.UserID != "" {
		data["userId"] = p.UserID
	}
	return Notification{
		ID:        fmt.Sprintf("general_%d_%s", receivedAt.UnixMilli(), randSuffix()),
		Type:      p.Type,
		Title:     p.Title,
		Body:      p.Body,
		Data:      data,
		Timestamp: ts,
	}, nil
}

// NormalizeBooking maps a bookingNotification payload, defaulting display
// strings and timestamp when absent.
func NormalizeBooking(p EventNotificationPayload, receivedAt time.Time) Notification {
	return normalizeEvent(p, receivedAt, TypeBooking, "booking", p.BookingID,
		"New Booking", "You have a new booking")
}

// NormalizeMeeting maps a meetingNotification payload.
func NormalizeMeeting(p EventNotificationPayload, receivedAt time.Time) Notification {
	return normalizeEvent(p, receivedAt, TypeMeeting, "meeting", p.MeetingID,
		"Meeting Update", "You have a meeting update")
}

func normalizeEvent(p EventNotificationPayload, receivedAt time.Time, typ Type, prefix, sourceID, defTitle, defBody string) Notification {
	if sourceID == "" {
		sourceID = fmt.Sprintf("%d", receivedAt.UnixMilli())
	}
	title := p.Title
	if title == "" {
		title = defTitle
	}
	body := p.Body
	if body == "" {
		body = defBody
	}
	ts := p.Timestamp
	if ts == "" {
		ts = receivedAt.UTC().Format(time.RFC3339)
	}
	data := map[string]any{}
	for k, v := range p.Data {
		data[k] = v
	}
	if p.UserID != "" {
		data["userId"] = p.UserID
	}
	return Notification{
		ID:        fmt.Sprintf("%s_%s_%s", prefix, sourceID, randSuffix()),
		Type:      typ,
		Title:     title,
		Body:      body,
		Data:      data,
		Timestamp: ts,
	}
}
