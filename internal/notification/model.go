package notification

type Type string

const (
	TypeMessage Type = "MESSAGE"
	TypeBooking Type = "BOOKING"
	TypeMeeting Type = "MEETING"
	TypeSystem  Type = "SYSTEM"
)

// Notification is the canonical, in-memory record every server push is
// normalized into. ID is the sole de-duplication key and never reused.
type Notification struct {
	ID        string         `json:"id"`
	Type      Type           `json:"type"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp string         `json:"timestamp"`
	Read      bool           `json:"read"`

	// Mirrors of data fields for quick access.
	ChatRoomID string `json:"chatRoomId,omitempty"`
	MessageID  string `json:"messageId,omitempty"`
	SenderID   string `json:"senderId,omitempty"`
	SenderType string `json:"senderType,omitempty"`
}

type MessageNotificationPayload struct {
	Type       string `json:"type"`
	ChatRoomID string `json:"chatRoomId"`
	MessageID  string `json:"messageId"`
	Sender     struct {
		ID             string `json:"id"`
		Name           string `json:"name"`
		ProfilePicture string `json:"profilePicture,omitempty"`
		Type           string `json:"type"`
	} `json:"sender"`
	Message struct {
		Content   string `json:"content"`
		Timestamp string `json:"timestamp"`
		HasFile   bool   `json:"hasFile"`
		FileType  string `json:"fileType,omitempty"`
	} `json:"message"`
	RecipientID   string `json:"recipientId"`
	RecipientType string `json:"recipientType"`
}

type GeneralNotificationPayload struct {
	UserID    string         `json:"userId"`
	Type      Type           `json:"type"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp string         `json:"timestamp"`
}

// EventNotificationPayload is the loose shape shared by booking and meeting
// pushes; every field may be absent.
type EventNotificationPayload struct {
	BookingID string         `json:"bookingId,omitempty"`
	MeetingID string         `json:"meetingId,omitempty"`
	UserID    string         `json:"userId,omitempty"`
	Title     string         `json:"title,omitempty"`
	Body      string         `json:"body,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
}
