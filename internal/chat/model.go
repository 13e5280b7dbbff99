package chat

type Participant struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	ProfilePictureURL string `json:"profile_picture_url,omitempty"`
}

type Room struct {
	ID         string       `json:"id"`
	CustomerID string       `json:"customerId"`
	ExpertID   string       `json:"expertId"`
	Customer   *Participant `json:"customer,omitempty"`
	Expert     *Participant `json:"expert,omitempty"`
}

type Message struct {
	ID           string `json:"id"`
	ChatRoomID   string `json:"chatRoomId"`
	SenderID     string `json:"senderId"`
	SenderType   string `json:"senderType"`
	Content      string `json:"content"`
	IsRead       bool   `json:"is_read"`
	Timestamp    string `json:"timestamp"`
	ImageLink    string `json:"imageLink,omitempty"`
	VideoLink    string `json:"videoLink,omitempty"`
	AudioLink    string `json:"audioLink,omitempty"`
	DocumentLink string `json:"documentLink,omitempty"`
}

type Customer struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Email             string `json:"email,omitempty"`
	ProfilePictureURL string `json:"profile_picture_url,omitempty"`
	IsOnline          bool   `json:"is_online"`
	LastSeen          string `json:"last_seen,omitempty"`
}

// Attachment describes a file already uploaded through the backend, ready to
// be referenced by a sendMessage emit.
type Attachment struct {
	FileURL  string `json:"fileUrl"`
	FileType string `json:"fileType"`
	FileName string `json:"fileName,omitempty"`
}

type typingPayload struct {
	ChatRoomID string `json:"chatRoomId"`
	IsTyping   bool   `json:"isTyping"`
	UserID     string `json:"userId"`
}

type statusPayload struct {
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
}
