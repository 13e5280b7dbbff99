package notification

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestTruncateBody(t *testing.T) {
	short := strings.Repeat("a", 40)
	assert.Equal(t, short, truncateBody(short))

	exact := strings.Repeat("b", 50)
	assert.Equal(t, exact, truncateBody(exact))

	long := strings.Repeat("c", 80)
	got := truncateBody(long)
	assert.Equal(t, strings.Repeat("c", 50)+"...", got)
	assert.Equal(t, 53, len([]rune(got)))

	// Rune-based, not byte-based.
	wide := strings.Repeat("ж", 60)
	assert.Equal(t, strings.Repeat("ж", 50)+"...", truncateBody(wide))
}

func TestNormalizeMessage(t *testing.T) {
	var p MessageNotificationPayload
	p.ChatRoomID = "room-1"
	p.MessageID = "m-9"
	p.Sender.ID = "cust-1"
	p.Sender.Name = "Dana"
	p.Sender.Type = "CUSTOMER"
	p.Message.Content = strings.Repeat("x", 60)
	p.RecipientID = "expert-1"

	n := NormalizeMessage(p, fixedNow)

	assert.Equal(t, "msg_m-9_1748779200000", n.ID)
	assert.Equal(t, TypeMessage, n.Type)
	assert.Equal(t, "New message from Dana", n.Title)
	assert.Equal(t, strings.Repeat("x", 50)+"...", n.Body)
	assert.Equal(t, "room-1", n.ChatRoomID)
	assert.Equal(t, "m-9", n.MessageID)
	assert.Equal(t, "expert-1", n.Data["recipientId"])
	// Timestamp absent in payload falls back to receipt time.
	assert.Equal(t, "2025-06-01T12:00:00Z", n.Timestamp)
	assert.False(t, n.Read)
}

func TestNormalizeGeneral(t *testing.T) {
	n, err := NormalizeGeneral(GeneralNotificationPayload{
		UserID: "expert-1",
		Type:   TypeSystem,
		Title:  "Maintenance",
		Body:   "Back at noon",
	}, fixedNow)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(n.ID, "general_1748779200000_"))
	assert.Len(t, n.ID, len("general_1748779200000_")+8)
	assert.Equal(t, TypeSystem, n.Type)
	assert.Equal(t, "expert-1", n.Data["userId"])

	_, err = NormalizeGeneral(GeneralNotificationPayload{Title: "no type"}, fixedNow)
	assert.Error(t, err)
}

func TestNormalizeBookingDefaults(t *testing.T) {
	n := NormalizeBooking(EventNotificationPayload{BookingID: "bk-1"}, fixedNow)

	assert.True(t, strings.HasPrefix(n.ID, "booking_bk-1_"))
	assert.Equal(t, TypeBooking, n.Type)
	assert.Equal(t, "New Booking", n.Title)
	assert.Equal(t, "You have a new booking", n.Body)
	assert.Equal(t, "2025-06-01T12:00:00Z", n.Timestamp)
}

func TestNormalizeMeetingWithoutSourceID(t *testing.T) {
	n := NormalizeMeeting(EventNotificationPayload{Title: "Reminder"}, fixedNow)

	// No meeting id: the receipt time stands in.
	assert.True(t, strings.HasPrefix(n.ID, "meeting_1748779200000_"))
	assert.Equal(t, TypeMeeting, n.Type)
	assert.Equal(t, "Reminder", n.Title)
	assert.Equal(t, "You have a meeting update", n.Body)
}

func TestNormalizeIDsDiffer(t *testing.T) {
	a := NormalizeBooking(EventNotificationPayload{}, fixedNow)
	b := NormalizeBooking(EventNotificationPayload{}, fixedNow)
	assert.NotEqual(t, a.ID, b.ID)
}
