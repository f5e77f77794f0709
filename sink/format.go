package sink

import (
	"classroom-live/domain/chat"
	"classroom-live/domain/notification"
	"classroom-live/projection"
	"fmt"

	"github.com/gookit/color"
)

const clock = "15:04"

// ChatFormat highlights the viewer's own messages.
func ChatFormat(viewer string) Format[chat.Message] {
	return func(entry projection.Entry[chat.Message]) string {
		msg := entry.Item
		author := color.FgBlue.Sprint(msg.Sender)
		if msg.IsOwn(viewer) {
			author = color.FgGreen.Sprint("you")
		}
		return fmt.Sprintf("%s %s: %s",
			color.FgDarkGray.Sprint(msg.SentAt.Local().Format(clock)), author, msg.Content)
	}
}

func NotificationFormat(entry projection.Entry[notification.Notification]) string {
	n := entry.Item
	marker := color.FgYellow.Sprint("*")
	if n.Read {
		marker = " "
	}
	return fmt.Sprintf("%s %s %s: %s",
		marker, color.FgDarkGray.Sprint(n.At.Local().Format(clock)), color.FgMagenta.Sprint(n.SenderUsername), n.Content)
}

// Badge is the unread counter line of a notification feed.
func Badge(items []notification.Notification) string {
	unread := notification.Unread(items)
	if unread == 0 {
		return color.FgDarkGray.Sprint("no unread notification")
	}
	return color.New(color.FgYellow, color.OpBold).Sprintf("%d unread", unread)
}
