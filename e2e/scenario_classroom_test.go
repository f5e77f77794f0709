package e2e

import (
	"classroom-live/domain/chat"
	"classroom-live/domain/notification"
	"classroom-live/infrastructure/live"
	"classroom-live/services"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

const (
	waitFor = 10 * time.Second
	tick    = 50 * time.Millisecond
)

type testClassroomSuite struct {
	BaseSuite
}

func TestClassroomSuite(t *testing.T) {
	suite.Run(t, &testClassroomSuite{})
}

func (s *testClassroomSuite) TestConversationFlow() {
	alice, aliceToken, aliceAPI := s.Account("alice")
	bob, _, bobAPI := s.Account("bob")
	conversation := "e2e" + uuid.NewString()[:8]

	dialer, err := live.NewDialer(s.Log, s.Config.ChatBrokerURL(), aliceToken, 0)
	s.Require().NoError(err)
	svc := services.NewConversationService(s.Log, aliceAPI, dialer, alice, 5, 200*time.Millisecond)
	defer svc.Close()

	s.Run("Step 1: History is loaded newest page first", func() {
		s.Step("Seed the conversation with seven messages", func(ctx context.Context) {
			for i := 0; i < 7; i++ {
				s.Require().NoError(bobAPI.SendMessage(ctx, chat.OutgoingMessage{
					ConversationID: conversation,
					Sender:         bob,
					Content:        "seed " + string(rune('a'+i)),
					SentAt:         time.Now().UTC().Add(time.Duration(i) * time.Millisecond),
				}))
			}
		})
		s.Step("Open the conversation", func(ctx context.Context) {
			// The session outlives the step
			session := svc.Open(context.Background(), conversation)
			session.WaitHistory()
			items := svc.Timeline().Items()
			s.Require().Len(items, 5)
			s.Require().Equal("seed g", items[4].Content)

			dispatched, err := session.LoadMoreHistory()
			s.Require().True(dispatched)
			s.Require().NoError(err)
			s.Require().Len(svc.Timeline().Items(), 7)
			s.Require().False(svc.Timeline().Snapshot().HasMoreHistory)
		})
	})

	s.Run("Step 2: Live messages and echoes", func() {
		s.Step("Bob writes while alice is connected", func(ctx context.Context) {
			// The live subscription is established asynchronously
			time.Sleep(500 * time.Millisecond)
			s.Require().NoError(bobAPI.SendMessage(ctx, chat.OutgoingMessage{
				ConversationID: conversation, Sender: bob, Content: "are you there?", SentAt: time.Now().UTC(),
			}))
			s.Require().Eventually(func() bool { return len(svc.Timeline().Items()) == 8 }, waitFor, tick)
		})
		s.Step("Alice answers and her pending entry is confirmed", func(ctx context.Context) {
			_, err := svc.Send(ctx, "yes!")
			s.Require().NoError(err)
			s.Require().Eventually(func() bool {
				return len(svc.Timeline().Items()) == 9 && len(svc.Timeline().PendingItems()) == 0
			}, waitFor, tick)
			last := svc.Timeline().Items()[8]
			s.Require().True(last.IsOwn(alice))
			s.Require().NotEmpty(last.ID)
		})
	})

	s.Run("Step 3: Switching conversation starts from scratch", func() {
		s.Step("Open an empty conversation", func(context.Context) {
			session := svc.Open(context.Background(), conversation+"-other")
			session.WaitHistory()
			s.Require().Empty(svc.Timeline().Items())
			s.Require().False(svc.Timeline().Snapshot().HasMoreHistory)
		})
	})
}

func (s *testClassroomSuite) TestNotificationFlow() {
	student, studentToken, studentAPI := s.Account("student")
	_, _, teacherAPI := s.Account("teacher")

	dialer, err := live.NewDialer(s.Log, s.Config.NotificationBrokerURL(), studentToken, 0)
	s.Require().NoError(err)
	svc := services.NewNotificationService(s.Log, studentAPI, dialer, student, 10, 200*time.Millisecond)
	defer svc.Close()

	s.Step("Start an empty feed", func(context.Context) {
		svc.Start(context.Background()).WaitHistory()
		s.Require().Zero(svc.Unread())
	})
	s.Step("The teacher notifies the student", func(ctx context.Context) {
		time.Sleep(500 * time.Millisecond)
		_, err := teacherAPI.Notify(ctx, notification.Notification{Username: student, Content: "quiz at 10"})
		s.Require().NoError(err)
		s.Require().Eventually(func() bool { return svc.Unread() == 1 }, waitFor, tick)
	})
	s.Step("Mark all as read", func(ctx context.Context) {
		s.Require().NoError(svc.MarkAllRead(ctx))
		s.Require().Zero(svc.Unread())

		reloaded, err := studentAPI.FetchNotifications(ctx, student)
		s.Require().NoError(err)
		s.Require().Len(reloaded, 1)
		s.Require().True(reloaded[0].Read)
	})
}
