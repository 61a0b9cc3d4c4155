package server

import (
	"context"
	"fmt"
	"time"

	"booktracker/internal/client"
	"booktracker/internal/metrics"
	"booktracker/internal/misc"
	"booktracker/internal/model"

	"github.com/pkg/errors"
)

// notify persists one Notification per result, then emails and pushes to the user.
// Only a persistence failure is returned.
func (s Server) notify(ctx context.Context, u model.User, b model.Book, rs []model.SearchResult, searchedAt time.Time) error {
	bookTitle := misc.StringLimit(b.Title, 45)

	ns := make([]model.Notification, 0, len(rs))
	for _, r := range rs {
		ns = append(ns, model.NewNotification(u.ID, b.Title, r, searchedAt))
	}
	if err := s.DB.NotificationsInsert(ctx, ns); err != nil {
		return errors.WithMessagef(err, "notify: error persisting %d Notification(s) for BookID: %s", len(ns), b.ID.Hex())
	}
	metrics.NotificationsCreated.Add(float64(len(ns)))
	s.Logger.Infof("notify: Persisted %d Notification(s) for Book: %s, ID: %s", len(ns), bookTitle, b.ID.Hex())

	if s.Mailer != nil {
		err := s.Mailer.SendMatch(ctx, u.Email, b.Title, rs)
		metrics.RecordDelivery("email", err)
		if err != nil {
			s.Logger.Errorf("notify: Error sending email to UserID: %s for BookID: %s, err: %v", u.ID.Hex(), b.ID.Hex(), err)
		} else {
			s.Logger.Debugf("notify: Sent email to UserID: %s for BookID: %s", u.ID.Hex(), b.ID.Hex())
		}
	}

	s.push(ctx, u, b, len(rs))
	return nil
}

func (s Server) push(ctx context.Context, u model.User, b model.Book, n int) {
	if s.Pusher == nil || len(u.FCMTokens) == 0 {
		return
	}
	bookTitle := misc.StringLimit(b.Title, 45)
	fcmReq := client.FCMSendRequest{
		Notification: client.FCMNotification{
			Title:       "New listings found!",
			Body:        fmt.Sprintf("%d new listing(s) for %s", n, bookTitle),
			ClickAction: "FLUTTER_NOTIFICATION_CLICK",
			Sound:       "default",
		},
		Data:            client.FCMData{BookID: b.ID.Hex(), Count: n},
		RegistrationIDs: u.FCMTokens,
	}
	s.Logger.Debugf("push: FCMSendRequest for Book: %s, ID: %s, req: %+v", bookTitle, b.ID.Hex(), fcmReq)
	fcmResp, err := s.Pusher.FCMSendNotification(ctx, fcmReq)
	metrics.RecordDelivery("push", err)
	if err != nil {
		s.Logger.Errorf("push: Error sending notification to FCM for Book: %s, ID: %s, err: %v", bookTitle, b.ID.Hex(), err)
		return
	}
	s.Logger.Infof("push: Send notification results for Book: %s, ID: %s, success: %d, failure: %d",
		bookTitle, b.ID.Hex(), fcmResp.Success, fcmResp.Failure)
}
