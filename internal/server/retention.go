package server

import (
	"context"

	"booktracker/internal/metrics"

	"github.com/pkg/errors"
)

// CleanupNotifications deletes at most CleanupLimit notifications older than NotificationRetention,
// oldest first.
func (s Server) CleanupNotifications(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.NotificationRetention)
	n, err := s.DB.NotificationsDeleteExpired(ctx, cutoff, int64(s.CleanupLimit))
	if err != nil {
		return 0, errors.WithMessagef(err, "CleanupNotifications: cutoff: %s", cutoff)
	}
	metrics.NotificationsExpired.Add(float64(n))
	s.Logger.Infof("CleanupNotifications: Deleted %d Notification(s) created before %s", n, cutoff.Format("2006-01-02 15:04:05"))
	return n, nil
}
