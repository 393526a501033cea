package gateway

import (
	"context"
	"sync"

	"clubtickets/entity"
)

type NotifierMock struct {
	mock          sync.Mutex
	Notifications []entity.Notification
}

func (n *NotifierMock) Notify(ctx context.Context, notification entity.Notification) error {
	n.mock.Lock()
	defer n.mock.Unlock()

	n.Notifications = append(n.Notifications, notification)

	return nil
}

func (n *NotifierMock) ForUser(userID string) []entity.Notification {
	n.mock.Lock()
	defer n.mock.Unlock()

	var result []entity.Notification
	for _, notification := range n.Notifications {
		if notification.UserID == userID {
			result = append(result, notification)
		}
	}
	return result
}
