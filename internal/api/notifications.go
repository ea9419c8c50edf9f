package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/nhle/taskflow/internal/model"
)

// ListNotifications fetches the most recent notifications, newest first.
func (c *Client) ListNotifications(ctx context.Context, limit int) ([]model.Notification, error) {
	path := "/notifications"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	var list []model.Notification
	if err := c.Get(ctx, path, &list); err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	return list, nil
}

// UnreadCount fetches the authoritative unread notification count.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var out model.UnreadCount
	if err := c.Get(ctx, "/notifications/unread/count", &out); err != nil {
		return 0, fmt.Errorf("getting unread count: %w", err)
	}
	return out.Count, nil
}

// MarkNotificationRead marks a single notification as read.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	if err := c.Put(ctx, "/notifications/"+url.PathEscape(id)+"/read", nil, nil); err != nil {
		return fmt.Errorf("marking notification %s read: %w", id, err)
	}
	return nil
}

// MarkAllNotificationsRead marks every notification as read.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	if err := c.Put(ctx, "/notifications/read-all", nil, nil); err != nil {
		return fmt.Errorf("marking all notifications read: %w", err)
	}
	return nil
}

// DeleteNotification deletes a single notification.
func (c *Client) DeleteNotification(ctx context.Context, id string) error {
	if err := c.Delete(ctx, "/notifications/"+url.PathEscape(id)); err != nil {
		return fmt.Errorf("deleting notification %s: %w", id, err)
	}
	return nil
}

// DeleteAllNotifications deletes every notification of the user.
func (c *Client) DeleteAllNotifications(ctx context.Context) error {
	if err := c.Delete(ctx, "/notifications"); err != nil {
		return fmt.Errorf("deleting all notifications: %w", err)
	}
	return nil
}
