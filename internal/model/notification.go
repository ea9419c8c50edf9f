package model

import "time"

// NotificationType identifies what a notification is about.
type NotificationType string

const (
	NotificationTaskAssigned      NotificationType = "task_assigned"
	NotificationTaskUpdated       NotificationType = "task_updated"
	NotificationTaskStatusChanged NotificationType = "task_status_changed"
	NotificationTaskCommented     NotificationType = "task_commented"
	NotificationTaskDueSoon       NotificationType = "task_due_soon"
	NotificationTaskOverdue       NotificationType = "task_overdue"
	NotificationTaskDeleted       NotificationType = "task_deleted"
	NotificationTeamInvite        NotificationType = "team_invite"
	NotificationTeamJoined        NotificationType = "team_joined"
	NotificationTeamLeft          NotificationType = "team_left"
	NotificationSystem            NotificationType = "system"
)

// NotificationTypes lists every known notification type.
var NotificationTypes = []NotificationType{
	NotificationTaskAssigned,
	NotificationTaskUpdated,
	NotificationTaskStatusChanged,
	NotificationTaskCommented,
	NotificationTaskDueSoon,
	NotificationTaskOverdue,
	NotificationTaskDeleted,
	NotificationTeamInvite,
	NotificationTeamJoined,
	NotificationTeamLeft,
	NotificationSystem,
}

// Known reports whether t is one of the declared notification types.
func (t NotificationType) Known() bool {
	for _, k := range NotificationTypes {
		if k == t {
			return true
		}
	}
	return false
}

// Notification is an alert delivered to the user either by push or by a
// pull from the notifications endpoint.
type Notification struct {
	// ID is unique within the inbox.
	ID string `json:"_id"`

	Type    NotificationType `json:"type"`
	Title   string           `json:"title"`
	Message string           `json:"message"`

	// Read indicates whether the user has seen this notification.
	Read bool `json:"read"`

	// RelatedTask and RelatedTeam are empty when not applicable.
	RelatedTask string `json:"relatedTask,omitempty"`
	RelatedTeam string `json:"relatedTeam,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// UnreadCount is the payload of the unread count endpoint.
type UnreadCount struct {
	Count int `json:"count"`
}

// ChannelConnection describes the push channel of the current session.
type ChannelConnection struct {
	UserID    string
	Connected bool
}
