package inbox

import "github.com/nhle/taskflow/internal/model"

// View is a navigation destination.
type View int

const (
	ViewTasks View = iota
	ViewTeams
)

func (v View) String() string {
	switch v {
	case ViewTasks:
		return "tasks"
	case ViewTeams:
		return "teams"
	}
	return "unknown"
}

// Route is where activating a notification takes the user. TeamID, when
// set on a tasks route, pre-filters the task list to that team.
type Route struct {
	View   View
	TaskID string
	TeamID string
}

// target classifies a notification type. known is false only for types
// this client does not understand.
func target(t model.NotificationType) (view View, needsTask, known bool) {
	switch t {
	case model.NotificationTaskAssigned,
		model.NotificationTaskUpdated,
		model.NotificationTaskStatusChanged,
		model.NotificationTaskCommented,
		model.NotificationTaskDueSoon,
		model.NotificationTaskOverdue:
		return ViewTasks, true, true
	case model.NotificationTaskDeleted:
		// The task is gone; only its team is still a useful destination.
		return ViewTasks, false, true
	case model.NotificationTeamInvite,
		model.NotificationTeamJoined,
		model.NotificationTeamLeft:
		return ViewTeams, false, true
	case model.NotificationSystem:
		return 0, false, true
	}
	return 0, false, false
}

// ResolveTargetRoute maps a notification to its destination, or nil when
// there is nothing to navigate to.
func ResolveTargetRoute(n model.Notification) *Route {
	view, needsTask, known := target(n.Type)
	if !known || n.Type == model.NotificationSystem {
		return nil
	}

	switch view {
	case ViewTasks:
		taskID := ""
		if needsTask {
			taskID = n.RelatedTask
		}
		if taskID == "" && n.RelatedTeam == "" {
			return nil
		}
		return &Route{View: ViewTasks, TaskID: taskID, TeamID: n.RelatedTeam}
	case ViewTeams:
		if n.RelatedTeam == "" {
			return nil
		}
		return &Route{View: ViewTeams, TeamID: n.RelatedTeam}
	}
	return nil
}
