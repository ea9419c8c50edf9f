package inbox

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/taskflow/internal/model"
)

func TestTarget_CoversEveryType(t *testing.T) {
	for _, typ := range model.NotificationTypes {
		_, _, known := target(typ)
		assert.True(t, known, "type %q has no route mapping", typ)
	}

	_, _, known := target("billing_due")
	assert.False(t, known)
}

func TestResolveTargetRoute(t *testing.T) {
	tests := []struct {
		name string
		n    model.Notification
		want *Route
	}{
		{
			name: "task with team",
			n:    model.Notification{Type: model.NotificationTaskAssigned, RelatedTask: "t1", RelatedTeam: "T1"},
			want: &Route{View: ViewTasks, TaskID: "t1", TeamID: "T1"},
		},
		{
			name: "task without team",
			n:    model.Notification{Type: model.NotificationTaskOverdue, RelatedTask: "t1"},
			want: &Route{View: ViewTasks, TaskID: "t1"},
		},
		{
			name: "task notification without references",
			n:    model.Notification{Type: model.NotificationTaskCommented},
			want: nil,
		},
		{
			name: "deleted task falls back to its team",
			n:    model.Notification{Type: model.NotificationTaskDeleted, RelatedTask: "t1", RelatedTeam: "T1"},
			want: &Route{View: ViewTasks, TeamID: "T1"},
		},
		{
			name: "deleted task without team",
			n:    model.Notification{Type: model.NotificationTaskDeleted, RelatedTask: "t1"},
			want: nil,
		},
		{
			name: "team invite",
			n:    model.Notification{Type: model.NotificationTeamInvite, RelatedTeam: "T2"},
			want: &Route{View: ViewTeams, TeamID: "T2"},
		},
		{
			name: "team event without team",
			n:    model.Notification{Type: model.NotificationTeamLeft},
			want: nil,
		},
		{
			name: "system",
			n:    model.Notification{Type: model.NotificationSystem, RelatedTeam: "T1"},
			want: nil,
		},
		{
			name: "unknown type",
			n:    model.Notification{Type: "billing_due", RelatedTask: "t1"},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveTargetRoute(tt.n))
		})
	}
}
