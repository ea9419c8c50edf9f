package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/nhle/taskflow/internal/model"
)

// GetTask fetches a task's detail, including its activeTimer if the
// server believes one is running.
func (c *Client) GetTask(ctx context.Context, taskID string) (*model.Task, error) {
	var task model.Task
	if err := c.Get(ctx, "/tasks/"+url.PathEscape(taskID), &task); err != nil {
		return nil, fmt.Errorf("getting task %s: %w", taskID, err)
	}
	return &task, nil
}

// ListTasks fetches the tasks visible to the user, optionally restricted
// to one team.
func (c *Client) ListTasks(ctx context.Context, teamID string) ([]model.Task, error) {
	path := "/tasks"
	if teamID != "" {
		path += "?" + url.Values{"team": []string{teamID}}.Encode()
	}

	var tasks []model.Task
	if err := c.Get(ctx, path, &tasks); err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	return tasks, nil
}

// ListTeams fetches the teams the user belongs to.
func (c *Client) ListTeams(ctx context.Context) ([]model.Team, error) {
	var teams []model.Team
	if err := c.Get(ctx, "/teams", &teams); err != nil {
		return nil, fmt.Errorf("listing teams: %w", err)
	}
	return teams, nil
}

// StartTimer mirrors a local timer start on the server.
func (c *Client) StartTimer(ctx context.Context, taskID string) error {
	if err := c.Post(ctx, "/tasks/"+url.PathEscape(taskID)+"/timer/start", nil, nil); err != nil {
		return fmt.Errorf("starting timer on %s: %w", taskID, err)
	}
	return nil
}

// StopTimer mirrors a local timer stop on the server.
func (c *Client) StopTimer(ctx context.Context, taskID string) error {
	if err := c.Post(ctx, "/tasks/"+url.PathEscape(taskID)+"/timer/stop", nil, nil); err != nil {
		return fmt.Errorf("stopping timer on %s: %w", taskID, err)
	}
	return nil
}
