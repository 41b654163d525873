// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package search

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/SuperSonnix71/github-invite-plus/internal/apperr"
)

// TaskStatus is the lifecycle state of an asynchronous Meilisearch task.
type TaskStatus string

// Task statuses.
const (
	TaskEnqueued   TaskStatus = "enqueued"
	TaskProcessing TaskStatus = "processing"
	TaskSucceeded  TaskStatus = "succeeded"
	TaskFailed     TaskStatus = "failed"
	TaskCanceled   TaskStatus = "canceled"
)

// Terminal reports whether the task will not change again.
func (s TaskStatus) Terminal() bool {
	return s == TaskSucceeded || s == TaskFailed || s == TaskCanceled
}

// Task is the reply of GET /tasks/{uid}.
type Task struct {
	UID    int64      `json:"uid"`
	Status TaskStatus `json:"status"`
	Type   string     `json:"type"`
	Error  *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

// ErrorMessage returns the task failure message or "unknown error".
func (t *Task) ErrorMessage() string {
	if t.Error == nil || t.Error.Message == "" {
		return "unknown error"
	}
	return t.Error.Message
}

// GetTask fetches the current state of a task.
func (c *Client) GetTask(ctx context.Context, taskUID int64) (*Task, error) {
	var t Task
	if err := c.doRequest(ctx, requestConfig{
		operation: "get_task",
		method:    http.MethodGet,
		path:      "/tasks/" + strconv.FormatInt(taskUID, 10),
	}, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// WaitForTask polls a task until it reaches a terminal status or the
// configured task timeout elapses.
func (c *Client) WaitForTask(ctx context.Context, taskUID int64) (*Task, error) {
	ctx, cancel := context.WithTimeout(ctx, c.taskTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		t, err := c.GetTask(ctx, taskUID)
		if err != nil {
			return nil, err
		}
		if t.Status.Terminal() {
			return t, nil
		}

		select {
		case <-ctx.Done():
			return nil, apperr.NewTransportError(serviceName, "wait_task",
				fmt.Errorf("task %d still %s: %w", taskUID, t.Status, ctx.Err()))
		case <-ticker.C:
		}
	}
}
