// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package database

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/SuperSonnix71/github-invite-plus/internal/models"
)

func payload(t *testing.T, user int64, repo, branch string) []byte {
	t.Helper()
	b, err := models.IndexBranchPayload{GitHubUserID: user, RepoFullName: repo, Branch: branch}.Encode()
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestEnqueueJob_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	p := payload(t, 1, "org/repo", "main")

	id1, created, err := db.EnqueueJob(ctx, models.JobTypeIndexBranch, p, 3)
	if err != nil {
		t.Fatalf("EnqueueJob() error = %v", err)
	}
	if !created {
		t.Error("first enqueue should create a job")
	}

	id2, created, err := db.EnqueueJob(ctx, models.JobTypeIndexBranch, p, 3)
	if err != nil {
		t.Fatal(err)
	}
	if created || id2 != id1 {
		t.Errorf("duplicate enqueue = (%s, %v), want (%s, false)", id2, created, id1)
	}

	// Still deduplicated while running.
	if _, err := db.DequeueNextJob(ctx); err != nil {
		t.Fatal(err)
	}
	id3, created, _ := db.EnqueueJob(ctx, models.JobTypeIndexBranch, p, 3)
	if created || id3 != id1 {
		t.Errorf("enqueue while running = (%s, %v), want (%s, false)", id3, created, id1)
	}

	// A terminal job no longer blocks a new one.
	if err := db.MarkJobDone(ctx, id1); err != nil {
		t.Fatal(err)
	}
	id4, created, _ := db.EnqueueJob(ctx, models.JobTypeIndexBranch, p, 3)
	if !created || id4 == id1 {
		t.Errorf("enqueue after done = (%s, %v), want a new job", id4, created)
	}
}

func TestEnqueueJob_ConcurrentDuplicates(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	p := payload(t, 7, "org/repo", "dev")

	const n = 8
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, _, err := db.EnqueueJob(ctx, models.JobTypeIndexBranch, p, 3)
			if err != nil {
				t.Errorf("EnqueueJob() error = %v", err)
			}
			ids[i] = id
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("got distinct ids %q and %q for identical payloads", ids[0], ids[i])
		}
	}
}

func TestDequeueNextJob_FIFO(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	job, err := db.DequeueNextJob(ctx)
	if err != nil || job != nil {
		t.Fatalf("DequeueNextJob() on empty queue = (%v, %v), want (nil, nil)", job, err)
	}

	first := enqueue(t, db, payload(t, 1, "a/b", "main"))
	second := enqueue(t, db, payload(t, 1, "a/b", "dev"))

	got, err := db.DequeueNextJob(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != first || got.Status != models.JobRunning {
		t.Errorf("first dequeue = (%s, %s), want (%s, running)", got.ID, got.Status, first)
	}
	if got.Type != models.JobTypeIndexBranch || got.MaxAttempts != 3 {
		t.Errorf("dequeued job = %+v", got)
	}

	got, _ = db.DequeueNextJob(ctx)
	if got == nil || got.ID != second {
		t.Fatalf("second dequeue = %v, want %s", got, second)
	}

	if got, _ := db.DequeueNextJob(ctx); got != nil {
		t.Errorf("third dequeue = %v, want nil", got)
	}
}

func TestDequeueNextJob_NoDoubleClaim(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	const jobs = 5
	for i := 0; i < jobs; i++ {
		if _, _, err := db.EnqueueJob(ctx, models.JobTypeIndexBranch, payload(t, int64(i+1), "a/b", "main"), 3); err != nil {
			t.Fatal(err)
		}
	}

	var (
		mu      sync.Mutex
		claimed = map[string]int{}
		wg      sync.WaitGroup
	)
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, err := db.DequeueNextJob(ctx)
				if err != nil {
					t.Errorf("DequeueNextJob() error = %v", err)
					return
				}
				if job == nil {
					return
				}
				mu.Lock()
				claimed[job.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(claimed) != jobs {
		t.Errorf("claimed %d distinct jobs, want %d", len(claimed), jobs)
	}
	for id, n := range claimed {
		if n != 1 {
			t.Errorf("job %s claimed %d times", id, n)
		}
	}
}

func TestMarkJobFailed_RetriesThenFails(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	id := enqueue(t, db, payload(t, 1, "a/b", "main"))

	wantStatuses := []models.JobStatus{models.JobQueued, models.JobQueued, models.JobFailed}
	for attempt, want := range wantStatuses {
		job, err := db.DequeueNextJob(ctx)
		if err != nil || job == nil {
			t.Fatalf("attempt %d: DequeueNextJob() = (%v, %v)", attempt, job, err)
		}
		if job.Attempts != attempt {
			t.Errorf("attempt %d: job.Attempts = %d", attempt, job.Attempts)
		}
		status, err := db.MarkJobFailed(ctx, job.ID, "boom", job.Attempts, job.MaxAttempts)
		if err != nil {
			t.Fatal(err)
		}
		if status != want {
			t.Errorf("attempt %d: status = %s, want %s", attempt, status, want)
		}
	}

	job, err := db.GetJob(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != models.JobFailed || job.Attempts != 3 || job.LastError != "boom" {
		t.Errorf("final job = %+v", job)
	}

	// Terminal: nothing left to dequeue.
	if next, _ := db.DequeueNextJob(ctx); next != nil {
		t.Errorf("failed job was dequeued again: %+v", next)
	}
}

func TestMarkJob_NotFound(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.MarkJobDone(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkJobDone(missing) = %v, want ErrNotFound", err)
	}
	if _, err := db.MarkJobFailed(ctx, "missing", "x", 0, 3); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkJobFailed(missing) = %v, want ErrNotFound", err)
	}
	if _, err := db.GetJob(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetJob(missing) = %v, want ErrNotFound", err)
	}
}

func TestRecoverStuckJobs(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	stuck1 := enqueue(t, db, payload(t, 1, "a/b", "main"))
	stuck2 := enqueue(t, db, payload(t, 2, "a/b", "main"))
	queued := enqueue(t, db, payload(t, 3, "a/b", "main"))
	claim(t, db)
	claim(t, db)

	n, err := db.RecoverStuckJobs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("RecoverStuckJobs() = %d, want 2", n)
	}
	for _, id := range []string{stuck1, stuck2, queued} {
		job, _ := db.GetJob(ctx, id)
		if job.Status != models.JobQueued {
			t.Errorf("job %s status = %s, want queued", id, job.Status)
		}
	}

	// A job claimed after recovery is untouched by later reads.
	job, _ := db.DequeueNextJob(ctx)
	if job.ID != stuck1 {
		t.Errorf("dequeue after recovery = %s, want %s", job.ID, stuck1)
	}
	got, _ := db.GetJob(ctx, job.ID)
	if got.Status != models.JobRunning {
		t.Errorf("status = %s, want running", got.Status)
	}
}

func TestCleanupDoneJobsAndCounts(t *testing.T) {
	db := setupTestDB(t)
	clock := newFakeClock()
	db.now = clock.Now
	ctx := context.Background()

	oldID := enqueue(t, db, payload(t, 1, "a/b", "old"))
	claim(t, db)
	if err := db.MarkJobDone(ctx, oldID); err != nil {
		t.Fatal(err)
	}

	clock.Advance(8 * 24 * time.Hour)
	newID := enqueue(t, db, payload(t, 1, "a/b", "new"))
	claim(t, db)
	if err := db.MarkJobDone(ctx, newID); err != nil {
		t.Fatal(err)
	}
	enqueue(t, db, payload(t, 1, "a/b", "queued"))

	n, err := db.CleanupDoneJobs(ctx, clock.Now().Add(-7*24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("CleanupDoneJobs() = %d, want 1", n)
	}
	if _, err := db.GetJob(ctx, oldID); !errors.Is(err, ErrNotFound) {
		t.Errorf("old done job still present: %v", err)
	}

	counts, err := db.CountJobsByStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts[models.JobDone] != 1 || counts[models.JobQueued] != 1 || counts[models.JobFailed] != 0 {
		t.Errorf("counts = %v", counts)
	}

	jobs, err := db.ListJobs(ctx, models.JobQueued, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 1 {
		t.Errorf("ListJobs(queued) returned %d jobs, want 1", len(jobs))
	}
}
