// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

// Package searchtest provides an in-memory Meilisearch stand-in for tests.
//
// It implements the subset of the REST API the search package calls. Tasks
// complete synchronously, so the first poll of a task sees its final state.
// Filters are limited to the forms the search package generates.
package searchtest

import (
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/goccy/go-json"

	"github.com/SuperSonnix71/github-invite-plus/internal/models"
)

// Task types as reported by Meilisearch.
const (
	TaskIndexCreation   = "indexCreation"
	TaskSettingsUpdate  = "settingsUpdate"
	TaskDocumentDelete  = "documentDeletion"
	TaskDocumentAdd     = "documentAdditionOrUpdate"
	TaskIndexDeletion   = "indexDeletion"
	statusSucceeded     = "succeeded"
	statusFailed        = "failed"
	codeIndexNotFound   = "index_not_found"
	codeIndexExists     = "index_already_exists"
	codeInternalFailure = "internal"
)

type task struct {
	UID    int64          `json:"uid"`
	Status string         `json:"status"`
	Type   string         `json:"type"`
	Error  map[string]any `json:"error"`
}

// Server is a fake Meilisearch instance.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	indexes   map[string]map[string]models.CodeDocument
	settings  map[string]json.RawMessage
	tasks     map[int64]*task
	nextTask  int64
	failNext  map[string]string
	counts    map[string]int
	unhealthy bool
}

// NewServer starts a fake server; it is closed with t.Cleanup by callers.
func NewServer() *Server {
	s := &Server{
		indexes:  make(map[string]map[string]models.CodeDocument),
		settings: make(map[string]json.RawMessage),
		tasks:    make(map[int64]*task),
		failNext: make(map[string]string),
		counts:   make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /indexes", s.handleCreateIndex)
	mux.HandleFunc("GET /indexes/{uid}", s.handleGetIndex)
	mux.HandleFunc("DELETE /indexes/{uid}", s.handleDeleteIndex)
	mux.HandleFunc("PATCH /indexes/{uid}/settings", s.handleSettings)
	mux.HandleFunc("POST /indexes/{uid}/documents", s.handleAddDocuments)
	mux.HandleFunc("POST /indexes/{uid}/documents/delete", s.handleDeleteDocuments)
	mux.HandleFunc("POST /indexes/{uid}/search", s.handleSearch)
	mux.HandleFunc("GET /tasks/{taskUid}", s.handleGetTask)

	s.Server = httptest.NewServer(mux)
	return s
}

// FailNext makes the next task of the given type fail with message.
func (s *Server) FailNext(taskType, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[taskType] = message
}

// SetHealthy toggles the /health reply.
func (s *Server) SetHealthy(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unhealthy = !ok
}

// TaskCount returns how many tasks of a type were enqueued.
func (s *Server) TaskCount(taskType string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[taskType]
}

// HasIndex reports whether the index exists.
func (s *Server) HasIndex(uid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.indexes[uid]
	return ok
}

// DropIndex removes an index out of band.
func (s *Server) DropIndex(uid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.indexes, uid)
	delete(s.settings, uid)
}

// Seed inserts documents directly, creating the index if needed.
func (s *Server) Seed(uid string, docs ...models.CodeDocument) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.index(uid)
	for _, d := range docs {
		idx[d.ID] = d
	}
}

// Documents returns the documents of an index ordered by id.
func (s *Server) Documents(uid string) []models.CodeDocument {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := make([]models.CodeDocument, 0, len(s.indexes[uid]))
	for _, d := range s.indexes[uid] {
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs
}

// Settings returns the raw settings last applied to an index.
func (s *Server) Settings(uid string) json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings[uid]
}

func (s *Server) index(uid string) map[string]models.CodeDocument {
	idx, ok := s.indexes[uid]
	if !ok {
		idx = make(map[string]models.CodeDocument)
		s.indexes[uid] = idx
	}
	return idx
}

// enqueue records a task. apply runs unless a failure was injected; it
// returns an error code and message when the operation itself fails.
func (s *Server) enqueue(w http.ResponseWriter, taskType string, apply func() (code, message string)) {
	s.nextTask++
	t := &task{UID: s.nextTask, Type: taskType, Status: statusSucceeded}
	s.counts[taskType]++

	if msg, ok := s.failNext[taskType]; ok {
		delete(s.failNext, taskType)
		t.Status = statusFailed
		t.Error = map[string]any{"message": msg, "code": codeInternalFailure}
	} else if code, msg := apply(); code != "" {
		t.Status = statusFailed
		t.Error = map[string]any{"message": msg, "code": code}
	}
	s.tasks[t.UID] = t

	writeJSON(w, http.StatusAccepted, map[string]any{"taskUid": t.UID, "status": "enqueued", "type": taskType})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unhealthy {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"message": "unavailable", "code": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "available"})
}

func (s *Server) handleCreateIndex(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UID        string `json:"uid"`
		PrimaryKey string `json:"primaryKey"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.UID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "bad request", "code": "bad_request"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.enqueue(w, TaskIndexCreation, func() (string, string) {
		if _, ok := s.indexes[body.UID]; ok {
			return codeIndexExists, "Index `" + body.UID + "` already exists."
		}
		s.index(body.UID)
		return "", ""
	})
}

func (s *Server) handleGetIndex(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("uid")

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.indexes[uid]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "Index `" + uid + "` not found.", "code": codeIndexNotFound})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"uid": uid, "primaryKey": "id"})
}

func (s *Server) handleDeleteIndex(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("uid")

	s.mu.Lock()
	defer s.mu.Unlock()
	s.enqueue(w, TaskIndexDeletion, func() (string, string) {
		if _, ok := s.indexes[uid]; !ok {
			return codeIndexNotFound, "Index `" + uid + "` not found."
		}
		delete(s.indexes, uid)
		delete(s.settings, uid)
		return "", ""
	})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("uid")
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "bad request", "code": "bad_request"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.enqueue(w, TaskSettingsUpdate, func() (string, string) {
		s.index(uid)
		s.settings[uid] = raw
		return "", ""
	})
}

func (s *Server) handleAddDocuments(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("uid")
	var docs []models.CodeDocument
	if err := json.NewDecoder(r.Body).Decode(&docs); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "bad request", "code": "bad_request"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.enqueue(w, TaskDocumentAdd, func() (string, string) {
		idx := s.index(uid)
		for _, d := range docs {
			idx[d.ID] = d
		}
		return "", ""
	})
}

func (s *Server) handleDeleteDocuments(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("uid")
	var body struct {
		Filter string `json:"filter"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "bad request", "code": "bad_request"})
		return
	}
	match, ok := parseFilter(body.Filter)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "invalid filter", "code": "invalid_document_filter"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.enqueue(w, TaskDocumentDelete, func() (string, string) {
		idx, exists := s.indexes[uid]
		if !exists {
			return codeIndexNotFound, "Index `" + uid + "` not found."
		}
		for id, d := range idx {
			if match(d) {
				delete(idx, id)
			}
		}
		return "", ""
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("uid")
	var body struct {
		Q                string `json:"q"`
		Filter           string `json:"filter"`
		Limit            int    `json:"limit"`
		HighlightPreTag  string `json:"highlightPreTag"`
		HighlightPostTag string `json:"highlightPostTag"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "bad request", "code": "bad_request"})
		return
	}
	match := func(models.CodeDocument) bool { return true }
	if body.Filter != "" {
		var ok bool
		if match, ok = parseFilter(body.Filter); !ok {
			writeJSON(w, http.StatusBadRequest, map[string]any{"message": "invalid filter", "code": "invalid_search_filter"})
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx, exists := s.indexes[uid]
	if !exists {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "Index `" + uid + "` not found.", "code": codeIndexNotFound})
		return
	}

	ids := make([]string, 0, len(idx))
	for id := range idx {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	needle := strings.ToLower(body.Q)
	hits := []map[string]any{}
	total := 0
	for _, id := range ids {
		d := idx[id]
		if !match(d) {
			continue
		}
		pos := strings.Index(strings.ToLower(d.Content), needle)
		if pos < 0 && !strings.Contains(strings.ToLower(d.Path), needle) {
			continue
		}
		total++
		if body.Limit > 0 && len(hits) >= body.Limit {
			continue
		}
		formatted := d.Content
		if pos >= 0 {
			end := pos + len(needle)
			formatted = d.Content[:pos] + body.HighlightPreTag + d.Content[pos:end] + body.HighlightPostTag + d.Content[end:]
		}
		hits = append(hits, map[string]any{
			"repo":       d.Repo,
			"branch":     d.Branch,
			"path":       d.Path,
			"_formatted": map[string]any{"content": formatted, "path": d.Path},
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"hits": hits, "estimatedTotalHits": total, "processingTimeMs": 1})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	uid, err := strconv.ParseInt(r.PathValue("taskUid"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "bad task uid", "code": "bad_request"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[uid]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "task not found", "code": "task_not_found"})
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// parseFilter understands `field = "v"` and `field IN ["a", "b"]` clauses
// joined by AND.
func parseFilter(filter string) (func(models.CodeDocument) bool, bool) {
	type clause struct {
		field  string
		values []string
	}
	var clauses []clause

	rest := strings.TrimSpace(filter)
	for rest != "" {
		field, after, ok := strings.Cut(rest, " ")
		if !ok {
			return nil, false
		}
		after = strings.TrimSpace(after)

		var values []string
		switch {
		case strings.HasPrefix(after, "= "):
			after = strings.TrimSpace(after[2:])
			q, err := strconv.QuotedPrefix(after)
			if err != nil {
				return nil, false
			}
			v, _ := strconv.Unquote(q)
			values = append(values, v)
			after = after[len(q):]
		case strings.HasPrefix(after, "IN ["):
			after = after[len("IN ["):]
			for {
				after = strings.TrimLeft(after, ", ")
				if strings.HasPrefix(after, "]") {
					after = after[1:]
					break
				}
				q, err := strconv.QuotedPrefix(after)
				if err != nil {
					return nil, false
				}
				v, _ := strconv.Unquote(q)
				values = append(values, v)
				after = after[len(q):]
			}
		default:
			return nil, false
		}
		clauses = append(clauses, clause{field: field, values: values})

		rest = strings.TrimSpace(after)
		if rest != "" {
			if !strings.HasPrefix(rest, "AND ") {
				return nil, false
			}
			rest = strings.TrimSpace(rest[len("AND "):])
		}
	}

	return func(d models.CodeDocument) bool {
		for _, c := range clauses {
			var got string
			switch c.field {
			case "repo":
				got = d.Repo
			case "branch":
				got = d.Branch
			case "path":
				got = d.Path
			default:
				return false
			}
			found := false
			for _, v := range c.values {
				if v == got {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	}, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
