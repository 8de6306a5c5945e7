// Package audit defines the append-only activity trail recorded for
// security-relevant mutations. Entries are written in the same database
// transaction as the mutation they describe: either both persist or
// neither does.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"devfolio.org/internal/obs"
)

// Actions recorded by the guarded mutations.
const (
	ActionProjectCreate = "project.create"
	ActionProjectUpdate = "project.update"
	ActionProjectDelete = "project.delete"
	ActionTagCreate     = "tag.create"
	ActionUserCreate    = "user.create"
)

// Entity kinds referenced by audit entries.
const (
	EntityProject = "project"
	EntityTag     = "tag"
	EntityUser    = "user"
)

// Entry is one immutable audit record, attributed to the acting
// principal. Entries are never updated or deleted.
type Entry struct {
	ID          string    `json:"id"`
	OrgID       string    `json:"org_id"`
	ActorUserID string    `json:"actor_user_id"`
	Action      string    `json:"action"`
	Entity      string    `json:"entity"`
	EntityID    string    `json:"entity_id"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// New builds an entry stamped with the current time.
func New(orgID, actorUserID, action, entity, entityID string) *Entry {
	return &Entry{
		OrgID:       orgID,
		ActorUserID: actorUserID,
		Action:      action,
		Entity:      entity,
		EntityID:    entityID,
		OccurredAt:  time.Now().UTC(),
	}
}

// Store reads persisted entries, tenant-scoped and newest first.
type Store interface {
	List(ctx context.Context, orgID string, limit, offset int) ([]*Entry, error)
}

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LogEvent emits a structured audit log line for an entry that has been
// committed. This is observability on top of the persisted trail, not a
// substitute for it.
func LogEvent(ctx context.Context, entry *Entry) error {
	if entry == nil || strings.TrimSpace(entry.Action) == "" {
		return errors.New("audit entry with action is required")
	}
	line := map[string]any{
		"ts":       time.Now().UTC().Format(time.RFC3339Nano),
		"type":     "audit",
		"event":    entry.Action,
		"org_id":   entry.OrgID,
		"actor":    entry.ActorUserID,
		"entity":   entry.Entity,
		"entity_id": entry.EntityID,
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		line["request_id"] = rid
	}
	data, err := json.Marshal(line)
	if err != nil {
		return err
	}
	obs.Logger().Println(string(data))
	return nil
}
