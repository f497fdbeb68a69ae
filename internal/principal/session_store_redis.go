package principal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "gatehouse/pkg/domain"
	"gatehouse/pkg/requestcontext"
	"gatehouse/pkg/sentinel"
)

// SessionRedis stores impersonation sessions in Redis with the key TTL set to
// the session expiry, so expiry and deletion are both single atomic key
// operations shared across replicas.
type SessionRedis struct {
	client *redis.Client
}

func NewSessionRedis(client *redis.Client) *SessionRedis {
	return &SessionRedis{client: client}
}

func sessionKey(sessionID id.SessionID) string {
	return "gatehouse:impersonation:" + sessionID.String()
}

type sessionRecord struct {
	ID           string  `json:"id"`
	OperatorID   string  `json:"operator_id"`
	TenantID     *string `json:"tenant_id,omitempty"`
	IndividualID *string `json:"individual_id,omitempty"`
	Reason       string  `json:"reason"`
	CreatedAt    string  `json:"created_at"`
	ExpiresAt    string  `json:"expires_at"`
}

func (s *SessionRedis) Create(ctx context.Context, session *ImpersonationSession) error {
	ttl := session.ExpiresAt.Sub(requestcontext.Now(ctx))
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}
	rec := sessionRecord{
		ID:         session.ID.String(),
		OperatorID: session.OperatorID.String(),
		Reason:     session.Reason,
		CreatedAt:  session.CreatedAt.UTC().Format(time.RFC3339Nano),
		ExpiresAt:  session.ExpiresAt.UTC().Format(time.RFC3339Nano),
	}
	if session.TenantID != nil {
		t := session.TenantID.String()
		rec.TenantID = &t
	}
	if session.IndividualID != nil {
		i := session.IndividualID.String()
		rec.IndividualID = &i
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(session.ID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (s *SessionRedis) Find(ctx context.Context, sessionID id.SessionID) (*ImpersonationSession, error) {
	raw, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var rec sessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return rec.toSession()
}

func (s *SessionRedis) Delete(ctx context.Context, sessionID id.SessionID) error {
	deleted, err := s.client.Del(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if deleted == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (r sessionRecord) toSession() (*ImpersonationSession, error) {
	sessionID, err := id.ParseSessionID(r.ID)
	if err != nil {
		return nil, fmt.Errorf("parse session id: %w", err)
	}
	operatorID, err := id.ParsePrincipalID(r.OperatorID)
	if err != nil {
		return nil, fmt.Errorf("parse operator id: %w", err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	expiresAt, err := time.Parse(time.RFC3339Nano, r.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}
	session := &ImpersonationSession{
		ID:         sessionID,
		OperatorID: operatorID,
		Reason:     r.Reason,
		CreatedAt:  createdAt,
		ExpiresAt:  expiresAt,
	}
	if r.TenantID != nil {
		t, err := id.ParseTenantID(*r.TenantID)
		if err != nil {
			return nil, fmt.Errorf("parse tenant id: %w", err)
		}
		session.TenantID = &t
	}
	if r.IndividualID != nil {
		i, err := id.ParsePrincipalID(*r.IndividualID)
		if err != nil {
			return nil, fmt.Errorf("parse individual id: %w", err)
		}
		session.IndividualID = &i
	}
	return session, nil
}
