package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	recovery "github.com/fvgm-spec/disaster-recovery-agent"
	"github.com/fvgm-spec/disaster-recovery-agent/emergency"
	"github.com/fvgm-spec/disaster-recovery-agent/id"
	"github.com/fvgm-spec/disaster-recovery-agent/triage"
)

// CreateEmergency persists a new emergency record.
func (s *Store) CreateEmergency(ctx context.Context, rec *emergency.Record) error {
	rID := rec.ID.String()
	key := emergencyKey(rID)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("recovery/redis: create emergency exists: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("recovery/redis: emergency %s: %w", rID, recovery.ErrEmergencyAlreadyExists)
	}

	m, err := emergencyToMap(rec)
	if err != nil {
		return fmt.Errorf("recovery/redis: create emergency: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, m)
	pipe.SAdd(ctx, emergencyIDsKey, rID)
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("recovery/redis: create emergency: %w", err)
	}
	return nil
}

// GetEmergency retrieves an emergency record by ID.
func (s *Store) GetEmergency(ctx context.Context, emgID id.EmergencyID) (*emergency.Record, error) {
	key := emergencyKey(emgID.String())
	vals, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("recovery/redis: get emergency: %w", err)
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("recovery/redis: emergency %s: %w", emgID, recovery.ErrEmergencyNotFound)
	}
	return mapToEmergency(vals)
}

// UpdateEmergency persists changes to an existing emergency record.
func (s *Store) UpdateEmergency(ctx context.Context, rec *emergency.Record) error {
	key := emergencyKey(rec.ID.String())
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("recovery/redis: update emergency exists: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("recovery/redis: emergency %s: %w", rec.ID, recovery.ErrEmergencyNotFound)
	}

	m, err := emergencyToMap(rec)
	if err != nil {
		return fmt.Errorf("recovery/redis: update emergency: %w", err)
	}
	if _, err := s.client.HSet(ctx, key, m).Result(); err != nil {
		return fmt.Errorf("recovery/redis: update emergency: %w", err)
	}
	return nil
}

// ListEmergencies returns emergency records newest first, filtered and
// paginated per opts.
func (s *Store) ListEmergencies(ctx context.Context, opts emergency.ListOpts) ([]*emergency.Record, error) {
	ids, err := s.client.SMembers(ctx, emergencyIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("recovery/redis: list emergencies smembers: %w", err)
	}

	var recs []*emergency.Record
	for _, rID := range ids {
		vals, getErr := s.client.HGetAll(ctx, emergencyKey(rID)).Result()
		if getErr != nil || len(vals) == 0 {
			continue
		}
		rec, convErr := mapToEmergency(vals)
		if convErr != nil {
			continue
		}
		if opts.Status != "" && rec.Status != opts.Status {
			continue
		}
		if opts.Type != "" && rec.Type != opts.Type {
			continue
		}
		if opts.Severity != "" && rec.Severity != opts.Severity {
			continue
		}
		recs = append(recs, rec)
	}

	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.After(recs[j].CreatedAt)
		}
		return recs[i].ID.String() > recs[j].ID.String()
	})

	if opts.Offset >= len(recs) {
		return nil, nil
	}
	if opts.Offset > 0 {
		recs = recs[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(recs) {
		recs = recs[:opts.Limit]
	}
	return recs, nil
}

// ── helpers ──

func emergencyToMap(rec *emergency.Record) (map[string]interface{}, error) {
	resources, err := json.Marshal(rec.AffectedResources)
	if err != nil {
		return nil, fmt.Errorf("encode affected resources: %w", err)
	}

	return map[string]interface{}{
		"id":                 rec.ID.String(),
		"type":               string(rec.Type),
		"severity":           string(rec.Severity),
		"priority":           strconv.Itoa(rec.Priority),
		"status":             string(rec.Status),
		"description":        rec.Description,
		"location":           rec.Location,
		"reporter_contact":   rec.ReporterContact,
		"affected_resources": string(resources),
		"execution_id":       rec.ExecutionID.String(),
		"created_at":         rec.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":         rec.UpdatedAt.Format(time.RFC3339Nano),
	}, nil
}

func mapToEmergency(m map[string]string) (*emergency.Record, error) {
	rID, err := id.Parse(m["id"])
	if err != nil {
		return nil, fmt.Errorf("recovery/redis: parse emergency id: %w", err)
	}

	priority, _ := strconv.Atoi(m["priority"])
	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"])
	updatedAt, _ := time.Parse(time.RFC3339Nano, m["updated_at"])

	rec := &emergency.Record{
		ID:              rID,
		Type:            triage.Type(m["type"]),
		Severity:        triage.Severity(m["severity"]),
		Priority:        priority,
		Status:          emergency.Status(m["status"]),
		Description:     m["description"],
		Location:        m["location"],
		ReporterContact: m["reporter_contact"],
		CreatedAt:       createdAt,
		UpdatedAt:       updatedAt,
	}

	if v := m["affected_resources"]; v != "" && v != "null" {
		if err := json.Unmarshal([]byte(v), &rec.AffectedResources); err != nil {
			return nil, fmt.Errorf("recovery/redis: decode affected resources: %w", err)
		}
	}
	if v := m["execution_id"]; v != "" {
		execID, parseErr := id.Parse(v)
		if parseErr != nil {
			return nil, fmt.Errorf("recovery/redis: parse execution id: %w", parseErr)
		}
		rec.ExecutionID = execID
	}
	return rec, nil
}
