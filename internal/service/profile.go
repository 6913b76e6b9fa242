// Package service contains the business logic layer.
//
// Services orchestrate reads and writes against the origin-scoped key-value
// store and the survey catalog, and enforce the quota rules. They are
// responsible for:
// - Defaulting and repairing stored state
// - Business rule enforcement (retakes, daily quota, premium surveys)
// - Error translation (storage errors -> domain errors)
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DukeRupert/surveypro/internal/domain"
	"github.com/DukeRupert/surveypro/internal/kv"
	"github.com/DukeRupert/surveypro/internal/metrics"
)

// =============================================================================
// Interface Definition
// =============================================================================

// ProfileService manages the single user profile kept per storage origin.
type ProfileService interface {
	// GetUser returns the stored user, creating and persisting a default
	// Guest profile when none exists or the stored one is unusable.
	GetUser(ctx context.Context, origin string) (domain.User, error)

	// GetUserResult is GetUser but also reports how the stored value was
	// read: OK, Missing (a default was created) or Defaulted (the stored
	// value was malformed and replaced).
	GetUserResult(ctx context.Context, origin string) (kv.Decoded[domain.User], error)

	// SetUser shallow-merges patch onto the current user and persists it.
	SetUser(ctx context.Context, origin string, patch domain.UserPatch) (domain.User, error)

	// Credit adds amount to the user's balance.
	Credit(ctx context.Context, origin string, amount float64) (domain.User, error)
}

// =============================================================================
// Implementation
// =============================================================================

type profileService struct {
	store  kv.Store
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewProfileService creates a new ProfileService.
func NewProfileService(store kv.Store, logger *slog.Logger) ProfileService {
	return &profileService{
		store:  store,
		logger: logger,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
}

// defaultUser builds the profile handed to a first-time visitor.
func (s *profileService) defaultUser() domain.User {
	return domain.User{
		ID:        s.newID(),
		Name:      "Guest",
		Email:     "",
		Plan:      domain.PlanFree,
		Tier:      domain.TierFree,
		Balance:   0,
		CreatedAt: s.now().UnixMilli(),
	}
}

// decodeUser accepts any JSON object whose id is a non-empty string or a
// non-zero number; the id is what completions are keyed by, so it must
// survive. Fields of the wrong type fall back to the Guest defaults one by
// one and are listed in repaired.
func decodeUser(raw []byte, found bool) (kv.Decoded[domain.User], []string) {
	var repaired []string
	obj := kv.Decode[map[string]json.RawMessage](raw, found, nil)
	if obj.Outcome != kv.OutcomeOK || obj.Value == nil {
		outcome := obj.Outcome
		if outcome == kv.OutcomeOK {
			outcome = kv.OutcomeDefaulted
		}
		return kv.Decoded[domain.User]{Outcome: outcome}, nil
	}
	fields := obj.Value

	id, ok := decodeID(fields["id"])
	if !ok {
		return kv.Decoded[domain.User]{Outcome: kv.OutcomeDefaulted}, nil
	}

	u := domain.User{
		ID:   id,
		Name: "Guest",
		Plan: domain.PlanFree,
		Tier: domain.TierFree,
	}
	field := func(name string, dst any) {
		v, present := fields[name]
		if !present || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return
		}
		if err := json.Unmarshal(v, dst); err != nil {
			repaired = append(repaired, name)
		}
	}
	field("name", &u.Name)
	field("email", &u.Email)
	field("plan", &u.Plan)
	field("tier", &u.Tier)
	numberField(fields, "balance", &u.Balance, &repaired)

	var createdAt float64
	numberField(fields, "createdAt", &createdAt, &repaired)
	u.CreatedAt = int64(createdAt)

	return kv.Decoded[domain.User]{Value: u, Outcome: kv.OutcomeOK}, repaired
}

// decodeID reads the profile id. Numbers are carried in their JSON text.
func decodeID(v json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s, s != ""
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		if f, err := n.Float64(); err == nil && f != 0 {
			return n.String(), true
		}
	}
	return "", false
}

// numberField decodes a number that may also be stored as a numeric string.
func numberField(fields map[string]json.RawMessage, name string, dst *float64, repaired *[]string) {
	v, present := fields[name]
	if !present || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return
	}
	if err := json.Unmarshal(v, dst); err == nil {
		return
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			*dst = f
			return
		}
	}
	*repaired = append(*repaired, name)
}

func (s *profileService) GetUser(ctx context.Context, origin string) (domain.User, error) {
	d, err := s.GetUserResult(ctx, origin)
	return d.Value, err
}

func (s *profileService) GetUserResult(ctx context.Context, origin string) (kv.Decoded[domain.User], error) {
	const op = "profile.get_user"

	raw, found, err := s.store.Get(ctx, origin, kv.KeyUser)
	if err != nil {
		return kv.Decoded[domain.User]{}, domain.Internal(err, op, "failed to read user profile")
	}
	if d, repaired := decodeUser(raw, found); d.Outcome == kv.OutcomeOK {
		if len(repaired) > 0 {
			metrics.StoreDecodeDefaults.WithLabelValues(kv.KeyUser).Inc()
			s.logger.Warn("defaulted mistyped user profile fields",
				"origin", origin,
				"user_id", d.Value.ID,
				"fields", repaired,
			)
		}
		return d, nil
	}

	// Create the default atomically so two first requests agree on one id.
	var result kv.Decoded[domain.User]
	err = s.store.Update(ctx, origin, kv.KeyUser, func(old []byte, exists bool) ([]byte, bool, error) {
		d, _ := decodeUser(old, exists)
		if d.Outcome == kv.OutcomeOK {
			result = d
			return nil, false, nil
		}
		fresh := s.defaultUser()
		result = kv.Decoded[domain.User]{Value: fresh, Outcome: d.Outcome}
		next, err := kv.Encode(fresh)
		return next, true, err
	})
	if err != nil {
		return kv.Decoded[domain.User]{}, translateStoreError(err, op, "failed to create user profile")
	}

	switch result.Outcome {
	case kv.OutcomeMissing:
		s.logger.Info("created default user profile", "origin", origin, "user_id", result.Value.ID)
	case kv.OutcomeDefaulted:
		metrics.StoreDecodeDefaults.WithLabelValues(kv.KeyUser).Inc()
		s.logger.Warn("replaced malformed user profile", "origin", origin, "user_id", result.Value.ID)
	}
	return result, nil
}

func (s *profileService) SetUser(ctx context.Context, origin string, patch domain.UserPatch) (domain.User, error) {
	const op = "profile.set_user"
	return s.modify(ctx, op, origin, patch.Apply)
}

func (s *profileService) Credit(ctx context.Context, origin string, amount float64) (domain.User, error) {
	const op = "profile.credit"
	return s.modify(ctx, op, origin, func(u domain.User) domain.User {
		u.Balance += amount
		return u
	})
}

// modify applies fn to the current user, starting from a fresh default if
// the stored profile is unusable.
func (s *profileService) modify(ctx context.Context, op, origin string, fn func(domain.User) domain.User) (domain.User, error) {
	var updated domain.User
	err := s.store.Update(ctx, origin, kv.KeyUser, func(old []byte, exists bool) ([]byte, bool, error) {
		d, _ := decodeUser(old, exists)
		current := d.Value
		if d.Outcome != kv.OutcomeOK {
			current = s.defaultUser()
		}
		updated = fn(current)
		updated.ID = current.ID
		next, err := kv.Encode(updated)
		return next, true, err
	})
	if err != nil {
		return domain.User{}, translateStoreError(err, op, "failed to save user profile")
	}
	return updated, nil
}

// translateStoreError maps kv errors onto domain errors.
func translateStoreError(err error, op, message string) error {
	if errors.Is(err, kv.ErrConflict) {
		metrics.StoreUpdateConflicts.Inc()
		return domain.Unavailable(err, op, "The data changed while saving. Please try again.")
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	return domain.Internal(err, op, message)
}
