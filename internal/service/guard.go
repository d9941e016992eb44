package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/podsage/internal/config"
	"github.com/xxxsen/podsage/internal/model"
	"github.com/xxxsen/podsage/internal/pkg/errs"
	"go.uber.org/zap"
)

const (
	minuteWindow = 60
	dayWindow    = 86400
)

// UsageStore is the persistence surface the guard needs. *repo.UsageRepo
// implements it.
type UsageStore interface {
	Get(ctx context.Context, callerKey string) (*model.UsageRecord, bool, error)
	Save(ctx context.Context, item *model.UsageRecord) error
	AddTokens(ctx context.Context, callerKey string, tokens int, now int64) error
}

// Credits reports how much daily quota a caller has left. It rides along
// on both accepted and rejected responses so clients can show a counter.
type Credits struct {
	Remaining int `json:"remaining"`
	Total     int `json:"total"`
}

// Admission is a passed guard check. The caller holds it until the request
// is actually billable, then calls Commit.
type Admission struct {
	CallerKey string
	InputHash string
	Credits   Credits

	record *model.UsageRecord
}

// RejectionError wraps a guard rejection together with the caller's
// remaining credits so the transport layer can surface both.
type RejectionError struct {
	Err     error
	Credits Credits
}

func (e *RejectionError) Error() string {
	return e.Err.Error()
}

func (e *RejectionError) Unwrap() error {
	return e.Err
}

// Guard enforces per-caller request budgets with lazy sliding windows.
// Counters are reset on read when their window has elapsed; nothing
// sweeps the table in the background. Two concurrent requests from one
// caller can both pass the check, the budget is advisory rather than
// exact.
type Guard struct {
	store  UsageStore
	limits config.LimitsConfig
	now    func() time.Time
}

func NewGuard(store UsageStore, limits config.LimitsConfig) *Guard {
	return &Guard{store: store, limits: limits, now: time.Now}
}

// InputHash keys repeat detection. The podcast slug is part of the hash
// so the same question on two different podcasts is not a repeat.
func InputHash(podcastSlug, input string) string {
	sum := sha256.Sum256([]byte(podcastSlug + ":" + strings.ToLower(input)))
	return hex.EncodeToString(sum[:])
}

// Check verifies the caller is within budget without consuming anything.
// Rejection order: repeated input, per-minute, per-day requests, per-day
// tokens. The returned Admission carries remaining credits even on
// rejection paths.
func (g *Guard) Check(ctx context.Context, callerKey, podcastSlug, input string) (*Admission, error) {
	now := g.now().Unix()
	record, found, err := g.store.Get(ctx, callerKey)
	if err != nil {
		return nil, err
	}
	if !found {
		record = &model.UsageRecord{
			CallerKey:         callerKey,
			MinuteWindowStart: now,
			DayWindowStart:    now,
		}
	}
	if now-record.MinuteWindowStart >= minuteWindow {
		record.MinuteWindowStart = now
		record.MinuteRequestCount = 0
	}
	if now-record.DayWindowStart >= dayWindow {
		record.DayWindowStart = now
		record.DayRequestCount = 0
		record.DayTokenCount = 0
	}

	adm := &Admission{
		CallerKey: callerKey,
		InputHash: InputHash(podcastSlug, input),
		Credits: Credits{
			Remaining: max(0, g.limits.PerDay-record.DayRequestCount),
			Total:     g.limits.PerDay,
		},
		record: record,
	}

	if record.LastInputHash == adm.InputHash &&
		record.LastInputAt > 0 &&
		now-record.LastInputAt < int64(g.limits.RepeatWindowSeconds) {
		return adm, errs.ErrRepeatedInput
	}
	if record.MinuteRequestCount >= g.limits.PerMinute {
		return adm, errs.ErrRateLimited
	}
	if record.DayRequestCount >= g.limits.PerDay {
		adm.Credits.Remaining = 0
		return adm, errs.ErrRateLimited
	}
	if record.DayTokenCount >= g.limits.DayTokens {
		return adm, errs.ErrRateLimited
	}
	return adm, nil
}

// Commit consumes one credit and records the input hash. Called right
// before generation so rejected and clarification requests stay free.
func (g *Guard) Commit(ctx context.Context, adm *Admission) error {
	now := g.now().Unix()
	record := adm.record
	record.MinuteRequestCount++
	record.DayRequestCount++
	record.LastInputHash = adm.InputHash
	record.LastInputAt = now
	record.UpdatedAt = now
	adm.Credits.Remaining = max(0, g.limits.PerDay-record.DayRequestCount)
	return g.store.Save(ctx, record)
}

// AddTokens books actual spend after generation finished. Failures are
// logged and swallowed, a lost token count must not fail the request.
func (g *Guard) AddTokens(ctx context.Context, callerKey string, tokens int) {
	if tokens <= 0 {
		return
	}
	if err := g.store.AddTokens(ctx, callerKey, tokens, g.now().Unix()); err != nil {
		logutil.GetLogger(ctx).Warn("record token usage failed",
			zap.String("caller_key", callerKey), zap.Error(err))
	}
}
