package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"pharmaledger/backend/internal/cache"
	"pharmaledger/backend/internal/domain"
	"pharmaledger/backend/internal/events"
	"pharmaledger/backend/internal/lock"
	"pharmaledger/backend/internal/store"
	"pharmaledger/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	Logger    logrus.FieldLogger
	Locker    lock.Locker
	Cache     cache.ExpiryCache
	Publisher events.Publisher
	Clock     func() time.Time

	// CompanyStateCode decides intra or inter-state GST when a posting does not say.
	CompanyStateCode string
	MaxAttempts      int
	RetryBase        time.Duration
	LockTTL          time.Duration
	ExpiryTTL        time.Duration
}

type Service struct {
	repo         store.Repository
	log          logrus.FieldLogger
	locker       lock.Locker
	cache        cache.ExpiryCache
	publisher    events.Publisher
	now          func() time.Time
	companyState string
	maxAttempts  int
	retryBase    time.Duration
	lockTTL      time.Duration
	expiryTTL    time.Duration
	validate     *validator.Validate
}

func New(repo store.Repository, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Locker == nil {
		opts.Locker = lock.NewLocalLocker()
	}
	if opts.Cache == nil {
		opts.Cache = cache.NoopExpiryCache{}
	}
	if opts.Publisher == nil {
		opts.Publisher = events.Noop{}
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}
	if opts.CompanyStateCode == "" {
		opts.CompanyStateCode = "27"
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 4
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = 25 * time.Millisecond
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 10 * time.Second
	}
	if opts.ExpiryTTL <= 0 {
		opts.ExpiryTTL = time.Minute
	}

	return &Service{
		repo:         repo,
		log:          opts.Logger.WithField("component", "service"),
		locker:       opts.Locker,
		cache:        opts.Cache,
		publisher:    opts.Publisher,
		now:          opts.Clock,
		companyState: opts.CompanyStateCode,
		maxAttempts:  opts.MaxAttempts,
		retryBase:    opts.RetryBase,
		lockTTL:      opts.LockTTL,
		expiryTTL:    opts.ExpiryTTL,
		validate:     newValidator(),
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// check runs struct-tag validation and returns the collected field errors so
// callers can add hand-written checks before deciding.
func (s *Service) check(req any) *store.ValidationError {
	verr := store.NewValidationError()
	err := s.validate.Struct(req)
	if err == nil {
		return verr
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		verr.Add("request", err.Error())
		return verr
	}
	for _, fe := range fieldErrs {
		verr.Add(fieldPath(fe.Namespace()), describeTag(fe))
	}
	return verr
}

func fieldPath(namespace string) string {
	if idx := strings.Index(namespace, "."); idx >= 0 {
		return namespace[idx+1:]
	}
	return namespace
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "min":
		return "must have at least " + fe.Param()
	case "max":
		return "must have at most " + fe.Param()
	case "len":
		return "must have length " + fe.Param()
	case "email":
		return "must be a valid email"
	case "numeric", "alphanum":
		return "must be " + fe.Tag()
	}
	return "failed " + fe.Tag()
}

// checkMoney rejects negative amounts and fractions of a paisa.
func checkMoney(verr *store.ValidationError, field string, amount decimal.Decimal) {
	if amount.IsNegative() {
		verr.Add(field, "must not be negative")
		return
	}
	if !amount.Equal(amount.Round(2)) {
		verr.Add(field, "must have at most 2 decimal places")
	}
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return fmt.Errorf("%w: admin role required", store.ErrForbidden)
	}
	return nil
}

func actorName(ctx context.Context) string {
	if actor, ok := ActorFromContext(ctx); ok && actor.Username != "" {
		return actor.Username
	}
	return "system"
}

func ledgerLockKey(ledgerType string, partyID string) string {
	return "ledger:" + ledgerType + ":" + partyID
}

// post runs fn in a store transaction while holding the given keys, retrying
// with exponential backoff while the store reports a concurrency conflict.
func (s *Service) post(ctx context.Context, operation string, keys []string, fn func(ctx context.Context, tx store.Tx) error) error {
	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = s.postOnce(ctx, keys, fn)
		if !errors.Is(err, store.ErrConcurrencyConflict) {
			return err
		}

		entry := s.log.WithFields(logrus.Fields{"operation": operation, "attempt": attempt, "keys": keys})
		if attempt == s.maxAttempts {
			entry.WithError(err).Error("posting conflict persisted after retries")
			break
		}
		entry.WithError(err).Warn("posting conflict, retrying")

		delay := s.retryBase << (attempt - 1)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

func (s *Service) postOnce(ctx context.Context, keys []string, fn func(ctx context.Context, tx store.Tx) error) error {
	ordered := append([]string(nil), keys...)
	sort.Strings(ordered)

	leases := make([]lock.Lease, 0, len(ordered))
	defer func() {
		for i := len(leases) - 1; i >= 0; i-- {
			if err := leases[i].Release(context.WithoutCancel(ctx)); err != nil {
				s.log.WithError(err).Warn("failed to release posting lock")
			}
		}
	}()

	for _, key := range ordered {
		obtainCtx, cancel := context.WithTimeout(ctx, s.lockTTL)
		lease, err := s.locker.Obtain(obtainCtx, key, s.lockTTL)
		cancel()
		if errors.Is(err, lock.ErrNotObtained) {
			return fmt.Errorf("%w: %s is busy", store.ErrConcurrencyConflict, key)
		}
		if err != nil {
			return err
		}
		leases = append(leases, lease)
	}

	return s.repo.RunInTx(ctx, fn)
}

// afterCommit runs the best-effort side effects of a committed posting.
func (s *Service) afterCommit(ctx context.Context, event events.Event, stockChanged bool) {
	ctx = context.WithoutCancel(ctx)
	if stockChanged {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.log.WithError(err).Warn("failed to invalidate expiry report cache")
		}
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"event": event.Type, "key": event.Key}).Warn("failed to publish event")
	}
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	entry := s.log.WithFields(logrus.Fields{
		"action": action,
		"entity": entityType + "/" + entityID,
		"actor":  actor.Username,
	})
	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     s.now(),
	}); err != nil {
		entry.WithError(err).Warn("failed to write audit log")
		return
	}
	entry.Info(detail)
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = s.now().Add(-24 * time.Hour)
	} else {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, store.Invalid("date", "must be YYYY-MM-DD")
		}
		from = parsed.UTC()
	}
	to := from.Add(24 * time.Hour)

	return s.repo.ListAuditLogs(ctx, from, to, limit)
}
