package workers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/zapfunil/zapfunil/internal/cache"
	"github.com/zapfunil/zapfunil/internal/intelligence"
	"github.com/zapfunil/zapfunil/internal/models"
	"github.com/zapfunil/zapfunil/internal/providers/gateway"
	pgrepo "github.com/zapfunil/zapfunil/internal/repositories/postgres"
	"github.com/zapfunil/zapfunil/internal/services"
	"github.com/zapfunil/zapfunil/internal/utils"
)

const drainLockKey = "followups:drain:lock"

// Summary is what one drain pass did.
type Summary struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// FollowUpWorker drains due follow-ups on a fixed cadence. Delivery is
// at-least-once: the claim step guarantees at most one active worker per row,
// and rows released after an error are retried on a later tick.
type FollowUpWorker struct {
	FollowUps     pgrepo.FollowUpRepo
	Instances     pgrepo.InstanceRepo
	Conversations pgrepo.ConversationRepo
	Messages      pgrepo.MessageRepo
	Memories      services.MemoryService
	Audit         pgrepo.AuditRepo

	Generator *intelligence.Generator
	Gateway   gateway.Gateway

	// Cache is optional: instance+settings lookups in the hot path.
	Cache cache.Cache
	// Redis is optional: SetNX lock so overlapping ticks do not double-drain.
	Redis *redis.Client

	Logger *logrus.Logger

	Interval     time.Duration
	BatchSize    int
	Concurrency  int
	LeaseTimeout time.Duration
	SendTimeout  time.Duration

	// Now is a clock hook for tests.
	Now func() time.Time
}

func (w *FollowUpWorker) Start(ctx context.Context) error {
	if w.FollowUps == nil || w.Instances == nil || w.Conversations == nil ||
		w.Messages == nil || w.Memories == nil || w.Gateway == nil || w.Generator == nil {
		return errors.New("FollowUpWorker missing dependency")
	}
	w.applyDefaults()

	go func() {
		ticker := time.NewTicker(w.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				summary, err := w.ProcessDue(ctx)
				if err != nil {
					w.Logger.WithError(err).Error("follow-up drain failed")
					continue
				}
				if summary.Processed > 0 {
					w.Logger.WithFields(logrus.Fields{
						"processed": summary.Processed,
						"sent":      summary.Sent,
						"failed":    summary.Failed,
						"skipped":   summary.Skipped,
					}).Info("follow-up drain")
				}
			}
		}
	}()
	return nil
}

func (w *FollowUpWorker) applyDefaults() {
	if w.Interval <= 0 {
		w.Interval = time.Minute
	}
	if w.BatchSize <= 0 {
		w.BatchSize = 50
	}
	if w.Concurrency <= 0 {
		w.Concurrency = 5
	}
	if w.LeaseTimeout <= 0 {
		w.LeaseTimeout = 5 * time.Minute
	}
	if w.SendTimeout <= 0 {
		w.SendTimeout = 15 * time.Second
	}
	if w.Logger == nil {
		w.Logger = logrus.New()
	}
	if w.Now == nil {
		w.Now = func() time.Time { return time.Now().UTC() }
	}
}

// ProcessDue runs one drain pass. Rows are grouped by conversation and groups
// run on a bounded pool, so two follow-ups of the same conversation are never
// in flight together.
func (w *FollowUpWorker) ProcessDue(ctx context.Context) (Summary, error) {
	w.applyDefaults()
	now := w.Now()

	if w.Redis != nil {
		ok, err := w.Redis.SetNX(ctx, drainLockKey, "1", w.Interval).Result()
		if err == nil && !ok {
			return Summary{}, nil // another tick is still draining
		}
		defer w.Redis.Del(context.WithoutCancel(ctx), drainLockKey)
	}

	if n, err := w.FollowUps.ReleaseStale(ctx, now.Add(-w.LeaseTimeout)); err == nil && n > 0 {
		w.Logger.WithField("count", n).Warn("released stale follow-up claims")
	}

	due, err := w.FollowUps.ListDue(ctx, now, w.BatchSize)
	if err != nil {
		return Summary{}, err
	}
	if len(due) == 0 {
		return Summary{}, nil
	}

	groups := map[string][]models.FollowUp{}
	var order []string
	for _, fu := range due {
		if _, ok := groups[fu.ConversationID]; !ok {
			order = append(order, fu.ConversationID)
		}
		groups[fu.ConversationID] = append(groups[fu.ConversationID], fu)
	}

	var (
		mu      sync.Mutex
		summary Summary
		wg      sync.WaitGroup
		sem     = make(chan struct{}, w.Concurrency)
	)

	for _, convID := range order {
		rows := groups[convID]
		wg.Add(1)
		sem <- struct{}{}
		go func(rows []models.FollowUp) {
			defer wg.Done()
			defer func() { <-sem }()

			for i := range rows {
				outcome := w.processRow(ctx, &rows[i])
				mu.Lock()
				switch outcome {
				case outcomeNotClaimed:
					// someone else owns it; nothing counted
				case outcomeSent:
					summary.Processed++
					summary.Sent++
				case outcomeSkipped:
					summary.Processed++
					summary.Skipped++
				default:
					summary.Processed++
					summary.Failed++
				}
				mu.Unlock()
			}
		}(rows)
	}
	wg.Wait()

	return summary, nil
}

type rowOutcome int

const (
	outcomeNotClaimed rowOutcome = iota
	outcomeSent
	outcomeFailed
	outcomeSkipped
)

// processRow handles one claimed follow-up end to end. A failure here never
// affects the rest of the batch.
func (w *FollowUpWorker) processRow(ctx context.Context, fu *models.FollowUp) rowOutcome {
	now := w.Now()
	log := w.Logger.WithFields(logrus.Fields{
		"follow_up_id":    fu.ID,
		"conversation_id": fu.ConversationID,
		"intent":          fu.DetectedIntent,
	})

	claimed, err := w.FollowUps.Claim(ctx, fu.ID, now)
	if err != nil {
		log.WithError(err).Error("claim failed")
		return outcomeNotClaimed
	}
	if !claimed {
		return outcomeNotClaimed
	}

	conv, err := w.Conversations.GetByID(ctx, fu.ConversationID)
	if err != nil {
		return w.retryable(ctx, fu, nil, log, "conversation lookup failed", err)
	}

	instance, err := w.getInstance(ctx, conv.InstanceID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			w.terminalFail(ctx, fu, log, "instance missing")
			return outcomeFailed
		}
		return w.retryable(ctx, fu, nil, log, "instance lookup failed", err)
	}
	if instance.Status != models.InstanceConnected {
		// Reconnecting a channel takes a human; a timer retry cannot fix it.
		w.terminalFail(ctx, fu, log, "instance disconnected")
		return outcomeFailed
	}

	settings, err := w.getSettings(ctx, conv.InstanceID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			w.terminalFail(ctx, fu, log, "automation settings missing")
			return outcomeFailed
		}
		return w.retryable(ctx, fu, nil, log, "settings lookup failed", err)
	}

	if window, ok := quietWindowFrom(settings); ok && window.contains(now) {
		next := window.nextEligible(now)
		// Deferral, not failure: retry budget untouched.
		if err := w.FollowUps.Release(ctx, fu.ID, next.UTC(), fu.RetryCount); err != nil {
			log.WithError(err).Error("quiet-hours release failed")
			return outcomeFailed
		}
		log.WithField("trigger_at", next).Info("follow-up deferred by quiet hours")
		w.auditRow(ctx, fu, "follow_up_deferred", "")
		return outcomeSkipped
	}

	body, generated := w.resolveBody(ctx, fu)
	if generated {
		// Persisted before the send: a retry after a failed send reuses this
		// text instead of paying another generation that could differ.
		if err := w.FollowUps.CacheGenerated(ctx, fu.ID, body); err != nil {
			log.WithError(err).Error("failed to cache generated message")
		}
	}

	sendCtx, cancel := context.WithTimeout(ctx, w.SendTimeout)
	providerID, err := w.Gateway.SendText(sendCtx, gateway.Credentials{Token: instance.APIToken}, conv.Phone, body)
	cancel()
	if err != nil {
		return w.retryable(ctx, fu, settings, log, "send failed", err)
	}

	outMsg := &models.Message{
		ID:                uuid.NewString(),
		ConversationID:    conv.ID,
		Direction:         models.DirectionOutbound,
		Body:              body,
		ProviderMessageID: providerID,
		Timestamp:         w.Now(),
	}
	if err := w.Messages.Insert(ctx, outMsg); err != nil {
		log.WithError(err).Error("failed to persist outbound message")
	}

	if err := w.FollowUps.MarkSent(ctx, fu.ID, outMsg.ID); err != nil {
		log.WithError(err).Error("failed to mark follow-up sent")
		return outcomeFailed
	}

	// Reactivate automation so the customer's reply is handled normally.
	if err := w.Conversations.SetPause(ctx, conv.ID, false, nil); err != nil {
		log.WithError(err).Error("failed to reactivate conversation")
	}

	w.auditRow(ctx, fu, "follow_up_sent", body)
	log.WithField("provider_message_id", providerID).Info("follow-up sent")
	return outcomeSent
}

// resolveBody reuses the cached generated message when present, otherwise
// generates one from memory and the stored context snapshot.
func (w *FollowUpWorker) resolveBody(ctx context.Context, fu *models.FollowUp) (string, bool) {
	if fu.GeneratedMessage != nil && *fu.GeneratedMessage != "" {
		return *fu.GeneratedMessage, false
	}

	memories, err := w.Memories.ListByConversation(ctx, fu.ConversationID)
	if err != nil {
		memories = nil
	}
	return w.Generator.FollowUpMessage(ctx, memories,
		fu.DetectedIntent, fu.ContextForMessage, fu.UrgencyHook, fu.OriginalCustomerMessage)
}

// retryable bumps the retry counter: at the limit the row goes terminal,
// otherwise it is released back to pending (with the configured backoff).
// settings is nil when the failure happened before settings were resolved;
// those retries go out on the next tick without backoff.
func (w *FollowUpWorker) retryable(ctx context.Context, fu *models.FollowUp, settings *models.AutomationSettings, log *logrus.Entry, msg string, cause error) rowOutcome {
	log.WithError(cause).Warn(msg)

	retries := fu.RetryCount + 1
	if retries >= fu.MaxRetries {
		if err := w.FollowUps.MarkFailed(ctx, fu.ID, retries); err != nil {
			log.WithError(err).Error("failed to mark follow-up failed")
		}
		w.auditRow(ctx, fu, "follow_up_failed", msg)
		return outcomeFailed
	}

	backoff := time.Duration(0)
	if settings != nil && settings.RetryBackoffMinutes > 0 {
		backoff = time.Duration(settings.RetryBackoffMinutes) * time.Minute
	}
	if err := w.FollowUps.Release(ctx, fu.ID, w.Now().Add(backoff), retries); err != nil {
		log.WithError(err).Error("failed to release follow-up for retry")
	}
	return outcomeFailed
}

func (w *FollowUpWorker) terminalFail(ctx context.Context, fu *models.FollowUp, log *logrus.Entry, reason string) {
	log.Warn(reason)
	if err := w.FollowUps.MarkFailed(ctx, fu.ID, fu.RetryCount); err != nil {
		log.WithError(err).Error("failed to mark follow-up failed")
	}
	w.auditRow(ctx, fu, "follow_up_failed", reason)
}

func (w *FollowUpWorker) auditRow(ctx context.Context, fu *models.FollowUp, action, detail string) {
	if w.Audit == nil {
		return
	}
	err := w.Audit.Insert(ctx, &models.AuditLog{
		ID:             uuid.NewString(),
		ConversationID: fu.ConversationID,
		Actor:          "follow_up_worker",
		Action:         action,
		Intent:         fu.DetectedIntent,
		Preview:        utils.Truncate(detail, 120),
		CreatedAt:      w.Now(),
	})
	if err != nil {
		w.Logger.WithError(err).WithFields(logrus.Fields{
			"follow_up_id": fu.ID,
			"action":       action,
		}).Error("failed to write audit entry")
	}
}

func (w *FollowUpWorker) getInstance(ctx context.Context, instanceID string) (*models.Instance, error) {
	if w.Cache != nil {
		var cached models.Instance
		if hit, err := w.Cache.GetJSON(ctx, "instance:"+instanceID, &cached); err == nil && hit {
			return &cached, nil
		}
	}
	row, err := w.Instances.GetByID(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if w.Cache != nil {
		_ = w.Cache.SetJSON(ctx, "instance:"+instanceID, row, time.Minute)
	}
	return row, nil
}

func (w *FollowUpWorker) getSettings(ctx context.Context, instanceID string) (*models.AutomationSettings, error) {
	if w.Cache != nil {
		var cached models.AutomationSettings
		if hit, err := w.Cache.GetJSON(ctx, "settings:"+instanceID, &cached); err == nil && hit {
			return &cached, nil
		}
	}
	row, err := w.Instances.GetSettings(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if w.Cache != nil {
		_ = w.Cache.SetJSON(ctx, "settings:"+instanceID, row, time.Minute)
	}
	return row, nil
}
