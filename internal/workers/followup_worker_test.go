package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/zapfunil/zapfunil/internal/intelligence"
	"github.com/zapfunil/zapfunil/internal/models"
	"github.com/zapfunil/zapfunil/internal/providers/gateway"
	"github.com/zapfunil/zapfunil/internal/utils"
)

type fakeFollowUpRepo struct {
	mu   sync.Mutex
	rows map[string]*models.FollowUp
}

func newFakeFollowUpRepo(rows ...*models.FollowUp) *fakeFollowUpRepo {
	r := &fakeFollowUpRepo{rows: map[string]*models.FollowUp{}}
	for _, row := range rows {
		cp := *row
		r.rows[row.ID] = &cp
	}
	return r
}

func (r *fakeFollowUpRepo) get(id string) models.FollowUp {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.rows[id]
}

func (r *fakeFollowUpRepo) Insert(_ context.Context, fu *models.FollowUp) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *fu
	r.rows[fu.ID] = &cp
	return nil
}

func (r *fakeFollowUpRepo) GetByID(_ context.Context, id string) (*models.FollowUp, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (r *fakeFollowUpRepo) ListByConversation(_ context.Context, conversationID string) ([]models.FollowUp, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.FollowUp
	for _, row := range r.rows {
		if row.ConversationID == conversationID {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (r *fakeFollowUpRepo) ListDue(_ context.Context, now time.Time, _ int) ([]models.FollowUp, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.FollowUp
	for _, row := range r.rows {
		if row.Status == models.FollowUpPending && !row.TriggerAt.After(now) {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (r *fakeFollowUpRepo) CountActive(_ context.Context, conversationID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, row := range r.rows {
		if row.ConversationID == conversationID &&
			(row.Status == models.FollowUpPending || row.Status == models.FollowUpSent) {
			n++
		}
	}
	return n, nil
}

func (r *fakeFollowUpRepo) CancelPending(_ context.Context, conversationID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, row := range r.rows {
		if row.ConversationID == conversationID && row.Status == models.FollowUpPending {
			row.Status = models.FollowUpCancelled
			n++
		}
	}
	return n, nil
}

func (r *fakeFollowUpRepo) Claim(_ context.Context, id string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.Status != models.FollowUpPending {
		return false, nil
	}
	row.Status = models.FollowUpProcessing
	row.ClaimedAt = &now
	return true, nil
}

func (r *fakeFollowUpRepo) Release(_ context.Context, id string, triggerAt time.Time, retryCount int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.rows[id]; ok {
		row.Status = models.FollowUpPending
		row.TriggerAt = triggerAt
		row.RetryCount = retryCount
		row.ClaimedAt = nil
	}
	return nil
}

func (r *fakeFollowUpRepo) ReleaseStale(_ context.Context, olderThan time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, row := range r.rows {
		if row.Status == models.FollowUpProcessing && row.ClaimedAt != nil && row.ClaimedAt.Before(olderThan) {
			row.Status = models.FollowUpPending
			row.ClaimedAt = nil
			n++
		}
	}
	return n, nil
}

func (r *fakeFollowUpRepo) CacheGenerated(_ context.Context, id, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.rows[id]; ok {
		row.GeneratedMessage = &body
	}
	return nil
}

func (r *fakeFollowUpRepo) MarkSent(_ context.Context, id, sentMessageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.rows[id]; ok {
		row.Status = models.FollowUpSent
		row.SentMessageID = &sentMessageID
		row.ClaimedAt = nil
	}
	return nil
}

func (r *fakeFollowUpRepo) MarkFailed(_ context.Context, id string, retryCount int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.rows[id]; ok {
		row.Status = models.FollowUpFailed
		row.RetryCount = retryCount
		row.ClaimedAt = nil
	}
	return nil
}

type fakeInstanceRepo struct {
	instances map[string]*models.Instance
	settings  map[string]*models.AutomationSettings
	byIDErr   error
}

func (r *fakeInstanceRepo) GetByID(_ context.Context, id string) (*models.Instance, error) {
	if r.byIDErr != nil {
		return nil, r.byIDErr
	}
	row, ok := r.instances[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (r *fakeInstanceRepo) GetSettings(_ context.Context, instanceID string) (*models.AutomationSettings, error) {
	row, ok := r.settings[instanceID]
	if !ok {
		return nil, utils.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

type pauseCall struct {
	id     string
	paused bool
}

type fakeConversationRepo struct {
	mu    sync.Mutex
	rows  map[string]*models.Conversation
	calls []pauseCall
}

func (r *fakeConversationRepo) GetByID(_ context.Context, id string) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (r *fakeConversationRepo) GetOrCreateByPhone(_ context.Context, _, _ string) (*models.Conversation, error) {
	return nil, errors.New("not used by the worker")
}

func (r *fakeConversationRepo) SetPause(_ context.Context, id string, paused bool, reason *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, pauseCall{id: id, paused: paused})
	if row, ok := r.rows[id]; ok {
		row.AIActive = !paused
		row.AIPausedReason = nil
		if paused {
			row.AIPausedReason = reason
		}
	}
	return nil
}

type fakeMessageRepo struct {
	mu   sync.Mutex
	rows []models.Message
}

func (r *fakeMessageRepo) Insert(_ context.Context, msg *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, *msg)
	return nil
}

func (r *fakeMessageRepo) ListRecent(_ context.Context, _ string, _ int) ([]models.Message, error) {
	return nil, nil
}

type fakeMemoryService struct{}

func (fakeMemoryService) Upsert(_ context.Context, _ string, _ intelligence.ExtractedMemory, _ *string) (*models.ChatMemory, error) {
	return nil, nil
}

func (fakeMemoryService) UpsertBatch(_ context.Context, _ string, _ []intelligence.ExtractedMemory, _ *string) error {
	return nil
}

func (fakeMemoryService) ListByConversation(_ context.Context, _ string) ([]models.ChatMemory, error) {
	return nil, nil
}

type sentText struct {
	token string
	phone string
	body  string
}

type fakeGateway struct {
	mu    sync.Mutex
	err   error
	sends []sentText
}

func (g *fakeGateway) SendText(_ context.Context, creds gateway.Credentials, toPhone, body string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	g.sends = append(g.sends, sentText{token: creds.Token, phone: toPhone, body: body})
	return "wamid-123", nil
}

type fakeAuditRepo struct {
	mu   sync.Mutex
	err  error
	rows []models.AuditLog
}

func (r *fakeAuditRepo) Insert(_ context.Context, entry *models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.rows = append(r.rows, *entry)
	return nil
}

func (r *fakeAuditRepo) ListByConversation(_ context.Context, _ string, _ int) ([]models.AuditLog, error) {
	return nil, nil
}

func (r *fakeAuditRepo) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, row := range r.rows {
		out = append(out, row.Action)
	}
	return out
}

// harness wires a worker against in-memory fakes with one connected instance
// and one active conversation.
type harness struct {
	worker        *FollowUpWorker
	followUps     *fakeFollowUpRepo
	conversations *fakeConversationRepo
	messages      *fakeMessageRepo
	gateway       *fakeGateway
	audit         *fakeAuditRepo
	instances     *fakeInstanceRepo
}

func newHarness(now time.Time, rows ...*models.FollowUp) *harness {
	followUps := newFakeFollowUpRepo(rows...)
	instances := &fakeInstanceRepo{
		instances: map[string]*models.Instance{
			"inst-1": {ID: "inst-1", Status: models.InstanceConnected, APIToken: "tok-1"},
		},
		settings: map[string]*models.AutomationSettings{
			"inst-1": {InstanceID: "inst-1", EnableFollowUps: true},
		},
	}
	conversations := &fakeConversationRepo{rows: map[string]*models.Conversation{
		"conv-1": {ID: "conv-1", InstanceID: "inst-1", Phone: "+5511999990000", AIActive: false},
	}}
	messages := &fakeMessageRepo{}
	gw := &fakeGateway{}
	audit := &fakeAuditRepo{}

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	w := &FollowUpWorker{
		FollowUps:     followUps,
		Instances:     instances,
		Conversations: conversations,
		Messages:      messages,
		Memories:      fakeMemoryService{},
		Audit:         audit,
		Generator:     intelligence.NewGenerator(nil),
		Gateway:       gw,
		Logger:        log,
		Now:           func() time.Time { return now },
	}

	return &harness{
		worker:        w,
		followUps:     followUps,
		conversations: conversations,
		messages:      messages,
		gateway:       gw,
		audit:         audit,
		instances:     instances,
	}
}

func dueFollowUp(id string, triggerAt time.Time) *models.FollowUp {
	return &models.FollowUp{
		ID:                      id,
		ConversationID:          "conv-1",
		TriggerAt:               triggerAt,
		Status:                  models.FollowUpPending,
		Type:                    "intent_follow_up",
		DetectedIntent:          "check_with_spouse",
		ContextForMessage:       "spouse check",
		OriginalCustomerMessage: "vou ver com minha esposa",
		MaxRetries:              3,
	}
}

func TestProcessDueSendsDueFollowUp(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	h := newHarness(now, dueFollowUp("fu-1", now.Add(-time.Minute)))

	summary, err := h.worker.ProcessDue(context.Background())
	require.NoError(t, err)
	require.Equal(t, Summary{Processed: 1, Sent: 1}, summary)

	row := h.followUps.get("fu-1")
	require.Equal(t, models.FollowUpSent, row.Status)
	require.Nil(t, row.ClaimedAt)
	require.NotNil(t, row.SentMessageID)

	// outbound message persisted and linked back to the follow-up
	require.Len(t, h.messages.rows, 1)
	out := h.messages.rows[0]
	require.Equal(t, models.DirectionOutbound, out.Direction)
	require.Equal(t, "conv-1", out.ConversationID)
	require.Equal(t, out.ID, *row.SentMessageID)
	require.Equal(t, intelligence.FallbackFollowUpMessage, out.Body)

	// sent through the gateway with the instance token
	require.Len(t, h.gateway.sends, 1)
	require.Equal(t, "tok-1", h.gateway.sends[0].token)
	require.Equal(t, "+5511999990000", h.gateway.sends[0].phone)

	// automation reactivated
	require.Equal(t, []pauseCall{{id: "conv-1", paused: false}}, h.conversations.calls)
	require.Contains(t, h.audit.actions(), "follow_up_sent")
}

func TestProcessDueIgnoresNotYetDue(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	h := newHarness(now, dueFollowUp("fu-1", now.Add(time.Hour)))

	summary, err := h.worker.ProcessDue(context.Background())
	require.NoError(t, err)
	require.Equal(t, Summary{}, summary)
	require.Equal(t, models.FollowUpPending, h.followUps.get("fu-1").Status)
	require.Empty(t, h.gateway.sends)
}

func TestProcessDueUsesCachedGeneratedMessage(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	fu := dueFollowUp("fu-1", now.Add(-time.Minute))
	cached := "Oi! Conversou com sua esposa? Qualquer dúvida estou aqui."
	fu.GeneratedMessage = &cached
	h := newHarness(now, fu)

	summary, err := h.worker.ProcessDue(context.Background())
	require.NoError(t, err)
	require.Equal(t, Summary{Processed: 1, Sent: 1}, summary)

	require.Len(t, h.gateway.sends, 1)
	require.Equal(t, cached, h.gateway.sends[0].body)
}

func TestProcessDueDefersDuringQuietHours(t *testing.T) {
	// 02:00 with a 22:00-08:00 window: defer to 08:05 same day
	now := time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC)
	h := newHarness(now, dueFollowUp("fu-1", now.Add(-time.Minute)))
	h.instances.settings["inst-1"].QuietHoursStart = "22:00"
	h.instances.settings["inst-1"].QuietHoursEnd = "08:00"
	h.instances.settings["inst-1"].Timezone = "UTC"

	summary, err := h.worker.ProcessDue(context.Background())
	require.NoError(t, err)
	require.Equal(t, Summary{Processed: 1, Skipped: 1}, summary)

	row := h.followUps.get("fu-1")
	require.Equal(t, models.FollowUpPending, row.Status)
	require.Equal(t, time.Date(2026, 3, 10, 8, 5, 0, 0, time.UTC), row.TriggerAt)
	require.Equal(t, 0, row.RetryCount, "deferral must not consume retry budget")

	require.Empty(t, h.gateway.sends)
	require.Contains(t, h.audit.actions(), "follow_up_deferred")
}

func TestProcessDueFailsTerminallyWhenInstanceDisconnected(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	h := newHarness(now, dueFollowUp("fu-1", now.Add(-time.Minute)))
	h.instances.instances["inst-1"].Status = models.InstanceDisconnected

	summary, err := h.worker.ProcessDue(context.Background())
	require.NoError(t, err)
	require.Equal(t, Summary{Processed: 1, Failed: 1}, summary)

	row := h.followUps.get("fu-1")
	require.Equal(t, models.FollowUpFailed, row.Status)
	require.Equal(t, 0, row.RetryCount, "no send was attempted")
	require.Empty(t, h.gateway.sends)
	require.Contains(t, h.audit.actions(), "follow_up_failed")
}

func TestProcessDueReleasesForRetryOnSendError(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	h := newHarness(now, dueFollowUp("fu-1", now.Add(-time.Minute)))
	h.gateway.err = errors.New("gateway 503")

	summary, err := h.worker.ProcessDue(context.Background())
	require.NoError(t, err)
	require.Equal(t, Summary{Processed: 1, Failed: 1}, summary)

	row := h.followUps.get("fu-1")
	require.Equal(t, models.FollowUpPending, row.Status)
	require.Equal(t, 1, row.RetryCount)
	require.Nil(t, row.ClaimedAt)
}

func TestProcessDueRetryHonorsBackoff(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	h := newHarness(now, dueFollowUp("fu-1", now.Add(-time.Minute)))
	h.instances.settings["inst-1"].RetryBackoffMinutes = 10
	h.gateway.err = errors.New("gateway 503")

	_, err := h.worker.ProcessDue(context.Background())
	require.NoError(t, err)

	row := h.followUps.get("fu-1")
	require.Equal(t, models.FollowUpPending, row.Status)
	require.Equal(t, now.Add(10*time.Minute), row.TriggerAt)
}

func TestProcessDueFailsAtMaxRetries(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	fu := dueFollowUp("fu-1", now.Add(-time.Minute))
	fu.RetryCount = 2 // next failure is the third attempt
	h := newHarness(now, fu)
	h.gateway.err = errors.New("gateway 503")

	summary, err := h.worker.ProcessDue(context.Background())
	require.NoError(t, err)
	require.Equal(t, Summary{Processed: 1, Failed: 1}, summary)

	row := h.followUps.get("fu-1")
	require.Equal(t, models.FollowUpFailed, row.Status)
	require.Equal(t, 3, row.RetryCount)
	require.Contains(t, h.audit.actions(), "follow_up_failed")
}

func TestProcessDueRecoversStaleClaims(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	fu := dueFollowUp("fu-1", now.Add(-time.Hour))
	fu.Status = models.FollowUpProcessing
	stale := now.Add(-time.Hour)
	fu.ClaimedAt = &stale
	h := newHarness(now, fu)

	summary, err := h.worker.ProcessDue(context.Background())
	require.NoError(t, err)
	// lease expired: the row is released and drained in the same pass
	require.Equal(t, Summary{Processed: 1, Sent: 1}, summary)
	require.Equal(t, models.FollowUpSent, h.followUps.get("fu-1").Status)
}

func TestProcessDueSkipsFreshClaims(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	fu := dueFollowUp("fu-1", now.Add(-time.Minute))
	fu.Status = models.FollowUpProcessing
	fresh := now.Add(-time.Minute)
	fu.ClaimedAt = &fresh
	h := newHarness(now, fu)

	summary, err := h.worker.ProcessDue(context.Background())
	require.NoError(t, err)
	require.Equal(t, Summary{}, summary)
	require.Equal(t, models.FollowUpProcessing, h.followUps.get("fu-1").Status)
}

type countingProvider struct {
	mu    sync.Mutex
	reply string
	calls int
}

func (p *countingProvider) Complete(_ context.Context, _, _ string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.reply, nil
}

func (p *countingProvider) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func TestProcessDueKeepsGeneratedBodyAcrossRetry(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	h := newHarness(now, dueFollowUp("fu-1", now.Add(-time.Minute)))

	provider := &countingProvider{reply: "Oi! Conversou com sua esposa sobre o plano?"}
	h.worker.Generator = intelligence.NewGenerator(provider)
	h.gateway.err = errors.New("gateway 503")

	_, err := h.worker.ProcessDue(context.Background())
	require.NoError(t, err)

	// body generated once and kept on the released row
	row := h.followUps.get("fu-1")
	require.Equal(t, models.FollowUpPending, row.Status)
	require.Equal(t, 1, provider.count())
	require.NotNil(t, row.GeneratedMessage)
	require.Equal(t, provider.reply, *row.GeneratedMessage)

	// gateway recovers: the retry sends the same text without regenerating
	h.gateway.err = nil
	summary, err := h.worker.ProcessDue(context.Background())
	require.NoError(t, err)
	require.Equal(t, Summary{Processed: 1, Sent: 1}, summary)

	require.Equal(t, 1, provider.count())
	require.Len(t, h.gateway.sends, 1)
	require.Equal(t, provider.reply, h.gateway.sends[0].body)
}

func TestProcessDueLookupFailureRetriesNextTick(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	h := newHarness(now, dueFollowUp("fu-1", now.Add(-time.Minute)))
	h.instances.settings["inst-1"].RetryBackoffMinutes = 10
	h.instances.byIDErr = errors.New("connection reset")

	summary, err := h.worker.ProcessDue(context.Background())
	require.NoError(t, err)
	require.Equal(t, Summary{Processed: 1, Failed: 1}, summary)

	// backoff applies to send failures; a failure before settings were
	// resolved retries on the next tick
	row := h.followUps.get("fu-1")
	require.Equal(t, models.FollowUpPending, row.Status)
	require.Equal(t, 1, row.RetryCount)
	require.Equal(t, now, row.TriggerAt)
}

func TestProcessDueAuditFailureDoesNotBlockSend(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	h := newHarness(now, dueFollowUp("fu-1", now.Add(-time.Minute)))
	h.audit.err = errors.New("audit table gone")

	summary, err := h.worker.ProcessDue(context.Background())
	require.NoError(t, err)
	require.Equal(t, Summary{Processed: 1, Sent: 1}, summary)
	require.Equal(t, models.FollowUpSent, h.followUps.get("fu-1").Status)
}

func TestProcessDueHandlesBatch(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	h := newHarness(now,
		dueFollowUp("fu-1", now.Add(-3*time.Minute)),
		dueFollowUp("fu-2", now.Add(-2*time.Minute)),
		dueFollowUp("fu-3", now.Add(-time.Minute)),
	)

	summary, err := h.worker.ProcessDue(context.Background())
	require.NoError(t, err)
	require.Equal(t, Summary{Processed: 3, Sent: 3}, summary)
	require.Len(t, h.gateway.sends, 3)
	for _, id := range []string{"fu-1", "fu-2", "fu-3"} {
		require.Equal(t, models.FollowUpSent, h.followUps.get(id).Status)
	}
}
