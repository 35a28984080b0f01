package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zapfunil/zapfunil/internal/intelligence"
	"github.com/zapfunil/zapfunil/internal/intent"
	"github.com/zapfunil/zapfunil/internal/models"
	"github.com/zapfunil/zapfunil/internal/utils"
)

type stubInstanceRepo struct {
	instance *models.Instance
	settings *models.AutomationSettings
}

func (s *stubInstanceRepo) GetByID(_ context.Context, id string) (*models.Instance, error) {
	if s.instance == nil || s.instance.ID != id {
		return nil, utils.ErrNotFound
	}
	cp := *s.instance
	return &cp, nil
}

func (s *stubInstanceRepo) GetSettings(_ context.Context, _ string) (*models.AutomationSettings, error) {
	if s.settings == nil {
		return nil, utils.ErrNotFound
	}
	cp := *s.settings
	return &cp, nil
}

type stubConversationRepo struct {
	conv        models.Conversation
	pausedTo    *bool
	pauseReason *string
}

func (s *stubConversationRepo) GetByID(_ context.Context, id string) (*models.Conversation, error) {
	if id != s.conv.ID {
		return nil, utils.ErrNotFound
	}
	cp := s.conv
	return &cp, nil
}

func (s *stubConversationRepo) GetOrCreateByPhone(_ context.Context, instanceID, phone string) (*models.Conversation, error) {
	s.conv.InstanceID = instanceID
	s.conv.Phone = phone
	cp := s.conv
	return &cp, nil
}

func (s *stubConversationRepo) SetPause(_ context.Context, _ string, paused bool, reason *string) error {
	s.pausedTo = &paused
	s.pauseReason = reason
	return nil
}

type stubMessageRepo struct {
	inserted []models.Message
	recent   []models.Message
}

func (s *stubMessageRepo) Insert(_ context.Context, msg *models.Message) error {
	s.inserted = append(s.inserted, *msg)
	return nil
}

func (s *stubMessageRepo) ListRecent(_ context.Context, _ string, _ int) ([]models.Message, error) {
	return s.recent, nil
}

type stubLabelService struct {
	assigned []string
}

func (s *stubLabelService) AssignByName(_ context.Context, _, name, _ string) error {
	s.assigned = append(s.assigned, name)
	return nil
}

func (s *stubLabelService) RemoveByName(_ context.Context, _, _ string) error { return nil }

func (s *stubLabelService) ListByConversation(_ context.Context, _ string) ([]models.Label, error) {
	return nil, nil
}

type stubAuditRepo struct {
	err  error
	rows []models.AuditLog
}

func (s *stubAuditRepo) Insert(_ context.Context, entry *models.AuditLog) error {
	if s.err != nil {
		return s.err
	}
	s.rows = append(s.rows, *entry)
	return nil
}

func (s *stubAuditRepo) ListByConversation(_ context.Context, _ string, _ int) ([]models.AuditLog, error) {
	return nil, nil
}

type pipeline struct {
	svc           AnalysisService
	instances     *stubInstanceRepo
	conversations *stubConversationRepo
	messages      *stubMessageRepo
	labels        *stubLabelService
	followUps     *mockFollowUpRepo
	scores        *mockLeadScoreRepo
	memories      *mockMemoryRepo
	audit         *stubAuditRepo
}

func newPipeline() *pipeline {
	p := &pipeline{
		instances: &stubInstanceRepo{
			instance: &models.Instance{ID: "inst-1", OrgID: "org-1", Status: models.InstanceConnected},
			settings: &models.AutomationSettings{
				InstanceID:      "inst-1",
				EnableMemory:    true,
				EnableFollowUps: true,
				EnableAutoLabel: true,
			},
		},
		conversations: &stubConversationRepo{conv: models.Conversation{ID: "conv-1", AIActive: true}},
		messages:      &stubMessageRepo{},
		labels:        &stubLabelService{},
		followUps:     newMockFollowUpRepo(),
		scores:        newMockLeadScoreRepo(),
		memories:      newMockMemoryRepo(),
		audit:         &stubAuditRepo{},
	}

	extractor := intelligence.NewExtractor(intent.NewMatcher(nil), nil, nil)
	p.svc = NewAnalysisService(
		extractor,
		p.instances,
		p.conversations,
		p.messages,
		NewMemoryService(p.memories),
		NewLeadScoreService(p.scores),
		p.labels,
		NewFollowUpService(p.followUps),
		p.audit,
		nil,
	)
	return p
}

func inbound(body string) InboundMessage {
	return InboundMessage{
		InstanceID:        "inst-1",
		Phone:             "+5511999990000",
		Body:              body,
		ProviderMessageID: "wamid-1",
	}
}

func TestProcessInboundSchedulesFollowUp(t *testing.T) {
	p := newPipeline()

	result, err := p.svc.ProcessInbound(context.Background(), inbound("vou ver com minha esposa"))
	require.NoError(t, err)
	require.Len(t, result.Intents, 1)
	require.Equal(t, "check_with_spouse", result.Intents[0].Name)

	// inbound message persisted
	require.Len(t, p.messages.inserted, 1)
	require.Equal(t, models.DirectionInbound, p.messages.inserted[0].Direction)

	// one pending follow-up 30 minutes out
	rows, err := p.followUps.ListByConversation(context.Background(), "conv-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, models.FollowUpPending, rows[0].Status)
	require.Equal(t, "check_with_spouse", rows[0].DetectedIntent)

	// score and label applied
	score, err := p.scores.GetByConversation(context.Background(), "conv-1")
	require.NoError(t, err)
	require.Equal(t, 5, score.Score)
	require.Equal(t, []string{"Aguardando"}, p.labels.assigned)

	require.Nil(t, p.conversations.pausedTo)
	require.Len(t, p.audit.rows, 1)
	require.Equal(t, "message_analyzed", p.audit.rows[0].Action)
}

func TestProcessInboundPausesAndCancelsFollowUps(t *testing.T) {
	p := newPipeline()
	ctx := context.Background()

	// schedule something first, then the customer asks for a human
	_, err := p.svc.ProcessInbound(ctx, inbound("vou ver com minha esposa"))
	require.NoError(t, err)

	result, err := p.svc.ProcessInbound(ctx, inbound("quero falar com atendente"))
	require.NoError(t, err)
	require.True(t, result.ShouldPause)

	require.NotNil(t, p.conversations.pausedTo)
	require.True(t, *p.conversations.pausedTo)
	require.NotNil(t, p.conversations.pauseReason)

	rows, err := p.followUps.ListByConversation(ctx, "conv-1")
	require.NoError(t, err)
	for _, r := range rows {
		require.Equal(t, models.FollowUpCancelled, r.Status)
	}
}

func TestProcessInboundSkipsFollowUpWhenDisabled(t *testing.T) {
	p := newPipeline()
	p.instances.settings.EnableFollowUps = false

	_, err := p.svc.ProcessInbound(context.Background(), inbound("vou ver com minha esposa"))
	require.NoError(t, err)

	rows, err := p.followUps.ListByConversation(context.Background(), "conv-1")
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestProcessInboundSkipsLabelsWhenDisabled(t *testing.T) {
	p := newPipeline()
	p.instances.settings.EnableAutoLabel = false

	_, err := p.svc.ProcessInbound(context.Background(), inbound("quero fechar"))
	require.NoError(t, err)
	require.Empty(t, p.labels.assigned)
}

func TestProcessInboundAuditFailureIsNotFatal(t *testing.T) {
	p := newPipeline()
	p.audit.err = errors.New("audit table gone")

	_, err := p.svc.ProcessInbound(context.Background(), inbound("vou ver com minha esposa"))
	require.NoError(t, err)

	// the pipeline outcome still landed
	rows, err := p.followUps.ListByConversation(context.Background(), "conv-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestProcessInboundUnknownInstance(t *testing.T) {
	p := newPipeline()
	in := inbound("oi")
	in.InstanceID = "inst-missing"

	_, err := p.svc.ProcessInbound(context.Background(), in)
	require.Error(t, err)
	require.True(t, utils.IsCode(err, utils.CodeNotFound))
}

func TestProcessInboundValidation(t *testing.T) {
	p := newPipeline()
	ctx := context.Background()

	for _, in := range []InboundMessage{
		{Phone: "+55", Body: "oi"},
		{InstanceID: "inst-1", Body: "oi"},
		{InstanceID: "inst-1", Phone: "+55"},
	} {
		_, err := p.svc.ProcessInbound(ctx, in)
		require.Error(t, err)
		require.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
	}
}

func TestFormatHistoryReversesAndTags(t *testing.T) {
	recent := []models.Message{
		{Direction: models.DirectionInbound, Body: "quanto custa?"},
		{Direction: models.DirectionOutbound, Body: "bom dia!"},
	}
	require.Equal(t, "agent: bom dia!\ncustomer: quanto custa?\n", formatHistory(recent))
}
