package chat

import (
	"context"
	"strings"
	"testing"

	"buildadvisor/internal/database/dbtest"
	"buildadvisor/internal/domain/billing"
	"buildadvisor/internal/domain/profile"
	"buildadvisor/internal/domain/usage"
	"buildadvisor/internal/pkg/apperr"
	"buildadvisor/internal/pkg/gemini"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockGenerator struct{ mock.Mock }

func (m *mockGenerator) GenerateContent(ctx context.Context, req gemini.Request) (*gemini.Response, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*gemini.Response)
	return resp, args.Error(1)
}

func textResponse(parts ...string) *gemini.Response {
	c := gemini.Candidate{Content: gemini.Content{Role: "model"}}
	for _, p := range parts {
		c.Content.Parts = append(c.Content.Parts, gemini.Part{Text: p})
	}
	return &gemini.Response{Candidates: []gemini.Candidate{c}}
}

type fixture struct {
	svc      *Service
	gen      *mockGenerator
	profiles profile.Repository
	counters usage.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t, &profile.UserProfile{}, &usage.Counters{})
	f := &fixture{
		gen:      &mockGenerator{},
		profiles: profile.NewRepository(db),
		counters: usage.NewRepository(db),
	}
	prompts := map[string]string{"blue": "You are the blue advisor.", "gold": "You are the gold advisor."}
	f.svc = NewService(f.gen, usage.NewGate(f.profiles, f.counters), f.counters, prompts, zap.NewNop())
	return f
}

func TestReply_FirstMessage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.gen.On("GenerateContent", mock.Anything, mock.Anything).Return(textResponse("Use ", "rebar."), nil).Once()

	reply, err := f.svc.Reply(ctx, "u1", Request{Plan: "blue", Message: "How thick should a slab be?"})
	require.NoError(t, err)
	assert.Equal(t, "Use rebar.", reply.Message)
	assert.Equal(t, int64(1), reply.FreeAnswersUsed)
	assert.Equal(t, int64(1), reply.TotalAnswers)
	assert.Equal(t, int64(2), reply.RemainingFree)
	assert.Equal(t, int64(3), reply.Limit)
	assert.False(t, reply.HasActivePlan)
	f.gen.AssertExpectations(t)
}

func TestReply_RequestShape(t *testing.T) {
	f := newFixture(t)
	f.gen.On("GenerateContent", mock.Anything, mock.MatchedBy(func(r gemini.Request) bool {
		if r.SystemInstruction == nil || r.SystemInstruction.Parts[0].Text != "You are the gold advisor." {
			return false
		}
		if r.GenerationConfig.Temperature != 0.7 || r.GenerationConfig.MaxOutputTokens != 4000 {
			return false
		}
		if len(r.Contents) != 3 {
			return false
		}
		last := r.Contents[2]
		return r.Contents[0].Role == "user" && r.Contents[0].Parts[0].Text == "q1" &&
			r.Contents[1].Role == "model" && r.Contents[1].Parts[0].Text == "a1" &&
			last.Role == "user" && last.Parts[0].Text == "q2" &&
			last.Parts[1].InlineData != nil && last.Parts[1].InlineData.MimeType == "image/jpeg"
	})).Return(textResponse("ok"), nil).Once()

	_, err := f.svc.Reply(context.Background(), "u1", Request{
		Plan:    "GOLD",
		Message: "q2",
		MessageParts: []Part{
			{InlineData: &InlineData{MimeType: "image/jpeg", Data: "aGVsbG8="}},
		},
		History: []Turn{{Role: "user", Text: "q1"}, {Role: "model", Text: "a1"}},
	})
	require.NoError(t, err)
	f.gen.AssertExpectations(t)
}

func TestReply_MessageAndPartsNotDuplicated(t *testing.T) {
	f := newFixture(t)
	f.gen.On("GenerateContent", mock.Anything, mock.MatchedBy(func(r gemini.Request) bool {
		last := r.Contents[len(r.Contents)-1]
		return len(last.Parts) == 2 &&
			last.Parts[0].Text == "check this drawing" &&
			last.Parts[1].InlineData != nil &&
			string(last.Parts[1].InlineData.Data) == "hi"
	})).Return(textResponse("ok"), nil).Once()

	_, err := f.svc.Reply(context.Background(), "u1", Request{
		Message: "check this drawing",
		MessageParts: []Part{
			{Text: "check this drawing"},
			{InlineData: &InlineData{MimeType: "image/png", Data: "aGk="}},
		},
	})
	require.NoError(t, err)
	f.gen.AssertExpectations(t)
}

func TestReply_HistoryAttachmentIsDecoded(t *testing.T) {
	f := newFixture(t)
	f.gen.On("GenerateContent", mock.Anything, mock.MatchedBy(func(r gemini.Request) bool {
		first := r.Contents[0]
		return len(r.Contents) == 2 && len(first.Parts) == 2 &&
			first.Parts[1].InlineData != nil &&
			string(first.Parts[1].InlineData.Data) == "hello"
	})).Return(textResponse("ok"), nil).Once()

	_, err := f.svc.Reply(context.Background(), "u1", Request{
		Message: "and now?",
		History: []Turn{{Role: "user", Parts: []Part{
			{Text: "earlier photo"},
			{InlineData: &InlineData{MimeType: "image/jpeg", Data: "data:image/jpeg;base64,aGVsbG8="}},
		}}},
	})
	require.NoError(t, err)
	f.gen.AssertExpectations(t)
}

func TestReply_QuotaExhaustedSkipsGeneration(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for i := 0; i < billing.FreeAnswerLimit; i++ {
		require.NoError(t, f.counters.IncrementAfterSuccess(ctx, "u1", false))
	}

	_, err := f.svc.Reply(ctx, "u1", Request{Plan: "blue", Message: "one more?"})
	var quota *QuotaError
	require.ErrorAs(t, err, &quota)
	assert.False(t, quota.Decision.Allow)
	assert.Equal(t, apperr.KindQuotaExceeded, apperr.KindOf(err))
	f.gen.AssertNotCalled(t, "GenerateContent", mock.Anything, mock.Anything)

	c, err := f.counters.Read(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), c.FreeAnswersUsed)
}

func TestReply_FreeUsageIsMonotonic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.gen.On("GenerateContent", mock.Anything, mock.Anything).Return(textResponse("answer"), nil)

	for want := int64(1); want <= billing.FreeAnswerLimit; want++ {
		reply, err := f.svc.Reply(ctx, "u1", Request{Message: "q"})
		require.NoError(t, err)
		assert.Equal(t, want, reply.FreeAnswersUsed)
		assert.Equal(t, billing.FreeAnswerLimit-want, reply.RemainingFree)
	}

	_, err := f.svc.Reply(ctx, "u1", Request{Message: "q"})
	assert.Equal(t, apperr.KindQuotaExceeded, apperr.KindOf(err))
}

func TestReply_ActivePlanBypassesQuota(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for i := 0; i < billing.FreeAnswerLimit; i++ {
		require.NoError(t, f.counters.IncrementAfterSuccess(ctx, "u1", false))
	}
	require.NoError(t, f.profiles.Upsert(ctx, "u1", profile.Update{
		Plan:   profile.Set(billing.PlanGold),
		Status: profile.Set(billing.StatusActive),
	}))
	f.gen.On("GenerateContent", mock.Anything, mock.Anything).Return(textResponse("paid answer"), nil)

	reply, err := f.svc.Reply(ctx, "u1", Request{Plan: "gold", Message: "q"})
	require.NoError(t, err)
	assert.True(t, reply.HasActivePlan)
	assert.Equal(t, billing.PlanGold, reply.Plan)
	assert.Equal(t, int64(3), reply.FreeAnswersUsed, "paid turns must not touch the free counter")
	assert.Equal(t, int64(4), reply.TotalAnswers)
}

func TestReply_FailedGenerationIsFree(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.gen.On("GenerateContent", mock.Anything, mock.Anything).
		Return(nil, &gemini.APIError{StatusCode: 503, Body: "overloaded"})

	_, err := f.svc.Reply(ctx, "u1", Request{Message: "q"})
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
	assert.NotContains(t, apperr.PublicMessage(err), "overloaded")

	c, err := f.counters.Read(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, c.TotalAnswers)
}

func TestReply_MissingPromptConsumesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Reply(ctx, "u1", Request{Plan: "green", Message: "q"})
	assert.ErrorIs(t, err, ErrPromptMissing)
	f.gen.AssertNotCalled(t, "GenerateContent", mock.Anything, mock.Anything)
}

func TestReply_EmptyCandidateFallsBack(t *testing.T) {
	f := newFixture(t)
	f.gen.On("GenerateContent", mock.Anything, mock.Anything).Return(&gemini.Response{}, nil)

	reply, err := f.svc.Reply(context.Background(), "u1", Request{Message: "q"})
	require.NoError(t, err)
	assert.Equal(t, noAnswerText, reply.Message)
	assert.Equal(t, int64(1), reply.TotalAnswers)
}

func TestReply_Validation(t *testing.T) {
	huge := strings.Repeat("A", 11184816)
	cases := map[string]struct {
		req  Request
		kind apperr.Kind
	}{
		"empty":          {Request{Message: "   "}, apperr.KindInvalidInput},
		"bad role":       {Request{Message: "q", History: []Turn{{Role: "system", Text: "x"}}}, apperr.KindInvalidInput},
		"no mime":        {Request{MessageParts: []Part{{InlineData: &InlineData{Data: "aGk="}}}}, apperr.KindInvalidInput},
		"not base64":     {Request{MessageParts: []Part{{InlineData: &InlineData{MimeType: "image/png", Data: "%%%"}}}}, apperr.KindInvalidInput},
		"too large":      {Request{MessageParts: []Part{{InlineData: &InlineData{MimeType: "image/png", Data: huge}}}}, apperr.KindPayloadTooLarge},
		"history not base64": {Request{Message: "q", History: []Turn{{Role: "user", Parts: []Part{
			{InlineData: &InlineData{MimeType: "image/png", Data: "%%%"}},
		}}}}, apperr.KindInvalidInput},
		"history no mime": {Request{Message: "q", History: []Turn{{Role: "user", Parts: []Part{
			{InlineData: &InlineData{Data: "aGk="}},
		}}}}, apperr.KindInvalidInput},
		"history too large": {Request{Message: "q", History: []Turn{{Role: "user", Parts: []Part{
			{InlineData: &InlineData{MimeType: "image/png", Data: huge}},
		}}}}, apperr.KindPayloadTooLarge},
		"two attachments": {Request{MessageParts: []Part{
			{InlineData: &InlineData{MimeType: "image/png", Data: "aGk="}},
			{InlineData: &InlineData{MimeType: "image/png", Data: "aGk="}},
		}}, apperr.KindInvalidInput},
	}

	f := newFixture(t)
	for name, tc := range cases {
		_, err := f.svc.Reply(context.Background(), "u1", tc.req)
		assert.Equal(t, tc.kind, apperr.KindOf(err), name)
	}
	f.gen.AssertNotCalled(t, "GenerateContent", mock.Anything, mock.Anything)
}

func TestReply_AttachmentOnly(t *testing.T) {
	f := newFixture(t)
	f.gen.On("GenerateContent", mock.Anything, mock.Anything).Return(textResponse("Looks like a crack."), nil)

	reply, err := f.svc.Reply(context.Background(), "u1", Request{
		MessageParts: []Part{{InlineData: &InlineData{MimeType: "image/png", Data: "data:image/png;base64,aGk="}}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Looks like a crack.", reply.Message)
}

func TestDecodedSize(t *testing.T) {
	assert.Equal(t, 5, decodedSize("aGVsbG8="))
	assert.Equal(t, 2, decodedSize("aGk="))
	assert.Equal(t, 3, decodedSize("YWJj"))
}
