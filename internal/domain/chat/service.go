package chat

import (
	"context"
	"encoding/base64"
	"strings"

	"buildadvisor/internal/domain/billing"
	"buildadvisor/internal/domain/usage"
	"buildadvisor/internal/pkg/gemini"

	"go.uber.org/zap"
)

const (
	// MaxAttachmentBytes caps one inline attachment before base64 inflation.
	MaxAttachmentBytes = 8 << 20

	defaultPlan     = "blue"
	temperature     = 0.7
	maxOutputTokens = 4000
	noAnswerText    = "Sorry, I could not come up with an answer. Please try rephrasing your question."

	roleUser  = "user"
	roleModel = "model"
)

// Generator is the LLM provider.
type Generator interface {
	GenerateContent(ctx context.Context, req gemini.Request) (*gemini.Response, error)
}

// Gate admits a metered turn.
type Gate interface {
	Check(ctx context.Context, userID string) (usage.Decision, error)
}

// Ledger records a generated answer.
type Ledger interface {
	IncrementAfterSuccess(ctx context.Context, userID string, isPaid bool) error
	Read(ctx context.Context, userID string) (usage.Counters, error)
}

type Service struct {
	gen     Generator
	gate    Gate
	ledger  Ledger
	prompts map[string]string
	log     *zap.Logger
}

// NewService takes system prompts keyed by lower-cased plan name.
func NewService(gen Generator, gate Gate, ledger Ledger, prompts map[string]string, log *zap.Logger) *Service {
	return &Service{gen: gen, gate: gate, ledger: ledger, prompts: prompts, log: log}
}

type Reply struct {
	Message         string
	TotalAnswers    int64
	FreeAnswersUsed int64
	RemainingFree   int64
	Limit           int64
	HasActivePlan   bool
	Plan            billing.Plan
	Status          billing.Status
}

// Reply answers one chat turn. The order is fixed: gate, generate, then
// record the answer. A failed generation never consumes quota.
func (s *Service) Reply(ctx context.Context, userID string, req Request) (*Reply, error) {
	userTurn, err := buildUserTurn(req)
	if err != nil {
		return nil, err
	}
	history, err := buildHistory(req.History)
	if err != nil {
		return nil, err
	}

	d, err := s.gate.Check(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !d.Allow {
		s.log.Info("free answer limit reached", zap.String("user_id", userID), zap.Int64("free_answers_used", d.FreeAnswersUsed))
		return nil, &QuotaError{Decision: d}
	}

	persona := strings.ToLower(strings.TrimSpace(req.Plan))
	if persona == "" {
		persona = defaultPlan
	}
	prompt := s.prompts[persona]
	if prompt == "" {
		s.log.Error("no system prompt configured", zap.String("plan", persona))
		return nil, ErrPromptMissing
	}

	resp, err := s.gen.GenerateContent(ctx, gemini.Request{
		SystemInstruction: &gemini.Content{Parts: []gemini.Part{{Text: prompt}}},
		Contents:          append(history, userTurn),
		GenerationConfig: gemini.GenerationConfig{
			Temperature:     temperature,
			MaxOutputTokens: maxOutputTokens,
		},
	})
	if err != nil {
		return nil, ErrGenerationFailed.WithCause(err)
	}
	text := extractText(resp)

	if err := s.ledger.IncrementAfterSuccess(ctx, userID, d.HasActivePlan); err != nil {
		return nil, err
	}

	r := &Reply{
		Message:       text,
		Limit:         d.Limit,
		HasActivePlan: d.HasActivePlan,
		Plan:          d.Plan,
		Status:        d.Status,
	}
	c, err := s.ledger.Read(ctx, userID)
	if err != nil {
		// The answer is recorded; fall back to the snapshot plus this turn.
		s.log.Warn("failed to re-read usage counters", zap.String("user_id", userID), zap.Error(err))
		c = usage.Counters{TotalAnswers: d.TotalAnswers + 1, FreeAnswersUsed: d.FreeAnswersUsed}
		if !d.HasActivePlan {
			c.FreeAnswersUsed++
		}
	}
	r.TotalAnswers = c.TotalAnswers
	r.FreeAnswersUsed = c.FreeAnswersUsed
	r.RemainingFree = billing.RemainingFree(c.FreeAnswersUsed)
	return r, nil
}

// buildUserTurn uses MessageParts when present. Clients send the same text in
// Message and in a text part, so Message only fills in when the parts carry no text.
func buildUserTurn(req Request) (gemini.Content, error) {
	parts, err := convertParts(req.MessageParts, 1)
	if err != nil {
		return gemini.Content{}, err
	}
	if !hasText(parts) {
		if text := strings.TrimSpace(req.Message); text != "" {
			parts = append([]gemini.Part{{Text: text}}, parts...)
		}
	}
	if len(parts) == 0 {
		return gemini.Content{}, ErrEmptyMessage
	}
	return gemini.Content{Role: roleUser, Parts: parts}, nil
}

// convertParts validates inline attachments and drops blank text. maxFiles <= 0
// means no per-turn attachment limit.
func convertParts(in []Part, maxFiles int) ([]gemini.Part, error) {
	var out []gemini.Part
	files := 0
	for _, p := range in {
		if p.InlineData != nil && p.InlineData.Data != "" {
			files++
			if maxFiles > 0 && files > maxFiles {
				return nil, ErrTooManyFiles
			}
			blob, err := checkAttachment(p.InlineData)
			if err != nil {
				return nil, err
			}
			out = append(out, gemini.Part{InlineData: blob})
			continue
		}
		if text := strings.TrimSpace(p.Text); text != "" {
			out = append(out, gemini.Part{Text: text})
		}
	}
	return out, nil
}

func hasText(parts []gemini.Part) bool {
	for _, p := range parts {
		if p.Text != "" {
			return true
		}
	}
	return false
}

func checkAttachment(d *InlineData) (*gemini.Blob, error) {
	if strings.TrimSpace(d.MimeType) == "" {
		return nil, ErrAttachmentMime
	}
	data := d.Data
	// Accept data URLs from browsers.
	if i := strings.Index(data, ";base64,"); strings.HasPrefix(data, "data:") && i >= 0 {
		data = data[i+len(";base64,"):]
	}
	if decodedSize(data) > MaxAttachmentBytes {
		return nil, ErrAttachmentTooBig
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, ErrAttachmentData.WithCause(err)
	}
	return &gemini.Blob{MimeType: d.MimeType, Data: raw}, nil
}

// decodedSize estimates the decoded length of base64 text without decoding it.
func decodedSize(b64 string) int {
	n := len(b64) / 4 * 3
	switch {
	case strings.HasSuffix(b64, "=="):
		n -= 2
	case strings.HasSuffix(b64, "="):
		n--
	}
	return n
}

// buildHistory applies the same attachment checks as the new turn, so bad
// history data is rejected here instead of by the provider.
func buildHistory(turns []Turn) ([]gemini.Content, error) {
	out := make([]gemini.Content, 0, len(turns)+1)
	for _, t := range turns {
		if t.Role != roleUser && t.Role != roleModel {
			return nil, ErrHistoryRole
		}
		src := t.Parts
		if len(src) == 0 {
			src = []Part{{Text: t.Text}}
		}
		parts, err := convertParts(src, 0)
		if err != nil {
			return nil, err
		}
		if len(parts) == 0 {
			continue
		}
		out = append(out, gemini.Content{Role: t.Role, Parts: parts})
	}
	return out, nil
}

// extractText joins the text parts of the first candidate that has any.
func extractText(resp *gemini.Response) string {
	if resp == nil {
		return noAnswerText
	}
	for _, c := range resp.Candidates {
		var b strings.Builder
		for _, p := range c.Content.Parts {
			b.WriteString(p.Text)
		}
		if text := strings.TrimSpace(b.String()); text != "" {
			return b.String()
		}
	}
	return noAnswerText
}
