package chat

import (
	"buildadvisor/internal/domain/usage"
	"buildadvisor/internal/pkg/apperr"
)

var (
	ErrEmptyMessage      = apperr.New(apperr.KindInvalidInput, "message is required.")
	ErrTooManyFiles      = apperr.New(apperr.KindInvalidInput, "Only one attachment can be sent per message.")
	ErrAttachmentMime    = apperr.New(apperr.KindInvalidInput, "messageParts: an attachment needs a mimeType.")
	ErrAttachmentData    = apperr.New(apperr.KindInvalidInput, "messageParts: attachment data must be base64.")
	ErrHistoryRole       = apperr.New(apperr.KindInvalidInput, "history: role must be user or model.")
	ErrAttachmentTooBig  = apperr.New(apperr.KindPayloadTooLarge, "The attachment is too large. Files up to 8 MB are supported.")
	ErrPromptMissing     = apperr.New(apperr.KindConfiguration, "This advisor is not available right now. Please try again later.")
	ErrGenerationFailed  = apperr.New(apperr.KindUpstream, "The AI service is unavailable. Please try again later.")
	ErrQuotaExceeded     = apperr.New(apperr.KindQuotaExceeded, "You have used all free answers. Please choose a plan to continue.")
	ErrRequestBodyTooBig = apperr.New(apperr.KindPayloadTooLarge, "The request is too large.")
)

// QuotaError is returned when the gate denies a turn. It carries the
// snapshot so the client can show the plan selection screen.
type QuotaError struct {
	Decision usage.Decision
}

func (e *QuotaError) Error() string { return ErrQuotaExceeded.Message }

func (e *QuotaError) Unwrap() error { return ErrQuotaExceeded }
