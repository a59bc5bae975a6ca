package checkout

type CreateSessionRequest struct {
	Plan string `json:"plan"`
}

type ConfirmRequest struct {
	SessionID string `json:"sessionId"`
}
