package subscription

type ChangePlanRequest struct {
	Plan string `json:"plan"`
}
