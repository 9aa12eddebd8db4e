package dto

type SignupRequest struct {
	Email            string  `json:"email" binding:"omitempty,email,max=255"`
	ReferrerHandle   *string `json:"referrerHandle" binding:"omitempty,max=100"`
	ChallengeToken   string  `json:"challengeToken" binding:"max=4096"`
	TimeSpentSeconds int     `json:"timeSpentSeconds"`
}

// SignupResponse never carries the verification token.
type SignupResponse struct {
	Message string `json:"message"`
}

type VerifyResponse struct {
	Message string `json:"message"`
}
