package service

type Status string

const (
	StatusSkipped   Status = "skipped"
	StatusAborted   Status = "aborted"
	StatusCompleted Status = "completed"
)

// ProcessResult summarises one mention-processing pass. A skipped or aborted
// pass never fails the caller.
type ProcessResult struct {
	Status       Status `json:"status"`
	Reason       string `json:"reason,omitempty"`
	FollowerGate bool   `json:"follower_gate"`
	Fetched      int    `json:"fetched"`
	Qualifying   int    `json:"qualifying"`
	AlreadySeen  int    `json:"already_seen"`
	Recorded     int    `json:"recorded"`
	Duplicates   int    `json:"duplicates"`
	Rejected     int    `json:"rejected"`
	Skipped      int    `json:"skipped"`
	Errors       int    `json:"errors"`
}
