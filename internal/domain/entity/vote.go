package entity

import "time"

// Vote decisions
const (
	VoteApprove = "approve"
	VoteReject  = "reject"
)

// ClaimVote is a single committee member's decision on a claim.
// Unique per (claim, voter); immutable once cast.
type ClaimVote struct {
	ID       int64     `json:"id"`
	ClaimID  int64     `json:"claim_id"`
	VoterID  string    `json:"voter_id"`
	Decision string    `json:"decision"`
	Note     string    `json:"note,omitempty"`
	CastAt   time.Time `json:"cast_at"`
}

// VoteTally is the per-decision vote count for a claim
type VoteTally struct {
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}
