package models

// ActionResult is the uniform envelope every request/response call returns.
// Success false is a user-facing outcome, not a client defect; Message is
// shown to the user verbatim.
type ActionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
