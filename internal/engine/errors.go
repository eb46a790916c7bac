package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/launchpad/internal/campaign"
)

// RuntimeError represents an error detected by the engine itself rather
// than by a campaign operation.
//
// Runtime errors include:
//   - Unknown action: the command names no registered handler
//   - Invalid args: the command arguments do not decode
//   - Unknown campaign: the command targets a campaign that does not exist
//   - Replay divergence: a replayed action produced a different state
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Action is the affected action name.
	Action string

	// Campaign is the affected campaign id, empty for platform actions.
	Campaign string

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeUnknownAction indicates the command names no handler.
	ErrCodeUnknownAction RuntimeErrorCode = "UNKNOWN_ACTION"

	// ErrCodeInvalidArgs indicates the command arguments do not decode.
	ErrCodeInvalidArgs RuntimeErrorCode = "INVALID_ARGS"

	// ErrCodeUnknownCampaign indicates the target campaign does not exist.
	ErrCodeUnknownCampaign RuntimeErrorCode = "UNKNOWN_CAMPAIGN"

	// ErrCodeReplayDiverged indicates replay produced a different action id
	// or state hash than the log recorded.
	ErrCodeReplayDiverged RuntimeErrorCode = "REPLAY_DIVERGED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Campaign != "" {
		return fmt.Sprintf("%s: %s (action=%s, campaign=%s)", e.Code, e.Message, e.Action, e.Campaign)
	}
	if e.Action != "" {
		return fmt.Sprintf("%s: %s (action=%s)", e.Code, e.Message, e.Action)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func runtimeCode(err error) RuntimeErrorCode {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// IsUnknownAction returns true if err reports an unregistered action.
func IsUnknownAction(err error) bool {
	return runtimeCode(err) == ErrCodeUnknownAction
}

// IsInvalidArgs returns true if err reports undecodable arguments.
func IsInvalidArgs(err error) bool {
	return runtimeCode(err) == ErrCodeInvalidArgs
}

// IsUnknownCampaign returns true if err reports a missing campaign.
func IsUnknownCampaign(err error) bool {
	return runtimeCode(err) == ErrCodeUnknownCampaign
}

// IsReplayDiverged returns true if err reports a replay mismatch.
func IsReplayDiverged(err error) bool {
	return runtimeCode(err) == ErrCodeReplayDiverged
}

// IsRejected reports whether err is a recorded rejection: a campaign
// rejection or a command the engine refused to decode. Rejections are
// written to the action log; anything else is an infrastructure failure.
func IsRejected(err error) bool {
	if err == nil {
		return false
	}
	if campaign.CodeOf(err) != "" {
		return true
	}
	switch runtimeCode(err) {
	case ErrCodeInvalidArgs, ErrCodeUnknownCampaign:
		return true
	}
	return false
}

// Code returns the code recorded as the outcome of a rejected action.
func Code(err error) string {
	if c := campaign.CodeOf(err); c != "" {
		return string(c)
	}
	return string(runtimeCode(err))
}

func invalidArgs(action, campaignID string, err error) *RuntimeError {
	return &RuntimeError{
		Code:     ErrCodeInvalidArgs,
		Message:  err.Error(),
		Action:   action,
		Campaign: campaignID,
	}
}

func unknownCampaign(action, campaignID string) *RuntimeError {
	return &RuntimeError{
		Code:     ErrCodeUnknownCampaign,
		Message:  "campaign not found",
		Action:   action,
		Campaign: campaignID,
	}
}

// NewReplayDivergedError creates a RuntimeError for a replay mismatch.
func NewReplayDivergedError(actionID string, seq int64, field, want, got string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeReplayDiverged,
		Message: fmt.Sprintf("%s mismatch at seq %d", field, seq),
		Details: map[string]string{
			"action_id": actionID,
			"want":      want,
			"got":       got,
		},
	}
}
