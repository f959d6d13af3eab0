package errors

// Error codes for standardized error responses
const (
	// Authorization
	ErrCodeUnauthorized = "unauthorized"

	// Validation
	ErrCodeInvalidRequest   = "invalid_request"
	ErrCodeValidationFailed = "validation_failed"

	// Resources
	ErrCodeRoomNotFound    = "room_not_found"
	ErrCodePlayerNotFound  = "player_not_found"
	ErrCodeInvalidRoomCode = "invalid_room_code"

	// Room state preconditions
	ErrCodeRoomNotJoinable   = "room_not_joinable"
	ErrCodeRoomFull          = "room_full"
	ErrCodeRoundNotActive    = "round_not_active"
	ErrCodeFrameNotRevealed  = "frame_not_revealed"
	ErrCodeGuessWindowClosed = "guess_window_closed"
	ErrCodeFramesRequired    = "frames_required"
	ErrCodeNoFrames          = "no_frames_available"

	// Assembly
	ErrCodeNoEligibleContent = "no_eligible_content"
	ErrCodeAssemblyFailed    = "assembly_failed"

	// Concurrency
	ErrCodeConflict = "conflict"

	// Server
	ErrCodeInternalError = "internal_error"
)
