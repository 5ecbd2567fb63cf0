package services

import (
	"fmt"

	"github.com/abrezinsky/ecobingo/internal/errors"
)

// Service errors. errors.Is matches on the code, so the two duplicate
// variants both satisfy errors.Is(err, ErrDuplicateSubmission).
var (
	ErrDuplicateSubmission = errors.Validation("Task already submitted").WithCode(errors.CodeDuplicateSubmission)
	ErrAlreadyCompleted    = errors.Validation("Task already completed and approved!").WithCode(errors.CodeDuplicateSubmission)
	ErrAlreadyPending      = errors.Validation("Task already submitted and pending approval!").WithCode(errors.CodeDuplicateSubmission)
	ErrMissingUpload       = errors.Validation("This task requires a photo upload.").WithCode(errors.CodeMissingUpload)
	ErrUnsupportedFileType = errors.Validation("Uploaded file is not an image").WithCode(errors.CodeUnsupportedFileType)
	ErrFileTooLarge        = errors.Validationf("Photo is too large (limit %d MiB)", MaxPhotoBytes>>20).WithCode(errors.CodeFileTooLarge)
	ErrFraudSuspected      = errors.Validation("This photo looks like one that was already submitted").WithCode(errors.CodeFraudSuspected)
	ErrPermissionDenied    = errors.Forbidden("Permission denied").WithCode(errors.CodePermissionDenied)
	ErrAlreadyApproved     = errors.Validation("Task already approved!").WithCode(errors.CodeAlreadyApproved)

	ErrUserNotFound       = errors.NotFound("user not found").WithCode(errors.CodeNotFound)
	ErrTaskNotFound       = errors.NotFound("task not found").WithCode(errors.CodeNotFound)
	ErrSubmissionNotFound = errors.NotFound("submission not found").WithCode(errors.CodeNotFound)
	ErrPhotoNotFound      = errors.NotFound("photo not found").WithCode(errors.CodeNotFound)
	ErrUnknownPattern     = errors.InvalidInput("unknown pattern")
)

// FraudError is returned when a photo is too similar to an earlier one
type FraudError struct {
	Similarity    float64
	MatchedTaskID int64
	MatchedTask   string // description of the matched task, when known
}

func (e *FraudError) Error() string {
	if e.MatchedTask != "" {
		return fmt.Sprintf("%s (%.1f%% similar to a photo for %q)", ErrFraudSuspected.Message, e.Similarity, e.MatchedTask)
	}
	return fmt.Sprintf("%s (%.1f%% similar)", ErrFraudSuspected.Message, e.Similarity)
}

func (e *FraudError) Unwrap() error {
	return ErrFraudSuspected
}
