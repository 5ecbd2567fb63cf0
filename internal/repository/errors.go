package repository

import "errors"

// ErrNotFound is returned when a requested record is not found in the repository.
// This abstracts away the underlying storage implementation (SQL, NoSQL, etc.)
// from the service layer.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when a submission already exists for the user and
// task and is not in a state that allows it to be replaced.
var ErrDuplicate = errors.New("record already exists")

// ErrAlreadyCompleted is returned when reviewing a submission that was
// already approved.
var ErrAlreadyCompleted = errors.New("submission already completed")
