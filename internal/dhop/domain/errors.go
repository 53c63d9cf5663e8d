package domain

import "errors"

// Exported error variables allow callers to use errors.Is() for error checking.
var (
	ErrPathNotFound          = errors.New("location or path doesn't exist")
	ErrStaleLocation         = errors.New("location is set, but does not refer to a valid path")
	ErrNotDirectory          = errors.New("not a directory")
	ErrMarkNotSet            = errors.New("mark is not set; use 'mark' to set a mark")
	ErrEmptyStack            = errors.New("empty stack; can't pop")
	ErrUnknownCommand        = errors.New("not a command, stored location, or path")
	ErrInvalidArguments      = errors.New("invalid arguments")
	ErrSerialization         = errors.New("store file is unreadable")
	ErrAmbiguousReservedWord = errors.New("name is both a command and a stored location")
	ErrTransferFailed        = errors.New("one or more items could not be transferred")
)

// Location name validation errors.
var (
	ErrNameEmpty        = errors.New("location name cannot be empty")
	ErrNameDot          = errors.New("location name cannot be '.' or '..'")
	ErrNameNullByte     = errors.New("location name contains null byte")
	ErrNameNonPrintable = errors.New("location name contains non-printable characters")
	ErrNameSeparator    = errors.New("location name cannot contain a path separator")
	ErrNameReserved     = errors.New("location name is a reserved command word")
)
