package grimoire

import (
	"errors"
	"fmt"
	"strings"
)

// Standard sentinel errors. Every typed error below reports true for
// errors.Is against its sentinel.
var (
	// ErrParse is returned when a condition or expression string is malformed.
	ErrParse = errors.New("grimoire: parse error")

	// ErrCompile is returned when an AST cannot be rendered into SQL.
	ErrCompile = errors.New("grimoire: compile error")

	// ErrShardingKey is returned when a query on a sharded model does not
	// carry the sharding key.
	ErrShardingKey = errors.New("grimoire: sharding key required")

	// ErrUnsupportedCommand is returned when a command reaches a compiler
	// that does not know how to render it.
	ErrUnsupportedCommand = errors.New("grimoire: unsupported command")

	// ErrEmptySet is returned when an update carries no fields.
	ErrEmptySet = errors.New("grimoire: empty set")

	// ErrNotFound is returned when a query that expects a row returns none.
	ErrNotFound = errors.New("grimoire: record not found")
)

// ParseError reports a malformed condition, expression or a mismatch between
// placeholders and bound values.
type ParseError struct {
	Input string // Text being parsed, if any
	Pos   int    // Byte offset of the offending token, -1 if unknown
	Msg   string
}

// Error returns the error string.
func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("grimoire: parse error: ")
	b.WriteString(e.Msg)
	if e.Pos >= 0 && e.Input != "" {
		fmt.Fprintf(&b, " at %d in %q", e.Pos, e.Input)
	} else if e.Input != "" {
		fmt.Fprintf(&b, " in %q", e.Input)
	}
	return b.String()
}

// Is reports whether the target error matches ErrParse.
func (e *ParseError) Is(err error) bool {
	return err == ErrParse
}

// NewParseError returns a new ParseError.
func NewParseError(input string, pos int, format string, args ...any) *ParseError {
	return &ParseError{Input: input, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// IsParseError returns true if the error is a ParseError.
func IsParseError(err error) bool {
	if err == nil {
		return false
	}
	var e *ParseError
	return errors.As(err, &e) || errors.Is(err, ErrParse)
}

// CompileError reports an illegal combination of operator and value, or a
// query shape that cannot be rendered, e.g. `>` against NULL.
type CompileError struct {
	Msg string
}

// Error returns the error string.
func (e *CompileError) Error() string {
	return "grimoire: compile error: " + e.Msg
}

// Is reports whether the target error matches ErrCompile.
func (e *CompileError) Is(err error) bool {
	return err == ErrCompile
}

// NewCompileError returns a new CompileError.
func NewCompileError(format string, args ...any) *CompileError {
	return &CompileError{Msg: fmt.Sprintf(format, args...)}
}

// IsCompileError returns true if the error is a CompileError.
func IsCompileError(err error) bool {
	if err == nil {
		return false
	}
	var e *CompileError
	return errors.As(err, &e) || errors.Is(err, ErrCompile)
}

// ShardingKeyError reports a missing or unreferenced sharding key.
type ShardingKeyError struct {
	Model   string
	Key     string
	Command string
}

// Error returns the error string.
func (e *ShardingKeyError) Error() string {
	if e.Command == "insert" || e.Command == "bulkInsert" || e.Command == "upsert" {
		return fmt.Sprintf("grimoire: sharding key %s.%s cannot be NULL on %s", e.Model, e.Key, e.Command)
	}
	return fmt.Sprintf("grimoire: sharding key %s.%s is required on %s", e.Model, e.Key, e.Command)
}

// Is reports whether the target error matches ErrShardingKey.
func (e *ShardingKeyError) Is(err error) bool {
	return err == ErrShardingKey
}

// NewShardingKeyError returns a new ShardingKeyError.
func NewShardingKeyError(model, key, command string) *ShardingKeyError {
	return &ShardingKeyError{Model: model, Key: key, Command: command}
}

// IsShardingKeyError returns true if the error is a ShardingKeyError.
func IsShardingKeyError(err error) bool {
	if err == nil {
		return false
	}
	var e *ShardingKeyError
	return errors.As(err, &e) || errors.Is(err, ErrShardingKey)
}

// UnsupportedCommandError reports a command the compiler cannot render.
type UnsupportedCommandError struct {
	Command string
	Dialect string // Optional
}

// Error returns the error string.
func (e *UnsupportedCommandError) Error() string {
	if e.Dialect != "" {
		return fmt.Sprintf("grimoire: unsupported command %q for %s", e.Command, e.Dialect)
	}
	return fmt.Sprintf("grimoire: unsupported command %q", e.Command)
}

// Is reports whether the target error matches ErrUnsupportedCommand.
func (e *UnsupportedCommandError) Is(err error) bool {
	return err == ErrUnsupportedCommand
}

// NewUnsupportedCommandError returns a new UnsupportedCommandError.
func NewUnsupportedCommandError(command, dialect string) *UnsupportedCommandError {
	return &UnsupportedCommandError{Command: command, Dialect: dialect}
}

// IsUnsupportedCommand returns true if the error is an UnsupportedCommandError.
func IsUnsupportedCommand(err error) bool {
	if err == nil {
		return false
	}
	var e *UnsupportedCommandError
	return errors.As(err, &e) || errors.Is(err, ErrUnsupportedCommand)
}

// EmptySetError reports an update without any field to set.
type EmptySetError struct {
	Model string
}

// Error returns the error string.
func (e *EmptySetError) Error() string {
	return fmt.Sprintf("grimoire: unable to update %s with empty set", e.Model)
}

// Is reports whether the target error matches ErrEmptySet.
func (e *EmptySetError) Is(err error) bool {
	return err == ErrEmptySet
}

// NewEmptySetError returns a new EmptySetError.
func NewEmptySetError(model string) *EmptySetError {
	return &EmptySetError{Model: model}
}

// IsEmptySet returns true if the error is an EmptySetError.
func IsEmptySet(err error) bool {
	if err == nil {
		return false
	}
	var e *EmptySetError
	return errors.As(err, &e) || errors.Is(err, ErrEmptySet)
}

// NotFoundError represents an error when a record is not found.
type NotFoundError struct {
	label string
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("grimoire: %s not found", e.label)
}

// Is reports whether the target error matches ErrNotFound.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Label returns the model name.
func (e *NotFoundError) Label() string {
	return e.label
}

// NewNotFoundError returns a new NotFoundError for the given model.
func NewNotFoundError(label string) *NotFoundError {
	return &NotFoundError{label: label}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}
