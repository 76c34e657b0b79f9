package models

import "time"

// OperationKind names a storage operation.
type OperationKind string

const (
	OpCreateStorage   OperationKind = "create_storage"
	OpUpdateStorage   OperationKind = "update_storage"
	OpDeleteStorage   OperationKind = "delete_storage"
	OpList            OperationKind = "list"
	OpDeleteFile      OperationKind = "delete_file"
	OpDeleteTree      OperationKind = "delete_tree"
	OpCreateDirectory OperationKind = "create_directory"
	OpCopyFile        OperationKind = "copy_file"
	OpMoveFile        OperationKind = "move_file"
	OpCopyTree        OperationKind = "copy_tree"
	OpMoveTree        OperationKind = "move_tree"
	OpMount           OperationKind = "mount"
	OpUnmount         OperationKind = "unmount"
)

// Mutating reports whether the operation changes files on a storage.
func (k OperationKind) Mutating() bool {
	switch k {
	case OpDeleteFile, OpDeleteTree, OpCreateDirectory,
		OpCopyFile, OpMoveFile, OpCopyTree, OpMoveTree:
		return true
	}
	return false
}

// OperationRequest is the instruction sent to the backend for one call.
// Dst is zero for single-target operations.
type OperationRequest struct {
	Kind   OperationKind `json:"kind"`
	Method string        `json:"method"`
	Src    PathRef       `json:"src"`
	Dst    PathRef       `json:"dst,omitempty"`
}

// OperationRecord is a journaled outcome of an OperationRequest.
type OperationRecord struct {
	ID         int64         `json:"id"`
	Kind       OperationKind `json:"kind"`
	Src        PathRef       `json:"src"`
	Dst        PathRef       `json:"dst"`
	OK         bool          `json:"ok"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}
