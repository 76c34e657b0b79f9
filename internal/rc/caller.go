// Package rc talks to the remote-storage execution backend over its
// remote-control protocol: one JSON request, one JSON response per call.
package rc

import "context"

// Backend methods used by this application.
const (
	MethodConfigDump   = "config/dump"
	MethodConfigGet    = "config/get"
	MethodConfigCreate = "config/create"
	MethodConfigUpdate = "config/update"
	MethodConfigDelete = "config/delete"
	MethodList         = "operations/list"
	MethodDeleteFile   = "operations/deletefile"
	MethodPurge        = "operations/purge"
	MethodMkdir        = "operations/mkdir"
	MethodCopyFile     = "operations/copyfile"
	MethodMoveFile     = "operations/movefile"
	MethodSyncCopy     = "sync/copy"
	MethodSyncMove     = "sync/move"
	MethodMount        = "mount/mount"
	MethodUnmount      = "mount/unmount"
	MethodListMounts   = "mount/listmounts"
)

// Params is the named-parameter map sent with a call.
type Params map[string]any

// Caller is the request/response bridge to the execution backend.
type Caller interface {
	// Call sends in to method and decodes the response payload into out.
	// out may be nil when the payload is not needed.
	Call(ctx context.Context, method string, in Params, out any) error
}

// Fs returns the backend's filesystem string for a storage root.
func Fs(storage string) string {
	return storage + ":"
}

// FsPath returns the backend's filesystem string rooted at path inside storage.
func FsPath(storage, path string) string {
	return storage + ":" + path
}
