// Package models defines the domain types shared by the storage layer.
package models

import "time"

// StorageDescriptor identifies one configured storage (a backend "remote").
type StorageDescriptor struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// PathRef is a path relative to the root of a named storage.
type PathRef struct {
	Storage string `json:"storage"`
	Path    string `json:"path"`
}

// FileEntry is one record of a directory listing as reported by the backend.
type FileEntry struct {
	Path     string    `json:"Path"`
	Name     string    `json:"Name"`
	Size     int64     `json:"Size"`
	MimeType string    `json:"MimeType,omitempty"`
	ModTime  time.Time `json:"ModTime"`
	IsDir    bool      `json:"IsDir"`
	ID       string    `json:"ID,omitempty"`
}

// Mount is an active local mount point exposed by the backend.
type Mount struct {
	Fs         string    `json:"Fs"`
	MountPoint string    `json:"MountPoint"`
	MountedOn  time.Time `json:"MountedOn"`
}
