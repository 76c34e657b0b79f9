package api

import (
	"github.com/starford/netmount/internal/models"
	"github.com/starford/netmount/internal/schema"
	"github.com/starford/netmount/internal/storageservice"
)

// CreateStorageRequest is the request body for registering a storage.
type CreateStorageRequest struct {
	Name       string            `json:"name" example:"photos" validate:"required"`
	Kind       string            `json:"kind" example:"sftp" validate:"required"`
	Parameters schema.Parameters `json:"parameters"`
}

// UpdateStorageRequest is the request body for changing a storage.
type UpdateStorageRequest struct {
	Parameters schema.Parameters `json:"parameters" validate:"required"`
}

// MountRequest is the request body for mounting a storage. An empty
// MountPoint selects the configured mount directory.
type MountRequest struct {
	MountPoint string `json:"mount_point,omitempty" example:"/mnt/photos"`
}

// UnmountRequest is the request body for removing a mount.
type UnmountRequest struct {
	MountPoint string `json:"mount_point" example:"/mnt/photos" validate:"required"`
}

// TransferRequest is the request body for copy and move operations.
type TransferRequest = storageservice.Transfer

// StorageListResponse wraps the storage registry.
type StorageListResponse struct {
	Storages []models.StorageDescriptor `json:"storages" validate:"required"`
}

// FileListResponse wraps a directory listing.
type FileListResponse struct {
	Storage string             `json:"storage" example:"photos" validate:"required"`
	Path    string             `json:"path" example:"2024/" validate:"required"`
	Entries []models.FileEntry `json:"entries" validate:"required"`
}

// OperationResponse reports the request issued to the backend.
type OperationResponse struct {
	Request models.OperationRequest `json:"request" validate:"required"`
}

// MountResponse reports where a storage was mounted.
type MountResponse struct {
	MountPoint string `json:"mount_point" example:"/mnt/photos" validate:"required"`
}

// OperationListResponse wraps journaled operations.
type OperationListResponse struct {
	Operations []models.OperationRecord `json:"operations" validate:"required"`
}
