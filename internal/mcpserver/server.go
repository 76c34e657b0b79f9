// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes storage tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/netmount/internal/apperr"
	"github.com/starford/netmount/internal/i18n"
	"github.com/starford/netmount/internal/journal"
	"github.com/starford/netmount/internal/models"
	"github.com/starford/netmount/internal/storageservice"
)

const kindsURI = "netmount://kinds"

// Server wraps the MCP server with storage tools.
type Server struct {
	mcp *server.MCPServer
	svc *storageservice.Service
}

// New creates a new MCP server with all storage tools registered.
func New(svc *storageservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Netmount",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_storages",
		mcp.WithDescription("List configured storages with their kind."),
	), s.listStorages)

	s.mcp.AddTool(mcp.NewTool("list_files",
		mcp.WithDescription("List the entries of a directory on a storage."),
		mcp.WithString("storage", mcp.Required(), mcp.Description("Storage name")),
		mcp.WithString("path", mcp.Description("Directory path relative to the storage root (empty for the root)")),
	), s.listFiles)

	s.mcp.AddTool(mcp.NewTool("make_directory",
		mcp.WithDescription("Create a directory on a storage. Existing directories are not an error."),
		mcp.WithString("storage", mcp.Required(), mcp.Description("Storage name")),
		mcp.WithString("path", mcp.Required(), mcp.Description("Directory path")),
	), s.makeDirectory)

	s.mcp.AddTool(mcp.NewTool("delete_file",
		mcp.WithDescription("Delete a file, or with recursive=true a directory and everything below it. "+
			"Recursive deletes cannot be undone."),
		mcp.WithString("storage", mcp.Required(), mcp.Description("Storage name")),
		mcp.WithString("path", mcp.Required(), mcp.Description("File or directory path")),
		mcp.WithBoolean("recursive", mcp.Description("Delete a directory tree")),
	), s.deleteFile)

	s.mcp.AddTool(mcp.NewTool("transfer",
		mcp.WithDescription("Copy or move a file or directory into a destination directory, "+
			"possibly on another storage."),
		mcp.WithString("mode", mcp.Required(), mcp.Enum("copy", "move")),
		mcp.WithBoolean("tree", mcp.Description("Source is a directory")),
		mcp.WithString("src_storage", mcp.Required()),
		mcp.WithString("src_path", mcp.Required()),
		mcp.WithString("dst_storage", mcp.Required()),
		mcp.WithString("dst_path", mcp.Description("Destination directory (empty for the root)")),
		mcp.WithString("new_name", mcp.Description("Name at the destination; defaults to the source name")),
	), s.transfer)

	s.mcp.AddTool(mcp.NewTool("mount_storage",
		mcp.WithDescription("Mount a storage as a local directory."),
		mcp.WithString("storage", mcp.Required(), mcp.Description("Storage name")),
		mcp.WithString("mount_point", mcp.Description("Local directory; defaults to the configured mount dir")),
	), s.mountStorage)

	s.mcp.AddTool(mcp.NewTool("recent_operations",
		mcp.WithDescription("Show recently executed storage operations, newest first."),
		mcp.WithString("storage", mcp.Description("Only operations touching this storage")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of records")),
	), s.recentOperations)

	// Resource: kind catalog.
	s.mcp.AddResource(
		mcp.NewResource(kindsURI, "Storage Kinds",
			mcp.WithResourceDescription("Configurable storage kinds and their parameters."),
			mcp.WithMIMEType("application/json"),
		),
		s.readKindsResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// toolError renders err for the model. Validation failures use the English
// message for their key.
func toolError(err error) *mcp.CallToolResult {
	var ve *apperr.ValidationError
	if errors.As(err, &ve) {
		return mcp.NewToolResultError(i18n.Translate(i18n.Match(""), ve.Key, ve.Field))
	}
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

func (s *Server) listStorages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list := s.svc.Storages()
	if len(list) == 0 {
		return mcp.NewToolResultText("no storages configured"), nil
	}
	lines := make([]string, 0, len(list))
	for _, d := range list {
		lines = append(lines, fmt.Sprintf("%s (%s)", d.Name, d.Kind))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) listFiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	storage, err := req.RequireString("storage")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entries, err := s.svc.List(ctx, storage, req.GetString("path", ""))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(entries), nil
}

func (s *Server) makeDirectory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	storage, err := req.RequireString("storage")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.CreateDirectory(ctx, storage, path); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s:%s", storage, path)), nil
}

func (s *Server) deleteFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	storage, err := req.RequireString("storage")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if req.GetBool("recursive", false) {
		err = s.svc.DeleteTree(ctx, storage, path)
	} else {
		err = s.svc.DeleteFile(ctx, storage, path)
	}
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s:%s", storage, path)), nil
}

func (s *Server) transfer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mode, err := req.RequireString("mode")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	srcStorage, err := req.RequireString("src_storage")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	srcPath, err := req.RequireString("src_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	dstStorage, err := req.RequireString("dst_storage")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	issued, err := s.svc.Transfer(ctx, storageservice.Transfer{
		Mode:    storageservice.TransferMode(mode),
		Tree:    req.GetBool("tree", false),
		Src:     models.PathRef{Storage: srcStorage, Path: srcPath},
		Dst:     models.PathRef{Storage: dstStorage, Path: req.GetString("dst_path", "")},
		NewName: req.GetString("new_name", ""),
	})
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s: %s:%s -> %s:%s", issued.Kind,
		issued.Src.Storage, issued.Src.Path, issued.Dst.Storage, issued.Dst.Path)), nil
}

func (s *Server) mountStorage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	storage, err := req.RequireString("storage")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	mp, err := s.svc.Mount(ctx, storage, req.GetString("mount_point", ""))
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("mounted %s at %s", storage, mp)), nil
}

func (s *Server) recentOperations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	recs, err := s.svc.History(ctx, journal.Filter{
		Storage: req.GetString("storage", ""),
		Limit:   req.GetInt("limit", 20),
	})
	if err != nil {
		return toolError(err), nil
	}
	if len(recs) == 0 {
		return mcp.NewToolResultText("no operations recorded"), nil
	}
	return jsonResult(recs), nil
}

func (s *Server) readKindsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	out, err := json.MarshalIndent(s.svc.Kinds(), "", "  ")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      kindsURI,
			MIMEType: "application/json",
			Text:     string(out),
		},
	}, nil
}
