// Package handler provides HTTP handlers for browsing a container read-only.
package handler

import (
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/CageChen/cfbtool/internal/namecodec"
	"github.com/CageChen/cfbtool/internal/storage"
	"github.com/gin-gonic/gin"
)

// Opener opens the container at a locator. Every request opens its own
// handle and closes it before returning.
type Opener func(locator string) (storage.Container, error)

// TreeNode represents a storage or stream in the tree
type TreeNode struct {
	Name      string      `json:"name"`
	RawName   string      `json:"rawName"`
	IsTable   bool        `json:"isTable,omitempty"`
	Type      string      `json:"type"`
	Path      string      `json:"path"`
	Size      uint64      `json:"size,omitempty"`
	ModTime   *time.Time  `json:"modTime,omitempty"`
	StateBits uint32      `json:"stateBits"`
	CLSID     string      `json:"clsid,omitempty"`
	Children  []*TreeNode `json:"children,omitempty"`
}

// TreeHandler handles tree and entry API requests
type TreeHandler struct {
	locator string
	open    Opener
}

// NewTreeHandler creates a new tree handler
func NewTreeHandler(locator string, open Opener) *TreeHandler {
	return &TreeHandler{locator: locator, open: open}
}

func newNode(e storage.Entry) *TreeNode {
	name := namecodec.Decode(e.Name)
	node := &TreeNode{
		Name:      name.Display,
		RawName:   e.Name,
		IsTable:   name.IsTable,
		Type:      e.Kind.String(),
		Path:      e.Path,
		StateBits: e.StateBits,
	}
	if modTime := e.LastModified(); !modTime.IsZero() {
		node.ModTime = &modTime
	}
	if e.IsStorage() {
		node.CLSID = e.CLSID.String()
	} else {
		node.Size = e.Size
	}
	return node
}

func (h *TreeHandler) buildTree(c storage.Container, e storage.Entry) (*TreeNode, error) {
	node := newNode(e)
	if !e.IsStorage() {
		return node, nil
	}

	entries, err := c.ReadStorage(e.Path)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		child, err := h.buildTree(c, entry)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}

// GetTree returns the whole storage tree of the container
func (h *TreeHandler) GetTree(c *gin.Context) {
	container, err := h.open(h.locator)
	if err != nil {
		writeError(c, err)
		return
	}
	defer container.Close()

	tree, err := h.buildTree(container, container.Root())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tree)
}

// GetEntry returns the metadata of a single entry
func (h *TreeHandler) GetEntry(c *gin.Context) {
	entryPath := c.Param("path")

	// Security: container paths never navigate upwards
	if strings.Contains(entryPath, "..") {
		c.JSON(http.StatusForbidden, gin.H{
			"error": "invalid path",
		})
		return
	}

	container, err := h.open(h.locator)
	if err != nil {
		writeError(c, err)
		return
	}
	defer container.Close()

	entry, err := container.Entry(entryPath)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newNode(entry))
}

// GetRaw returns the raw bytes of a stream
func (h *TreeHandler) GetRaw(c *gin.Context) {
	entryPath := c.Param("path")

	if strings.Contains(entryPath, "..") {
		c.JSON(http.StatusForbidden, gin.H{
			"error": "invalid path",
		})
		return
	}

	container, err := h.open(h.locator)
	if err != nil {
		writeError(c, err)
		return
	}
	defer container.Close()

	entry, err := container.Entry(entryPath)
	if err != nil {
		writeError(c, err)
		return
	}
	r, err := container.OpenStream(entryPath)
	if err != nil {
		writeError(c, err)
		return
	}
	defer r.Close()

	c.DataFromReader(http.StatusOK, int64(entry.Size), "application/octet-stream", r, nil)
}

// writeError maps container errors to HTTP responses
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	msg := err.Error()
	switch {
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
		msg = "entry not found"
	case errors.Is(err, os.ErrNotExist):
		status = http.StatusNotFound
		msg = "container not found"
	case errors.Is(err, storage.ErrNotStream):
		status = http.StatusBadRequest
		msg = "path is a storage"
	}
	c.JSON(status, gin.H{"error": msg})
}
