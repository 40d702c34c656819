package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mediaforge/internal/invalidate"
	"mediaforge/internal/objectstore"
)

// StorageHandler exposes tree listing and cascading delete over the object
// store, per spec's storage-introspection supplement.
type StorageHandler struct {
	Store       objectstore.Store
	Invalidator *invalidate.Invalidator
	Deleter     *invalidate.AssetDeleter
}

// NewStorageHandler builds a StorageHandler.
func NewStorageHandler(store objectstore.Store, invalidator *invalidate.Invalidator, deleter *invalidate.AssetDeleter) *StorageHandler {
	return &StorageHandler{Store: store, Invalidator: invalidator, Deleter: deleter}
}

// List handles GET /storage/*path, returning every object under the prefix.
func (h *StorageHandler) List(c *gin.Context) {
	prefix := c.Param("path")
	if len(prefix) > 0 && prefix[0] == '/' {
		prefix = prefix[1:]
	}

	entries, err := h.Store.List(c.Request.Context(), prefix)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"prefix": prefix, "entries": entries})
}

// Invalidate handles POST /storage/invalidate?path=..., clearing every
// derived-artifact cache tier without deleting the original.
func (h *StorageHandler) Invalidate(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path query parameter is required"})
		return
	}

	report, err := h.Invalidator.InvalidatePath(c.Request.Context(), path)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

// Delete handles DELETE /storage?path=..., cascading through jobs, caches,
// and the original object.
func (h *StorageHandler) Delete(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path query parameter is required"})
		return
	}

	report, err := h.Deleter.DeleteAsset(c.Request.Context(), path)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}
