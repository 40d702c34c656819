package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mediaforge/internal/upload"
)

// UploadHandler accepts multipart original-asset uploads.
type UploadHandler struct {
	Uploader *upload.Uploader
}

// NewUploadHandler builds an UploadHandler.
func NewUploadHandler(u *upload.Uploader) *UploadHandler {
	return &UploadHandler{Uploader: u}
}

// Upload handles POST /upload: one or more files under the "files" field.
// Response status follows spec §4.13: 200 if every file succeeded, 207 if
// some succeeded and some failed, 400 if every file failed.
func (h *UploadHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expected multipart/form-data with a files field"})
		return
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files provided"})
		return
	}

	results := make([]*upload.Result, 0, len(headers))
	succeeded, failed := 0, 0

	for _, header := range headers {
		result, err := h.Uploader.HandleFile(c.Request.Context(), header)
		if err != nil {
			failed++
			results = append(results, &upload.Result{OriginalName: header.Filename, Error: err.Error()})
			continue
		}
		succeeded++
		results = append(results, result)
	}

	status := http.StatusOK
	switch {
	case succeeded == 0:
		status = http.StatusBadRequest
	case failed > 0:
		status = http.StatusMultiStatus
	}

	c.JSON(status, gin.H{"results": results})
}
