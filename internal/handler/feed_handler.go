package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"shopsync/feedhub/internal/repository"
	"shopsync/feedhub/pkg/crypto"
	"shopsync/feedhub/pkg/response"
)

const feedCacheControl = "public, max-age=300"

// FeedHandler serves the generated catalog CSV with conditional-request
// support so the crawler can poll cheaply.
type FeedHandler struct {
	feedStore  repository.FeedStore
	objectName string
}

func NewFeedHandler(feedStore repository.FeedStore, objectName string) *FeedHandler {
	return &FeedHandler{
		feedStore:  feedStore,
		objectName: objectName,
	}
}

// Serve answers GET /feed/:name. The ETag is a content hash, so the
// validator only changes when the feed bytes do.
func (h *FeedHandler) Serve(c *gin.Context) {
	if c.Param("name") != h.objectName {
		response.NotFound(c, "unknown feed")
		return
	}

	obj, err := h.feedStore.Get(c.Request.Context(), h.objectName)
	if err != nil {
		response.InternalError(c, "failed to load feed")
		return
	}
	if obj == nil {
		response.NotFound(c, "feed not generated yet")
		return
	}

	etag := `"` + crypto.HashContent(obj.Content) + `"`
	c.Header("ETag", etag)
	c.Header("Cache-Control", feedCacheControl)
	c.Header("Last-Modified", obj.UploadedAt.UTC().Format(http.TimeFormat))

	if match := c.GetHeader("If-None-Match"); match != "" && etagMatches(match, etag) {
		c.Status(http.StatusNotModified)
		return
	}

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "text/csv; charset=utf-8"
	}
	c.Data(http.StatusOK, contentType, obj.Content)
}

// etagMatches checks an If-None-Match header against the current ETag,
// tolerating weak validators and comma-separated lists.
func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		candidate = strings.TrimPrefix(candidate, "W/")
		if candidate == "*" || candidate == etag {
			return true
		}
	}
	return false
}
