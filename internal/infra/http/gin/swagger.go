package ginserver

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"
)

// OpenAPI document for the booking API and the viewer that renders it.
const (
	swaggerDocPath = "/swagger/doc.json"
	swaggerUIPath  = "/swagger"
)

//go:embed swagger/openapi.json
var swaggerSpec []byte

//go:embed swagger/index.html
var swaggerHTML string

var (
	swaggerETag = `"` + specDigest(swaggerSpec) + `"`
	swaggerPage = []byte(strings.ReplaceAll(swaggerHTML, "{{SPEC_URL}}", swaggerDocPath))
)

func specDigest(doc []byte) string {
	sum := sha256.Sum256(doc)
	return hex.EncodeToString(sum[:8])
}

// registerSwaggerRoutes serves the embedded document; clients revalidate it
// with If-None-Match since it only changes with a new build.
func registerSwaggerRoutes(router gin.IRoutes) {
	router.GET(swaggerDocPath, func(c *gin.Context) {
		c.Header("ETag", swaggerETag)
		c.Header("Cache-Control", "no-cache")
		if c.GetHeader("If-None-Match") == swaggerETag {
			c.Status(http.StatusNotModified)
			return
		}
		c.Data(http.StatusOK, "application/json", swaggerSpec)
	})
	router.GET(swaggerUIPath, func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", swaggerPage)
	})
}
