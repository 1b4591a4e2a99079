package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"shopsync/feedhub/internal/service"
)

// OAuthHandler drives the Etsy connect flow. Both endpoints answer with
// redirects: the dashboard reads the outcome from query parameters, never
// from a JSON body.
type OAuthHandler struct {
	oauthService service.OAuthService
	dashboardURL string
}

func NewOAuthHandler(oauthService service.OAuthService, dashboardURL string) *OAuthHandler {
	return &OAuthHandler{
		oauthService: oauthService,
		dashboardURL: dashboardURL,
	}
}

// Connect starts the handshake and sends the browser to the consent page.
func (h *OAuthHandler) Connect(c *gin.Context) {
	authURL, err := h.oauthService.Start(c.Request.Context())
	if err != nil {
		h.redirectError(c, err)
		return
	}
	c.Redirect(http.StatusFound, authURL)
}

// Callback completes the handshake and bounces back to the dashboard with
// either the success marker or a sanitized error code.
func (h *OAuthHandler) Callback(c *gin.Context) {
	// Declined consent arrives as an error parameter with no code; the
	// handshake entry is left to expire via its TTL.
	if c.Query("error") != "" {
		c.Redirect(http.StatusFound, h.dashboardRedirect(url.Values{
			"etsy_error": {"access_denied"},
			"message":    {"the Etsy authorization was declined"},
		}))
		return
	}

	_, err := h.oauthService.Callback(c.Request.Context(), c.Query("code"), c.Query("state"))
	if err != nil {
		h.redirectError(c, err)
		return
	}
	c.Redirect(http.StatusFound, h.dashboardRedirect(url.Values{"etsy_connected": {"1"}}))
}

func (h *OAuthHandler) redirectError(c *gin.Context, err error) {
	code := service.ClassifyError(err)
	c.Redirect(http.StatusFound, h.dashboardRedirect(url.Values{
		"etsy_error": {code},
		"message":    {userMessage(code)},
	}))
}

func (h *OAuthHandler) dashboardRedirect(params url.Values) string {
	sep := "?"
	if strings.Contains(h.dashboardURL, "?") {
		sep = "&"
	}
	return h.dashboardURL + sep + params.Encode()
}
