package handler

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
)

// generatePKCE stores a fresh verifier in a cookie and returns it with its
// S256 challenge.
func generatePKCE(c *gin.Context) (verifier string, challenge string) {
	verifier = oauth2.GenerateVerifier()
	setFlowCookie(c, pkceCookieName, verifier, int(flowCookieTTL.Seconds()))
	return verifier, oauth2.S256ChallengeFromVerifier(verifier)
}

func getPKCEVerifier(c *gin.Context) string {
	cookie, err := c.Request.Cookie(pkceCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func clearPKCE(c *gin.Context) {
	setFlowCookie(c, pkceCookieName, "", -1)
}
