package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"time"

	xhttp "github.com/alumniport/donation-gateway/pkg/http"
	"github.com/valyala/fasthttp"
)

const donorCookieName = "donor_ref"
const donorCookieTTL = 180 * 24 * time.Hour

// DonorCookie signs and verifies the returning-donor cookie. The value is
// base64(email).hex(hmac-sha256(email)), so a tampered email fails
// verification and a missing secret disables the feature entirely.
type DonorCookie struct {
	secret []byte
}

func NewDonorCookie(secret string) *DonorCookie {
	return &DonorCookie{secret: []byte(secret)}
}

func (c *DonorCookie) Enabled() bool {
	return len(c.secret) > 0
}

func (c *DonorCookie) sign(email string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(email))
	return hex.EncodeToString(mac.Sum(nil))
}

// Issue sets the signed cookie on the response.
func (c *DonorCookie) Issue(ctx *xhttp.RequestCtx, email string) {
	if !c.Enabled() || email == "" {
		return
	}
	cookie := fasthttp.AcquireCookie()
	defer fasthttp.ReleaseCookie(cookie)

	cookie.SetKey(donorCookieName)
	cookie.SetValue(base64.RawURLEncoding.EncodeToString([]byte(email)) + "." + c.sign(email))
	cookie.SetPath("/")
	cookie.SetExpire(time.Now().Add(donorCookieTTL))
	cookie.SetHTTPOnly(true)
	cookie.SetSameSite(fasthttp.CookieSameSiteLaxMode)
	ctx.Response.Header.SetCookie(cookie)
}

// Read returns the verified donor email from the request cookie, or "" when
// the cookie is absent, malformed, or carries a bad signature.
func (c *DonorCookie) Read(ctx *xhttp.RequestCtx) string {
	if !c.Enabled() {
		return ""
	}
	raw := string(ctx.Request.Header.Cookie(donorCookieName))
	if raw == "" {
		return ""
	}
	dot := strings.LastIndexByte(raw, '.')
	if dot <= 0 {
		return ""
	}
	payload, sig := raw[:dot], raw[dot+1:]
	decoded, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return ""
	}
	email := string(decoded)
	if !hmac.Equal([]byte(sig), []byte(c.sign(email))) {
		return ""
	}
	return email
}
