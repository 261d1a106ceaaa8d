package handlers

import (
	"crypto/subtle"
	"strconv"
	"strings"

	xhttp "github.com/alumniport/donation-gateway/pkg/http"
	"github.com/valyala/fasthttp"
)

// StaffGate guards the staff surface. Failed checks answer AJAX callers with
// a 403 JSON body and browser navigations with a redirect to the login page.
type StaffGate struct {
	token    string
	loginURL string
}

func NewStaffGate(token, loginURL string) *StaffGate {
	if loginURL == "" {
		loginURL = "/login"
	}
	return &StaffGate{token: token, loginURL: loginURL}
}

// Protect wraps one staff handler.
func (g *StaffGate) Protect(next func(ctx *xhttp.RequestCtx)) func(ctx *xhttp.RequestCtx) {
	return func(ctx *xhttp.RequestCtx) {
		if !g.authorized(ctx) {
			if isAJAX(ctx) {
				writeError(ctx, fasthttp.StatusForbidden, "staff access required")
				return
			}
			ctx.Redirect(g.loginURL, fasthttp.StatusFound)
			return
		}
		next(ctx)
	}
}

func (g *StaffGate) authorized(ctx *xhttp.RequestCtx) bool {
	if g.token == "" {
		return false
	}
	presented := bearerToken(ctx)
	if presented == "" {
		presented = string(ctx.Request.Header.Peek("X-Staff-Token"))
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(g.token)) == 1
}

func bearerToken(ctx *xhttp.RequestCtx) string {
	auth := string(ctx.Request.Header.Peek("Authorization"))
	const prefix = "Bearer "
	if strings.HasPrefix(auth, prefix) {
		return auth[len(prefix):]
	}
	return ""
}

func isAJAX(ctx *xhttp.RequestCtx) bool {
	if string(ctx.Request.Header.Peek("X-Requested-With")) == "XMLHttpRequest" {
		return true
	}
	return strings.Contains(string(ctx.Request.Header.ContentType()), "application/json")
}

// actorID resolves the acting staff member from the X-Staff-ID header. Zero
// means unattributed; transitions then leave verified_by unset.
func actorID(ctx *xhttp.RequestCtx) int64 {
	v := string(ctx.Request.Header.Peek("X-Staff-ID"))
	if v == "" {
		return 0
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}
