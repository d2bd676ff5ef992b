package authkit

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

type userParamNameKey string

// Middleware extracts the logged-in user id from a request, checking the
// session first and then bearer tokens in the auth header and cookie.
type Middleware struct {
	AuthTokenHeaderName string
	AuthTokenCookieName string
	UserParamName       string
	CallbackURLParam    string
	SessionGetter       func(r *http.Request, param string) any
	GetRedirURL         func(r *http.Request) string
	VerifyToken         func(tokenString string) (loggedInUserId string, token any, err error)
}

func (a *Middleware) EnsureDefaults() {
	if a.UserParamName == "" {
		a.UserParamName = "loggedInUserId"
	}
	if a.CallbackURLParam == "" {
		a.CallbackURLParam = "callbackURL"
	}
	if a.AuthTokenHeaderName == "" {
		a.AuthTokenHeaderName = "Authorization"
	}
}

// GetLoggedInUserId returns the id of the logged in user for the request,
// or "" if nobody is logged in.
func (a *Middleware) GetLoggedInUserId(r *http.Request) string {
	if v := r.Context().Value(userParamNameKey(a.UserParamName)); v != nil {
		if userId, ok := v.(string); ok && userId != "" {
			return userId
		}
	}

	if userId := a.sessionUserId(r); userId != "" {
		return userId
	}

	if a.VerifyToken == nil {
		return ""
	}

	var authTokens []string
	for _, hdr := range r.Header.Values(a.AuthTokenHeaderName) {
		authTokens = append(authTokens, strings.TrimPrefix(hdr, "Bearer "))
	}
	if a.AuthTokenCookieName != "" {
		for _, cookie := range r.CookiesNamed(a.AuthTokenCookieName) {
			if len(cookie.Value) > 0 {
				authTokens = append(authTokens, cookie.Value)
			}
		}
	}
	for _, authToken := range authTokens {
		userId, _, err := a.VerifyToken(authToken)
		if err == nil && userId != "" {
			return userId
		}
	}
	return ""
}

// ExtractUser loads the logged-in user id (if any) into the request
// context for downstream handlers. It performs no redirects.
func (a *Middleware) ExtractUser(next http.Handler) http.Handler {
	a.EnsureDefaults()
	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, a.setLoggedInUserId(a.GetLoggedInUserId(r), r))
		},
	)
}

// EnsureUser is ExtractUser plus enforcement: without a logged-in user it
// redirects to the login URL (carrying the original path in the callback
// param) or responds 401 when no redirect URL is configured.
func (a *Middleware) EnsureUser(next http.Handler) http.Handler {
	a.EnsureDefaults()
	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			userId := a.GetLoggedInUserId(r)
			if userId == "" {
				redirUrl := ""
				if a.GetRedirURL != nil {
					redirUrl = a.GetRedirURL(r)
				}
				if redirUrl != "" {
					encodedUrl := strings.Replace(url.QueryEscape(r.URL.Path), "+", "%20", -1)
					fullRedirUrl := fmt.Sprintf("%s?%s=%s", redirUrl, a.CallbackURLParam, encodedUrl)
					http.Redirect(w, r, fullRedirUrl, http.StatusFound)
				} else {
					http.Error(w, "Not Authenticated", http.StatusUnauthorized)
				}
				return
			}
			next.ServeHTTP(w, a.setLoggedInUserId(userId, r))
		},
	)
}

func (a *Middleware) sessionUserId(r *http.Request) string {
	if a.SessionGetter == nil {
		return ""
	}
	out := a.SessionGetter(r, a.UserParamName)
	if out == nil {
		return ""
	}
	s, _ := out.(string)
	return s
}

// Set the logged in user id as a request scoped variable so it is
// available to all downstream handlers.
func (a *Middleware) setLoggedInUserId(userId string, r *http.Request) *http.Request {
	contextWithUser := context.WithValue(r.Context(), userParamNameKey(a.UserParamName), userId)
	return r.WithContext(contextWithUser)
}
