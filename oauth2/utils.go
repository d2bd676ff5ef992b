package oauth2

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/panyam/authkit"
)

// HandleAssertionFunc is the sink for a completed provider flow. A nil
// assertion means the flow failed or was cancelled by the user.
type HandleAssertionFunc func(provider string, a *authkit.Assertion, backTo string, w http.ResponseWriter, r *http.Request)

const (
	stateCookieName  = "oauthstate"
	backToCookieName = "oauthBackTo"
)

func generateStateCookie(w http.ResponseWriter) string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	state := base64.URLEncoding.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name:    stateCookieName,
		Value:   state,
		Path:    "/",
		Expires: time.Now().Add(time.Hour),
	})
	return state
}

// redirector sends the browser off to the provider's consent page,
// setting the state cookie and remembering where to land afterwards.
func redirector(config *oauth2.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if backTo := r.URL.Query().Get("back_to"); backTo != "" {
			http.SetCookie(w, &http.Cookie{
				Name:    backToCookieName,
				Value:   backTo,
				Path:    "/",
				Expires: time.Now().Add(time.Hour),
				MaxAge:  300, // keep this short
			})
		}
		state := generateStateCookie(w)
		http.Redirect(w, r, config.AuthCodeURL(state), http.StatusFound)
	}
}

// popBackTo returns and clears the remembered post-login destination.
func popBackTo(w http.ResponseWriter, r *http.Request) string {
	cookie, _ := r.Cookie(backToCookieName)
	if cookie == nil {
		return ""
	}
	http.SetCookie(w, &http.Cookie{
		Name:   backToCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1, Expires: time.Now(),
	})
	return cookie.Value
}
