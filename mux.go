package authkit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
)

// AuthKit glues the Service to HTTP: routing, sessions, auth cookies and
// the JWT minted on login. Mount Handler() under a prefix like /auth/.
type AuthKit struct {
	router     *mux.Router
	Session    *scs.SessionManager
	Service    *Service
	Middleware Middleware

	// Optional name used as a prefix for derived defaults.
	AppName string

	// Name of the session variable (and cookie) holding the auth token.
	AuthTokenSessionVar string

	// All the domains the auth cookies are set on at login and logout.
	CookieDomains []string

	JwtIssuer    string
	JWTSecretKey string

	// How long a session cookie is valid for. Defaults to 1 day.
	SessionTimeoutInSeconds int
}

func New(appName string, service *Service, session *scs.SessionManager) *AuthKit {
	out := &AuthKit{AppName: appName, Service: service, Session: session}
	return out.EnsureDefaults()
}

func (a *AuthKit) EnsureDefaults() *AuthKit {
	if a.AppName == "" {
		a.AppName = "AuthKit"
	}
	if a.SessionTimeoutInSeconds <= 0 {
		a.SessionTimeoutInSeconds = 86400
	}
	if a.JwtIssuer == "" {
		a.JwtIssuer = fmt.Sprintf("%s-Issuer", a.AppName)
	}
	if a.AuthTokenSessionVar == "" {
		a.AuthTokenSessionVar = fmt.Sprintf("%sAuthToken", a.AppName)
	}
	if a.JWTSecretKey == "" {
		a.JWTSecretKey = strings.TrimSpace(os.Getenv("AUTHKIT_JWT_SECRET_KEY"))
	}
	if a.Middleware.AuthTokenCookieName == "" {
		a.Middleware.AuthTokenCookieName = a.AuthTokenSessionVar
	}
	a.Middleware.EnsureDefaults()
	if a.Middleware.SessionGetter == nil {
		a.Middleware.SessionGetter = func(r *http.Request, param string) any {
			return a.Session.GetString(r.Context(), param)
		}
	}
	if a.Middleware.VerifyToken == nil {
		a.Middleware.VerifyToken = a.verifyJWT
	}
	return a
}

// Handler returns the routes. The caller is responsible for wrapping the
// whole server in Session.LoadAndSave.
func (a *AuthKit) Handler() http.Handler {
	return a.setupRoutes().router
}

func (a *AuthKit) setupRoutes() *AuthKit {
	if a.router != nil {
		return a
	}
	a.EnsureDefaults()
	r := mux.NewRouter()
	r.HandleFunc("/registration", a.onRegister).Methods("POST")
	r.HandleFunc("/login", a.onLogin).Methods("POST")
	r.HandleFunc("/logout", a.onLogout).Methods("GET", "POST")
	r.HandleFunc("/reset-password", a.onRequestPasswordReset).Methods("POST")
	r.HandleFunc("/reset-password/confirm", a.onResetPassword).Methods("POST")
	r.Handle("/change-email", a.Middleware.EnsureUser(http.HandlerFunc(a.onChangeEmail))).Methods("POST")
	r.Handle("/change-password", a.Middleware.EnsureUser(http.HandlerFunc(a.onChangePassword))).Methods("POST")
	r.HandleFunc("/confirmation/{code}", a.onConfirmation).Methods("GET")
	a.router = r
	return a
}

// AddProvider mounts a social login handler (e.g. an oauth2.Provider)
// under /social/<name>/.
func (a *AuthKit) AddProvider(name string, handler http.Handler) *AuthKit {
	a.setupRoutes()
	prefix := "/social/" + name
	a.router.PathPrefix(prefix + "/").Handler(http.StripPrefix(prefix, handler))
	return a
}

// CurrentUser loads the user for the request's logged-in user id, or nil.
func (a *AuthKit) CurrentUser(r *http.Request) *User {
	userId := a.Middleware.GetLoggedInUserId(r)
	if userId == "" {
		return nil
	}
	id, err := a.Service.Store.UserIDFromString(userId)
	if err != nil {
		return nil
	}
	u, err := a.Service.Store.GetUser(r.Context(), UserFilter{ID: id})
	if err != nil {
		return nil
	}
	return u
}

// HandleAssertion is the social login sink: it resolves the provider
// assertion onto a local user, logs it in and redirects. A nil assertion
// means the provider flow failed or was cancelled.
func (a *AuthKit) HandleAssertion(provider string, assertion *Assertion, backTo string, w http.ResponseWriter, r *http.Request) {
	if backTo == "" {
		backTo = a.Service.Config.LoginRedirect
	}
	if assertion == nil {
		PutFlash(a.Session, r, a.Service.Config.Messages.AuthFailed)
		http.Redirect(w, r, a.Service.Config.LogoutRedirect, http.StatusFound)
		return
	}
	u, err := a.Service.ResolveIdentity(r.Context(), assertion, clientIP(r))
	if err != nil {
		a.Service.Logger.Error("identity resolution failed", "provider", provider, "error", err)
		PutFlash(a.Session, r, a.Service.Config.Messages.AuthFailed)
		http.Redirect(w, r, a.Service.Config.LogoutRedirect, http.StatusFound)
		return
	}
	if err := u.LoginAllowed(); err != nil {
		PutFlash(a.Session, r, a.Service.Config.Messages.UserBanned)
		http.Redirect(w, r, a.Service.Config.LogoutRedirect, http.StatusFound)
		return
	}
	a.authorize(u, w, r)
	PutFlash(a.Session, r, a.Service.Config.Messages.LoggedIn)
	http.Redirect(w, r, backTo, http.StatusFound)
}

func (a *AuthKit) onRegister(w http.ResponseWriter, r *http.Request) {
	form := parseBody(r)
	outcome, err := a.Service.Register(r.Context(),
		form["email"], form["password"], form["password_confirm"], clientIP(r))
	a.finish(outcome, err, w, r)
}

func (a *AuthKit) onLogin(w http.ResponseWriter, r *http.Request) {
	form := parseBody(r)
	backTo := form["back_to"]
	if backTo == "" {
		backTo = r.URL.Query().Get("back_to")
	}
	outcome, err := a.Service.Login(r.Context(), form["email"], form["password"], backTo)
	a.finish(outcome, err, w, r)
}

func (a *AuthKit) onLogout(w http.ResponseWriter, r *http.Request) {
	a.unauthorize(w, r)
	a.finish(a.Service.Logout(), nil, w, r)
}

func (a *AuthKit) onRequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	form := parseBody(r)
	outcome, err := a.Service.RequestPasswordReset(r.Context(), form["email"])
	a.finish(outcome, err, w, r)
}

func (a *AuthKit) onResetPassword(w http.ResponseWriter, r *http.Request) {
	form := parseBody(r)
	c, err := a.Service.Confirmations().Lookup(r.Context(), form["code"])
	if err != nil || c.Action != ActionResetPassword {
		http.Redirect(w, r, a.Service.Config.ConfirmationErrorURL, http.StatusFound)
		return
	}
	outcome, err := a.Service.ResetPassword(r.Context(), c, form["password"], form["password_confirm"])
	a.finish(outcome, err, w, r)
}

func (a *AuthKit) onChangeEmail(w http.ResponseWriter, r *http.Request) {
	u := a.CurrentUser(r)
	if u == nil {
		http.Error(w, "Not Authenticated", http.StatusUnauthorized)
		return
	}
	form := parseBody(r)
	outcome, err := a.Service.ChangeEmail(r.Context(), u, form["email"])
	a.finish(outcome, err, w, r)
}

func (a *AuthKit) onChangePassword(w http.ResponseWriter, r *http.Request) {
	u := a.CurrentUser(r)
	if u == nil {
		http.Error(w, "Not Authenticated", http.StatusUnauthorized)
		return
	}
	form := parseBody(r)
	outcome, err := a.Service.ChangePassword(r.Context(), u,
		form["current_password"], form["password"], form["password_confirm"])
	a.finish(outcome, err, w, r)
}

func (a *AuthKit) onConfirmation(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	result, err := a.Service.Confirm(r.Context(), code)
	if err != nil {
		http.Error(w, "Internal Error", http.StatusInternalServerError)
		return
	}
	if result.Outcome != nil {
		a.finish(result.Outcome, nil, w, r)
		return
	}
	// A live reset-password confirmation: hand the code back so the app
	// can render the new-password form posting to /reset-password/confirm.
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"action":  result.Action,
		"code":    result.Confirmation.Code,
	})
}

// finish applies an outcome: establish the session when a user is
// attached, queue flash messages and answer with a redirect or JSON
// depending on what the client accepts.
func (a *AuthKit) finish(outcome *Outcome, err error, w http.ResponseWriter, r *http.Request) {
	if err != nil {
		a.Service.Logger.Error("auth flow failed", "path", r.URL.Path, "error", err)
		http.Error(w, "Internal Error", http.StatusInternalServerError)
		return
	}
	if outcome.User != nil {
		a.authorize(outcome.User, w, r)
	}
	if len(outcome.Flash) > 0 {
		PutFlash(a.Session, r, outcome.Flash...)
	}
	if wantsJSON(r) {
		status := http.StatusOK
		if outcome.Failed() {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]any{
			"success":  !outcome.Failed(),
			"redirect": outcome.Redirect,
			"flash":    outcome.Flash,
			"errors":   outcome.FieldErrors,
		})
		return
	}
	if outcome.Failed() {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"errors":  outcome.FieldErrors,
		})
		return
	}
	http.Redirect(w, r, outcome.Redirect, http.StatusFound)
}

// authorize sets the session variable and auth token cookies for the user
// on all the cookie domains we care about.
func (a *AuthKit) authorize(u *User, w http.ResponseWriter, r *http.Request) string {
	a.EnsureDefaults()
	userId := a.Service.Store.UserSessionID(u)
	a.Session.Put(r.Context(), a.Middleware.UserParamName, userId)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userId,
		"iss": a.JwtIssuer,
		"aud": a.AppName,
		"exp": time.Now().Add(time.Second * time.Duration(a.SessionTimeoutInSeconds)).Unix(),
		"iat": time.Now().Unix(),
	})
	tokenString, err := token.SignedString([]byte(a.JWTSecretKey))
	if err != nil {
		a.Service.Logger.Error("error signing token", "error", err)
		return ""
	}
	a.Session.Put(r.Context(), a.AuthTokenSessionVar, tokenString)

	for _, cookieDomain := range a.cookieDomains() {
		http.SetCookie(w, &http.Cookie{
			Name:    a.AuthTokenSessionVar,
			Value:   tokenString,
			Domain:  cookieDomain,
			Path:    "/",
			Expires: time.Now().Add(time.Second * time.Duration(a.SessionTimeoutInSeconds)),
			MaxAge:  a.SessionTimeoutInSeconds,
		})
	}
	return tokenString
}

// unauthorize clears the session and expires the auth cookies.
func (a *AuthKit) unauthorize(w http.ResponseWriter, r *http.Request) {
	a.EnsureDefaults()
	if err := a.Session.Clear(r.Context()); err != nil {
		a.Service.Logger.Warn("error clearing session", "error", err)
	}
	for _, cookieDomain := range a.cookieDomains() {
		http.SetCookie(w, &http.Cookie{
			Name:    a.AuthTokenSessionVar,
			Domain:  cookieDomain,
			Path:    "/",
			MaxAge:  -1,
			Expires: time.Now(),
		})
	}
}

func (a *AuthKit) cookieDomains() []string {
	domains := a.CookieDomains
	if !slices.Contains(domains, "") { // default domain
		domains = append(domains, "")
	}
	return domains
}

func (a *AuthKit) verifyJWT(tokenString string) (loggedInUserId string, t any, err error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return []byte(a.JWTSecretKey), nil
	})
	if err != nil {
		return "", nil, err
	}
	if !token.Valid {
		return "", nil, fmt.Errorf("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims == nil {
		return "", nil, fmt.Errorf("claims is not a map")
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return "", nil, err
	}
	if sub == "" {
		return "", nil, fmt.Errorf("subject not found")
	}
	return sub, token, nil
}

// parseBody reads form fields from an urlencoded POST body or a flat JSON
// object, returning them as a string map.
func parseBody(r *http.Request) map[string]string {
	out := map[string]string{}
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/json") {
		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err == nil {
			for k, v := range raw {
				if s, ok := v.(string); ok {
					out[k] = s
				}
			}
		}
		return out
	}
	if err := r.ParseForm(); err == nil {
		for k := range r.PostForm {
			out[k] = r.PostForm.Get(k)
		}
	}
	return out
}

func wantsJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/json")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// clientIP returns the originating client address, preferring the first
// X-Forwarded-For hop.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.Index(fwd, ","); idx != -1 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		return host[:idx]
	}
	return host
}
