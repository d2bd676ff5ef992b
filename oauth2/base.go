// Package oauth2 provides social login providers (Google, Facebook,
// Vkontakte) that produce identity assertions for authkit.
package oauth2

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/panyam/authkit"
)

// Provider is a mountable social login handler. It serves the redirect
// to the provider's consent page at "/" and the callback at "/callback/",
// and hands the resulting assertion to HandleAssertion.
type Provider struct {
	Name   string
	Config oauth2.Config

	// FetchProfile turns an exchanged token into an identity assertion by
	// calling the provider's profile API.
	FetchProfile func(ctx context.Context, config *oauth2.Config, token *oauth2.Token) (*authkit.Assertion, error)

	HandleAssertion HandleAssertionFunc

	mux *http.ServeMux
}

func newProvider(name string, config oauth2.Config, handleAssertion HandleAssertionFunc) *Provider {
	p := &Provider{
		Name:            name,
		Config:          config,
		HandleAssertion: handleAssertion,
		mux:             http.NewServeMux(),
	}
	p.mux.HandleFunc("/", redirector(&p.Config))
	p.mux.HandleFunc("/callback/", p.handleCallback)
	p.mux.HandleFunc("/callback", p.handleCallback)
	return p
}

func (p *Provider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mux.ServeHTTP(w, r)
}

func (p *Provider) handleCallback(w http.ResponseWriter, r *http.Request) {
	backTo := popBackTo(w, r)

	stateCookie, _ := r.Cookie(stateCookieName)
	if stateCookie == nil || r.FormValue("state") != stateCookie.Value {
		http.SetCookie(w, &http.Cookie{Name: stateCookieName, MaxAge: -1, Path: "/"})
		p.HandleAssertion(p.Name, nil, backTo, w, r)
		return
	}

	// The user denying consent comes back as an error param, not a code.
	if r.FormValue("error") != "" || r.FormValue("code") == "" {
		p.HandleAssertion(p.Name, nil, backTo, w, r)
		return
	}

	token, err := p.Config.Exchange(r.Context(), r.FormValue("code"))
	if err != nil {
		p.HandleAssertion(p.Name, nil, backTo, w, r)
		return
	}

	assertion, err := p.FetchProfile(r.Context(), &p.Config, token)
	if err != nil {
		p.HandleAssertion(p.Name, nil, backTo, w, r)
		return
	}
	p.HandleAssertion(p.Name, assertion, backTo, w, r)
}
