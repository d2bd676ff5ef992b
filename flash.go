package authkit

import (
	"net/http"

	"github.com/alexedwards/scs/v2"
)

const flashSessionKey = "authkitFlash"

// flashLimit caps the queued messages per session.
const flashLimit = 10

// PutFlash queues messages to be shown to the user once, on the next page
// they render. Messages beyond the cap are dropped oldest-first.
func PutFlash(session *scs.SessionManager, r *http.Request, msgs ...string) {
	if len(msgs) == 0 {
		return
	}
	queue := popStrings(session, r)
	queue = append(queue, msgs...)
	if len(queue) > flashLimit {
		queue = queue[len(queue)-flashLimit:]
	}
	session.Put(r.Context(), flashSessionKey, encodeStrings(queue))
}

// PopFlash returns and clears the queued flash messages.
func PopFlash(session *scs.SessionManager, r *http.Request) []string {
	return popStrings(session, r)
}

func popStrings(session *scs.SessionManager, r *http.Request) []string {
	raw := session.PopString(r.Context(), flashSessionKey)
	return decodeStrings(raw)
}

// Flash messages are stored as a single session string with a unit
// separator, since scs stores flat values.
const flashSep = "\x1f"

func encodeStrings(msgs []string) string {
	out := ""
	for i, m := range msgs {
		if i > 0 {
			out += flashSep
		}
		out += m
	}
	return out
}

func decodeStrings(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i < len(raw); i++ {
		if raw[i] == flashSep[0] {
			out = append(out, raw[start:i])
			start = i + 1
		}
	}
	return append(out, raw[start:])
}
