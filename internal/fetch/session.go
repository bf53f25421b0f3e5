package fetch

import (
	"net/http"
	"net/http/cookiejar"
)

var defaultAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:127.0) Gecko/20100101 Firefox/127.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:127.0) Gecko/20100101 Firefox/127.0",
}

// Session carries the cookie jar and User-Agent rotation state across
// fetches. It is passed into and returned from each fetch so the client
// itself stays stateless.
type Session struct {
	jar      http.CookieJar
	agents   []string
	agentIdx int
}

func NewSession(agents []string) (Session, error) {
	if len(agents) == 0 {
		agents = defaultAgents
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return Session{}, err
	}
	return Session{jar: jar, agents: agents}, nil
}

func (s Session) UserAgent() string {
	return s.agents[s.agentIdx%len(s.agents)]
}

// RotateAgent returns the session advanced to the next User-Agent with a
// fresh cookie jar. Used after a challenge page, when the current
// fingerprint is burned.
func (s Session) RotateAgent() Session {
	s.agentIdx = (s.agentIdx + 1) % len(s.agents)
	if jar, err := cookiejar.New(nil); err == nil {
		s.jar = jar
	}
	return s
}
