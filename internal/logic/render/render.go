// Package render turns an auction result into the markup returned to callers.
package render

import (
	"fmt"
	"html"
	"strings"

	"github.com/patrickwarner/adbroker/internal/logic/auction"
	"github.com/patrickwarner/adbroker/internal/models"
)

// DefaultFallbackHTML is served when an auction has no winner.
const DefaultFallbackHTML = "<div>Fallback Ad</div>"

// Policy decides how winning creative markup is embedded.
type Policy string

const (
	// PolicyPassthrough returns the creative verbatim.
	PolicyPassthrough Policy = "passthrough"
	// PolicySandbox wraps the creative in a sandboxed iframe.
	PolicySandbox Policy = "sandbox"
)

// ParsePolicy maps a config value to a Policy; unknown values return false.
func ParsePolicy(s string) (Policy, bool) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyPassthrough, PolicySandbox:
		return p, true
	case "":
		return PolicyPassthrough, true
	}
	return "", false
}

// Renderer produces markup for auction results. It is pure and never fails.
type Renderer struct {
	policy   Policy
	fallback string
}

// NewRenderer returns a Renderer. An empty fallback selects DefaultFallbackHTML.
func NewRenderer(policy Policy, fallback string) *Renderer {
	if policy == "" {
		policy = PolicyPassthrough
	}
	if fallback == "" {
		fallback = DefaultFallbackHTML
	}
	return &Renderer{policy: policy, fallback: fallback}
}

// Fallback returns the no-winner markup.
func (r *Renderer) Fallback() string {
	return r.fallback
}

// Render returns the winning creative, or the fallback when there is no winner.
func (r *Renderer) Render(res auction.Result) string {
	return r.RenderBid(res.Winner)
}

// RenderBid renders a single winning bid; nil renders the fallback.
func (r *Renderer) RenderBid(winner *models.Bid) string {
	if winner == nil {
		return r.fallback
	}
	if r.policy == PolicySandbox {
		return sandboxed(*winner)
	}
	return winner.Creative
}

func sandboxed(b models.Bid) string {
	var attrs []string
	attrs = append(attrs, `sandbox="allow-scripts allow-popups allow-popups-to-escape-sandbox"`)
	attrs = append(attrs, fmt.Sprintf(`title="%s"`, html.EscapeString("Advertisement from "+b.AdvertiserDomain)))
	attrs = append(attrs, `style="border:0;width:100%;height:100%;"`)
	attrs = append(attrs, fmt.Sprintf(`srcdoc="%s"`, html.EscapeString(b.Creative)))
	return fmt.Sprintf("<iframe %s></iframe>", strings.Join(attrs, " "))
}
