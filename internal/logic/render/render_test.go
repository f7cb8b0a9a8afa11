package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/patrickwarner/adbroker/internal/logic/auction"
	"github.com/patrickwarner/adbroker/internal/models"
)

func TestRenderPassthrough(t *testing.T) {
	r := NewRenderer(PolicyPassthrough, "")
	winner := models.Bid{Bidder: "a", Price: 1.2, AdID: "d1", Creative: "<x>", AdvertiserDomain: "a.com"}

	assert.Equal(t, "<x>", r.Render(auction.Result{Winner: &winner}))
	assert.Equal(t, "<div>Fallback Ad</div>", r.Render(auction.Result{}))
}

func TestRenderCustomFallback(t *testing.T) {
	r := NewRenderer("", "<p>house ad</p>")
	assert.Equal(t, "<p>house ad</p>", r.Render(auction.Result{}))
	assert.Equal(t, "<p>house ad</p>", r.Fallback())
}

func TestRenderSandbox(t *testing.T) {
	r := NewRenderer(PolicySandbox, "")
	winner := &models.Bid{Creative: `<script>alert("x")</script>`, AdvertiserDomain: "evil.com"}

	out := r.RenderBid(winner)
	assert.True(t, strings.HasPrefix(out, "<iframe sandbox="))
	assert.Contains(t, out, `srcdoc="&lt;script&gt;alert(&#34;x&#34;)&lt;/script&gt;"`)
	assert.NotContains(t, out, "<script>")

	// fallback is never wrapped
	assert.Equal(t, DefaultFallbackHTML, r.RenderBid(nil))
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]Policy{"": PolicyPassthrough, "Sandbox": PolicySandbox, " passthrough ": PolicyPassthrough} {
		got, ok := ParsePolicy(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParsePolicy("strip")
	assert.False(t, ok)
}
