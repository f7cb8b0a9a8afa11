package main

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/patrickwarner/adbroker/internal/models"
)

func TestParseUnits(t *testing.T) {
	units, err := parseUnits("d1:728x90|970x250:desktop, m1:320x50:mobile")
	require.NoError(t, err)
	assert.Equal(t, []models.AdUnit{
		{ID: "d1", Sizes: []models.Size{{Width: 728, Height: 90}, {Width: 970, Height: 250}}, DeviceType: models.DeviceDesktop},
		{ID: "m1", Sizes: []models.Size{{Width: 320, Height: 50}}, DeviceType: models.DeviceMobile},
	}, units)

	units, err = parseUnits("")
	require.NoError(t, err)
	assert.Empty(t, units)

	for _, bad := range []string{"d1:728x90", "d1:728-90:desktop", "d1:axb:desktop", "d1:728x90:tv"} {
		_, err := parseUnits(bad)
		assert.Error(t, err, bad)
	}
}

func TestClassify(t *testing.T) {
	logger = zap.NewNop()
	const fb = "<div>Fallback Ad</div>"

	assert.Equal(t, outcomeWin, classify(http.StatusOK, []byte(`{"adHtml":"<x>","auctionId":"a"}`), fb))
	assert.Equal(t, outcomeFallback, classify(http.StatusOK, []byte(`{"adHtml":"<div>Fallback Ad</div>","auctionId":"a"}`), fb))
	assert.Equal(t, outcomeDegraded, classify(http.StatusInternalServerError, []byte(`{"error":"Failed to request bids","adHtml":"<div>Fallback Ad</div>"}`), fb))
	assert.Equal(t, outcomeDegraded, classify(http.StatusOK, []byte(`{"error":"Failed to request bids","adHtml":"<div>Fallback Ad</div>"}`), fb))
	assert.Equal(t, outcomeError, classify(http.StatusBadGateway, []byte(`{"adHtml":"<x>"}`), fb))
	assert.Equal(t, outcomeError, classify(http.StatusOK, []byte(`not json`), fb))
}
