package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/patrickwarner/adbroker/internal/broker"
	"github.com/patrickwarner/adbroker/internal/logic"
	"github.com/patrickwarner/adbroker/internal/models"
	"github.com/patrickwarner/adbroker/internal/registry"
)

type RegisterAdUnitInput struct {
	ID         string   `json:"id"`
	Sizes      [][2]int `json:"sizes"`
	DeviceType string   `json:"device_type"`
}

type RegisterAdUnitOutput struct {
	Message string `json:"message"`
}

type ListAdUnitsInput struct{}

type AdUnitView struct {
	ID         string   `json:"id"`
	Sizes      []string `json:"sizes"` // "WxH"
	DeviceType string   `json:"device_type"`
}

type ListAdUnitsOutput struct {
	AdUnits []AdUnitView `json:"ad_units"`
}

type RunAuctionInput struct {
	// DeviceType and Country describe the simulated visitor. Both are
	// optional and only affect analytics enrichment.
	DeviceType string `json:"device_type,omitempty"`
	Country    string `json:"country,omitempty"`
	Debug      bool   `json:"debug,omitempty"`
}

type WinnerView struct {
	Bidder           string  `json:"bidder"`
	Price            float64 `json:"price"`
	AdUnitID         string  `json:"ad_unit_id"`
	AdvertiserDomain string  `json:"advertiser_domain"`
}

type RunAuctionOutput struct {
	AuctionID string              `json:"auction_id"`
	AdHTML    string              `json:"ad_html"`
	Winner    *WinnerView         `json:"winner,omitempty"`
	Degraded  bool                `json:"degraded"`
	Error     string              `json:"error,omitempty"`
	Trace     *logic.AuctionTrace `json:"trace,omitempty"`
}

// BrokerTools exposes the registry and broker as MCP tools.
type BrokerTools struct {
	registry *registry.Registry
	broker   *broker.Broker
	logger   *zap.Logger
}

// RegisterAdUnit implements the register_ad_unit tool.
func (s *BrokerTools) RegisterAdUnit(ctx context.Context, _ *mcp.CallToolRequest, input RegisterAdUnitInput) (*mcp.CallToolResult, RegisterAdUnitOutput, error) {
	unit := models.AdUnit{ID: input.ID, DeviceType: models.DeviceType(input.DeviceType)}
	for _, s := range input.Sizes {
		unit.Sizes = append(unit.Sizes, models.Size{Width: s[0], Height: s[1]})
	}

	err := s.registry.Register(ctx, unit)
	switch {
	case err == nil:
		return nil, RegisterAdUnitOutput{Message: "Ad unit added successfully"}, nil
	case errors.Is(err, models.ErrAlreadyExists), errors.Is(err, models.ErrValidation):
		return nil, RegisterAdUnitOutput{}, err
	}
	s.logger.Error("register ad unit", zap.String("ad_unit_id", input.ID), zap.Error(err))
	return nil, RegisterAdUnitOutput{}, fmt.Errorf("failed to register ad unit")
}

// ListAdUnits implements the list_ad_units tool.
func (s *BrokerTools) ListAdUnits(_ context.Context, _ *mcp.CallToolRequest, _ ListAdUnitsInput) (*mcp.CallToolResult, ListAdUnitsOutput, error) {
	units := s.registry.List()
	out := ListAdUnitsOutput{AdUnits: make([]AdUnitView, 0, len(units))}
	for _, u := range units {
		v := AdUnitView{ID: u.ID, DeviceType: string(u.DeviceType), Sizes: make([]string, 0, len(u.Sizes))}
		for _, sz := range u.Sizes {
			v.Sizes = append(v.Sizes, sz.String())
		}
		out.AdUnits = append(out.AdUnits, v)
	}
	return nil, out, nil
}

// RunAuction implements the run_auction tool.
func (s *BrokerTools) RunAuction(ctx context.Context, _ *mcp.CallToolRequest, input RunAuctionInput) (*mcp.CallToolResult, RunAuctionOutput, error) {
	rc := models.RequestContext{DeviceType: input.DeviceType, Country: input.Country}
	res := s.broker.Run(ctx, rc)

	out := RunAuctionOutput{
		AuctionID: res.AuctionID,
		AdHTML:    res.AdHTML,
		Degraded:  res.Degraded(),
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	if w := res.Winner; w != nil {
		out.Winner = &WinnerView{
			Bidder:           w.Bidder,
			Price:            w.Price,
			AdUnitID:         w.AdID,
			AdvertiserDomain: w.AdvertiserDomain,
		}
	}
	if input.Debug {
		tr := res.Trace()
		out.Trace = &tr
	}
	return nil, out, nil
}

func newMCPServer(tools *BrokerTools) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "adbroker",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "register_ad_unit",
		Description: "Register an ad unit so it takes part in every following auction",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"id": map[string]interface{}{
					"type":        "string",
					"description": "Unique ad unit identifier",
				},
				"sizes": map[string]interface{}{
					"type": "array",
					"items": map[string]interface{}{
						"type":     "array",
						"items":    map[string]interface{}{"type": "integer", "minimum": 1},
						"minItems": 2,
						"maxItems": 2,
					},
					"minItems":    1,
					"description": "Accepted creative sizes as [width, height] pairs",
				},
				"device_type": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"mobile", "desktop"},
					"description": "Device class the unit is shown on; selects the floor price",
				},
			},
			"required": []string{"id", "sizes", "device_type"},
		},
	}, tools.RegisterAdUnit)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_ad_units",
		Description: "List registered ad units in registration order",
		InputSchema: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		},
	}, tools.ListAdUnits)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "run_auction",
		Description: "Collect bids for every registered ad unit and return the winning creative or the fallback",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"device_type": map[string]interface{}{
					"type":        "string",
					"description": "Device type of the simulated visitor (optional)",
				},
				"country": map[string]interface{}{
					"type":        "string",
					"description": "ISO country code of the simulated visitor (optional)",
				},
				"debug": map[string]interface{}{
					"type":        "boolean",
					"description": "Include the auction trace in the result",
				},
			},
		},
	}, tools.RunAuction)

	return server
}
