package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sketchin/redforecast/internal/forecast"
	"github.com/sketchin/redforecast/internal/history"
	"github.com/sketchin/redforecast/internal/ingestion"
)

// Server exposes the forecast operations as MCP tools over stdio.
type Server struct {
	history      *history.Service
	forecast     *forecast.Service
	ingest       *ingestion.Service
	workbookPath string
	sheetName    string
	version      string
}

// New creates an MCP server wired to the forecast services.
func New(historySvc *history.Service, forecastSvc *forecast.Service, ingestSvc *ingestion.Service, workbookPath, sheetName, version string) *Server {
	return &Server{
		history:      historySvc,
		forecast:     forecastSvc,
		ingest:       ingestSvc,
		workbookPath: workbookPath,
		sheetName:    sheetName,
		version:      version,
	}
}

// Run registers the tools and serves MCP over stdio until the context is
// cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "redforecast",
		Version: s.version,
	}, nil)
	s.register(srv)

	log.Println("[MCP] serving over stdio")
	return srv.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) register(srv *mcp.Server) {
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "compare_forecast_dates",
		Description: "Compare the stored forecasts closest to two dates and return the differences as JSON",
	}, s.compareForecastDates)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_forecast_data",
		Description: "Get forecast data for the given months, optionally filtered by factory; an empty month list means the current month",
	}, s.getForecastData)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_opportunities_with_filters",
		Description: "List opportunities filtered by month, content owner, factory, sensitivity range, and status",
	}, s.getOpportunitiesWithFilters)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "reload_forecast_data",
		Description: "Reload the forecast data from the Excel workbook",
	}, s.reloadForecastData)
}

type compareInput struct {
	Date1 string `json:"date1" jsonschema:"the first date (YYYY-MM-DD)"`
	Date2 string `json:"date2" jsonschema:"the second date (YYYY-MM-DD)"`
}

func (s *Server) compareForecastDates(ctx context.Context, _ *mcp.CallToolRequest, input compareInput) (*mcp.CallToolResult, any, error) {
	diff, err := s.history.Compare(ctx, input.Date1, input.Date2)
	if err != nil {
		return nil, nil, fmt.Errorf("comparison failed: %w", err)
	}

	payload, err := json.Marshal(diff)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode differences: %w", err)
	}
	return textResult(string(payload)), nil, nil
}

type forecastInput struct {
	Months  []string `json:"months" jsonschema:"months to report on; empty means the current month"`
	Factory string   `json:"factory,omitempty" jsonschema:"factory to filter by, or All"`
}

func (s *Server) getForecastData(ctx context.Context, _ *mcp.CallToolRequest, input forecastInput) (*mcp.CallToolResult, any, error) {
	text, err := s.forecast.GetForecast(input.Months, input.Factory)
	if err != nil {
		return nil, nil, err
	}
	return textResult(text), nil, nil
}

type filterInput struct {
	Month           string  `json:"month,omitempty" jsonschema:"month to filter by, or All"`
	ContentOwner    string  `json:"content_owner,omitempty" jsonschema:"content owner to filter by, or All"`
	Factory         string  `json:"factory,omitempty" jsonschema:"factory to filter by, or All"`
	FromSensitivity float64 `json:"from_sensitivity,omitempty" jsonschema:"minimum sensitivity"`
	ToSensitivity   float64 `json:"to_sensitivity,omitempty" jsonschema:"maximum sensitivity; negative leaves the bound open"`
	Status          string  `json:"status,omitempty" jsonschema:"opportunity status to filter by, or All"`
}

func (s *Server) getOpportunitiesWithFilters(ctx context.Context, _ *mcp.CallToolRequest, input filterInput) (*mcp.CallToolResult, any, error) {
	toSensitivity := input.ToSensitivity
	if toSensitivity == 0 {
		toSensitivity = -1
	}
	text, err := s.forecast.FilterOpportunities(
		input.Month, input.ContentOwner, input.Factory,
		input.FromSensitivity, toSensitivity, input.Status,
	)
	if err != nil {
		return nil, nil, err
	}
	return textResult(text), nil, nil
}

type reloadInput struct{}

func (s *Server) reloadForecastData(ctx context.Context, _ *mcp.CallToolRequest, _ reloadInput) (*mcp.CallToolResult, any, error) {
	result, err := s.ingest.LoadWorkbook(ctx, s.workbookPath, s.sheetName)
	if err != nil {
		return textResult(fmt.Sprintf("Failed to load data: %v", err)), nil, nil
	}
	s.forecast.SetRecords(result.Records)
	log.Printf("[MCP] reloaded %d opportunities from %s", result.ParsedRows, s.workbookPath)
	return textResult("Data loaded successfully"), nil, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}
