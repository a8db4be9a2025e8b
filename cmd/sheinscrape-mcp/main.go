// sheinscrape-mcp bridges the scraper HTTP API to MCP clients over stdio,
// exposing a single scrape_product tool.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// scrapeRequest mirrors the sheinscrape API request model.
type scrapeRequest struct {
	URL     string `json:"url"`
	Region  string `json:"region,omitempty"`
	Timeout int    `json:"timeout,omitempty"`
	Fresh   bool   `json:"fresh,omitempty"`
}

// scrapeResponse mirrors the sheinscrape API response model.
type scrapeResponse struct {
	Success bool `json:"success"`
	Product *struct {
		Name  *string `json:"name"`
		Price struct {
			Raw      *string `json:"raw"`
			Value    *int64  `json:"value"`
			Currency string  `json:"currency"`
		} `json:"price"`
		Image       *string `json:"image"`
		Description *string `json:"description"`
		FinalURL    string  `json:"final_url"`
	} `json:"product"`
	FetchMethod string `json:"fetch_method"`
	Attempts    int    `json:"attempts"`
	CacheStatus string `json:"cache_status"`
	Error       *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func main() {
	apiURL := os.Getenv("SHEINSCRAPE_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("SHEINSCRAPE_API_KEY")

	s := server.NewMCPServer(
		"sheinscrape",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	scrapeProductTool := mcp.NewTool("scrape_product",
		mcp.WithDescription("Scrape a SHEIN product page and return its name, price, image and description. Uses a stealth headless browser with proxy rotation, so heavily protected pages still resolve."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The product page URL (shein.com, shein.cl or shein.com.mx)"),
		),
		mcp.WithString("region",
			mcp.Description("Storefront region hint used to resolve the currency, e.g. 'cl', 'mx', 'es', 'us'"),
		),
		mcp.WithBoolean("fresh",
			mcp.Description("Bypass the server-side response cache and scrape the live page"),
		),
	)

	s.AddTool(scrapeProductTool, handleScrapeProduct(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func handleScrapeProduct(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 150 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		reqBody := scrapeRequest{
			URL:    url,
			Region: request.GetString("region", ""),
			Fresh:  request.GetBool("fresh", false),
		}

		body, err := json.Marshal(reqBody)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal request: %v", err)), nil
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+"/api/v1/scrape", bytes.NewReader(body))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to create request: %v", err)), nil
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if apiKey != "" {
			httpReq.Header.Set("X-API-Key", apiKey)
		}

		resp, err := client.Do(httpReq)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read response: %v", err)), nil
		}

		var scrapeResp scrapeResponse
		if err := json.Unmarshal(respBody, &scrapeResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		if !scrapeResp.Success {
			errMsg := "scrape failed"
			if scrapeResp.Error != nil {
				errMsg = fmt.Sprintf("[%s] %s", scrapeResp.Error.Code, scrapeResp.Error.Message)
			}
			return mcp.NewToolResultError(errMsg), nil
		}
		if scrapeResp.Product == nil {
			return mcp.NewToolResultError("response carried no product"), nil
		}

		return mcp.NewToolResultText(formatProduct(&scrapeResp)), nil
	}
}

// formatProduct renders the product record as readable text for the client.
func formatProduct(resp *scrapeResponse) string {
	p := resp.Product

	var sb strings.Builder
	if p.Name != nil {
		sb.WriteString("Name: " + *p.Name + "\n")
	} else {
		sb.WriteString("Name: (not found)\n")
	}

	switch {
	case p.Price.Raw != nil && p.Price.Value != nil:
		sb.WriteString(fmt.Sprintf("Price: %s (%d %s)\n", *p.Price.Raw, *p.Price.Value, p.Price.Currency))
	case p.Price.Value != nil:
		sb.WriteString(fmt.Sprintf("Price: %d %s\n", *p.Price.Value, p.Price.Currency))
	default:
		sb.WriteString("Price: (not found)\n")
	}

	if p.Image != nil {
		sb.WriteString("Image: " + *p.Image + "\n")
	}
	if p.Description != nil {
		sb.WriteString("Description: " + *p.Description + "\n")
	}
	sb.WriteString("URL: " + p.FinalURL + "\n")
	sb.WriteString(fmt.Sprintf("Fetched via: %s", resp.FetchMethod))
	if resp.CacheStatus != "" {
		sb.WriteString(fmt.Sprintf(" (cache %s)", resp.CacheStatus))
	}
	sb.WriteString("\n")

	return sb.String()
}
