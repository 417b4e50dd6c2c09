// cmd/tools/card-inspector/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	apphttp "research-agent/internal/common/http"
	"research-agent/internal/common/validation"
	"research-agent/pkg/a2a"
)

// report is the outcome of inspecting one endpoint.
type report struct {
	Endpoint    string   `json:"endpoint"`
	Name        string   `json:"name,omitempty"`
	URL         string   `json:"url,omitempty"`
	Version     string   `json:"version,omitempty"`
	Description string   `json:"description,omitempty"`
	Skills      []string `json:"skills,omitempty"`
	Error       string   `json:"error,omitempty"`
}

func (r report) ok() bool {
	return r.Error == ""
}

func main() {
	inspectCmd := flag.NewFlagSet("inspect", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)

	timeout := inspectCmd.Duration("timeout", 30*time.Second, "Card request timeout")
	asJSON := inspectCmd.Bool("json", false, "Print reports as JSON")
	cardFile := validateCmd.String("file", "", "Path to an agent card JSON file")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "inspect":
		inspectCmd.Parse(os.Args[2:])
		urls := inspectCmd.Args()
		if len(urls) == 0 {
			fmt.Println("Error: at least one agent base URL is required.")
			inspectCmd.Usage()
			os.Exit(1)
		}
		reports := inspect(context.Background(), a2a.NewCardResolver(apphttp.NewClient(*timeout).Standard()), urls)
		if *asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			enc.Encode(reports)
		} else {
			printTable(os.Stdout, reports)
		}
		if resolved(reports) == 0 {
			os.Exit(1)
		}

	case "validate":
		validateCmd.Parse(os.Args[2:])
		if *cardFile == "" {
			fmt.Println("Error: file is required for validate.")
			validateCmd.Usage()
			os.Exit(1)
		}
		raw, err := os.ReadFile(*cardFile)
		if err != nil {
			fmt.Printf("Error reading card: %v\n", err)
			os.Exit(1)
		}
		if result := validation.ValidateAgentCard(raw); !result.Valid {
			fmt.Printf("Card validation failed: %s\n", result.Summary())
			os.Exit(1)
		}
		fmt.Println("Card validation passed.")

	case "help":
		fallthrough
	default:
		help()
	}
}

// inspect resolves and validates every endpoint; failures are reported, not returned.
func inspect(ctx context.Context, resolver *a2a.CardResolver, urls []string) []report {
	reports := make([]report, 0, len(urls))
	for _, u := range urls {
		reports = append(reports, inspectOne(ctx, resolver, strings.TrimSpace(u)))
	}
	return reports
}

func inspectOne(ctx context.Context, resolver *a2a.CardResolver, endpoint string) report {
	r := report{Endpoint: endpoint}

	card, err := resolver.Resolve(ctx, endpoint)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	raw, err := a2a.Document(card)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	if result := validation.ValidateAgentCard(raw); !result.Valid {
		r.Error = "invalid card: " + result.Summary()
		return r
	}

	r.Name = card.Name
	r.URL = card.URL
	r.Version = card.Version
	r.Description = card.Description
	for _, s := range card.Skills {
		name := s.Name
		if name == "" {
			name = s.ID
		}
		r.Skills = append(r.Skills, name)
	}
	return r
}

func resolved(reports []report) int {
	n := 0
	for _, r := range reports {
		if r.ok() {
			n++
		}
	}
	return n
}

func printTable(w io.Writer, reports []report) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ENDPOINT\tNAME\tVERSION\tSKILLS\tSTATUS")
	for _, r := range reports {
		status := "ok"
		if !r.ok() {
			status = "error: " + r.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Endpoint, r.Name, r.Version, strings.Join(r.Skills, ", "), status)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d of %d agents resolved\n", resolved(reports), len(reports))
}

func help() {
	fmt.Println("Usage:")
	fmt.Println("  card-inspector inspect [-timeout 30s] [-json] <url>...")
	fmt.Println("  card-inspector validate -file <card.json>")
	fmt.Println("  card-inspector help")
}
