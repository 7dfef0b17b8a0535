package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
)

var (
	serverURL = flag.String("server", "http://localhost:8080", "Question-answering API server URL")
	token     = flag.String("token", "", "Access token for authentication")
	oneShot   = flag.String("ask", "", "Ask a single question and exit")
)

// sessionID carries the conversation across questions within one CLI run
var sessionID string

func main() {
	flag.Parse()

	if *token == "" {
		*token = os.Getenv("QA_TOKEN")
	}

	if *oneShot != "" {
		if err := ask(*oneShot); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	interactive()
}

func interactive() {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	cyan.Println("\n╔═══════════════════════════════════════════════════════╗")
	cyan.Println("║     Machine Telemetry Assistant                       ║")
	cyan.Println("╚═══════════════════════════════════════════════════════╝")
	fmt.Println()
	green.Println("Ask questions about your machines: VPN status, internet")
	green.Println("speed, CPU and memory, locations and activity history.")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  help       - Show this help message")
	fmt.Println("  caps       - Show recognized intents and time expressions")
	fmt.Println("  exit/quit  - Exit the CLI")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)

	for {
		cyan.Print("> ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		switch strings.ToLower(input) {
		case "exit", "quit":
			fmt.Println("Goodbye!")
			return
		case "help":
			printHelp()
			continue
		case "caps", "capabilities":
			showCapabilities()
			continue
		}

		if err := ask(input); err != nil {
			color.Red("Error: %v\n", err)
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
	}
}

func ask(question string) error {
	reqBody := map[string]string{
		"question":   question,
		"session_id": sessionID,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := *serverURL + "/api/v1/qa/ask"
	req, err := http.NewRequest("POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if *token != "" {
		req.Header.Set("Authorization", "Bearer "+*token)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server error (status %d): %s", resp.StatusCode, string(body))
	}

	var response struct {
		Answer struct {
			Intent struct {
				Category   string  `json:"category"`
				Confidence float64 `json:"confidence"`
			} `json:"intent"`
			TimeWindow struct {
				Start time.Time `json:"start"`
				End   time.Time `json:"end"`
			} `json:"time_window"`
			RecordCount int    `json:"record_count"`
			NaturalText string `json:"natural_text"`
		} `json:"answer"`
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if response.SessionID != "" {
		sessionID = response.SessionID
	}

	fmt.Println()
	color.New(color.FgGreen, color.Bold).Println("Answer:")
	fmt.Println(response.Answer.NaturalText)
	fmt.Println()

	color.Yellow("Intent: %s (confidence %.2f), window %s to %s, %d record(s)",
		response.Answer.Intent.Category,
		response.Answer.Intent.Confidence,
		response.Answer.TimeWindow.Start.Local().Format("15:04"),
		response.Answer.TimeWindow.End.Local().Format("15:04"),
		response.Answer.RecordCount)
	fmt.Println()

	return nil
}

func showCapabilities() {
	url := *serverURL + "/api/v1/qa/capabilities"
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		color.Red("Error creating request: %v\n", err)
		return
	}

	if *token != "" {
		req.Header.Set("Authorization", "Bearer "+*token)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		color.Red("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		color.Red("Server error (status %d): %s\n", resp.StatusCode, string(body))
		return
	}

	var caps map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&caps); err != nil {
		color.Red("Error decoding response: %v\n", err)
		return
	}

	fmt.Println()
	color.New(color.FgCyan, color.Bold).Println("Engine Capabilities:")
	fmt.Println()

	if intents, ok := caps["intents"].([]interface{}); ok {
		color.Green("Recognized intents:")
		for _, intent := range intents {
			fmt.Printf("  • %v\n", intent)
		}
		fmt.Println()
	}

	if expressions, ok := caps["time_expressions"].([]interface{}); ok {
		color.Green("Time expressions:")
		for _, expr := range expressions {
			fmt.Printf("  • %v\n", expr)
		}
		fmt.Println()
	}
}

func printHelp() {
	fmt.Println()
	color.New(color.FgCyan, color.Bold).Println("Example Questions:")
	fmt.Println()
	fmt.Println("  • Was I using a VPN yesterday?")
	fmt.Println("  • How fast was my internet this morning?")
	fmt.Println("  • What was my CPU usage 2 hours ago?")
	fmt.Println("  • Where was my computer at 14:30?")
	fmt.Println("  • Which devices reported data this week?")
	fmt.Println("  • When was my computer last active?")
	fmt.Println()
	color.Green("Commands:")
	fmt.Println("  help  - Show this help message")
	fmt.Println("  caps  - Show engine capabilities")
	fmt.Println("  exit  - Exit the CLI")
	fmt.Println()
}
