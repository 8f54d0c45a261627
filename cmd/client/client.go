package main

import (
	"bufio"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
)

// A small companion CLI that attaches to a running replay server's SSE
// endpoints and prints each event as it arrives, so a snapshot or raw
// message stream can be eyeballed without writing a client.
func main() {
	serverAddr := flag.String("server", "http://127.0.0.1:3000", "Base URL of the replay server")
	stream := flag.String("stream", "snapshots", "Stream to follow: 'snapshots' or 'messages'")
	flag.Parse()

	path := "/stream/snapshots"
	if strings.ToLower(*stream) == "messages" {
		path = "/stream/messages"
	}

	url := strings.TrimRight(*serverAddr, "/") + path
	fmt.Printf("Connecting to %s\n", url)

	resp, err := http.Get(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "unexpected status: %s\n", resp.Status)
		os.Exit(1)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var event string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			if event == "stream_end" {
				fmt.Println("-- stream ended --")
			}
		case strings.HasPrefix(line, "data:"):
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			fmt.Printf("[%s] %s\n", event, data)
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "stream read error: %v\n", err)
		os.Exit(1)
	}
}
