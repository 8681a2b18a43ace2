//go:build ignore

package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// FrameEntry matches the fields written by logging.LogFrame
type FrameEntry struct {
	Timestamp  string `json:"-"`
	RemoteAddr string `json:"remote_addr"`
	Direction  string `json:"direction"`
	Length     int    `json:"length"`
	Flag       string `json:"flag"`
	Body       string `json:"body"`
	Error      string `json:"error"`
}

const frameMessage = "Protocol frame"

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: analyze-frames <log-file>")
		fmt.Println("Example: HUSKY_LOG_LEVEL=debug husky-server serve ... > relay.log; go run tools/analyze-frames.go relay.log")
		os.Exit(1)
	}

	filename := os.Args[1]
	f, err := os.Open(filename)
	if err != nil {
		fmt.Printf("Error reading file: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	var frames []FrameEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for n := 1; scanner.Scan(); n++ {
		entry, ok, err := parseLine(scanner.Text())
		if err != nil {
			fmt.Printf("Error parsing line %d: %v\n", n, err)
			continue
		}
		if ok {
			frames = append(frames, entry)
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Printf("Error reading file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("=== Husky Frame Analyzer ===\n")
	fmt.Printf("File: %s\n", filename)
	fmt.Printf("Frames: %d\n\n", len(frames))

	printTimeline(frames)
	printCounts(frames)
}

// parseLine picks the JSON fields off a zap console line:
// time<TAB>level<TAB>caller<TAB>message<TAB>{fields}
func parseLine(line string) (FrameEntry, bool, error) {
	parts := strings.Split(line, "\t")
	if len(parts) < 5 || parts[3] != frameMessage {
		return FrameEntry{}, false, nil
	}

	var entry FrameEntry
	if err := json.Unmarshal([]byte(parts[len(parts)-1]), &entry); err != nil {
		return FrameEntry{}, false, err
	}
	entry.Timestamp = parts[0]
	return entry, true, nil
}

func printTimeline(frames []FrameEntry) {
	fmt.Println("Timeline:")
	fmt.Println("Time                          Remote                 Dir  Flag          Len  Body")
	fmt.Println("----------------------------  ---------------------  ---  ------------  ---  ----")
	for _, fr := range frames {
		flag := fr.Flag
		if fr.Error != "" {
			flag = "malformed"
		}
		arrow := "<-"
		if fr.Direction == "out" {
			arrow = "->"
		}
		fmt.Printf("%-28s  %-21s  %-3s  %-12s  %3d  %s\n",
			fr.Timestamp, fr.RemoteAddr, arrow, flag, fr.Length, fr.Body)
	}
	fmt.Println()
}

func printCounts(frames []FrameEntry) {
	counts := make(map[string]int)
	for _, fr := range frames {
		key := fr.Direction + " " + fr.Flag
		if fr.Error != "" {
			key = fr.Direction + " malformed"
		}
		counts[key]++
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Println("Counts by direction and flag:")
	for _, k := range keys {
		fmt.Printf("  %-20s %d\n", k, counts[k])
	}
}
