// Command client is a minimal line-oriented terminal client for the chat
// relay. It logs in with the identity and target given on the command
// line, prints every server line as it arrives, and forwards stdin lines
// as chat messages until /quit or disconnect.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"
	"strings"
)

func main() {
	host := flag.String("host", "localhost", "server host")
	port := flag.Int("port", 5559, "server TCP port")
	user := flag.String("user", "", "user identity (required)")
	kind := flag.String("kind", "public", `chat kind: "public" or "private"`)
	target := flag.String("target", "", "room name or peer identity (required)")
	history := flag.Int("history", 10, "recent messages to replay on join")
	flag.Parse()

	if *user == "" || *target == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *kind != "public" && *kind != "private" {
		fmt.Fprintf(os.Stderr, "unknown chat kind %q\n", *kind)
		os.Exit(2)
	}

	conn, err := net.Dial("tcp", fmt.Sprintf("%s:%d", *host, *port))
	if err != nil {
		fmt.Fprintf(os.Stderr, "connection to server failed: %v\n", err)
		os.Exit(1)
	}

	if _, err := fmt.Fprintf(conn, "/login/%s/%s/%s/%d\n", *user, *kind, *target, *history); err != nil {
		fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
		os.Exit(1)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			fmt.Println(scanner.Text())
		}
		fmt.Println("Disconnected from server")
	}()

	stdin := bufio.NewScanner(os.Stdin)
	for stdin.Scan() {
		line := strings.TrimSpace(stdin.Text())
		if line == "" {
			continue
		}
		if _, err := fmt.Fprintln(conn, line); err != nil {
			fmt.Fprintf(os.Stderr, "connection error: %v\n", err)
			break
		}
		if strings.EqualFold(line, "/quit") {
			break
		}
	}

	_ = conn.Close()
	<-done
}
