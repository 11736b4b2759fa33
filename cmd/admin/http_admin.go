package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "relay http base url")
	_ = fs.Parse(args)

	os.Exit(call(http.MethodGet, adminURL(*baseURL, "/state"), 5*time.Second))
}

func historyCmd(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "relay http base url")
	x := fs.Int("x", 0, "tile x")
	y := fs.Int("y", 0, "tile y")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	path := fmt.Sprintf("/blocks/%d/%d/history?limit=%d", *x, *y, *limit)
	os.Exit(call(http.MethodGet, adminURL(*baseURL, path), 5*time.Second))
}

func snapshotCmd(args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "relay http base url")
	_ = fs.Parse(args)

	os.Exit(call(http.MethodPost, adminURL(*baseURL, "/snapshot"), 10*time.Second))
}

func adminURL(base, path string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/") + "/admin/v1" + path
}

// call prints the response body and returns the process exit code.
func call(method, u string, timeout time.Duration) int {
	req, err := http.NewRequest(method, u, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		return 2
	}
	cl := &http.Client{Timeout: timeout}
	resp, err := cl.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		return 1
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(strings.TrimRight(string(b), "\n"))
	if resp.StatusCode/100 != 2 {
		return 1
	}
	return 0
}
