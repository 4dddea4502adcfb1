package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// chunkCmd asks a running server for one chunk instead of opening the db file.
func chunkCmd(args []string) {
	fs := flag.NewFlagSet("chunk", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	p := fs.Int("p", 0, "chunk p")
	q := fs.Int("q", 0, "chunk q")
	_ = fs.Parse(args)

	v := url.Values{}
	v.Set("p", strconv.Itoa(*p))
	v.Set("q", strconv.Itoa(*q))
	adminGet(*baseURL, "/admin/v1/chunk?"+v.Encode())
}

func itemsCmd(args []string) {
	fs := flag.NewFlagSet("items", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	adminGet(*baseURL, "/admin/v1/items")
}

func adminGet(baseURL, path string) {
	u := strings.TrimRight(strings.TrimSpace(baseURL), "/") + path
	cl := &http.Client{Timeout: 5 * time.Second}
	resp, err := cl.Get(u)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(string(b))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}
