package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const searchPage = `<html><body>
<div class="result">
  <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2F&rut=x">The Go <b>Programming</b> Language</a>
  <a class="result__snippet" href="#">Go is an open source programming language.</a>
</div>
<div class="result">
  <a class="result__a" href="https://example.com/tour">A Tour of Go</a>
  <a class="result__snippet" href="#">Learn Go interactively.</a>
</div>
<div class="result">
  <a class="result__a" href="https://example.com/third">Third</a>
</div>
</body></html>`

func TestSearchParsesResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "golang" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		io.WriteString(w, searchPage)
	}))
	defer server.Close()

	client := New(WithSearchURL(server.URL), WithHTTPClient(server.Client()), WithMaxResults(2))
	results, err := client.Search(context.Background(), "golang")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %+v", results)
	}
	if results[0].Title != "The Go Programming Language" || results[0].Href != "https://go.dev/" {
		t.Fatalf("unexpected first result %+v", results[0])
	}
	if results[1].Body != "Learn Go interactively." {
		t.Fatalf("unexpected second result %+v", results[1])
	}
}

func TestFetchExtractsVisibleText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>t</title><script>var x = 1;</script></head>
<body><h1>Heading</h1><p>First   paragraph.</p><style>p{}</style><p>Second</p></body></html>`)
	}))
	defer server.Close()

	client := New(WithHTTPClient(server.Client()))
	result := client.Fetch(context.Background(), server.URL)

	if result.Status != "success" {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.Content != "Heading\nFirst paragraph.\nSecond" {
		t.Fatalf("unexpected content %q", result.Content)
	}
}

func TestFetchReportsErrorsInResult(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	client := New(WithHTTPClient(server.Client()))
	result := client.Fetch(context.Background(), server.URL)

	if result.Status != "error" || !strings.Contains(result.Error, "404") {
		t.Fatalf("expected error result, got %+v", result)
	}
}

func TestToolsEncodeResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>hello</p></body></html>`)
	}))
	defer server.Close()

	webTools, err := New(WithHTTPClient(server.Client())).Tools()
	if err != nil {
		t.Fatalf("failed to create tools: %v", err)
	}
	if len(webTools) != 2 || webTools[0].Name != "web_search" || webTools[1].Name != "web_fetch" {
		t.Fatalf("unexpected tools %+v", webTools)
	}

	out, err := webTools[1].Call(context.Background(), fmt.Sprintf(`{"url":%q}`, server.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var decoded struct {
		Result FetchResult `json:"result"`
	}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("failed to decode %q: %v", out, err)
	}
	if decoded.Result.Content != "hello" {
		t.Fatalf("unexpected content %q", decoded.Result.Content)
	}
}
