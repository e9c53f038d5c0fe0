package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIndexScannerList(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`
		<html><body>
		  <table>
		    <tr><td><a href="/records/petitions_VIII_1.xml">petitions_VIII_1.xml</a></td></tr>
		    <tr><td><a href="petitions_VIII_2.XML">petitions_VIII_2.XML</a></td></tr>
		    <tr><td><a href="/records/petitions_VIII_1.xml">duplicate</a></td></tr>
		    <tr><td><a href="/records/readme.html">readme</a></td></tr>
		  </table>
		</body></html>`))
	}))
	defer server.Close()

	scanner := NewIndexScanner(server.Client())
	files, err := scanner.List(context.Background(), "petitions", server.URL+"/index.html")
	if err != nil {
		t.Fatalf("List error: %v", err)
	}

	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(files))
	}
	if files[0].Name != "petitions_VIII_1.xml" {
		t.Fatalf("unexpected name: %s", files[0].Name)
	}
	if files[0].URL != server.URL+"/records/petitions_VIII_1.xml" {
		t.Fatalf("unexpected url: %s", files[0].URL)
	}
	if files[1].URL != server.URL+"/petitions_VIII_2.XML" {
		t.Fatalf("relative link not resolved against index: %s", files[1].URL)
	}
	for _, file := range files {
		if file.Category != "petitions" {
			t.Fatalf("unexpected category: %s", file.Category)
		}
	}
}

func TestIndexScannerRejectsErrorStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer server.Close()

	scanner := NewIndexScanner(server.Client())
	if _, err := scanner.List(context.Background(), "petitions", server.URL); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}
