package unsplash

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const searchFixture = `{
  "total": 2,
  "total_pages": 1,
  "results": [
    {
      "id": "abc123",
      "width": 3000,
      "height": 2000,
      "likes": 50,
      "description": "sunrise run",
      "urls": {"full": "https://images.example.com/abc123/full"},
      "links": {
        "html": "https://unsplash.example.com/photos/abc123",
        "download_location": "https://api.example.com/photos/abc123/download"
      },
      "user": {"name": "Jamie Photographer", "links": {"html": "https://unsplash.example.com/@jamie"}}
    },
    {
      "id": "def456",
      "width": 1200,
      "height": 800,
      "likes": 5,
      "urls": {"full": "https://images.example.com/def456/full"},
      "links": {"download_location": "https://api.example.com/photos/def456/download"},
      "user": {"name": "Alex Photographer"}
    }
  ]
}`

func TestNewClientRequiresAccessKey(t *testing.T) {
	if _, err := NewClient(Options{}); !errors.Is(err, ErrMissingAccessKey) {
		t.Fatalf("expected ErrMissingAccessKey, got %v", err)
	}
}

func TestSearchPhotosSendsParamsAndAuth(t *testing.T) {
	var gotPath, gotQuery, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(searchFixture)); err != nil {
			t.Errorf("write fixture: %v", err)
		}
	}))
	defer srv.Close()

	c, err := NewClient(Options{AccessKey: "test-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	photos, err := c.SearchPhotos(context.Background(), SearchRequest{
		Query:       "sunrise workout",
		PerPage:     30,
		Orientation: "landscape",
		Color:       "red",
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if gotPath != "/search/photos" {
		t.Fatalf("path = %s", gotPath)
	}
	for _, want := range []string{"query=sunrise+workout", "per_page=30", "orientation=landscape", "color=red"} {
		if !strings.Contains(gotQuery, want) {
			t.Fatalf("query %q missing %q", gotQuery, want)
		}
	}
	if gotAuth != "Client-ID test-key" {
		t.Fatalf("auth header = %q", gotAuth)
	}
	if len(photos) != 2 {
		t.Fatalf("expected 2 photos, got %d", len(photos))
	}
	first := photos[0]
	if first.ID != "abc123" || first.Likes != 50 || first.Width != 3000 {
		t.Fatalf("unexpected first photo: %+v", first)
	}
	if first.Links.DownloadLocation == "" || first.User.Name != "Jamie Photographer" {
		t.Fatalf("missing links or attribution: %+v", first)
	}
}

func TestSearchPhotosDecodesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		if _, err := w.Write([]byte(`{"errors":["Rate Limit Exceeded"]}`)); err != nil {
			t.Errorf("write error body: %v", err)
		}
	}))
	defer srv.Close()

	c, err := NewClient(Options{AccessKey: "test-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.SearchPhotos(context.Background(), SearchRequest{Query: "sunrise"})
	if err == nil || !strings.Contains(err.Error(), "Rate Limit Exceeded") {
		t.Fatalf("expected API error text, got %v", err)
	}
}

func TestTrackDownloadHitsDownloadLocation(t *testing.T) {
	var hit bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
		if r.URL.Path != "/photos/abc123/download" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if _, err := w.Write([]byte(`{"url": "https://images.example.com/abc123/full"}`)); err != nil {
			t.Errorf("write body: %v", err)
		}
	}))
	defer srv.Close()

	c, err := NewClient(Options{AccessKey: "test-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.TrackDownload(context.Background(), srv.URL+"/photos/abc123/download"); err != nil {
		t.Fatalf("track download: %v", err)
	}
	if !hit {
		t.Fatal("expected tracking endpoint to be called")
	}
}
