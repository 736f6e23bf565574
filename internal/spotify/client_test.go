package spotify

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/goccy/go-json"
	"github.com/zmb3/spotify/v2"
)

// fakeAPI is a minimal Spotify Web API for tests.
type fakeAPI struct {
	mu         sync.Mutex
	meFailures int
	meCalls    atomic.Int32
	catalog    map[string]string // "name|artist" -> id
	added      map[string][]string
	batches    []int
	desc       string
	searchErr  bool
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /me", func(w http.ResponseWriter, r *http.Request) {
		n := f.meCalls.Add(1)
		if int(n) <= f.meFailures {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"status":503,"message":"try again"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"user1","display_name":"Test User","email":"test@example.com"}`))
	})

	mux.HandleFunc("GET /search", func(w http.ResponseWriter, r *http.Request) {
		if f.searchErr {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"status":400,"message":"bad query"}}`))
			return
		}
		q := r.URL.Query().Get("q")
		var items []map[string]any
		for key, id := range f.catalog {
			name, artist, _ := strings.Cut(key, "|")
			if q == SearchQuery(name, artist) {
				items = append(items, map[string]any{"id": id, "name": name})
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"tracks": map[string]any{"items": items, "total": len(items)},
		})
	})

	mux.HandleFunc("POST /users/{user}/playlists", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("user") != "user1" {
			t.Errorf("playlist created for %q", r.PathValue("user"))
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.desc, _ = body["description"].(string)
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":            "pl1",
			"name":          body["name"],
			"public":        body["public"],
			"external_urls": map[string]string{"spotify": "https://open.spotify.com/playlist/pl1"},
		})
	})

	mux.HandleFunc("POST /playlists/{id}/tracks", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			URIs []string `json:"uris"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.added[r.PathValue("id")] = append(f.added[r.PathValue("id")], body.URIs...)
		f.batches = append(f.batches, len(body.URIs))
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"snapshot_id":"snap"}`))
	})

	return mux
}

func newFakeClient(t *testing.T, f *fakeAPI) *Client {
	t.Helper()
	if f.added == nil {
		f.added = map[string][]string{}
	}
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)

	api := spotify.New(srv.Client(), spotify.WithBaseURL(srv.URL+"/"))
	c := New(api, WithSearchRate(1000, 100), WithConcurrency(3))
	c.retryDelay = 0
	return c
}

func TestSearchQuery(t *testing.T) {
	tests := []struct {
		name, artist, want string
	}{
		{"Song", "Band", `track:"Song" artist:"Band"`},
		{` "Quoted" `, "Band", `track:"Quoted" artist:"Band"`},
	}
	for _, tt := range tests {
		if got := SearchQuery(tt.name, tt.artist); got != tt.want {
			t.Errorf("SearchQuery(%q, %q) = %q, want %q", tt.name, tt.artist, got, tt.want)
		}
	}
}

func TestProfile_RetriesOnce(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		wantErr   bool
		wantCalls int32
	}{
		{"first call succeeds", 0, false, 1},
		{"one transient failure", 1, false, 2},
		{"persistent failure", 5, true, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeAPI{meFailures: tt.failures}
			c := newFakeClient(t, f)

			p, err := c.Profile(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Profile() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := f.meCalls.Load(); got != tt.wantCalls {
				t.Errorf("calls = %d, want %d", got, tt.wantCalls)
			}
			if !tt.wantErr && (p.ID != "user1" || p.DisplayName != "Test User" || p.Email != "test@example.com") {
				t.Errorf("Profile() = %+v", p)
			}
		})
	}
}

func TestResolveTrackIDs(t *testing.T) {
	f := &fakeAPI{catalog: map[string]string{
		"One|A":   "id1",
		"Three|C": "id3",
		"Four|D":  "id4",
	}}
	c := newFakeClient(t, f)

	refs := []TrackRef{
		{Name: "One", Artist: "A"},
		{Name: "Two", Artist: "B"},
		{Name: "Three", Artist: "C"},
		{Name: "Four", Artist: "D"},
		{Name: "Five", Artist: "E"},
	}

	got, err := c.ResolveTrackIDs(context.Background(), refs)
	if err != nil {
		t.Fatalf("ResolveTrackIDs() error = %v", err)
	}

	want := []string{"id1", "id3", "id4"}
	if strings.Join(got.IDs, ",") != strings.Join(want, ",") {
		t.Errorf("IDs = %v, want %v", got.IDs, want)
	}
	if got.Misses != 2 {
		t.Errorf("Misses = %d, want 2", got.Misses)
	}
}

func TestResolveTrackIDs_SearchError(t *testing.T) {
	c := newFakeClient(t, &fakeAPI{searchErr: true})

	_, err := c.ResolveTrackIDs(context.Background(), []TrackRef{{Name: "x", Artist: "y"}})
	if err == nil {
		t.Fatal("ResolveTrackIDs() should fail when search fails")
	}
}

func TestCreatePlaylistAndAddTracks(t *testing.T) {
	f := &fakeAPI{}
	c := newFakeClient(t, f)

	pl, err := c.CreatePlaylist(context.Background(), "Mood Arc: sad -> happy (uplift)", "A 5-stage mood arc from sad to happy.", true)
	if err != nil {
		t.Fatalf("CreatePlaylist() error = %v", err)
	}
	if pl.ID != "pl1" || pl.URL != "https://open.spotify.com/playlist/pl1" {
		t.Errorf("CreatePlaylist() = %+v", pl)
	}
	if f.desc != "A 5-stage mood arc from sad to happy." {
		t.Errorf("description = %q", f.desc)
	}

	ids := make([]string, 250)
	for i := range ids {
		ids[i] = fmt.Sprintf("t%03d", i)
	}
	if err := c.AddTracksToPlaylist(context.Background(), pl.ID, ids); err != nil {
		t.Fatalf("AddTracksToPlaylist() error = %v", err)
	}
	got := f.added["pl1"]
	if len(got) != 250 {
		t.Fatalf("added %d tracks, want 250", len(got))
	}
	if got[0] != "spotify:track:t000" || got[249] != "spotify:track:t249" {
		t.Errorf("order not kept: first %q, last %q", got[0], got[249])
	}

	if err := c.AddTracksToPlaylist(context.Background(), pl.ID, nil); err != nil {
		t.Errorf("AddTracksToPlaylist(nil) error = %v", err)
	}
}

func TestAddTracksToPlaylist_Batches(t *testing.T) {
	tests := []struct {
		name  string
		total int
		want  []int
	}{
		{"empty", 0, nil},
		{"one batch", 50, []int{50}},
		{"exact batch", 100, []int{100}},
		{"several batches", 250, []int{100, 100, 50}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeAPI{}
			c := newFakeClient(t, f)

			ids := make([]string, tt.total)
			for i := range ids {
				ids[i] = fmt.Sprintf("t%d", i)
			}
			if err := c.AddTracksToPlaylist(context.Background(), "pl1", ids); err != nil {
				t.Fatalf("AddTracksToPlaylist() error = %v", err)
			}
			if !slices.Equal(f.batches, tt.want) {
				t.Errorf("batches = %v, want %v", f.batches, tt.want)
			}
		})
	}
}

func TestClipDescription(t *testing.T) {
	short := "A 3-stage mood arc from calm to hyped."
	if got := clipDescription(short); got != short {
		t.Errorf("clipDescription(short) = %q", got)
	}

	long := strings.Repeat("é", 400)
	got := []rune(clipDescription(long))
	if len(got) != maxDescriptionRunes {
		t.Errorf("clipped to %d runes, want %d", len(got), maxDescriptionRunes)
	}
	if got[len(got)-1] != '…' {
		t.Errorf("clipped description should end with an ellipsis")
	}
}
