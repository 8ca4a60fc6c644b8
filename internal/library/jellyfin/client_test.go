package jellyfin_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"mediawatch/internal/library/jellyfin"
	"mediawatch/internal/media"
	"mediawatch/internal/services"
)

func TestListSubjectsMapsItems(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Users/user-1/Items" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("X-Emby-Token"); got != "secret" {
			t.Fatalf("expected api key header, got %q", got)
		}
		q := r.URL.Query()
		if q.Get("Recursive") != "true" || q.Get("IncludeItemTypes") != "Movie,Series" {
			t.Fatalf("unexpected query %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Items":[
			{"Id":"a1","Name":"The Matrix","Type":"Movie","ProductionYear":1999,"ProviderIds":{"Tmdb":"603","Imdb":"tt0133093"}},
			{"Id":"b2","Name":"Severance","Type":"Series","ProductionYear":2022,"ProviderIds":{}},
			{"Id":"c3","Name":"Folder","Type":"BoxSet"}
		],"TotalRecordCount":3}`))
	}))
	t.Cleanup(server.Close)

	client, err := jellyfin.New(server.URL, "secret", "user-1", nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	subjects, err := client.ListSubjects(context.Background())
	if err != nil {
		t.Fatalf("ListSubjects returned error: %v", err)
	}
	if len(subjects) != 2 {
		t.Fatalf("expected 2 subjects, got %#v", subjects)
	}
	want := media.Subject{ID: "a1", Title: "The Matrix", Kind: media.KindMovie, Year: 1999, TMDBID: 603}
	if subjects[0] != want {
		t.Fatalf("unexpected movie subject %#v", subjects[0])
	}
	if subjects[1].Kind != media.KindSeries || subjects[1].TMDBID != 0 {
		t.Fatalf("unexpected series subject %#v", subjects[1])
	}
}

func TestListSubjectsPages(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		start, _ := strconv.Atoi(r.URL.Query().Get("StartIndex"))
		id := strconv.Itoa(start)
		_, _ = w.Write([]byte(`{"Items":[{"Id":"` + id + `","Name":"Movie ` + id + `","Type":"Movie"}],"TotalRecordCount":3}`))
	}))
	t.Cleanup(server.Close)

	client, err := jellyfin.New(server.URL, "secret", "user", nil, jellyfin.WithPageSize(1))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	subjects, err := client.ListSubjects(context.Background())
	if err != nil {
		t.Fatalf("ListSubjects returned error: %v", err)
	}
	if len(subjects) != 3 || calls != 3 {
		t.Fatalf("expected 3 subjects over 3 calls, got %d over %d", len(subjects), calls)
	}
}

func TestListSubjectsClassifiesFailures(t *testing.T) {
	tests := []struct {
		status int
		marker error
	}{
		{http.StatusUnauthorized, services.ErrFatal},
		{http.StatusForbidden, services.ErrFatal},
		{http.StatusTooManyRequests, services.ErrTransient},
		{http.StatusServiceUnavailable, services.ErrTransient},
	}
	for _, tc := range tests {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			t.Cleanup(server.Close)

			client, err := jellyfin.New(server.URL, "secret", "user", nil)
			if err != nil {
				t.Fatalf("New returned error: %v", err)
			}
			_, err = client.ListSubjects(context.Background())
			if !errors.Is(err, tc.marker) {
				t.Fatalf("expected %v, got %v", tc.marker, err)
			}
		})
	}
}

func TestListSubjectsNetworkErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	client, err := jellyfin.New(url, "secret", "user", nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	_, err = client.ListSubjects(context.Background())
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	if _, err := jellyfin.New("http://jellyfin", "", "user", nil); !services.IsFatal(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
