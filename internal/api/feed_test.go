package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/reggosong/freebies-go/internal/models"
)

func filterContext(t *testing.T, rawQuery string) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	req, err := http.NewRequest(http.MethodGet, "/feed?"+rawQuery, nil)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	c.Request = req
	return c
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    models.FilterState
		wantErr bool
	}{
		{
			name:  "empty",
			query: "",
			want:  models.FilterState{},
		},
		{
			name:  "category",
			query: "category=leftovers",
			want:  models.FilterState{Category: models.CategoryLeftovers},
		},
		{
			name:    "unknown category",
			query:   "category=furniture",
			wantErr: true,
		},
		{
			name:  "followed only",
			query: "followed_only=true",
			want:  models.FilterState{FollowedOnly: true},
		},
		{
			name:  "followed only off for other values",
			query: "followed_only=yes",
			want:  models.FilterState{},
		},
		{
			name:  "geo with default radius",
			query: "latitude=60.17&longitude=24.94",
			want: models.FilterState{
				Center:   &models.Coordinates{Latitude: 60.17, Longitude: 24.94},
				RadiusKm: 10,
			},
		},
		{
			name:  "geo with explicit radius",
			query: "latitude=60.17&longitude=24.94&radius=2.5",
			want: models.FilterState{
				Center:   &models.Coordinates{Latitude: 60.17, Longitude: 24.94},
				RadiusKm: 2.5,
			},
		},
		{
			name:    "latitude without longitude",
			query:   "latitude=60.17",
			wantErr: true,
		},
		{
			name:    "negative radius",
			query:   "latitude=60.17&longitude=24.94&radius=-1",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFilter(filterContext(t, tt.query))
			if tt.wantErr {
				if err == nil {
					t.Fatal("parseFilter() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseFilter() error = %v", err)
			}
			if got.Category != tt.want.Category || got.FollowedOnly != tt.want.FollowedOnly || got.RadiusKm != tt.want.RadiusKm {
				t.Errorf("parseFilter() = %+v, want %+v", got, tt.want)
			}
			if (got.Center == nil) != (tt.want.Center == nil) {
				t.Fatalf("parseFilter() center = %v, want %v", got.Center, tt.want.Center)
			}
			if got.Center != nil && *got.Center != *tt.want.Center {
				t.Errorf("parseFilter() center = %v, want %v", *got.Center, *tt.want.Center)
			}
		})
	}
}

func TestInvalidateFeedCacheClearsRememberedKeys(t *testing.T) {
	// A disabled cache exercises the same bookkeeping; Delete is
	// nil-safe.
	r := &Router{logger: zap.NewNop()}

	r.rememberFeedKey("feed:abc")
	r.rememberFeedKey("feed:def")
	r.rememberFeedKey("feed:abc")

	r.mu.Lock()
	remembered := len(r.feedKeys)
	r.mu.Unlock()
	if remembered != 2 {
		t.Fatalf("remembered %d keys, want 2", remembered)
	}

	r.invalidateFeedCache(context.Background())

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.feedKeys) != 0 {
		t.Errorf("invalidation left %d keys behind", len(r.feedKeys))
	}
}

func TestFeedCacheKeyVariesByInputs(t *testing.T) {
	base := models.FilterState{Category: models.CategoryLeftovers}
	geo := models.FilterState{
		Category: models.CategoryLeftovers,
		Center:   &models.Coordinates{Latitude: 60.17, Longitude: 24.94},
		RadiusKm: 10,
	}

	keys := map[string]string{
		"base":         feedCacheKey(base, 7),
		"other viewer": feedCacheKey(base, 8),
		"geo":          feedCacheKey(geo, 7),
		"followed": feedCacheKey(models.FilterState{
			Category: models.CategoryLeftovers, FollowedOnly: true,
		}, 7),
	}

	seen := map[string]string{}
	for name, key := range keys {
		if prev, ok := seen[key]; ok {
			t.Errorf("cache key collision between %q and %q", prev, name)
		}
		seen[key] = name
	}

	if feedCacheKey(base, 7) != keys["base"] {
		t.Errorf("cache key not deterministic")
	}
}
