package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davicafu/scoreregistry/internal/score/application"
	"github.com/davicafu/scoreregistry/internal/score/domain"
	"github.com/davicafu/scoreregistry/internal/score/infra/outbound/db/memory"
	"github.com/davicafu/scoreregistry/internal/shared/infra/http/middleware"
	"github.com/davicafu/scoreregistry/internal/shared/infra/platform/cache"
	"github.com/davicafu/scoreregistry/internal/shared/platform/paging"
)

var base = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func minute(n int) time.Time { return base.Add(time.Duration(n) * time.Minute) }

var apiKeys = map[string]int64{"owner-key": 10, "other-key": 20}

type itemJSON struct {
	ID                 int64     `json:"id"`
	Address            string    `json:"address"`
	Score              string    `json:"score"`
	LastScoreTimestamp time.Time `json:"last_score_timestamp"`
	CreatedAt          time.Time `json:"created_at"`
}

type pageJSON struct {
	Items []itemJSON `json:"items"`
	Next  *string    `json:"next"`
	Prev  *string    `json:"prev"`
}

func newRouter(t *testing.T, svc ScoreReader, baseURL string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterScoreRoutes(r, NewScoreHandler(svc, baseURL, false, zap.NewNop()), middleware.APIKeyAuth(apiKeys))
	return r
}

func newService(t *testing.T) *application.ScoreService {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.Save(ctx, &domain.Community{ID: 1, AccountID: 10, Name: "main"}))
	require.NoError(t, store.Save(ctx, &domain.Community{ID: 2, AccountID: 20, Name: "other"}))

	c := cache.NewInMemoryCache(time.Minute, 0)
	t.Cleanup(c.Stop)
	svc := application.NewScoreService(store.Scores(), store.Events(), store, c, paging.NewPaginator(100), nil, zap.NewNop())

	for i, u := range []struct {
		address string
		score   int64
	}{{"0xa", 1}, {"0xb", 2}, {"0xa", 3}, {"0xc", 4}, {"0xd", 5}} {
		_, err := svc.RecordScore(ctx, domain.ScoreUpdate{
			CommunityID: 1,
			Address:     u.address,
			Score:       decimal.NewFromInt(u.score),
			Timestamp:   minute(i + 1),
		})
		require.NoError(t, err)
	}
	return svc
}

func do(t *testing.T, r http.Handler, target, key string) (*httptest.ResponseRecorder, pageJSON) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if key != "" {
		req.Header.Set(middleware.APIKeyHeader, key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var body pageJSON
	if w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func addresses(items []itemJSON) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Address
	}
	return out
}

func TestListScores_DefaultLimitReturnsEverything(t *testing.T) {
	r := newRouter(t, newService(t), "")

	w, body := do(t, r, "/v2/score/1", "owner-key")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"0xb", "0xa", "0xc", "0xd"}, addresses(body.Items))
	assert.Equal(t, "3", body.Items[1].Score)
	assert.Nil(t, body.Next)
	assert.Nil(t, body.Prev)
	assert.Contains(t, w.Body.String(), `"next":null`)
}

func TestListScores_FollowsLinks(t *testing.T) {
	r := newRouter(t, newService(t), "")

	w, first := do(t, r, "/v2/score/1?limit=2", "owner-key")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"0xb", "0xa"}, addresses(first.Items))
	require.NotNil(t, first.Next)
	assert.Nil(t, first.Prev)
	assert.True(t, strings.HasPrefix(*first.Next, "http://example.com/v2/score/1?"), *first.Next)

	w, second := do(t, r, *first.Next, "owner-key")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"0xc", "0xd"}, addresses(second.Items))
	assert.Nil(t, second.Next)
	require.NotNil(t, second.Prev)

	w, back := do(t, r, *second.Prev, "owner-key")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, first.Items, back.Items)
}

func TestListScores_FiltersAreKeptInLinks(t *testing.T) {
	r := newRouter(t, newService(t), "https://api.example.org/")

	q := url.Values{}
	q.Set("limit", "1")
	q.Set("last_score_timestamp__gte", minute(3).Format(time.RFC3339))
	w, first := do(t, r, "/v2/score/1?"+q.Encode(), "owner-key")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"0xa"}, addresses(first.Items))
	require.NotNil(t, first.Next)
	assert.True(t, strings.HasPrefix(*first.Next, "https://api.example.org/v2/score/1?"), *first.Next)

	u, err := url.Parse(*first.Next)
	require.NoError(t, err)
	assert.Empty(t, u.Query().Get("last_score_timestamp__gte"))

	w, second := do(t, r, u.RequestURI(), "owner-key")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"0xc"}, addresses(second.Items))

	w, byAddress := do(t, r, "/v2/score/1?address=0XA", "owner-key")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, byAddress.Items, 1)
	assert.Equal(t, "3", byAddress.Items[0].Score)
}

func TestListScores_Errors(t *testing.T) {
	r := newRouter(t, newService(t), "")

	cases := map[string]struct {
		target string
		key    string
		code   int
	}{
		"missing key":      {"/v2/score/1", "", http.StatusUnauthorized},
		"bad scorer id":    {"/v2/score/abc", "owner-key", http.StatusBadRequest},
		"zero scorer id":   {"/v2/score/0", "owner-key", http.StatusBadRequest},
		"limit not number": {"/v2/score/1?limit=ten", "owner-key", http.StatusBadRequest},
		"limit zero":       {"/v2/score/1?limit=0", "owner-key", http.StatusBadRequest},
		"limit too big":    {"/v2/score/1?limit=101", "owner-key", http.StatusBadRequest},
		"bad timestamp":    {"/v2/score/1?last_score_timestamp__gt=yesterday", "owner-key", http.StatusBadRequest},
		"bad token":        {"/v2/score/1?token=garbage", "owner-key", http.StatusBadRequest},
		"not owner":        {"/v2/score/1", "other-key", http.StatusNotFound},
		"unknown scorer":   {"/v2/score/99", "owner-key", http.StatusNotFound},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			w, _ := do(t, r, tc.target, tc.key)
			assert.Equal(t, tc.code, w.Code)
			assert.Contains(t, w.Body.String(), `"error":{"message":`)
		})
	}
}

func TestListScoreHistory_Modes(t *testing.T) {
	r := newRouter(t, newService(t), "")

	// histórico completo, del más reciente al más antiguo
	w, full := do(t, r, "/v2/score/1/history?limit=3", "owner-key")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"0xd", "0xc", "0xa"}, addresses(full.Items))
	require.NotNil(t, full.Next)
	assert.Contains(t, *full.Next, "/v2/score/1/history?")

	w, rest := do(t, r, *full.Next, "owner-key")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"0xb", "0xa"}, addresses(rest.Items))

	// foto de la comunidad en created_at
	at := url.QueryEscape(minute(3).Format(time.RFC3339))
	w, snapshot := do(t, r, "/v2/score/1/history?created_at="+at, "owner-key")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"0xa", "0xb"}, addresses(snapshot.Items))
	assert.Equal(t, "3", snapshot.Items[0].Score)

	// dirección concreta en created_at
	at = url.QueryEscape(minute(2).Format(time.RFC3339))
	w, point := do(t, r, "/v2/score/1/history?address=0xa&created_at="+at, "owner-key")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, point.Items, 1)
	assert.Equal(t, "1", point.Items[0].Score)
	assert.True(t, minute(1).Equal(point.Items[0].CreatedAt))
	assert.Nil(t, point.Next)

	at = url.QueryEscape(minute(0).Format(time.RFC3339))
	w, _ = do(t, r, "/v2/score/1/history?address=0xa&created_at="+at, "owner-key")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = do(t, r, "/v2/score/1/history?created_at=monday", "owner-key")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetScore(t *testing.T) {
	r := newRouter(t, newService(t), "")

	get := func(target, key string) (*httptest.ResponseRecorder, itemJSON) {
		t.Helper()
		w, _ := do(t, r, target, key)
		var item itemJSON
		if w.Code == http.StatusOK {
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &item))
		}
		return w, item
	}

	w, item := get("/v2/score/1/0xA", "owner-key")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0xa", item.Address)
	assert.Equal(t, "3", item.Score)
	assert.True(t, minute(3).Equal(item.LastScoreTimestamp))
	assert.NotContains(t, w.Body.String(), `"items"`)

	cases := map[string]struct {
		target string
		key    string
		code   int
	}{
		"unknown address":    {"/v2/score/1/0xf", "owner-key", http.StatusNotFound},
		"foreign community":  {"/v2/score/1/0xa", "other-key", http.StatusNotFound},
		"no score in scorer": {"/v2/score/2/0xa", "other-key", http.StatusNotFound},
		"unknown scorer":     {"/v2/score/99/0xa", "owner-key", http.StatusNotFound},
		"bad scorer id":      {"/v2/score/abc/0xa", "owner-key", http.StatusBadRequest},
		"missing key":        {"/v2/score/1/0xa", "", http.StatusUnauthorized},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			w, _ := get(tc.target, tc.key)
			assert.Equal(t, tc.code, w.Code)
			assert.Contains(t, w.Body.String(), `"error":{"message":`)
		})
	}
}

func TestLinks_ForwardedProtoNeedsTrust(t *testing.T) {
	svc := newService(t)
	next := func(r http.Handler, proto string) string {
		t.Helper()
		req := httptest.NewRequest(http.MethodGet, "/v2/score/1?limit=2", nil)
		req.Header.Set(middleware.APIKeyHeader, "owner-key")
		req.Header.Set("X-Forwarded-Proto", proto)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		var body pageJSON
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.NotNil(t, body.Next)
		return *body.Next
	}

	untrusted := newRouter(t, svc, "")
	assert.True(t, strings.HasPrefix(next(untrusted, "https"), "http://example.com/"))

	gin.SetMode(gin.TestMode)
	trusted := gin.New()
	RegisterScoreRoutes(trusted, NewScoreHandler(svc, "", true, zap.NewNop()), middleware.APIKeyAuth(apiKeys))
	assert.True(t, strings.HasPrefix(next(trusted, "https"), "https://example.com/"))
	assert.True(t, strings.HasPrefix(next(trusted, "javascript"), "http://example.com/"))
}

type failingReader struct{}

func (failingReader) ListScores(context.Context, int64, int64, application.ListScoresParams) (*paging.Page[*domain.Score], error) {
	return nil, errors.New("connection refused")
}

func (failingReader) ListScoreHistory(context.Context, int64, int64, application.HistoryParams) (*paging.Page[*domain.ScoreEvent], error) {
	return nil, errors.New("connection refused")
}

func (failingReader) GetScore(context.Context, int64, int64, string) (*domain.Score, error) {
	return nil, errors.New("connection refused")
}

func (failingReader) MaxLimit() int { return 10 }

func TestStoreErrorsAreHidden(t *testing.T) {
	r := newRouter(t, failingReader{}, "")

	for _, target := range []string{"/v2/score/1", "/v2/score/1/history", "/v2/score/1/0xa"} {
		w, _ := do(t, r, target, "owner-key")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.JSONEq(t, `{"error":{"message":"internal error"}}`, w.Body.String())
	}
}
