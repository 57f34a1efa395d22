package hermes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/porbit/orbital-gateway/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(url string) *Client {
	return New(Params{
		Cfg: config.Config{PriceFeed: config.PriceFeedConfig{
			URL:          url,
			FetchTimeout: 2 * time.Second,
		}},
		Log: zap.NewNop(),
	})
}

func TestFetchBatch_RequestShapeAndDecode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids := r.URL.Query()["ids[]"]
		require.Equal(t, []string{"aaa0", "bbb1"}, ids)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"parsed":[
			{"id":"aaa0","price":{"price":"123456","conf":"250","expo":-2,"publish_time":1700000000}}
		]}`))
	}))
	defer srv.Close()

	parsed, err := newTestClient(srv.URL).FetchBatch(context.Background(), []string{"aaa0", "bbb1"})
	require.NoError(t, err)
	require.Len(t, parsed, 1)
	assert.Equal(t, "aaa0", parsed[0].ID)
	assert.Equal(t, "123456", parsed[0].Price.Price)
	assert.Equal(t, "250", parsed[0].Price.Conf)
	assert.Equal(t, int32(-2), parsed[0].Price.Expo)
	assert.Equal(t, int64(1700000000), parsed[0].Price.PublishTime)
}

func TestFetchBatch_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchBatch(context.Background(), []string{"aaa0"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 502")
}

func TestFetchBatch_Timeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	c := New(Params{
		Cfg: config.Config{PriceFeed: config.PriceFeedConfig{
			URL:          srv.URL,
			FetchTimeout: 50 * time.Millisecond,
		}},
		Log: zap.NewNop(),
	})

	_, err := c.FetchBatch(context.Background(), []string{"aaa0"})
	require.Error(t, err)
}
