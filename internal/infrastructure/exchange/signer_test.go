package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignedClient_Sign(t *testing.T) {
	// worked example from the Binance API documentation
	c := newSignedClient("key", "NhqPtmdSJYdKjVHjA7PZj4Mge3R5YNiP1e3UZjInClVN65XAbvqqM6A7H5fATj0j", "", nil)
	query := "symbol=LTCBTC&side=BUY&type=LIMIT&timeInForce=GTC&quantity=1&price=0.1&recvWindow=5000&timestamp=1499827319559"
	assert.Equal(t, "c8db56825ae71d6d79447849e617115f4a920fa2acdcab2b053c4b2838bd6b71", c.sign(query))
}

func TestSignedClient_Encode(t *testing.T) {
	c := newSignedClient("key", "secret", "", nil)
	c.now = func() time.Time { return time.UnixMilli(1700000000000) }

	encoded := c.encode(url.Values{"symbol": {"BTCUSDT"}})
	values, err := url.ParseQuery(encoded)
	require.NoError(t, err)
	assert.Equal(t, "1700000000000", values.Get("timestamp"))
	assert.Equal(t, "5000", values.Get("recvWindow"))
	assert.Equal(t, c.sign("recvWindow=5000&symbol=BTCUSDT&timestamp=1700000000000"), values.Get("signature"))
}

func TestSignedClient_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-1022,"msg":"Signature for this request is not valid."}`))
	}))
	defer server.Close()

	c := newSignedClient("key", "secret", server.URL, server.Client())
	_, err := c.sendRequest(context.Background(), http.MethodPost, "/fapi/v1/stock/contract", nil)

	var apiErr *common.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, int64(-1022), apiErr.Code)
}
