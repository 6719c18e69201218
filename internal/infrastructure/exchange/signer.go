package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/common"
)

const recvWindow = 5000

// signedClient calls USDⓈ-M endpoints the SDK does not cover.
type signedClient struct {
	apiKey    string
	apiSecret string
	baseURL   string
	client    *http.Client
	now       func() time.Time
}

func newSignedClient(apiKey, apiSecret, baseURL string, client *http.Client) *signedClient {
	return &signedClient{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		baseURL:   baseURL,
		client:    client,
		now:       time.Now,
	}
}

// sign returns the hex HMAC-SHA256 of the encoded query.
func (c *signedClient) sign(query string) string {
	h := hmac.New(sha256.New, []byte(c.apiSecret))
	h.Write([]byte(query))
	return hex.EncodeToString(h.Sum(nil))
}

// encode adds timestamp, recvWindow and signature to params.
func (c *signedClient) encode(params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	params.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
	params.Set("recvWindow", strconv.Itoa(recvWindow))
	query := params.Encode()
	return query + "&signature=" + c.sign(query)
}

func (c *signedClient) sendRequest(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+c.encode(params), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-MBX-APIKEY", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		apiErr := new(common.APIError)
		if json.Unmarshal(body, apiErr) == nil && apiErr.Code != 0 {
			return nil, apiErr
		}
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
