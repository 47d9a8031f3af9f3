package translation

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultTencentEndpoint = "https://tmt.tencentcloudapi.com"
	tencentService         = "tmt"
	tencentAction          = "TextTranslate"
	tencentVersion         = "2018-03-21"
	tencentAlgorithm       = "TC3-HMAC-SHA256"
	tencentContentType     = "application/json; charset=utf-8"
)

type tencentProvider struct {
	secretID  string
	secretKey string
	region    string
	t         *transport
}

func newTencentProvider(secretID, secretKey, region string, t *transport) *tencentProvider {
	return &tencentProvider{secretID: secretID, secretKey: secretKey, region: region, t: t}
}

func (p *tencentProvider) Kind() Kind { return KindTencent }

type tencentRequest struct {
	SourceText string `json:"SourceText"`
	Source     string `json:"Source"`
	Target     string `json:"Target"`
	ProjectID  int    `json:"ProjectId"`
}

type tencentResponse struct {
	Response struct {
		TargetText string `json:"TargetText"`
		Error      *struct {
			Code    string `json:"Code"`
			Message string `json:"Message"`
		} `json:"Error"`
		RequestID string `json:"RequestId"`
	} `json:"Response"`
}

func hmacSHA256(key []byte, message string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return mac.Sum(nil)
}

func sha256Hex(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// tencentAuthorization builds the TC3-HMAC-SHA256 Authorization header for
// a POST with the given host, payload and timestamp.
func tencentAuthorization(secretID, secretKey, host string, payload []byte, timestamp time.Time) string {
	date := timestamp.UTC().Format("2006-01-02")
	canonicalRequest := strings.Join([]string{
		http.MethodPost,
		"/",
		"",
		"content-type:" + tencentContentType + "\nhost:" + host + "\n",
		"content-type;host",
		sha256Hex(payload),
	}, "\n")
	scope := date + "/" + tencentService + "/tc3_request"
	stringToSign := strings.Join([]string{
		tencentAlgorithm,
		strconv.FormatInt(timestamp.Unix(), 10),
		scope,
		sha256Hex([]byte(canonicalRequest)),
	}, "\n")

	secretDate := hmacSHA256([]byte("TC3"+secretKey), date)
	secretService := hmacSHA256(secretDate, tencentService)
	secretSigning := hmacSHA256(secretService, "tc3_request")
	signature := hex.EncodeToString(hmacSHA256(secretSigning, stringToSign))

	return fmt.Sprintf("%s Credential=%s/%s, SignedHeaders=content-type;host, Signature=%s",
		tencentAlgorithm, secretID, scope, signature)
}

func (p *tencentProvider) Translate(ctx context.Context, text, target string) (string, error) {
	payload, err := json.Marshal(tencentRequest{SourceText: text, Source: "auto", Target: target})
	if err != nil {
		return "", fmt.Errorf("tencent: encode body: %w", err)
	}
	endpoint, err := url.Parse(p.t.tencentEndpoint)
	if err != nil {
		return "", fmt.Errorf("tencent: endpoint: %w", err)
	}

	var translated string
	build := func() (*http.Request, error) {
		now := p.t.now()
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", tencentContentType)
		req.Header.Set("X-TC-Action", tencentAction)
		req.Header.Set("X-TC-Version", tencentVersion)
		req.Header.Set("X-TC-Timestamp", strconv.FormatInt(now.Unix(), 10))
		req.Header.Set("X-TC-Region", p.region)
		req.Header.Set("Authorization", tencentAuthorization(p.secretID, p.secretKey, endpoint.Host, payload, now))
		return req, nil
	}
	decode := func(body []byte) error {
		var resp tencentResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		if apiErr := resp.Response.Error; apiErr != nil {
			if strings.HasPrefix(apiErr.Code, "RequestLimitExceeded") {
				return &throttledError{Provider: "tencent", Code: apiErr.Code, Message: apiErr.Message}
			}
			return fmt.Errorf("api error %s: %s", apiErr.Code, apiErr.Message)
		}
		translated = strings.TrimSpace(resp.Response.TargetText)
		if translated == "" {
			return errors.New("empty translation: " + summarizeSnippet(string(body)))
		}
		return nil
	}
	if err := p.t.do(ctx, "tencent translate", build, decode); err != nil {
		return "", err
	}
	return translated, nil
}
