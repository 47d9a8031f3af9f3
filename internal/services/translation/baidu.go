package translation

import (
	"context"
	"crypto/md5" //nolint:gosec
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

const defaultBaiduEndpoint = "https://fanyi-api.baidu.com/api/trans/vip/translate"

// Baidu uses its own codes for a few languages.
var baiduLanguageCodes = map[string]string{
	"ja": "jp",
	"ko": "kor",
	"fr": "fra",
	"es": "spa",
	"ar": "ara",
	"da": "dan",
	"fi": "fin",
	"sv": "swe",
}

// Error codes Baidu returns for request-rate limits.
var baiduThrottleCodes = map[string]bool{"54003": true, "54005": true}

type baiduProvider struct {
	appID  string
	appKey string
	salt   func() string
	t      *transport
}

func newBaiduProvider(appID, appKey string, t *transport) *baiduProvider {
	return &baiduProvider{appID: appID, appKey: appKey, salt: uuid.NewString, t: t}
}

func (p *baiduProvider) Kind() Kind { return KindBaidu }

// baiduSign is md5(appid + q + salt + key) in lowercase hex.
func baiduSign(appID, query, salt, key string) string {
	sum := md5.Sum([]byte(appID + query + salt + key)) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

func baiduLanguage(code string) string {
	if mapped, ok := baiduLanguageCodes[code]; ok {
		return mapped
	}
	return code
}

type baiduResponse struct {
	ErrorCode   string `json:"error_code"`
	ErrorMsg    string `json:"error_msg"`
	TransResult []struct {
		Src string `json:"src"`
		Dst string `json:"dst"`
	} `json:"trans_result"`
}

func (p *baiduProvider) Translate(ctx context.Context, text, target string) (string, error) {
	var translated string
	build := func() (*http.Request, error) {
		salt := p.salt()
		query := url.Values{}
		query.Set("q", text)
		query.Set("from", "auto")
		query.Set("to", baiduLanguage(target))
		query.Set("appid", p.appID)
		query.Set("salt", salt)
		query.Set("sign", baiduSign(p.appID, text, salt, p.appKey))
		return http.NewRequestWithContext(ctx, http.MethodGet, p.t.baiduEndpoint+"?"+query.Encode(), nil)
	}
	decode := func(body []byte) error {
		var resp baiduResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		if resp.ErrorCode != "" && resp.ErrorCode != "52000" {
			if baiduThrottleCodes[resp.ErrorCode] {
				return &throttledError{Provider: "baidu", Code: resp.ErrorCode, Message: resp.ErrorMsg}
			}
			return fmt.Errorf("api error %s: %s", resp.ErrorCode, resp.ErrorMsg)
		}
		parts := make([]string, 0, len(resp.TransResult))
		for _, item := range resp.TransResult {
			parts = append(parts, item.Dst)
		}
		translated = strings.TrimSpace(strings.Join(parts, "\n"))
		if translated == "" {
			return errors.New("empty translation: " + summarizeSnippet(string(body)))
		}
		return nil
	}
	if err := p.t.do(ctx, "baidu translate", build, decode); err != nil {
		return "", err
	}
	return translated, nil
}
