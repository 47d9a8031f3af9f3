package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"subgen/internal/config"
	"subgen/internal/deps"
	"subgen/internal/services/translation"
)

// CheckTranslation validates the configured provider. GPT-compatible
// endpoints are probed through their model listing; Baidu and Tencent bill
// every call, so only their credentials are checked.
func CheckTranslation(ctx context.Context, cfg config.Translation, client *http.Client) Result {
	const name = "Translation"

	kind, err := translation.ParseKind(cfg.Provider)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("unknown provider %q", cfg.Provider)}
	}
	if kind == translation.KindNone {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	creds := translation.CredentialsFromConfig(cfg)
	if missing := translation.MissingFields(kind, creds); len(missing) > 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s: missing %s", kind, strings.Join(missing, ", "))}
	}
	if kind != translation.KindGPT {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s: credentials configured", kind)}
	}
	return checkChatEndpoint(ctx, name, creds.ChatURL, creds.ChatKey, client)
}

func checkChatEndpoint(ctx context.Context, name, baseURL, key string, client *http.Client) Result {
	endpoint, err := url.JoinPath(strings.TrimSpace(baseURL), "models")
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("invalid chat_url (%v)", err)}
	}
	if client == nil {
		client = http.DefaultClient
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("gpt: check failed (%v)", err)}
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(key))

	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: "gpt: " + summarizeError(err)}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return Result{Name: name, Passed: true, Detail: "gpt: API reachable"}
	case http.StatusUnauthorized, http.StatusForbidden:
		return Result{Name: name, Detail: "gpt: auth failed (invalid chat_key)"}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("gpt: check failed (%d)", resp.StatusCode)}
	}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace fails when fewer than minBytes are available at path.
func CheckFreeSpace(name, path string, minBytes uint64) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	if free < minBytes {
		return Result{Name: name, Detail: fmt.Sprintf("%s free, need %s", FormatBytes(free), FormatBytes(minBytes))}
	}
	return Result{Name: name, Passed: true, Detail: FormatBytes(free) + " free"}
}

// CheckSystemDeps evaluates the external executables for the given config.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(deps.Requirements(cfg))
}

// FormatBytes renders a byte count with a binary unit.
func FormatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func summarizeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out (API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (API unreachable)"
	}
	return err.Error()
}
