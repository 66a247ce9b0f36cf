package security

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"

	"github.com/hitoshi/sporthub/internal/model"
)

// SSRFGuardService は外部URLへのアクセス可否を判定するインターフェース。
type SSRFGuardService interface {
	// NewSafeClient は内部ネットワーク宛ての接続をDialer段階で拒否するHTTPクライアントを返す。
	NewSafeClient(timeout time.Duration) *http.Client

	// ValidateURL はDNS解決を行わずにスキームとホストを検査する。
	ValidateURL(rawURL string) error
}

// blockedPrefixes はIPリテラル指定時に拒否するアドレス範囲。
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fe80::/10"),
	netip.MustParsePrefix("fc00::/7"),
}

// ssrfGuard はSSRFGuardServiceの実装。
type ssrfGuard struct{}

// NewSSRFGuard はSSRFGuardServiceを生成する。
func NewSSRFGuard() *ssrfGuard {
	return &ssrfGuard{}
}

// NewSafeClient はsafeurlでラップしたHTTPクライアントを返す。
// 名前解決後のIPアドレスも検査されるため、DNS再バインディングも防げる。
func (g *ssrfGuard) NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()
	return safeurl.Client(config).Client
}

// ValidateURL は画像URLとして受け付けられる形式かを検査する。
func (g *ssrfGuard) ValidateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	default:
		return fmt.Errorf("disallowed scheme: %q", parsed.Scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}
	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("blocked host: %s", host)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		addr = addr.Unmap()
		for _, p := range blockedPrefixes {
			if p.Contains(addr) {
				return fmt.Errorf("blocked IP address: %s", addr)
			}
		}
	}
	return nil
}

// MediaURLChecker はイベント画像やアバターのURLを検査する。
// verifyが有効な場合はHEADリクエストでContent-Typeがimage/*であることも確認する。
type MediaURLChecker struct {
	guard  SSRFGuardService
	client *http.Client
	verify bool
	logger *slog.Logger
}

// NewMediaURLChecker はMediaURLCheckerを生成する。
func NewMediaURLChecker(guard SSRFGuardService, timeout time.Duration, verify bool, logger *slog.Logger) *MediaURLChecker {
	if logger == nil {
		logger = slog.Default()
	}
	return &MediaURLChecker{
		guard:  guard,
		client: guard.NewSafeClient(timeout),
		verify: verify,
		logger: logger,
	}
}

// Check はURLを検査し、利用できない場合はINVALID_MEDIA_URLエラーを返す。
// 空文字列は「画像なし」として許可する。
func (c *MediaURLChecker) Check(ctx context.Context, rawURL string) error {
	if rawURL == "" {
		return nil
	}
	if err := c.guard.ValidateURL(rawURL); err != nil {
		return model.NewInvalidMediaURLError(err.Error())
	}
	if !c.verify {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return model.NewInvalidMediaURLError(err.Error())
	}
	req.Header.Set("User-Agent", "SportHub/1.0 media-check")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("media URL check failed",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return model.NewInvalidMediaURLError("画像を取得できませんでした")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return model.NewInvalidMediaURLError(fmt.Sprintf("HTTP %d", resp.StatusCode))
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(strings.ToLower(ct), "image/") {
		return model.NewInvalidMediaURLError(fmt.Sprintf("画像ではありません: %s", ct))
	}
	return nil
}

// compile-time interface check
var _ SSRFGuardService = (*ssrfGuard)(nil)
