// Package render prints receipts as images: the document is laid out in
// HTML, photographed by headless Chrome and sent as a raster.
package render

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"image/png"
	"net/url"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/shopspring/decimal"

	"github.com/Riboost-Studio/perfect-menu-print-queue/internal/escpos"
	"github.com/Riboost-Studio/perfect-menu-print-queue/internal/model"
)

//go:embed templates/receipt.html
var templates embed.FS

var templateFuncs = template.FuncMap{
	"formatMoney": func(d decimal.Decimal) string { return escpos.FormatMoney(d) },
	"upper":       strings.ToUpper,
}

var receiptTemplate = template.Must(
	template.New("receipt.html").Funcs(templateFuncs).ParseFS(templates, "templates/receipt.html"),
)

const (
	// DefaultRenderTimeout bounds one Chrome screenshot.
	DefaultRenderTimeout = 20 * time.Second
	settleDelay          = 300 * time.Millisecond
)

// Renderer produces ESC/POS raster jobs from receipt documents.
type Renderer struct {
	ChromePath string
	Dots       int
	FeedLines  byte
	Timeout    time.Duration
}

func NewRenderer(chromePath string, dots int) *Renderer {
	if dots <= 0 {
		dots = escpos.DefaultDots
	}
	return &Renderer{
		ChromePath: chromePath,
		Dots:       dots,
		FeedLines:  escpos.DefaultFeedLines,
		Timeout:    DefaultRenderTimeout,
	}
}

// HTML lays the receipt out at the printer's dot width.
func (r *Renderer) HTML(doc model.ReceiptDocument) (string, error) {
	var buf bytes.Buffer
	err := receiptTemplate.Execute(&buf, struct {
		Doc   model.ReceiptDocument
		Width int
	}{doc, r.Dots - 24})
	if err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

// Encode satisfies queue.EncodeFunc.
func (r *Renderer) Encode(ctx context.Context, doc model.ReceiptDocument) ([]byte, error) {
	if err := escpos.Validate(doc); err != nil {
		return nil, err
	}
	html, err := r.HTML(doc)
	if err != nil {
		return nil, err
	}
	shot, err := r.Screenshot(ctx, html)
	if err != nil {
		return nil, err
	}
	img, err := png.Decode(bytes.NewReader(shot))
	if err != nil {
		return nil, fmt.Errorf("failed to decode PNG: %w", err)
	}
	return escpos.ImageJob(img, r.Dots, r.FeedLines)
}

// Screenshot renders html in headless Chrome and returns a full-page PNG.
func (r *Renderer) Screenshot(ctx context.Context, html string) ([]byte, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
	)
	if r.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(r.ChromePath))
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultRenderTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()
	cdpCtx, cdpCancel := chromedp.NewContext(allocCtx)
	defer cdpCancel()

	var pngBytes []byte
	err := chromedp.Run(cdpCtx,
		emulation.SetDeviceMetricsOverride(int64(r.Dots), 800, 1, false),
		chromedp.Navigate("data:text/html,"+urlEncode(html)),
		chromedp.Sleep(settleDelay),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, err := page.CaptureScreenshot().
				WithCaptureBeyondViewport(true).
				Do(ctx)
			if err != nil {
				return err
			}
			pngBytes = buf
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed generating image: %w", err)
	}
	return pngBytes, nil
}

func urlEncode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// --- Chrome discovery ---

// FindChrome returns the first Chrome or Chromium binary on PATH or in a
// well-known install location.
func FindChrome() (string, bool) {
	for _, bin := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser"} {
		if path, err := exec.LookPath(bin); err == nil {
			return path, true
		}
	}
	for _, path := range commonChromePaths(runtime.GOOS) {
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

func commonChromePaths(goos string) []string {
	switch goos {
	case "darwin":
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
		}
	case "linux":
		return []string{
			"/usr/bin/google-chrome",
			"/usr/bin/google-chrome-stable",
			"/usr/bin/chromium",
			"/usr/bin/chromium-browser",
			"/snap/bin/chromium",
		}
	case "windows":
		return []string{
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
		}
	}
	return nil
}

// InstallHint tells the operator how to get Chrome on this OS.
func InstallHint() string {
	switch runtime.GOOS {
	case "linux":
		return "install chromium (apt install chromium-browser, dnf install chromium, pacman -S chromium)"
	case "darwin":
		return "brew install --cask google-chrome"
	case "windows":
		return "download Google Chrome from https://www.google.com/chrome/"
	}
	return "install Chrome or Chromium for your OS"
}
