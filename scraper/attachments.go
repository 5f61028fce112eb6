package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-scrape-venues/models"
)

// AttachmentFetcher discovers and downloads venue price list PDFs.
type AttachmentFetcher struct {
	client *Client
	root   string
}

// NewAttachmentFetcher stores downloads under root/<id>-<slug>/.
func NewAttachmentFetcher(client *Client, root string) *AttachmentFetcher {
	return &AttachmentFetcher{client: client, root: root}
}

// ListingURL is the related page that links a venue's price list PDFs.
func (a *AttachmentFetcher) ListingURL(slug string) string {
	return fmt.Sprintf("%s/public/banquet/%s/wedding-banquet-price-list/", strings.TrimSuffix(a.client.cfg.BaseURL, "/"), url.PathEscape(slug))
}

// FetchPriceLists returns the URLs of every price list that is present on
// disk after the call. A missing listing page yields no attachments.
func (a *AttachmentFetcher) FetchPriceLists(ctx context.Context, id, slug string) []string {
	listingURL := a.ListingURL(slug)
	p, err := a.client.get(ctx, listingURL, phaseListing)
	if err != nil {
		slog.Debug("price list page unavailable", slog.String("url", listingURL), slog.Any("error", err))
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(p.Body))
	if err != nil {
		slog.Warn("price list page unparsable", slog.String("url", listingURL), slog.Any("error", err))
		return nil
	}

	links := PDFLinks(doc, listingURL)
	if len(links) == 0 {
		return nil
	}

	dir := filepath.Join(a.root, id+"-"+slug)
	downloaded := make([]string, 0, len(links))
	for _, link := range links {
		att := models.Attachment{URL: link, Path: filepath.Join(dir, attachmentName(link))}
		slog.Info("downloading price list", slog.String("file", filepath.Base(att.Path)), slog.String("dir", filepath.Base(dir)))
		if err := a.Download(ctx, att); err != nil {
			slog.Warn("price list download failed", slog.Any("error", err))
			continue
		}
		downloaded = append(downloaded, link)
	}
	return downloaded
}

// Download saves one attachment. An existing destination counts as success
// without a request.
func (a *AttachmentFetcher) Download(ctx context.Context, att models.Attachment) error {
	if _, err := os.Stat(att.Path); err == nil {
		slog.Debug("attachment already present", slog.String("path", att.Path))
		a.client.Metrics.IncAttachment("skipped")
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		a.client.Metrics.IncAttachment("failed")
		return AttachmentError{URL: att.URL, Path: att.Path, Err: err}
	}

	p, err := a.client.get(ctx, att.URL, phaseAttachment)
	if err != nil {
		a.client.Metrics.IncAttachment("failed")
		return AttachmentError{URL: att.URL, Path: att.Path, Err: err}
	}

	if err := saveAtomically(p, att.Path); err != nil {
		a.client.Metrics.IncAttachment("failed")
		return AttachmentError{URL: att.URL, Path: att.Path, Err: err}
	}
	a.client.Metrics.IncAttachment("downloaded")
	return nil
}

// saveAtomically writes through a temp file so an interrupted run never
// leaves a truncated file that a later run would treat as complete.
func saveAtomically(p *page, dest string) error {
	if err := checkLength(p); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp := dest + ".part"
	if err := p.resp.Save(tmp); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename file: %w", err)
	}
	return nil
}

// checkLength rejects a body shorter or longer than the advertised
// Content-Length, which a later run would otherwise treat as complete.
func checkLength(p *page) error {
	if p.resp == nil || p.resp.Headers == nil {
		return nil
	}
	if p.resp.Headers.Get("Content-Encoding") != "" {
		return nil
	}
	raw := strings.TrimSpace(p.resp.Headers.Get("Content-Length"))
	if raw == "" {
		return nil
	}
	want, err := strconv.Atoi(raw)
	if err != nil || want < 0 {
		return nil
	}
	if got := len(p.resp.Body); got != want {
		return fmt.Errorf("incomplete body: got %d of %d bytes", got, want)
	}
	return nil
}

// PDFLinks returns the absolute, deduplicated targets of links ending in .pdf.
func PDFLinks(doc *goquery.Document, pageURL string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var out []string
	doc.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
		href := strings.TrimSpace(link.AttrOr("href", ""))
		if href == "" || href == "#" {
			return
		}
		ref, err := url.Parse(href)
		if err != nil || !strings.HasSuffix(strings.ToLower(ref.Path), ".pdf") {
			return
		}
		abs := base.ResolveReference(ref).String()
		if _, ok := seen[abs]; ok {
			return
		}
		seen[abs] = struct{}{}
		out = append(out, abs)
	})
	return out
}

func attachmentName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return filepath.Base(rawURL)
	}
	name := path.Base(u.Path)
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = filepath.Base(unescaped)
	}
	if name == "" || name == "/" || name == "." {
		return "attachment.pdf"
	}
	return name
}
