package enrich

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultGoodScentsURL is the public site root for The Good Scents Company.
const DefaultGoodScentsURL = "https://www.thegoodscentscompany.com"

var detailPagePattern = regexp.MustCompile(`data/\w+\d+\.html`)

// GoodScentsAdapter scrapes The Good Scents Company. It is the authority for
// perfumery fields: odor description and family, appearance, flash point,
// solubility, and shelf life.
type GoodScentsAdapter struct {
	baseURL string
	client  *sourceClient
}

// NewGoodScentsAdapter builds an adapter over the given site root. An empty
// baseURL selects the public site.
func NewGoodScentsAdapter(baseURL string, httpClient *http.Client, limiter *Limiter, retries int) *GoodScentsAdapter {
	if baseURL == "" {
		baseURL = DefaultGoodScentsURL
	}
	return &GoodScentsAdapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newSourceClient(SourceGoodScents, httpClient, limiter, retries),
	}
}

func (a *GoodScentsAdapter) Source() Source { return SourceGoodScents }

// Fetch searches the site for the query name and scrapes the first matching
// detail page. A result without a CAS number and without any odor data is
// treated as no match, since nothing on the page ties it to the query.
func (a *GoodScentsAdapter) Fetch(ctx context.Context, q Query) (*PartialRecord, error) {
	detailURL, err := a.findDetailPage(ctx, q.Raw)
	if err != nil {
		return nil, err
	}

	body, err := a.client.get(ctx, detailURL)
	if err != nil {
		return nil, err
	}

	rec, err := parseGoodScentsDetail(body)
	if err != nil {
		return nil, &SourceError{Source: SourceGoodScents, Err: err}
	}
	rec.Query = q
	if rec.CAS == "" && rec.OdorDescription == "" && rec.OdorFamily == "" {
		return nil, ErrNoMatch
	}
	return rec, nil
}

// findDetailPage submits the site search form and extracts the first
// data/<id>.html link from the results.
func (a *GoodScentsAdapter) findDetailPage(ctx context.Context, name string) (string, error) {
	form := url.Values{
		"qName":  {name},
		"submit": {"search"},
	}
	body, err := a.client.postForm(ctx, a.baseURL+"/search3.php", form)
	if err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", &SourceError{Source: SourceGoodScents, Err: fmt.Errorf("parse search results: %w", err)}
	}

	var rel string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		if m := detailPagePattern.FindString(href); m != "" {
			rel = m
			return false
		}
		return true
	})
	// Some result pages link through onclick handlers instead of hrefs.
	if rel == "" {
		rel = detailPagePattern.FindString(string(body))
	}
	if rel == "" {
		return "", ErrNoMatch
	}
	return a.baseURL + "/" + rel, nil
}

// goodScentsFields maps the detail page's row labels onto record fields.
// Labels vary between older and newer page generations, so each field lists
// every spelling seen in the wild.
var goodScentsFields = []struct {
	aliases []string
	assign  func(*PartialRecord, string)
}{
	{[]string{"cas number"}, func(r *PartialRecord, v string) { r.CAS = ExtractCAS(v) }},
	{[]string{"einecs number", "ec number"}, func(r *PartialRecord, v string) { r.EINECS = v }},
	{[]string{"odor description", "odor"}, func(r *PartialRecord, v string) { r.OdorDescription = v }},
	{[]string{"odor type"}, func(r *PartialRecord, v string) { r.OdorFamily = v }},
	{[]string{"appearance"}, func(r *PartialRecord, v string) { r.Appearance = v }},
	{[]string{"flash point"}, func(r *PartialRecord, v string) { r.FlashPoint = v }},
	{[]string{"solubility", "soluble in"}, func(r *PartialRecord, v string) { r.Solubility = v }},
	{[]string{"logp (o/w)", "logp"}, func(r *PartialRecord, v string) { r.LogP = v }},
	{[]string{"shelf life"}, func(r *PartialRecord, v string) { r.ShelfLife = v }},
	{[]string{"molecular weight"}, func(r *PartialRecord, v string) { r.MolecularWeight = v }},
}

func parseGoodScentsDetail(body []byte) (*PartialRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse detail page: %w", err)
	}

	rec := &PartialRecord{Source: SourceGoodScents}
	rec.Name = strings.TrimSpace(doc.Find("h1").First().Text())

	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td, th")
		if cells.Length() < 2 {
			return
		}
		label := normalizeLabel(cells.First().Text())
		if label == "" {
			return
		}
		value := strings.TrimSpace(cells.Eq(1).Text())
		if value == "" {
			return
		}
		for _, field := range goodScentsFields {
			for _, alias := range field.aliases {
				if label == alias {
					field.assign(rec, value)
					return
				}
			}
		}
	})

	// Older pages bury the CAS in running text rather than a labelled row.
	if rec.CAS == "" {
		rec.CAS = ExtractCAS(doc.Text())
	}
	return rec, nil
}

func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.TrimRight(s, ":")
}
