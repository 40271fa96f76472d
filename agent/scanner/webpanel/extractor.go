// Package webpanel extracts supply levels and device facts from the HTML
// status pages served by printer web panels. Extraction never fails: pages
// it cannot understand produce an empty result.
package webpanel

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/egperson/network-printer-solution/agent/supplies"
	"github.com/egperson/network-printer-solution/common/storage"
)

// Result is everything extracted from one page. Empty fields mean the page
// did not provide them.
type Result struct {
	SourceID      string
	Supplies      []storage.Supply
	Strategy      string
	Type          string
	Title         string
	DeviceName    string
	ReportedIP    string
	MachineStatus string
	Trays         []storage.Tray
	Pages         *int64
}

// Apply copies the extracted fields onto d without clearing fields the page
// did not provide.
func (r *Result) Apply(d *storage.Device) {
	if r == nil {
		return
	}
	d.Supplies = r.Supplies
	d.Strategy = r.Strategy
	d.Type = r.Type
	d.Trays = r.Trays
	d.Pages = r.Pages
	d.Title = r.Title
	d.DeviceName = r.DeviceName
	d.ReportedIP = r.ReportedIP
	d.MachineStatus = r.MachineStatus
}

// Extractor runs the strategy cascade and the independent field extractors.
// It holds no mutable state and is safe for concurrent use.
type Extractor struct {
	normalizer *supplies.Normalizer
	strategies []Strategy
}

// New returns an extractor using n for name translation (the default
// vocabulary when nil) and the default cascade.
func New(n *supplies.Normalizer) *Extractor {
	return NewWithStrategies(n, DefaultStrategies())
}

// NewWithStrategies returns an extractor with a custom cascade.
func NewWithStrategies(n *supplies.Normalizer, strategies []Strategy) *Extractor {
	if n == nil {
		n = supplies.DefaultNormalizer()
	}
	return &Extractor{normalizer: n, strategies: strategies}
}

// Extract parses body and returns the extracted result. The first strategy
// that yields at least one supply wins; later strategies are not run.
func (e *Extractor) Extract(body []byte, sourceID string) *Result {
	res := &Result{SourceID: sourceID, Type: storage.TypeUnknown}
	p := NewPage(body, e.normalizer.Translate)
	if p == nil {
		return res
	}

	for _, s := range e.strategies {
		found := s.Extract(p)
		if len(found) > 0 {
			res.Supplies = found
			res.Strategy = s.Name
			break
		}
	}
	res.Type = classify(res.Supplies)

	doc := p.Doc.Selection
	res.Title = textOf(doc, "title")
	res.DeviceName = textOf(doc, "#HomeDeviceName")
	res.ReportedIP = textOf(doc, "#HomeDeviceIp")
	res.MachineStatus = textOf(doc, "#MachineStatus")
	if res.MachineStatus == "" {
		res.MachineStatus = textOf(doc, ".status-message")
	}
	res.Trays = trays(doc)
	res.Pages = totalPages(p)
	return res
}

func newSupply(p *Page, raw, level string) storage.Supply {
	name := p.Translate(raw)
	kind := supplies.NormalizeDescription(raw)
	if kind == "" {
		kind = supplies.NormalizeDescription(name)
	}
	s := storage.Supply{Name: name, Level: strings.TrimSpace(level), Kind: kind}
	if name != raw {
		s.RawName = raw
	}
	return s
}

// classify returns color when any supply mentions cyan, magenta or yellow,
// mono otherwise, and unknown when there are no supplies.
func classify(list []storage.Supply) string {
	if len(list) == 0 {
		return storage.TypeUnknown
	}
	for _, s := range list {
		if supplies.IsColorName(s.Name) || supplies.IsColorName(s.RawName) {
			return storage.TypeColor
		}
	}
	return storage.TypeMono
}

var trayFields = []string{"TrayBinName_", "TrayBinStatus_", "TrayBinCapacity_", "TrayBinSize_", "TrayBinType_"}

func trays(doc *goquery.Selection) []storage.Tray {
	var out []storage.Tray
	doc.Find("#MediaTable tbody tr").Each(func(_ int, row *goquery.Selection) {
		var vals [5]string
		cells := row.Find("td")
		for i, prefix := range trayFields {
			v := textOf(row, `[id^="`+prefix+`"]`)
			if v == "" {
				v = strings.TrimSpace(cells.Eq(i).Text())
			}
			vals[i] = v
		}
		if vals[0] == "" {
			return
		}
		out = append(out, storage.Tray{
			Name:     vals[0],
			Status:   vals[1],
			Capacity: vals[2],
			Size:     vals[3],
			Type:     vals[4],
		})
	})
	return out
}

var pagesPattern = regexp.MustCompile(`(?i)(total pages|total page count|total de p[áa]ginas|p[áa]ginas totais|total impressions|page count)[^0-9]*(\d[\d.,]{0,14}\d|\d)`)

// totalPages reads the lifetime page counter from the usage section, or
// from the whole page when there is none.
func totalPages(p *Page) *int64 {
	text := strings.Join(strings.Fields(p.Doc.Find("#UsagePage").Text()), " ")
	if text == "" {
		text = p.Text()
	}
	m := pagesPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, m[2])
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}
