package webpanel

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/egperson/network-printer-solution/common/storage"
)

// Strategy is one step of the supply extraction cascade. Extract must be
// pure: it reads the page and returns what it found, possibly nothing.
type Strategy struct {
	Name    string
	Extract func(*Page) []storage.Supply
}

// Strategy names recorded on extracted devices.
const (
	StrategyStructuredBlock = "structured-block"
	StrategyIndexedField    = "indexed-field"
	StrategyFreeText        = "free-text"
	StrategyProximity       = "proximity"
)

// maxIndexedSupplies bounds the indexed field scan (indices 0..11).
const maxIndexedSupplies = 12

// proximityWindow is how many characters before a percentage are searched
// for a supply keyword.
const proximityWindow = 40

// DefaultStrategies returns the cascade in priority order.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: StrategyStructuredBlock, Extract: StructuredBlocks},
		{Name: StrategyIndexedField, Extract: IndexedFields},
		{Name: StrategyFreeText, Extract: FreeText},
		{Name: StrategyProximity, Extract: Proximity},
	}
}

// StructuredBlocks reads ".consumable" containers: the name from the first
// h2 and the level from ".plr", or from ".gauge span" when ".plr" is empty.
func StructuredBlocks(p *Page) []storage.Supply {
	var out []storage.Supply
	p.Doc.Find(".consumable").Each(func(_ int, s *goquery.Selection) {
		name := textOf(s, "h2")
		if name == "" {
			return
		}
		level := textOf(s, ".plr")
		if level == "" {
			level = textOf(s, ".gauge span")
		}
		out = append(out, newSupply(p, name, level))
	})
	return out
}

// IndexedFields reads #SupplyName{i} / #SupplyPLR{i} pairs and stops at the
// first index without a name.
func IndexedFields(p *Page) []storage.Supply {
	var out []storage.Supply
	for i := 0; i < maxIndexedSupplies; i++ {
		idx := strconv.Itoa(i)
		name := textOf(p.Doc.Selection, "#SupplyName"+idx)
		if name == "" {
			break
		}
		level := textOf(p.Doc.Selection, "#SupplyPLR"+idx)
		out = append(out, newSupply(p, name, level))
	}
	return out
}

const supplyKeywords = `Preto|Black|Ciano|Cyan|Magenta|Amarelo|Yellow|Toner|Tinta`

var (
	freeTextPattern = regexp.MustCompile(`(?i)\b(` + supplyKeywords + `)\b[\s:\-–]*(?:<|&lt;)?\s*(\d{1,3}%)`)
	keywordPattern  = regexp.MustCompile(`(?i)\b(` + supplyKeywords + `)\b`)
	percentPattern  = regexp.MustCompile(`(\d{1,3})%`)
)

// FreeText matches "<keyword> [separator] <1-3 digits>%" in the rendered
// text. Pairs are deduplicated by canonical name and level.
func FreeText(p *Page) []storage.Supply {
	text := p.Text()
	seen := make(map[string]bool)
	var out []storage.Supply
	for _, m := range freeTextPattern.FindAllStringSubmatch(text, -1) {
		s := keywordSupply(p, m[1], m[2])
		key := s.Name + "\x00" + s.Level
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

// Proximity pairs every "<1-3 digits>%" with the nearest supply keyword in
// the preceding proximityWindow characters. Duplicates are kept.
func Proximity(p *Page) []storage.Supply {
	text := p.Text()
	var out []storage.Supply
	for _, loc := range percentPattern.FindAllStringIndex(text, -1) {
		// skip digits that continue a longer number
		if loc[0] > 0 {
			if r, _ := utf8.DecodeLastRuneInString(text[:loc[0]]); r >= '0' && r <= '9' {
				continue
			}
		}
		start := loc[0]
		for n := 0; n < proximityWindow && start > 0; n++ {
			_, size := utf8.DecodeLastRuneInString(text[:start])
			start -= size
		}
		window := text[start:loc[0]]
		matches := keywordPattern.FindAllStringSubmatch(window, -1)
		if len(matches) == 0 {
			continue
		}
		nearest := matches[len(matches)-1][1]
		out = append(out, keywordSupply(p, nearest, text[loc[0]:loc[1]]))
	}
	return out
}

// keywordSupply builds a supply from a bare keyword. Ink and toner words
// collapse to "Toner".
func keywordSupply(p *Page, keyword, level string) storage.Supply {
	name := keyword
	switch strings.ToLower(keyword) {
	case "toner", "tinta":
		name = "Toner"
	}
	return newSupply(p, name, level)
}
