package supplies

import (
	"regexp"
	"strings"
)

// Metric keys produced by NormalizeDescription.
const (
	KindTonerBlack   = "toner_black"
	KindTonerCyan    = "toner_cyan"
	KindTonerMagenta = "toner_magenta"
	KindTonerYellow  = "toner_yellow"
	KindDrum         = "drum_life"
	KindWaste        = "waste_toner"
	KindFuser        = "fuser_life"
	KindTransfer     = "transfer_belt"
)

// partNumberPattern matches vendor part numbers that end with a color code,
// e.g. Kyocera TK-8517K or HP CF410C.
var partNumberPattern = regexp.MustCompile(`(?i)^(?:supply\s+)?(tk|tn|ce|cf|w\d|cb|cc|q\d|c\d)[- ]?\d{3,5}([kcmy])$`)

// monoTonerPattern matches monochrome part numbers without a color suffix
// (Kyocera TK-3182, Brother TN-760).
var monoTonerPattern = regexp.MustCompile(`(?i)^(?:supply\s+)?(tk|tn)[- ]?\d{3,5}$`)

var (
	blackWords    = []string{"black", "bk", "blk", "preto", "negro", "noir", "schwarz", "nero"}
	cyanWords     = []string{"cyan", "cy", "cyn", "ciano"}
	magentaWords  = []string{"magenta", "mg", "mag"}
	yellowWords   = []string{"yellow", "yl", "yel", "amarelo", "amarillo", "jaune", "gelb", "giallo"}
	tonerWords    = []string{"toner", "ink", "tinta", "cartridge", "cartucho", "developer", "supply"}
	drumWords     = []string{"drum", "imaging", "image", "opc", "photoconductor", "cilindro"}
	wasteWords    = []string{"waste", "used", "residual"}
	fuserWords    = []string{"fuser", "fusing", "fusor"}
	transferWords = []string{"transfer", "belt", "correia", "transferência"}
)

var colorNameWords = []string{"cyan", "magenta", "yellow", "ciano", "amarelo"}

// IsColorName reports whether a supply name mentions a process color other
// than black, in English or its canonical translation.
func IsColorName(name string) bool {
	lower := strings.ToLower(name)
	for _, w := range colorNameWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// NormalizeDescription maps a supply description, raw or translated, to a
// metric key such as "toner_black". It returns "" when the description
// cannot be classified.
func NormalizeDescription(desc string) string {
	clean := strings.TrimSpace(desc)
	if clean == "" {
		return ""
	}
	if kind := kindFromPartNumber(clean); kind != "" {
		return kind
	}

	tokens := strings.FieldsFunc(strings.ToLower(clean), func(r rune) bool {
		switch r {
		case ' ', '\t', '\n', '\r', '_', '-', '/', '(', ')', ',':
			return true
		}
		return false
	})
	if len(tokens) == 0 {
		return ""
	}

	isToner := hasToken(tokens, tonerWords)
	isDrum := hasToken(tokens, drumWords) && !isToner

	// single-letter codes only count when they are the whole description
	single := ""
	if len(tokens) == 1 && len(tokens[0]) == 1 {
		single = tokens[0]
	}

	switch {
	case hasToken(tokens, blackWords) || single == "k":
		if isDrum {
			return KindDrum
		}
		return KindTonerBlack
	case hasToken(tokens, cyanWords) || single == "c":
		if isDrum {
			return ""
		}
		return KindTonerCyan
	case hasToken(tokens, magentaWords) || single == "m":
		if isDrum {
			return ""
		}
		return KindTonerMagenta
	case hasToken(tokens, yellowWords) || single == "y":
		if isDrum {
			return ""
		}
		return KindTonerYellow
	}

	switch {
	case hasToken(tokens, drumWords):
		return KindDrum
	case hasToken(tokens, wasteWords):
		return KindWaste
	case hasToken(tokens, fuserWords):
		return KindFuser
	case hasToken(tokens, transferWords):
		return KindTransfer
	}
	return ""
}

func kindFromPartNumber(desc string) string {
	if m := partNumberPattern.FindStringSubmatch(desc); len(m) == 3 {
		switch strings.ToLower(m[2]) {
		case "k":
			return KindTonerBlack
		case "c":
			return KindTonerCyan
		case "m":
			return KindTonerMagenta
		case "y":
			return KindTonerYellow
		}
	}
	if monoTonerPattern.MatchString(desc) {
		return KindTonerBlack
	}
	return ""
}

func hasToken(tokens []string, words []string) bool {
	for _, tok := range tokens {
		for _, w := range words {
			if tok == w {
				return true
			}
		}
	}
	return false
}
