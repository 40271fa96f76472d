package supplies

import "sync"

// Entry maps a recognized phrase to its canonical name.
type Entry struct {
	Phrase    string
	Canonical string
}

// ptBR is the built-in vocabulary. Canonical names are Brazilian Portuguese.
var ptBR = []Entry{
	{"Black Cartridge", "Cartucho Preto"},
	{"Cyan Cartridge", "Cartucho Ciano"},
	{"Magenta Cartridge", "Cartucho Magenta"},
	{"Yellow Cartridge", "Cartucho Amarelo"},
	{"Tri-color Cartridge", "Cartucho Colorido"},
	{"Photo Cartridge", "Cartucho de Foto"},
	{"Black Toner", "Toner Preto"},
	{"Cyan Toner", "Toner Ciano"},
	{"Magenta Toner", "Toner Magenta"},
	{"Yellow Toner", "Toner Amarelo"},
	{"Black Ink", "Tinta Preta"},
	{"Cyan Ink", "Tinta Ciano"},
	{"Magenta Ink", "Tinta Magenta"},
	{"Yellow Ink", "Tinta Amarela"},
	{"Drum Unit", "Unidade de Cilindro"},
	{"Drum Kit", "Kit de Cilindro"},
	{"Black Drum", "Cilindro Preto"},
	{"Cyan Drum", "Cilindro Ciano"},
	{"Magenta Drum", "Cilindro Magenta"},
	{"Yellow Drum", "Cilindro Amarelo"},
	{"Imaging Drum", "Cilindro de Imagem"},
	{"Imaging Unit", "Unidade de Imagem"},
	{"Drum", "Cilindro"},
	{"Maintenance Kit", "Kit de Manutenção"},
	{"Fuser Kit", "Kit Fusor"},
	{"Transfer Kit", "Kit de Transferência"},
	{"Document Feeder Kit", "Kit do Alimentador de Documentos"},
	{"Roller Kit", "Kit de Rolos"},
	{"Pickup Roller", "Rolo de Alimentação"},
	{"Separation Roller", "Rolo de Separação"},
	{"Waste Toner", "Toner Residual"},
	{"Waste Toner Container", "Contentor de Toner Residual"},
	{"Collection Unit", "Unidade Coletora"},
	{"Transfer Belt", "Correia de Transferência"},
	{"Transfer Unit", "Unidade de Transferência"},
	{"Fuser", "Fusor"},
	{"ADF", "Alimentador Automático"},
	{"Staples", "Grampos"},
	{"Staple Cartridge", "Cartucho de Grampos"},
	{"Non-HP", "Não Original HP"},
	{"Non-Genuine", "Não Original"},
	{"Third-party", "Terceiros"},
	{"Very Low", "Muito Baixo"},
	{"Low", "Baixo"},
	{"Empty", "Vazio"},
	{"OK", "OK"},
	{"Replace", "Substituir"},
	{"Order", "Encomendar"},
	{"Genuine", "Original"},
	{"Black", "Preto"},
	{"Cyan", "Ciano"},
	{"Magenta", "Magenta"},
	{"Yellow", "Amarelo"},
	{"Toner", "Toner"},
	{"Cartridge", "Cartucho"},
	{"Ink", "Tinta"},
	{"Supply", "Consumível"},
	{"Supplies", "Consumíveis"},
	{"Kit", "Kit"},
	{"Unit", "Unidade"},
}

// DefaultEntries returns a copy of the built-in vocabulary.
func DefaultEntries() []Entry {
	out := make([]Entry, len(ptBR))
	copy(out, ptBR)
	return out
}

var (
	defaultOnce       sync.Once
	defaultNormalizer *Normalizer
)

// DefaultNormalizer returns the shared normalizer built from DefaultEntries.
func DefaultNormalizer() *Normalizer {
	defaultOnce.Do(func() {
		n, err := NewNormalizer(ptBR)
		if err != nil {
			panic("supplies: built-in vocabulary is inconsistent: " + err.Error())
		}
		defaultNormalizer = n
	})
	return defaultNormalizer
}
