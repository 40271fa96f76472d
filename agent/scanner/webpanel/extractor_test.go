package webpanel

import (
	"reflect"
	"strings"
	"testing"

	"github.com/egperson/network-printer-solution/common/storage"
)

func page(body string) string {
	return "<html><head><title>Panel</title></head><body>" + body + "</body></html>"
}

func TestExtractStructuredBlock(t *testing.T) {
	t.Parallel()

	html := page(`
		<div class="consumable"><h2>Black Toner</h2><span class="plr">45%</span></div>
		<div class="consumable"><h2>Drum Unit</h2><div class="gauge"><span>80%</span></div></div>
		<div class="consumable"><h2></h2><span class="plr">10%</span></div>`)

	res := New(nil).Extract([]byte(html), "10.0.0.5")

	want := []storage.Supply{
		{Name: "Toner Preto", Level: "45%", RawName: "Black Toner", Kind: "toner_black"},
		{Name: "Unidade de Cilindro", Level: "80%", RawName: "Drum Unit", Kind: "drum_life"},
	}
	if !reflect.DeepEqual(res.Supplies, want) {
		t.Fatalf("supplies = %+v, want %+v", res.Supplies, want)
	}
	if res.Strategy != StrategyStructuredBlock {
		t.Errorf("strategy = %q", res.Strategy)
	}
	if res.Type != storage.TypeMono {
		t.Errorf("type = %q, want mono", res.Type)
	}
	if res.SourceID != "10.0.0.5" {
		t.Errorf("source id = %q", res.SourceID)
	}
}

func TestExtractCascadeIsExclusive(t *testing.T) {
	t.Parallel()

	html := page(`
		<div class="consumable"><h2>Cyan Toner</h2><span class="plr">30%</span></div>
		<span id="SupplyName0">Black Toner</span><span id="SupplyPLR0">90%</span>
		<p>Magenta: 15%</p>`)

	res := New(nil).Extract([]byte(html), "x")
	if len(res.Supplies) != 1 || res.Supplies[0].Name != "Toner Ciano" {
		t.Fatalf("expected only the structured block supply, got %+v", res.Supplies)
	}
	if res.Type != storage.TypeColor {
		t.Errorf("type = %q, want color", res.Type)
	}
}

func TestExtractIndexedFieldsStopAtGap(t *testing.T) {
	t.Parallel()

	html := page(`
		<span id="SupplyName0">Black Cartridge</span><span id="SupplyPLR0">60%</span>
		<span id="SupplyName1">Tri-color Cartridge</span><span id="SupplyPLR1">--%</span>
		<span id="SupplyName3">Photo Cartridge</span><span id="SupplyPLR3">5%</span>`)

	res := New(nil).Extract([]byte(html), "x")
	if res.Strategy != StrategyIndexedField {
		t.Fatalf("strategy = %q", res.Strategy)
	}
	names := supplyNames(res.Supplies)
	if !reflect.DeepEqual(names, []string{"Cartucho Preto", "Cartucho Colorido"}) {
		t.Errorf("names = %v", names)
	}
	if res.Supplies[1].Level != "--%" {
		t.Errorf("raw level should be kept as read, got %q", res.Supplies[1].Level)
	}
}

func TestExtractFreeTextDedup(t *testing.T) {
	t.Parallel()

	html := page(`
		<table><tr><td>Black:</td><td>40%</td></tr></table>
		<p>Black - 40%</p>
		<p>Cyan 10%</p>
		<p>Yellow &lt;10%</p>
		<p>Tinta: 30%</p>
		<script>var Magenta = "99%";</script>`)

	res := New(nil).Extract([]byte(html), "x")
	if res.Strategy != StrategyFreeText {
		t.Fatalf("strategy = %q", res.Strategy)
	}
	want := []storage.Supply{
		{Name: "Preto", Level: "40%", RawName: "Black", Kind: "toner_black"},
		{Name: "Ciano", Level: "10%", RawName: "Cyan", Kind: "toner_cyan"},
		{Name: "Amarelo", Level: "10%", RawName: "Yellow", Kind: "toner_yellow"},
		{Name: "Toner", Level: "30%"},
	}
	if !reflect.DeepEqual(res.Supplies, want) {
		t.Errorf("supplies = %+v, want %+v", res.Supplies, want)
	}
	if res.Type != storage.TypeColor {
		t.Errorf("type = %q", res.Type)
	}
}

func TestExtractProximity(t *testing.T) {
	t.Parallel()

	html := page(`
		<p>Nível de tinta preto (estimado): cerca de 35%</p>
		<p>Disco cheio em 50 por cento, espaço livre restante ok 99%</p>`)

	res := New(nil).Extract([]byte(html), "x")
	if res.Strategy != StrategyProximity {
		t.Fatalf("strategy = %q", res.Strategy)
	}
	want := []storage.Supply{{Name: "Preto", Level: "35%", RawName: "preto", Kind: "toner_black"}}
	if !reflect.DeepEqual(res.Supplies, want) {
		t.Errorf("supplies = %+v, want %+v", res.Supplies, want)
	}
}

func TestProximityKeepsDuplicates(t *testing.T) {
	t.Parallel()

	p := NewPage([]byte(page(`<p>Magenta (nível) 20% / (nível) 20%</p>`)), nil)
	got := Proximity(p)
	if len(got) != 2 || got[0] != got[1] || got[0].Name != "Magenta" {
		t.Errorf("expected two identical Magenta supplies, got %+v", got)
	}
}

func TestProximityIgnoresLongNumbers(t *testing.T) {
	t.Parallel()

	p := NewPage([]byte(page(`<p>Toner counter 1234%</p>`)), nil)
	if got := Proximity(p); len(got) != 0 {
		t.Errorf("expected no supplies, got %+v", got)
	}
}

func TestExtractNoSupplies(t *testing.T) {
	t.Parallel()

	res := New(nil).Extract([]byte(page(`<h1>Welcome</h1><p>Nothing to see</p>`)), "x")
	if res.Supplies != nil || res.Strategy != "" {
		t.Errorf("expected no supplies, got %+v via %q", res.Supplies, res.Strategy)
	}
	if res.Type != storage.TypeUnknown {
		t.Errorf("type = %q, want unknown", res.Type)
	}
	if res.Pages != nil {
		t.Errorf("pages should be absent, got %d", *res.Pages)
	}
}

func TestExtractMalformedInput(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"",
		"\x00\xff<<<>>>",
		`<div class="consumable"><h2>Cyan Toner</h2><span class="plr">12%</div>`,
		strings.Repeat("<div>", 500),
	}
	for _, in := range inputs {
		res := New(nil).Extract([]byte(in), "x")
		if res == nil {
			t.Fatalf("Extract(%q) returned nil", in)
		}
	}

	res := New(nil).Extract([]byte(inputs[2]), "x")
	if len(res.Supplies) != 1 || res.Supplies[0].Level != "12%" {
		t.Errorf("unclosed markup should still parse, got %+v", res.Supplies)
	}
}

func TestExtractDeviceFields(t *testing.T) {
	t.Parallel()

	html := `<html><head><title> HP LaserJet M404 </title></head><body>
		<span id="HomeDeviceName">Recepção</span>
		<span id="HomeDeviceIp">192.168.1.40</span>
		<div class="status-message">Pronta</div>
		<table id="MediaTable"><tbody>
			<tr><td id="TrayBinName_1">Bandeja 1</td><td id="TrayBinStatus_1">OK</td><td id="TrayBinCapacity_1">250</td><td id="TrayBinSize_1">A4</td><td id="TrayBinType_1">Comum</td></tr>
			<tr><td>Bandeja 2</td><td>Vazia</td><td>500</td><td>Carta</td><td>Qualquer</td></tr>
			<tr><td></td><td>ignored</td></tr>
		</tbody></table>
		<div id="UsagePage">Total de páginas: 12.345</div>
		</body></html>`

	res := New(nil).Extract([]byte(html), "x")
	if res.Title != "HP LaserJet M404" {
		t.Errorf("title = %q", res.Title)
	}
	if res.DeviceName != "Recepção" || res.ReportedIP != "192.168.1.40" {
		t.Errorf("device fields = %q %q", res.DeviceName, res.ReportedIP)
	}
	if res.MachineStatus != "Pronta" {
		t.Errorf("machine status = %q", res.MachineStatus)
	}
	wantTrays := []storage.Tray{
		{Name: "Bandeja 1", Status: "OK", Capacity: "250", Size: "A4", Type: "Comum"},
		{Name: "Bandeja 2", Status: "Vazia", Capacity: "500", Size: "Carta", Type: "Qualquer"},
	}
	if !reflect.DeepEqual(res.Trays, wantTrays) {
		t.Errorf("trays = %+v", res.Trays)
	}
	if res.Pages == nil || *res.Pages != 12345 {
		t.Errorf("pages = %v", res.Pages)
	}
}

func TestTotalPagesLabels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		body string
		want int64
	}{
		{`<p>Total pages: 8812</p>`, 8812},
		{`<p>TOTAL PAGES 1,204</p>`, 1204},
		{`<p>Páginas totais - 77</p>`, 77},
		{`<p>Total impressions</p><p>5</p>`, 5},
	}
	for _, tt := range tests {
		res := New(nil).Extract([]byte(page(tt.body)), "x")
		if res.Pages == nil || *res.Pages != tt.want {
			t.Errorf("%s: pages = %v, want %d", tt.body, res.Pages, tt.want)
		}
	}
}

func TestMachineStatusPrefersID(t *testing.T) {
	t.Parallel()

	res := New(nil).Extract([]byte(page(`<div id="MachineStatus">Sleep</div><div class="status-message">Ready</div>`)), "x")
	if res.MachineStatus != "Sleep" {
		t.Errorf("machine status = %q", res.MachineStatus)
	}
}

func TestExtractDeterministic(t *testing.T) {
	t.Parallel()

	html := []byte(page(`<p>Preto 12%</p><p>Ciano 50%</p><p>Magenta 7%</p>`))
	e := New(nil)
	a := e.Extract(html, "x")
	b := e.Extract(html, "x")
	if !reflect.DeepEqual(a, b) {
		t.Errorf("results differ:\n%+v\n%+v", a, b)
	}
	if a.Type != storage.TypeColor {
		t.Errorf("Ciano and Magenta supplies should classify as color, got %q", a.Type)
	}
}

func TestCustomCascade(t *testing.T) {
	t.Parallel()

	html := []byte(page(`<div class="consumable"><h2>Drum Unit</h2><span class="plr">45%</span></div><p>Cyan 10%</p>`))
	e := NewWithStrategies(nil, []Strategy{{Name: StrategyFreeText, Extract: FreeText}})
	res := e.Extract(html, "x")
	if res.Strategy != StrategyFreeText || len(res.Supplies) != 1 || res.Supplies[0].Name != "Ciano" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestResultApply(t *testing.T) {
	t.Parallel()

	pages := int64(10)
	res := &Result{
		Supplies: []storage.Supply{{Name: "Toner Preto", Level: "5%"}},
		Strategy: StrategyIndexedField,
		Type:     storage.TypeMono,
		Title:    "Panel",
		Pages:    &pages,
	}
	d := storage.Device{IP: "10.0.0.1", Status: storage.StatusOK}
	res.Apply(&d)
	if d.Title != "Panel" || d.Type != storage.TypeMono || d.Pages == nil || len(d.Supplies) != 1 {
		t.Errorf("fields not applied: %+v", d)
	}
	if d.IP != "10.0.0.1" || d.Status != storage.StatusOK {
		t.Errorf("Apply must not touch probe fields: %+v", d)
	}
}

func supplyNames(list []storage.Supply) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = s.Name
	}
	return out
}
