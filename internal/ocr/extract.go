package ocr

import (
	"fmt"
	"regexp"
	"strings"

	"gestor-financiero/internal/models"
	"gestor-financiero/internal/money"

	"github.com/shopspring/decimal"
)

const defaultCurrency = "CLP"

var amountPatterns = compileAll(
	`total a pagar:?\s*\$?\s*([\d.,]+)`,
	`\$\s*([\d.,]+)`,
	`total:?\s*\$?\s*([\d.,]+)`,
	`monto:?\s*\$?\s*([\d.,]+)`,
	`valor:?\s*\$?\s*([\d.,]+)`,
	`precio:?\s*\$?\s*([\d.,]+)`,
	`pagar:?\s*\$?\s*([\d.,]+)`,
	`pago:?\s*\$?\s*([\d.,]+)`,
	`subtotal:?\s*\$?\s*([\d.,]+)`,
	`importe:?\s*\$?\s*([\d.,]+)`,
	`([\d.,]+)\s*pesos`,
	`iva:?\s*\$?\s*([\d.,]+)`,
	`neto:?\s*\$?\s*([\d.,]+)`,
)

const (
	numericDate = `\d{1,2}[-/]\d{1,2}[-/]\d{2,4}`
	longDate    = `\d{1,2}\s+de\s+[a-zA-ZáéíóúÁÉÍÓÚñÑ]+\s+de\s+\d{2,4}`
)

var (
	anyDate     = regexp.MustCompile(numericDate + `|` + longDate)
	dueDateLine = compileAll(
		`fecha de vencimiento:?\s*(` + numericDate + `)`,
		`vencimiento:?\s*(` + numericDate + `)`,
		`vence:?\s*(` + numericDate + `)`,
		`pagar antes del:?\s*(` + numericDate + `)`,
	)
	invoicePatterns = compileAll(
		`factura electr[oó]nica:?\s*#?\s*([\w-]+)`,
		`boleta electr[oó]nica:?\s*#?\s*([\w-]+)`,
		`n[°º]\s*factura:?\s*([\w-]+)`,
		`n[°º]\s*boleta:?\s*([\w-]+)`,
		`n[°º]\s*documento:?\s*([\w-]+)`,
		`factura:?\s*#?\s*([\w-]+)`,
		`boleta:?\s*#?\s*([\w-]+)`,
		`documento:?\s*#?\s*([\w-]+)`,
		`folio:?\s*([\w-]+)`,
		`\bno[.:]\s*([\w-]+)`,
	)
	onlyNumber = regexp.MustCompile(`^\d+[.,]\d+$`)
)

var vendorExclusions = []string{"total", "fecha", "factura", "dirección", "direccion", "monto", "valor", "precio"}

type categoryKeywords struct {
	name     string
	keywords []string
}

// Ordered so that ties resolve deterministically to the earlier category.
var categories = []categoryKeywords{
	{"supermercado", []string{"jumbo", "lider", "unimarc", "santa isabel", "tottus", "supermercado", "super", "líder", "walmart"}},
	{"servicios_basicos", []string{"luz", "agua", "gas", "electricidad", "enel", "aguas andinas", "metrogas", "abastible", "gasco", "saesa", "chilectra"}},
	{"telecomunicaciones", []string{"movistar", "entel", "claro", "wom", "vtr", "gtd", "directv", "internet", "telefonía", "móvil", "celular"}},
	{"transporte", []string{"metro", "transantiago", "red", "bip", "uber", "cabify", "taxi", "didi", "combustible", "copec", "shell", "estacionamiento", "peaje"}},
	{"salud", []string{"isapre", "fonasa", "clínica", "hospital", "farmacia", "cruz verde", "salcobrand", "ahumada", "doctor", "médico", "consulta"}},
	{"educacion", []string{"colegio", "universidad", "instituto", "matrícula", "escuela", "educación", "curso", "capacitación"}},
	{"entretenimiento", []string{"cine", "teatro", "netflix", "spotify", "amazon", "concierto", "evento", "entradas", "suscripción"}},
	{"restaurantes", []string{"restaurant", "restaurante", "comida", "delivery", "pedidosya", "ubereats", "rappi", "doordash"}},
	{"ropa", []string{"falabella", "paris", "ripley", "corona", "ropa", "calzado", "vestuario", "h&m", "zara"}},
	{"hogar", []string{"sodimac", "easy", "homecenter", "construcción", "muebles", "decoración", "hogar"}},
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(`(?i)` + p)
	}
	return out
}

// ExtractFinancialData pulls amount, dates, invoice number, vendor and a
// keyword category out of receipt or invoice text (Chilean conventions).
func ExtractFinancialData(text string) models.ExtractedData {
	data := models.ExtractedData{Currency: defaultCurrency}
	lower := strings.ToLower(text)

	data.Category = detectCategory(lower)

	for _, line := range strings.Split(text, "\n") {
		lineLower := strings.ToLower(line)

		if data.Amount == "" {
			data.Amount = findAmount(lineLower)
		}

		if data.DueDate == "" {
			if m := firstSubmatch(dueDateLine, lineLower); m != "" {
				data.DueDate = m
				continue
			}
		}

		if data.Date == "" {
			if m := anyDate.FindString(line); m != "" {
				data.Date = m
			}
		}

		if data.InvoiceNumber == "" {
			data.InvoiceNumber = firstSubmatch(invoicePatterns, lineLower)
		}

		if data.Vendor == "" {
			data.Vendor = vendorCandidate(line, lineLower)
		}
	}

	data.Description = describe(data)
	return data
}

func detectCategory(lower string) string {
	best, bestMatches := "", 0
	for _, c := range categories {
		matches := 0
		for _, kw := range c.keywords {
			if strings.Contains(lower, kw) {
				matches++
			}
		}
		if matches > bestMatches {
			best, bestMatches = c.name, matches
		}
	}
	return best
}

func findAmount(line string) string {
	for _, re := range amountPatterns {
		m := re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if amount, ok := parseLocalizedAmount(m[1]); ok {
			return amount
		}
	}
	return ""
}

// parseLocalizedAmount returns the amount as a plain decimal string, or false
// when raw is not a positive number.
func parseLocalizedAmount(raw string) (string, bool) {
	d, ok := money.Parse(raw)
	if !ok || !d.IsPositive() {
		return "", false
	}
	return d.String(), true
}

func firstSubmatch(patterns []*regexp.Regexp, line string) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(line); m != nil && len(m) > 1 {
			return m[1]
		}
	}
	return ""
}

func vendorCandidate(line, lineLower string) string {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) <= 3 || onlyNumber.MatchString(trimmed) {
		return ""
	}
	for _, x := range vendorExclusions {
		if strings.Contains(lineLower, x) {
			return ""
		}
	}
	return trimmed
}

func describe(data models.ExtractedData) string {
	if data.Amount == "" {
		return ""
	}
	amount := formatThousands(data.Amount)
	switch {
	case data.Vendor != "" && data.Category != "":
		return fmt.Sprintf("Pago a %s (%s) por $%s", data.Vendor, data.Category, amount)
	case data.Vendor != "":
		return fmt.Sprintf("Pago a %s por $%s", data.Vendor, amount)
	case data.Category != "":
		return fmt.Sprintf("Pago (%s) por $%s", data.Category, amount)
	default:
		return fmt.Sprintf("Pago por $%s", amount)
	}
}

// formatThousands renders the integer part with dot grouping: 1234567 ->
// 1.234.567.
func formatThousands(amount string) string {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return amount
	}
	digits := d.Truncate(0).String()
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return b.String()
}
