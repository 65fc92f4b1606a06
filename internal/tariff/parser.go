package tariff

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/desmond009/TollCrypt-sub002/internal/models"
)

// Parser fetches the published HTML tariff schedule and extracts
// per-class rates from its table rows.
type Parser struct {
	httpClient *http.Client
	log        *zap.Logger
	maxRetries int
}

func NewParser(timeoutMS, maxRetries int, log *zap.Logger) *Parser {
	return &Parser{
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutMS) * time.Millisecond,
		},
		log:        log,
		maxRetries: maxRetries,
	}
}

// FetchAndParse downloads the schedule page and returns class → rate.
// Страница публикуется оператором плазы, разметка меняется редко, но
// парсер никогда не должен уронить воркер: любая ерунда → ошибка.
func (p *Parser) FetchAndParse(ctx context.Context, pageURL string) (map[string]string, error) {
	var doc *goquery.Document
	var lastErr error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")

		resp, err := p.httpClient.Do(req)
		if err != nil {
			lastErr = err
			time.Sleep(time.Duration(attempt+1) * 500 * time.Millisecond)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = fmt.Errorf("HTTP %d for %s", resp.StatusCode, pageURL)
			time.Sleep(time.Duration(attempt+1) * 500 * time.Millisecond)
			continue
		}

		doc, err = goquery.NewDocumentFromReader(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		lastErr = nil
		break
	}

	if lastErr != nil {
		return nil, lastErr
	}

	rates := ratesFromDocument(doc)
	if len(rates) == 0 {
		return nil, fmt.Errorf("no tariff rows recognized at %s", pageURL)
	}

	p.log.Info("tariff schedule parsed",
		zap.String("url", pageURL),
		zap.Int("classes", len(rates)))
	return rates, nil
}

// ratesFromDocument walks every table row: first cell is the vehicle
// category label, the first decimal number in the remaining cells is
// the rate. Unrecognized labels are skipped, not defaulted.
func ratesFromDocument(doc *goquery.Document) map[string]string {
	rates := make(map[string]string)

	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return // header or decorative row
		}

		class, ok := classForLabel(strings.TrimSpace(cells.First().Text()))
		if !ok {
			return
		}
		if _, dup := rates[class]; dup {
			return // первая строка класса главнее (обычно "однократный проезд")
		}

		cells.Slice(1, cells.Length()).EachWithBreak(func(_ int, cell *goquery.Selection) bool {
			rate := rateRE.FindString(cell.Text())
			if rate == "" {
				return true
			}
			if _, err := ToWei(rate); err != nil {
				return true
			}
			rates[class] = rate
			return false
		})
	})

	return rates
}

// classForLabel maps a schedule row label to a class code. Labels come
// as codes ("HCV"), single types ("Bus") or slashed lists ("Car/Jeep/Van").
func classForLabel(label string) (string, bool) {
	if code := strings.ToUpper(strings.TrimSpace(label)); models.IsValidVehicleClass(code) {
		return code, true
	}
	for _, part := range strings.FieldsFunc(label, splitLabel) {
		if class, ok := models.VehicleClassForKnownType(part); ok {
			return class, true
		}
	}
	return "", false
}

func splitLabel(r rune) bool {
	return r == '/' || r == ',' || r == '(' || r == ')'
}

var rateRE = regexp.MustCompile(`\d+(?:\.\d+)?`)
