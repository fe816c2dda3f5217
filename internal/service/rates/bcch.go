package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/javipazolea/ferremas-backend/internal/domain"
)

// defaultBCCHBaseURL — REST-эндпоинт статистики Банка Чили.
const defaultBCCHBaseURL = "https://si3.bcentral.cl/SieteRestWS/SieteRestWS.ashx"

// seriesCodes — коды временных рядов БЦЧ для каждой поддерживаемой валюты.
var seriesCodes = map[string]string{
	"USD": "F073.TCO.PRE.Z.D",
	"EUR": "F072.CLP.EUR.N.O.D",
	"UF":  "F073.UF.CLP.Z.D",
	"UTM": "F073.UTM.CLP.Z.D",
	"GBP": "F072.CLP.GBP.N.O.D",
	"JPY": "F072.CLP.JPY.N.O.D",
}

// SupportedCurrencies возвращает список валют, для которых известен код серии.
func SupportedCurrencies() []string {
	out := make([]string, 0, len(seriesCodes))
	for c := range seriesCodes {
		out = append(out, c)
	}
	return out
}

// BCCHConfig — параметры подключения к API Банка Чили.
type BCCHConfig struct {
	BaseURL  string
	User     string
	Password string
	Timeout  time.Duration
}

// BCCHSource запрашивает курсы валют у REST API Банка Чили (функция
// GetSeries). Реализует domain.RateSource.
type BCCHSource struct {
	cfg    BCCHConfig
	client *http.Client
	logger *log.Entry
	// now подменяется в тестах для детерминированного диапазона дат.
	now func() time.Time
}

// NewBCCHSource создаёт источник курсов с указанными учётными данными.
func NewBCCHSource(cfg BCCHConfig, logger *log.Entry) *BCCHSource {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBCCHBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = log.New().WithField("component", "bcch-source")
	}
	return &BCCHSource{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
		now:    time.Now,
	}
}

type bcchResponse struct {
	Codigo      int    `json:"Codigo"`
	Descripcion string `json:"Descripcion"`
	Series      struct {
		DescripEsp string `json:"descripEsp"`
		Obs        []struct {
			IndexDateString string `json:"indexDateString"`
			Value           string `json:"value"`
			StatusCode      string `json:"statusCode"`
		} `json:"Obs"`
	} `json:"Series"`
}

// Fetch возвращает последнее опубликованное значение серии для валюты.
// Банк публикует часть серий с лагом, поэтому запрашивается окно в
// несколько дней и берётся последнее наблюдение.
func (s *BCCHSource) Fetch(ctx context.Context, currency string) (domain.Rate, error) {
	code, ok := seriesCodes[currency]
	if !ok {
		return domain.Rate{}, fmt.Errorf("%w: %s", domain.ErrCurrencyUnsupported, currency)
	}

	today := s.now()
	q := url.Values{}
	q.Set("user", s.cfg.User)
	q.Set("pass", s.cfg.Password)
	q.Set("function", "GetSeries")
	q.Set("timeseries", code)
	q.Set("firstdate", today.AddDate(0, 0, -7).Format("2006-01-02"))
	q.Set("lastdate", today.Format("2006-01-02"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return domain.Rate{}, fmt.Errorf("bcch: build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.WithError(err).WithField("currency", currency).Warn("bcch rate request failed")
		return domain.Rate{}, fmt.Errorf("%w: %s", domain.ErrRateUnavailable, currency)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.Rate{}, fmt.Errorf("bcch: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		s.logger.WithFields(log.Fields{
			"currency": currency,
			"status":   resp.StatusCode,
		}).Warn("bcch returned non-success status")
		return domain.Rate{}, fmt.Errorf("%w: %s", domain.ErrRateUnavailable, currency)
	}

	var body bcchResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		return domain.Rate{}, fmt.Errorf("bcch: decode response: %w", err)
	}
	if body.Codigo != 0 {
		s.logger.WithFields(log.Fields{
			"currency": currency,
			"codigo":   body.Codigo,
			"mensaje":  body.Descripcion,
		}).Warn("bcch rejected series request")
		return domain.Rate{}, fmt.Errorf("%w: %s", domain.ErrRateUnavailable, currency)
	}

	obs := body.Series.Obs
	for i := len(obs) - 1; i >= 0; i-- {
		value, err := strconv.ParseFloat(obs[i].Value, 64)
		if err != nil || math.IsNaN(value) || value <= 0 {
			continue
		}
		return domain.Rate{
			Currency:  currency,
			Value:     value,
			Date:      obs[i].IndexDateString,
			Source:    domain.RateSourceBCCH,
			FetchedAt: s.now(),
		}, nil
	}
	return domain.Rate{}, fmt.Errorf("%w: %s", domain.ErrRateUnavailable, currency)
}
