package rates

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/javipazolea/ferremas-backend/internal/domain"
)

// DefaultTTL — время жизни курса в кэше. Банк публикует значения раз в
// сутки, двух часов достаточно, чтобы не ходить к API на каждый запрос.
const DefaultTTL = 2 * time.Hour

// Conversion — результат пересчёта суммы между валютами.
type Conversion struct {
	Amount    float64
	From      string
	To        string
	Converted float64
	// Rate — эффективный курс from→to, округлённый до 4 знаков.
	Rate float64
	Date string
}

// Service отдаёт курсы валют к CLP и пересчитывает суммы между
// поддерживаемыми валютами через CLP как промежуточную.
type Service struct {
	source domain.RateSource
	cache  domain.RateCache
	logger *log.Entry
	ttl    time.Duration
	// now подменяется в тестах.
	now func() time.Time
}

// NewService создаёт сервис курсов. Кэш обязателен: при недоступном
// Redis передаётся NewMemoryCache().
func NewService(source domain.RateSource, cache domain.RateCache, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "rates")
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Service{
		source: source,
		cache:  cache,
		logger: logger,
		ttl:    DefaultTTL,
		now:    time.Now,
	}
}

// Rate возвращает курс валюты к CLP: сначала из кэша, при промахе — из
// внешнего источника с записью в кэш.
func (s *Service) Rate(ctx context.Context, currency string) (domain.Rate, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return domain.Rate{}, fmt.Errorf("%w: empty currency", domain.ErrCurrencyUnsupported)
	}
	if currency == domain.BaseCurrency {
		return domain.Rate{
			Currency:  domain.BaseCurrency,
			Value:     1,
			Date:      s.now().Format("2006-01-02"),
			Source:    domain.RateSourceBase,
			FetchedAt: s.now(),
		}, nil
	}
	if _, ok := seriesCodes[currency]; !ok {
		return domain.Rate{}, fmt.Errorf("%w: %s", domain.ErrCurrencyUnsupported, currency)
	}

	if cached, ok, err := s.cache.Get(ctx, currency); err != nil {
		s.logger.WithError(err).WithField("currency", currency).Warn("rate cache unavailable")
	} else if ok {
		cached.Source = domain.RateSourceCache
		return cached, nil
	}

	rate, err := s.source.Fetch(ctx, currency)
	if err != nil {
		return domain.Rate{}, err
	}
	if err := s.cache.Set(ctx, rate, s.ttl); err != nil {
		s.logger.WithError(err).WithField("currency", currency).Warn("failed to store rate in cache")
	}
	return rate, nil
}

// Rates возвращает курсы всех поддерживаемых валют. Валюты, чей курс
// получить не удалось, пропускаются: частичный ответ полезнее отказа.
func (s *Service) Rates(ctx context.Context) ([]domain.Rate, error) {
	currencies := SupportedCurrencies()
	sort.Strings(currencies)

	out := make([]domain.Rate, 0, len(currencies))
	for _, currency := range currencies {
		rate, err := s.Rate(ctx, currency)
		if err != nil {
			s.logger.WithError(err).WithField("currency", currency).Warn("currency rate skipped")
			continue
		}
		out = append(out, rate)
	}
	if len(out) == 0 {
		return nil, domain.ErrRateUnavailable
	}
	return out, nil
}

// Convert пересчитывает сумму из одной валюты в другую через CLP.
// Результат округляется до 2 знаков, эффективный курс — до 4.
func (s *Service) Convert(ctx context.Context, amount float64, from, to string) (Conversion, error) {
	if amount < 0 {
		return Conversion{}, fmt.Errorf("%w: amount must be non-negative", domain.ErrAmountInvalid)
	}
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))

	if from == to {
		if _, err := s.Rate(ctx, from); err != nil {
			return Conversion{}, err
		}
		return Conversion{
			Amount:    amount,
			From:      from,
			To:        to,
			Converted: round2(amount),
			Rate:      1,
			Date:      s.now().Format("2006-01-02"),
		}, nil
	}

	fromRate, err := s.Rate(ctx, from)
	if err != nil {
		return Conversion{}, err
	}
	toRate, err := s.Rate(ctx, to)
	if err != nil {
		return Conversion{}, err
	}

	// Сумма сначала переводится в CLP, затем в целевую валюту.
	inCLP := amount * fromRate.Value
	converted := inCLP / toRate.Value

	date := fromRate.Date
	if date == "" {
		date = toRate.Date
	}
	return Conversion{
		Amount:    amount,
		From:      from,
		To:        to,
		Converted: round2(converted),
		Rate:      round4(fromRate.Value / toRate.Value),
		Date:      date,
	}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
